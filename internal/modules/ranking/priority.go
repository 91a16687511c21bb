// README: Request priority scoring for the open-request queue.
package ranking

import (
	"math"
	"sort"
	"time"

	"lifelink/internal/modules/bloodtype"
	"lifelink/internal/modules/hospital"
)

// PriorityLevel is the derived display level. It is independent of the
// urgency a hospital picks at intake.
type PriorityLevel string

const (
	LevelCritical PriorityLevel = "critical"
	LevelHigh     PriorityLevel = "high"
	LevelMedium   PriorityLevel = "medium"
	LevelLow      PriorityLevel = "low"
)

const (
	weightUrgency = 0.40
	weightWait    = 0.30
	weightUnits   = 0.20
	weightRarity  = 0.10
)

type SubScores struct {
	Urgency int
	Wait    int
	Units   int
	Rarity  int
}

type RankedRequest struct {
	Request   hospital.BloodRequest
	Score     float64
	Level     PriorityLevel
	SubScores SubScores
}

type PriorityRanker struct {
	clock func() time.Time
}

func NewPriorityRanker(clock func() time.Time) *PriorityRanker {
	if clock == nil {
		clock = time.Now
	}
	return &PriorityRanker{clock: clock}
}

// RankRequests scores every request and orders them highest first, stable on ties.
func (p *PriorityRanker) RankRequests(reqs []hospital.BloodRequest) []RankedRequest {
	now := p.clock()
	out := make([]RankedRequest, len(reqs))
	for i, r := range reqs {
		out[i] = score(r, now)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	return out
}

func (p *PriorityRanker) Score(r hospital.BloodRequest) RankedRequest {
	return score(r, p.clock())
}

func score(r hospital.BloodRequest, now time.Time) RankedRequest {
	sub := SubScores{
		Urgency: UrgencyScore(r.Urgency),
		Wait:    WaitScore(r.CreatedAt, now),
		Units:   UnitsScore(r.UnitsNeeded),
		Rarity:  bloodtype.Rarity(r.BloodType),
	}
	composite := weightUrgency*float64(sub.Urgency) +
		weightWait*float64(sub.Wait) +
		weightUnits*float64(sub.Units) +
		weightRarity*float64(sub.Rarity)
	composite = math.Round(composite*10) / 10
	return RankedRequest{Request: r, Score: composite, Level: LevelFor(composite), SubScores: sub}
}

func UrgencyScore(u hospital.Urgency) int {
	switch u {
	case hospital.UrgencyCritical:
		return 100
	case hospital.UrgencyUrgent:
		return 70
	default:
		return 40
	}
}

// WaitScore steps on whole hours since creation. Both instants are compared
// in UTC so the zone each was recorded in does not matter.
func WaitScore(createdAt, now time.Time) int {
	hours := now.UTC().Sub(createdAt.UTC()).Hours()
	switch {
	case hours >= 24:
		return 100
	case hours >= 12:
		return 80
	case hours >= 6:
		return 60
	case hours >= 3:
		return 40
	case hours >= 1:
		return 20
	default:
		return 0
	}
}

func UnitsScore(units int) int {
	switch {
	case units >= 5:
		return 100
	case units >= 4:
		return 80
	case units >= 3:
		return 60
	case units >= 2:
		return 40
	default:
		return 20
	}
}

func LevelFor(score float64) PriorityLevel {
	switch {
	case score >= 80:
		return LevelCritical
	case score >= 60:
		return LevelHigh
	case score >= 40:
		return LevelMedium
	default:
		return LevelLow
	}
}
