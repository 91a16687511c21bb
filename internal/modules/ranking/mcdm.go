// README: Multi-criteria donor ranking (TOPSIS) over distance, compatibility, donation count and recency.
package ranking

import (
	"errors"
	"math"
	"sort"
	"time"

	"lifelink/internal/modules/bloodtype"
	"lifelink/internal/modules/donor"
	"lifelink/internal/modules/location"
	"lifelink/internal/types"
)

var ErrInvalidWeights = errors.New("ranking weights must be non-negative and sum to 1")

// criteria column order
const (
	critDistance = iota
	critCompatibility
	critDonations
	critRecency
	numCriteria
)

// benefit[j] is true when higher values are better.
var benefit = [numCriteria]bool{false, true, true, true}

type Config struct {
	// Weights are distance, compatibility, donation count, recency.
	Weights           [numCriteria]float64
	RecencyCapDays    int
	UnknownDistanceKm float64
	Clock             func() time.Time
}

func DefaultConfig() Config {
	return Config{
		Weights:           [numCriteria]float64{0.30, 0.30, 0.20, 0.20},
		RecencyCapDays:    90,
		UnknownDistanceKm: 50,
		Clock:             time.Now,
	}
}

func (c Config) Validate() error {
	sum := 0.0
	for _, w := range c.Weights {
		if w < 0 {
			return ErrInvalidWeights
		}
		sum += w
	}
	if math.Abs(sum-1) > 1e-9 {
		return ErrInvalidWeights
	}
	return nil
}

type RankedDonor struct {
	Donor donor.Donor
	// Score is in [0,1], higher is a better match.
	Score float64
}

type Ranker struct {
	cfg Config
}

func NewRanker(cfg Config) (*Ranker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.RecencyCapDays <= 0 {
		cfg.RecencyCapDays = 90
	}
	if cfg.UnknownDistanceKm <= 0 {
		cfg.UnknownDistanceKm = 50
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Ranker{cfg: cfg}, nil
}

// RankDonors orders donors best-first. distances takes precedence; when a
// donor is missing from it the distance is computed from requester if both
// locations are known, and UnknownDistanceKm is used otherwise.
func (r *Ranker) RankDonors(donors []donor.Donor, requester *types.Point, distances map[types.ID]float64, required bloodtype.Type) []RankedDonor {
	switch len(donors) {
	case 0:
		return []RankedDonor{}
	case 1:
		return []RankedDonor{{Donor: donors[0], Score: 1.0}}
	}

	now := r.cfg.Clock()
	matrix := make([][numCriteria]float64, len(donors))
	for i, d := range donors {
		matrix[i] = [numCriteria]float64{
			critDistance:      r.distanceOf(d, requester, distances),
			critCompatibility: float64(bloodtype.Grade(d.BloodType, required)),
			critDonations:     float64(d.DonationCount),
			critRecency:       float64(r.recencyOf(d, now)),
		}
	}

	var norms [numCriteria]float64
	for _, row := range matrix {
		for j, v := range row {
			norms[j] += v * v
		}
	}
	for j := range norms {
		norms[j] = math.Sqrt(norms[j])
	}

	weighted := make([][numCriteria]float64, len(matrix))
	for i, row := range matrix {
		for j, v := range row {
			if norms[j] > 0 {
				weighted[i][j] = v / norms[j] * r.cfg.Weights[j]
			}
		}
	}

	ideal, negIdeal := weighted[0], weighted[0]
	for _, row := range weighted[1:] {
		for j, v := range row {
			if benefit[j] {
				ideal[j] = math.Max(ideal[j], v)
				negIdeal[j] = math.Min(negIdeal[j], v)
			} else {
				ideal[j] = math.Min(ideal[j], v)
				negIdeal[j] = math.Max(negIdeal[j], v)
			}
		}
	}

	out := make([]RankedDonor, len(donors))
	for i, row := range weighted {
		dPlus := euclidean(row, ideal)
		dMinus := euclidean(row, negIdeal)
		score := 0.5
		if sum := dPlus + dMinus; sum > 0 {
			score = clamp01(dMinus / sum)
		}
		out[i] = RankedDonor{Donor: donors[i], Score: score}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	return out
}

func (r *Ranker) distanceOf(d donor.Donor, requester *types.Point, distances map[types.ID]float64) float64 {
	if km, ok := distances[d.ID]; ok {
		return km
	}
	if km, ok := location.DistanceKm(d.Location, requester); ok {
		return km
	}
	return r.cfg.UnknownDistanceKm
}

// recencyOf is days since the last donation, capped. Never donated counts as the cap.
func (r *Ranker) recencyOf(d donor.Donor, now time.Time) int {
	days, ok := d.DaysSinceLastDonation(now)
	if !ok || days > r.cfg.RecencyCapDays {
		return r.cfg.RecencyCapDays
	}
	return days
}

func euclidean(a, b [numCriteria]float64) float64 {
	sum := 0.0
	for j := range a {
		diff := a[j] - b[j]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
