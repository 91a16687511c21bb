// README: Eligibility gate chain deciding whether a donor may be asked for a request.
package eligibility

import (
	"time"

	"lifelink/internal/modules/bloodtype"
	"lifelink/internal/modules/donor"
	"lifelink/internal/modules/hospital"
	"lifelink/internal/modules/location"
	"lifelink/internal/types"
)

const DefaultCooldownDays = 90

// Gate names the first check a donor failed.
type Gate string

const (
	GateNone          Gate = ""
	GateAvailability  Gate = "availability"
	GateCooldown      Gate = "cooldown"
	GateCompatibility Gate = "compatibility"
	GateDeclined      Gate = "declined"
	GateDistance      Gate = "distance"
)

type Config struct {
	CooldownDays int
	Clock        func() time.Time
}

func DefaultConfig() Config {
	return Config{CooldownDays: DefaultCooldownDays, Clock: time.Now}
}

// DeclineSet holds donors who already refused a given request.
type DeclineSet map[types.ID]struct{}

func (s DeclineSet) Has(id types.ID) bool {
	_, ok := s[id]
	return ok
}

type Result struct {
	Eligible   bool
	FailedGate Gate
	// DistanceKm is nil when either location is unknown.
	DistanceKm *float64
}

// Match is an eligible donor together with its computed distance.
type Match struct {
	Donor      donor.Donor
	DistanceKm *float64
}

type Filter struct {
	cfg Config
}

func New(cfg Config) *Filter {
	if cfg.CooldownDays <= 0 {
		cfg.CooldownDays = DefaultCooldownDays
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Filter{cfg: cfg}
}

// Evaluate runs the gates in order and stops at the first failure. The
// distance gate is skipped when either side has no location.
func (f *Filter) Evaluate(d donor.Donor, req hospital.BloodRequest, maxDistanceKm float64, declined DeclineSet) Result {
	if !d.Available {
		return Result{FailedGate: GateAvailability}
	}
	if days, ok := d.DaysSinceLastDonation(f.cfg.Clock()); ok && days < f.cfg.CooldownDays {
		return Result{FailedGate: GateCooldown}
	}
	if !bloodtype.IsCompatible(d.BloodType, req.BloodType) {
		return Result{FailedGate: GateCompatibility}
	}
	if declined.Has(d.ID) {
		return Result{FailedGate: GateDeclined}
	}
	km, ok := location.DistanceKm(d.Location, req.Location)
	if !ok {
		return Result{Eligible: true}
	}
	if km > maxDistanceKm {
		return Result{FailedGate: GateDistance, DistanceKm: &km}
	}
	return Result{Eligible: true, DistanceKm: &km}
}

// IsEligible is the boolean form of Evaluate.
func (f *Filter) IsEligible(d donor.Donor, req hospital.BloodRequest, maxDistanceKm float64, declined DeclineSet) (bool, *float64) {
	r := f.Evaluate(d, req, maxDistanceKm, declined)
	return r.Eligible, r.DistanceKm
}

// Apply keeps the eligible donors in input order.
func (f *Filter) Apply(donors []donor.Donor, req hospital.BloodRequest, maxDistanceKm float64, declined DeclineSet) []Match {
	var out []Match
	for _, d := range donors {
		if r := f.Evaluate(d, req, maxDistanceKm, declined); r.Eligible {
			out = append(out, Match{Donor: d, DistanceKm: r.DistanceKm})
		}
	}
	return out
}

// DaysUntilEligible returns how many days remain in the donor's cooldown, 0 when none.
func (f *Filter) DaysUntilEligible(d donor.Donor) int {
	days, ok := d.DaysSinceLastDonation(f.cfg.Clock())
	if !ok || days >= f.cfg.CooldownDays {
		return 0
	}
	return f.cfg.CooldownDays - days
}
