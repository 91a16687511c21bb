// README: Matching orchestrator types: run summaries, donor-facing eligibility and dashboard rows.
package matching

import (
	"errors"

	"lifelink/internal/modules/donor"
	"lifelink/internal/modules/eligibility"
	"lifelink/internal/modules/hospital"
	"lifelink/internal/modules/ranking"
	"lifelink/internal/types"
)

const (
	defaultBroadcastRadiusKm = 50
	defaultDashboardRadiusKm = 25
	defaultFacilityRadiusKm  = 50

	maxNearbyFacilities = 20
)

// ErrDonorUnlocated is returned by searches that need the donor's position.
var ErrDonorUnlocated = errors.New("donor has no location")

type Config struct {
	// BroadcastRadiusKm bounds donors considered when a request is created.
	BroadcastRadiusKm float64
	// DashboardRadiusKm bounds requests shown to a donor.
	DashboardRadiusKm float64
	// FacilityRadiusKm bounds facilities shown to a donor.
	FacilityRadiusKm float64
	// UseGeoIndex pre-selects located donors through the Redis GEO index.
	UseGeoIndex bool
}

func DefaultConfig() Config {
	return Config{
		BroadcastRadiusKm: defaultBroadcastRadiusKm,
		DashboardRadiusKm: defaultDashboardRadiusKm,
		FacilityRadiusKm:  defaultFacilityRadiusKm,
	}
}

// Summary reports one matching run for a request.
type Summary struct {
	RequestID  types.ID
	Considered int
	Eligible   int
	Queued     int
	// Activated is the candidate notified by this run, empty when none.
	Activated types.ID
	// Resumed is true when the request already had a queue.
	Resumed bool
}

// Eligibility is the donor-facing answer to "can I help with this request".
type Eligibility struct {
	DonorID           types.ID
	RequestID         types.ID
	Eligible          bool
	FailedGate        eligibility.Gate
	DistanceKm        *float64
	DaysUntilEligible int
}

// OpenRequest is a request row on a donor's dashboard.
type OpenRequest struct {
	Request    hospital.BloodRequest
	Priority   ranking.PriorityLevel
	DistanceKm *float64
}

// NearbyDonor is a row in a facility's donor search. DistanceKm is nil when
// the facility has no location.
type NearbyDonor struct {
	Donor      donor.Donor
	DistanceKm *float64
}

// NearbyFacility is a facility within reach of a donor with counts of its
// open requests.
type NearbyFacility struct {
	Facility           hospital.Facility
	DistanceKm         float64
	OpenRequests       int
	CompatibleRequests int
}
