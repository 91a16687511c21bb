// README: Matching service turns a new blood request into an activated donor cascade.
package matching

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"lifelink/internal/modules/bloodtype"
	"lifelink/internal/modules/cascade"
	"lifelink/internal/modules/donor"
	"lifelink/internal/modules/eligibility"
	"lifelink/internal/modules/hospital"
	"lifelink/internal/modules/location"
	"lifelink/internal/modules/ranking"
	"lifelink/internal/types"
)

type DonorSource interface {
	Get(ctx context.Context, id types.ID) (*donor.Donor, error)
	ListAvailable(ctx context.Context) ([]donor.Donor, error)
	ListAvailableByIDs(ctx context.Context, ids []types.ID) ([]donor.Donor, error)
	// ListAvailableUnindexed returns available donors missing from the GEO
	// index, including every donor without a location.
	ListAvailableUnindexed(ctx context.Context) ([]donor.Donor, error)
}

type RequestSource interface {
	Get(ctx context.Context, id types.ID) (*hospital.BloodRequest, error)
	ListByStatus(ctx context.Context, statuses ...hospital.RequestStatus) ([]hospital.BloodRequest, error)
	GetFacility(ctx context.Context, id types.ID) (*hospital.Facility, error)
	ListFacilities(ctx context.Context) ([]hospital.Facility, error)
	SetFacilityLocation(ctx context.Context, id types.ID, p types.Point) error
}

// GeoIndex pre-selects located donors. NearbyDonors may return donors a
// little beyond the radius; the eligibility filter applies the exact bound.
type GeoIndex interface {
	NearbyDonors(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error)
	// Ready reports whether the index holds every located donor.
	Ready(ctx context.Context) (bool, error)
}

// Geocoder resolves a facility address. A nil point with a nil error means
// the address was not found.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*types.Point, error)
}

// Queue is the part of the cascade the orchestrator drives.
type Queue interface {
	DeclinedDonors(ctx context.Context, requestID types.ID) (eligibility.DeclineSet, error)
	Enqueue(ctx context.Context, requestID types.ID, cands []*cascade.Candidate) error
	ActivateNext(ctx context.Context, requestID types.ID) (*cascade.Candidate, error)
}

type Observer interface {
	ObserveRanking(d time.Duration)
	ObserveEligible(n int)
}

type Deps struct {
	Donors   DonorSource
	Requests RequestSource
	Queue    Queue
	Filter   *eligibility.Filter
	Ranker   *ranking.Ranker
	Priority *ranking.PriorityRanker
	Geo      GeoIndex
	Geocoder Geocoder
	Observer Observer
	Logger   *zap.Logger
	Clock    func() time.Time
}

type Service struct {
	donors   DonorSource
	requests RequestSource
	queue    Queue
	filter   *eligibility.Filter
	ranker   *ranking.Ranker
	priority *ranking.PriorityRanker
	geo      GeoIndex
	geocoder Geocoder
	observer Observer
	log      *zap.Logger
	now      func() time.Time
	cfg      Config
}

func NewService(deps Deps, cfg Config) (*Service, error) {
	if deps.Donors == nil || deps.Requests == nil || deps.Queue == nil {
		return nil, errors.New("matching: donors, requests and queue are required")
	}
	def := DefaultConfig()
	if cfg.BroadcastRadiusKm <= 0 {
		cfg.BroadcastRadiusKm = def.BroadcastRadiusKm
	}
	if cfg.DashboardRadiusKm <= 0 {
		cfg.DashboardRadiusKm = def.DashboardRadiusKm
	}
	if cfg.FacilityRadiusKm <= 0 {
		cfg.FacilityRadiusKm = def.FacilityRadiusKm
	}
	s := &Service{
		donors:   deps.Donors,
		requests: deps.Requests,
		queue:    deps.Queue,
		filter:   deps.Filter,
		ranker:   deps.Ranker,
		priority: deps.Priority,
		geo:      deps.Geo,
		geocoder: deps.Geocoder,
		observer: deps.Observer,
		log:      deps.Logger,
		now:      deps.Clock,
		cfg:      cfg,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.filter == nil {
		s.filter = eligibility.New(eligibility.Config{CooldownDays: eligibility.DefaultCooldownDays, Clock: s.now})
	}
	if s.ranker == nil {
		rcfg := ranking.DefaultConfig()
		rcfg.Clock = s.now
		r, err := ranking.NewRanker(rcfg)
		if err != nil {
			return nil, err
		}
		s.ranker = r
	}
	if s.priority == nil {
		s.priority = ranking.NewPriorityRanker(s.now)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s, nil
}

// OnRequestCreated filters, ranks and queues donors for a pending request and
// notifies the first one. A request that already has a queue is resumed
// instead. No eligible donors is a normal outcome: the cascade escalates.
func (s *Service) OnRequestCreated(ctx context.Context, requestID types.ID) (Summary, error) {
	sum := Summary{RequestID: requestID}

	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return sum, err
	}
	if req.Status != hospital.StatusPending {
		return sum, fmt.Errorf("%w: request %s is %s", hospital.ErrInvalidState, requestID, req.Status)
	}
	s.ensureLocation(ctx, req)

	pool, err := s.candidatePool(ctx, req)
	if err != nil {
		return sum, fmt.Errorf("load donors: %w", err)
	}
	sum.Considered = len(pool)

	declined, err := s.queue.DeclinedDonors(ctx, requestID)
	if err != nil {
		return sum, err
	}
	matches := s.filter.Apply(pool, *req, s.cfg.BroadcastRadiusKm, declined)
	sum.Eligible = len(matches)
	if s.observer != nil {
		s.observer.ObserveEligible(len(matches))
	}

	donors := make([]donor.Donor, len(matches))
	distances := make(map[types.ID]float64, len(matches))
	for i, m := range matches {
		donors[i] = m.Donor
		if m.DistanceKm != nil {
			distances[m.Donor.ID] = *m.DistanceKm
		}
	}

	started := time.Now()
	ranked := s.ranker.RankDonors(donors, req.Location, distances, req.BloodType)
	if s.observer != nil {
		s.observer.ObserveRanking(time.Since(started))
	}

	queue := cascade.BuildQueue(requestID, ranked, distances, s.now())
	switch err := s.queue.Enqueue(ctx, requestID, queue); {
	case errors.Is(err, cascade.ErrQueueExists):
		sum.Resumed = true
	case err != nil:
		return sum, fmt.Errorf("enqueue: %w", err)
	default:
		sum.Queued = len(queue)
	}

	active, err := s.queue.ActivateNext(ctx, requestID)
	if err != nil {
		return sum, fmt.Errorf("activate: %w", err)
	}
	if active != nil {
		sum.Activated = active.ID
	}

	s.log.Info("request matched",
		zap.String("request_id", string(requestID)),
		zap.Int("considered", sum.Considered),
		zap.Int("eligible", sum.Eligible),
		zap.Int("queued", sum.Queued),
		zap.String("activated", string(sum.Activated)),
	)
	return sum, nil
}

// EligibilityFor evaluates a single donor against a request using the
// dashboard radius.
func (s *Service) EligibilityFor(ctx context.Context, donorID, requestID types.ID) (Eligibility, error) {
	d, err := s.donors.Get(ctx, donorID)
	if err != nil {
		return Eligibility{}, err
	}
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return Eligibility{}, err
	}
	declined, err := s.queue.DeclinedDonors(ctx, requestID)
	if err != nil {
		return Eligibility{}, err
	}
	res := s.filter.Evaluate(*d, *req, s.cfg.DashboardRadiusKm, declined)
	return Eligibility{
		DonorID:           donorID,
		RequestID:         requestID,
		Eligible:          res.Eligible,
		FailedGate:        res.FailedGate,
		DistanceKm:        res.DistanceKm,
		DaysUntilEligible: s.filter.DaysUntilEligible(*d),
	}, nil
}

// PrioritizedRequests ranks open requests for hospital and admin views.
func (s *Service) PrioritizedRequests(ctx context.Context) ([]ranking.RankedRequest, error) {
	reqs, err := s.requests.ListByStatus(ctx, hospital.StatusPending, hospital.StatusNotified)
	if err != nil {
		return nil, err
	}
	return s.priority.RankRequests(reqs), nil
}

// OpenRequestsFor lists open requests the donor could serve, nearest first.
// Requests without a known distance come last.
func (s *Service) OpenRequestsFor(ctx context.Context, donorID types.ID) ([]OpenRequest, error) {
	d, err := s.donors.Get(ctx, donorID)
	if err != nil {
		return nil, err
	}
	reqs, err := s.requests.ListByStatus(ctx, hospital.StatusPending, hospital.StatusNotified)
	if err != nil {
		return nil, err
	}

	out := make([]OpenRequest, 0, len(reqs))
	for _, req := range reqs {
		declined, err := s.queue.DeclinedDonors(ctx, req.ID)
		if err != nil {
			return nil, err
		}
		res := s.filter.Evaluate(*d, req, s.cfg.DashboardRadiusKm, declined)
		if !res.Eligible {
			continue
		}
		out = append(out, OpenRequest{
			Request:    req,
			Priority:   s.priority.Score(req).Level,
			DistanceKm: res.DistanceKm,
		})
	}
	location.SortByDistance(out, func(o OpenRequest) float64 {
		if o.DistanceKm == nil {
			return math.Inf(1)
		}
		return *o.DistanceKm
	})
	return out, nil
}

// DonorsNear lists available donors for a facility, nearest first. An empty
// bt matches every blood type and radiusKm <= 0 means the broadcast radius.
// Donors without a location are left out when the facility has one; when it
// has none every donor is listed without a distance.
func (s *Service) DonorsNear(ctx context.Context, facilityID types.ID, bt bloodtype.Type, radiusKm float64) ([]NearbyDonor, error) {
	if bt != "" && !bt.Valid() {
		return nil, fmt.Errorf("%w: unknown blood type %q", hospital.ErrBadRequest, bt)
	}
	if radiusKm <= 0 {
		radiusKm = s.cfg.BroadcastRadiusKm
	}
	f, err := s.requests.GetFacility(ctx, facilityID)
	if err != nil {
		return nil, err
	}

	var pool []donor.Donor
	if f.Location != nil && s.cfg.UseGeoIndex && s.geo != nil {
		pool, err = s.donorsAround(ctx, *f.Location, radiusKm)
	} else {
		pool, err = s.donors.ListAvailable(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("load donors: %w", err)
	}

	out := make([]NearbyDonor, 0, len(pool))
	for _, d := range pool {
		if bt != "" && d.BloodType != bt {
			continue
		}
		if f.Location == nil {
			out = append(out, NearbyDonor{Donor: d})
			continue
		}
		km, ok := location.DistanceKm(f.Location, d.Location)
		if !ok || km > radiusKm {
			continue
		}
		out = append(out, NearbyDonor{Donor: d, DistanceKm: &km})
	}
	location.SortByDistance(out, func(n NearbyDonor) float64 {
		if n.DistanceKm == nil {
			return math.Inf(1)
		}
		return *n.DistanceKm
	})
	return out, nil
}

// FacilitiesNear lists facilities within the facility radius of a located
// donor, nearest first, with their open and blood-compatible request counts.
func (s *Service) FacilitiesNear(ctx context.Context, donorID types.ID) ([]NearbyFacility, error) {
	d, err := s.donors.Get(ctx, donorID)
	if err != nil {
		return nil, err
	}
	if d.Location == nil {
		return nil, ErrDonorUnlocated
	}
	facilities, err := s.requests.ListFacilities(ctx)
	if err != nil {
		return nil, err
	}
	reqs, err := s.requests.ListByStatus(ctx, hospital.StatusPending, hospital.StatusNotified)
	if err != nil {
		return nil, err
	}

	out := make([]NearbyFacility, 0)
	index := map[types.ID]int{}
	for _, f := range facilities {
		km, ok := location.DistanceKm(d.Location, f.Location)
		if !ok || km > s.cfg.FacilityRadiusKm {
			continue
		}
		index[f.ID] = len(out)
		out = append(out, NearbyFacility{Facility: f, DistanceKm: km})
	}
	for _, r := range reqs {
		i, ok := index[r.FacilityID]
		if !ok {
			continue
		}
		out[i].OpenRequests++
		if bloodtype.IsCompatible(d.BloodType, r.BloodType) {
			out[i].CompatibleRequests++
		}
	}
	location.SortByDistance(out, func(n NearbyFacility) float64 { return n.DistanceKm })
	if len(out) > maxNearbyFacilities {
		out = out[:maxNearbyFacilities]
	}
	return out, nil
}

// ensureLocation geocodes the facility address once when no coordinates are
// stored. Failures leave the request unlocated.
func (s *Service) ensureLocation(ctx context.Context, req *hospital.BloodRequest) {
	if req.Location != nil || s.geocoder == nil || req.FacilityAddress == "" {
		return
	}
	p, err := s.geocoder.Geocode(ctx, req.FacilityAddress)
	if err != nil {
		s.log.Warn("geocode facility failed", zap.String("facility_id", string(req.FacilityID)), zap.Error(err))
		return
	}
	if p == nil {
		return
	}
	req.Location = p
	if err := s.requests.SetFacilityLocation(ctx, req.FacilityID, *p); err != nil {
		s.log.Warn("store facility location failed", zap.String("facility_id", string(req.FacilityID)), zap.Error(err))
	}
}

// candidatePool loads available donors for a request, through the GEO index
// when it is enabled and the request has a location.
func (s *Service) candidatePool(ctx context.Context, req *hospital.BloodRequest) ([]donor.Donor, error) {
	if !s.cfg.UseGeoIndex || s.geo == nil || req.Location == nil {
		return s.donors.ListAvailable(ctx)
	}
	return s.donorsAround(ctx, *req.Location, s.cfg.BroadcastRadiusKm)
}

// donorsAround takes indexed donors near p plus every available donor the
// index cannot answer for. It scans all donors when the index is not ready
// or errors.
func (s *Service) donorsAround(ctx context.Context, p types.Point, radiusKm float64) ([]donor.Donor, error) {
	ready, err := s.geo.Ready(ctx)
	if err != nil || !ready {
		s.log.Warn("geo index not ready, scanning all donors", zap.Error(err))
		return s.donors.ListAvailable(ctx)
	}
	ids, err := s.geo.NearbyDonors(ctx, p, radiusKm)
	if err != nil {
		s.log.Warn("geo index lookup failed, scanning all donors", zap.Error(err))
		return s.donors.ListAvailable(ctx)
	}
	nearby, err := s.donors.ListAvailableByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	rest, err := s.donors.ListAvailableUnindexed(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[types.ID]bool, len(nearby))
	for _, d := range nearby {
		seen[d.ID] = true
	}
	for _, d := range rest {
		if !seen[d.ID] {
			seen[d.ID] = true
			nearby = append(nearby, d)
		}
	}
	return nearby, nil
}
