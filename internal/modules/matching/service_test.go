package matching

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifelink/internal/modules/bloodtype"
	"lifelink/internal/modules/cascade"
	"lifelink/internal/modules/donor"
	"lifelink/internal/modules/eligibility"
	"lifelink/internal/modules/hospital"
	"lifelink/internal/modules/location"
	"lifelink/internal/modules/ranking"
	"lifelink/internal/types"
)

var (
	t0        = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	kathmandu = types.Point{Lat: 27.7172, Lng: 85.3240}
	pokhara   = types.Point{Lat: 28.2096, Lng: 83.9856}
)

type fakeDonors struct {
	donors []donor.Donor
	// unindexed marks located donors whose index write never landed.
	unindexed map[types.ID]bool
	calls     map[string]int
}

func (f *fakeDonors) Get(_ context.Context, id types.ID) (*donor.Donor, error) {
	for _, d := range f.donors {
		if d.ID == id {
			return &d, nil
		}
	}
	return nil, donor.ErrNotFound
}

func (f *fakeDonors) ListAvailable(context.Context) ([]donor.Donor, error) {
	f.calls["all"]++
	var out []donor.Donor
	for _, d := range f.donors {
		if d.Available {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDonors) ListAvailableByIDs(_ context.Context, ids []types.ID) ([]donor.Donor, error) {
	f.calls["by_ids"]++
	var out []donor.Donor
	for _, id := range ids {
		for _, d := range f.donors {
			if d.ID == id && d.Available {
				out = append(out, d)
			}
		}
	}
	return out, nil
}

func (f *fakeDonors) ListAvailableUnindexed(context.Context) ([]donor.Donor, error) {
	f.calls["unindexed"]++
	var out []donor.Donor
	for _, d := range f.donors {
		if d.Available && (d.Location == nil || f.unindexed[d.ID]) {
			out = append(out, d)
		}
	}
	return out, nil
}

// fakeRequests reads requests through the cascade memory store so both sides
// see the same status.
type fakeRequests struct {
	store      *cascade.MemoryStore
	ids        []types.ID
	locations  map[types.ID]types.Point
	facilities []hospital.Facility
}

func (f *fakeRequests) Get(_ context.Context, id types.ID) (*hospital.BloodRequest, error) {
	r, ok := f.store.Request(id)
	if !ok {
		return nil, hospital.ErrNotFound
	}
	return &r, nil
}

func (f *fakeRequests) ListByStatus(_ context.Context, statuses ...hospital.RequestStatus) ([]hospital.BloodRequest, error) {
	var out []hospital.BloodRequest
	for _, id := range f.ids {
		r, _ := f.store.Request(id)
		for _, st := range statuses {
			if r.Status == st {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (f *fakeRequests) GetFacility(_ context.Context, id types.ID) (*hospital.Facility, error) {
	for _, fac := range f.facilities {
		if fac.ID == id {
			return &fac, nil
		}
	}
	return nil, hospital.ErrNotFound
}

func (f *fakeRequests) ListFacilities(context.Context) ([]hospital.Facility, error) {
	return f.facilities, nil
}

func (f *fakeRequests) SetFacilityLocation(_ context.Context, id types.ID, p types.Point) error {
	f.locations[id] = p
	return nil
}

type fakeGeo struct {
	ids      []types.ID
	err      error
	notReady bool
}

func (g *fakeGeo) NearbyDonors(context.Context, types.Point, float64) ([]types.ID, error) {
	return g.ids, g.err
}

func (g *fakeGeo) Ready(context.Context) (bool, error) {
	return !g.notReady, nil
}

type fakeGeocoder struct {
	point *types.Point
	err   error
}

func (g fakeGeocoder) Geocode(context.Context, string) (*types.Point, error) {
	return g.point, g.err
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []cascade.Notice
}

func (n *recordingNotifier) NotifyDonor(_ context.Context, notice cascade.Notice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return nil
}

type recordingEscalator struct {
	mu        sync.Mutex
	exhausted []types.ID
}

func (e *recordingEscalator) DonorAccepted(context.Context, hospital.BloodRequest, cascade.Candidate) {}
func (e *recordingEscalator) DonorTimedOut(context.Context, hospital.BloodRequest, cascade.Candidate, *cascade.Candidate) {
}
func (e *recordingEscalator) QueueExhausted(_ context.Context, req hospital.BloodRequest) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.exhausted = append(e.exhausted, req.ID)
}

type recordingObserver struct {
	eligible []int
	rankings int
}

func (o *recordingObserver) ObserveRanking(time.Duration) { o.rankings++ }
func (o *recordingObserver) ObserveEligible(n int)        { o.eligible = append(o.eligible, n) }

type fixture struct {
	svc       *Service
	cascade   *cascade.Service
	store     *cascade.MemoryStore
	donors    *fakeDonors
	requests  *fakeRequests
	notifier  *recordingNotifier
	escalator *recordingEscalator
	observer  *recordingObserver
}

func at(p types.Point) *types.Point { return &p }

func daysAgo(n int) *time.Time {
	t := t0.AddDate(0, 0, -n)
	return &t
}

// standardDonors covers every gate once for an A+ request in Kathmandu.
func standardDonors() []donor.Donor {
	return []donor.Donor{
		{ID: "near", BloodType: bloodtype.ONeg, Available: true, Location: at(types.Point{Lat: 27.7272, Lng: 85.3240})},
		{ID: "mid", BloodType: bloodtype.APos, Available: true, Location: at(types.Point{Lat: 27.8000, Lng: 85.3240}), DonationCount: 5},
		{ID: "far", BloodType: bloodtype.APos, Available: true, Location: at(pokhara)},
		{ID: "unlocated", BloodType: bloodtype.APos, Available: true},
		{ID: "cooldown", BloodType: bloodtype.APos, Available: true, Location: at(kathmandu), LastDonationDate: daysAgo(10)},
		{ID: "incompatible", BloodType: bloodtype.BPos, Available: true, Location: at(kathmandu)},
		{ID: "away", BloodType: bloodtype.APos, Available: false, Location: at(kathmandu)},
	}
}

func newFixture(t *testing.T, donors []donor.Donor, cfg Config, geo GeoIndex, geocoder Geocoder) *fixture {
	t.Helper()
	clock := func() time.Time { return t0 }
	store := cascade.NewMemoryStore()
	for _, d := range donors {
		store.PutDonor(d)
	}
	f := &fixture{
		store:     store,
		donors:    &fakeDonors{donors: donors, unindexed: map[types.ID]bool{}, calls: map[string]int{}},
		requests:  &fakeRequests{store: store, locations: map[types.ID]types.Point{}},
		notifier:  &recordingNotifier{},
		escalator: &recordingEscalator{},
		observer:  &recordingObserver{},
	}
	f.cascade = cascade.NewService(cascade.Deps{
		Store:     store,
		Donors:    store.Donors(),
		Notifier:  f.notifier,
		Escalator: f.escalator,
	}, cascade.Config{ResponseWindow: 30 * time.Minute, PointsPerDonation: 50, Clock: clock})

	rcfg := ranking.DefaultConfig()
	rcfg.Clock = clock
	ranker, err := ranking.NewRanker(rcfg)
	require.NoError(t, err)

	svc, err := NewService(Deps{
		Donors:   f.donors,
		Requests: f.requests,
		Queue:    f.cascade,
		Filter:   eligibility.New(eligibility.Config{CooldownDays: 90, Clock: clock}),
		Ranker:   ranker,
		Geo:      geo,
		Geocoder: geocoder,
		Observer: f.observer,
		Clock:    clock,
	}, cfg)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) putRequest(id types.ID, loc *types.Point, urgency hospital.Urgency, created time.Time) {
	f.store.PutRequest(hospital.BloodRequest{
		ID:              id,
		FacilityID:      "fac-" + id,
		FacilityAddress: "Mahaboudha, Kathmandu",
		Location:        loc,
		PatientName:     "Patient " + string(id),
		BloodType:       bloodtype.APos,
		UnitsNeeded:     2,
		Urgency:         urgency,
		Status:          hospital.StatusPending,
		CreatedAt:       created,
	})
	f.requests.ids = append(f.requests.ids, id)
}

func TestOnRequestCreated_QueuesEligibleDonorsAndNotifiesFirst(t *testing.T) {
	f := newFixture(t, standardDonors(), DefaultConfig(), nil, nil)
	f.putRequest("req-1", at(kathmandu), hospital.UrgencyCritical, t0)

	sum, err := f.svc.OnRequestCreated(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, 6, sum.Considered)
	assert.Equal(t, 3, sum.Eligible)
	assert.Equal(t, 3, sum.Queued)
	assert.False(t, sum.Resumed)

	cands, err := f.cascade.Candidates(context.Background(), "req-1")
	require.NoError(t, err)
	require.Len(t, cands, 3)
	assert.Equal(t, types.ID("near"), cands[0].DonorID)
	assert.Equal(t, types.ID("mid"), cands[1].DonorID)
	assert.Equal(t, types.ID("unlocated"), cands[2].DonorID)
	assert.Nil(t, cands[2].DistanceKm)
	assert.Equal(t, cascade.StatusNotified, cands[0].Status)
	assert.Equal(t, cands[0].ID, sum.Activated)

	require.Len(t, f.notifier.notices, 1)
	assert.Equal(t, types.ID("near"), f.notifier.notices[0].Donor.ID)

	req, _ := f.store.Request("req-1")
	assert.Equal(t, hospital.StatusNotified, req.Status)
	assert.Equal(t, []int{3}, f.observer.eligible)
	assert.Equal(t, 1, f.observer.rankings)
}

func TestOnRequestCreated_NoEligibleDonorsEscalates(t *testing.T) {
	donors := []donor.Donor{
		{ID: "incompatible", BloodType: bloodtype.BPos, Available: true, Location: at(kathmandu)},
	}
	f := newFixture(t, donors, DefaultConfig(), nil, nil)
	f.putRequest("req-1", at(kathmandu), hospital.UrgencyUrgent, t0)

	sum, err := f.svc.OnRequestCreated(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Eligible)
	assert.Equal(t, 0, sum.Queued)
	assert.Empty(t, sum.Activated)
	assert.Equal(t, []types.ID{"req-1"}, f.escalator.exhausted)

	req, _ := f.store.Request("req-1")
	assert.Equal(t, hospital.StatusPending, req.Status)
}

func TestOnRequestCreated_RejectsNonPending(t *testing.T) {
	f := newFixture(t, standardDonors(), DefaultConfig(), nil, nil)
	f.putRequest("req-1", at(kathmandu), hospital.UrgencyCritical, t0)

	_, err := f.svc.OnRequestCreated(context.Background(), "req-1")
	require.NoError(t, err)

	_, err = f.svc.OnRequestCreated(context.Background(), "req-1")
	if !errors.Is(err, hospital.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	assert.Len(t, f.notifier.notices, 1)
}

func TestOnRequestCreated_UnknownRequest(t *testing.T) {
	f := newFixture(t, nil, DefaultConfig(), nil, nil)
	_, err := f.svc.OnRequestCreated(context.Background(), "missing")
	if !errors.Is(err, hospital.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOnRequestCreated_GeocodesUnlocatedFacility(t *testing.T) {
	f := newFixture(t, standardDonors(), DefaultConfig(), nil, fakeGeocoder{point: at(kathmandu)})
	f.putRequest("req-1", nil, hospital.UrgencyCritical, t0)

	sum, err := f.svc.OnRequestCreated(context.Background(), "req-1")
	require.NoError(t, err)
	// with a location the distance gate drops the Pokhara donor
	assert.Equal(t, 3, sum.Eligible)
	assert.Equal(t, kathmandu, f.requests.locations["fac-req-1"])
}

func TestOnRequestCreated_GeocodeFailureSkipsDistanceGate(t *testing.T) {
	f := newFixture(t, standardDonors(), DefaultConfig(), nil, fakeGeocoder{err: errors.New("quota")})
	f.putRequest("req-1", nil, hospital.UrgencyCritical, t0)

	sum, err := f.svc.OnRequestCreated(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Eligible)
	assert.Empty(t, f.requests.locations)
}

func TestOnRequestCreated_UsesGeoIndex(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseGeoIndex = true
	f := newFixture(t, standardDonors(), cfg, &fakeGeo{ids: []types.ID{"near", "mid"}}, nil)
	f.putRequest("req-1", at(kathmandu), hospital.UrgencyCritical, t0)

	sum, err := f.svc.OnRequestCreated(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Considered)
	assert.Equal(t, 3, sum.Eligible)
	assert.Equal(t, 1, f.donors.calls["by_ids"])
	assert.Equal(t, 1, f.donors.calls["unindexed"])
	assert.Equal(t, 0, f.donors.calls["all"])
}

func TestOnRequestCreated_GeoIndexFailureFallsBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseGeoIndex = true
	f := newFixture(t, standardDonors(), cfg, &fakeGeo{err: errors.New("redis down")}, nil)
	f.putRequest("req-1", at(kathmandu), hospital.UrgencyCritical, t0)

	sum, err := f.svc.OnRequestCreated(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, 6, sum.Considered)
	assert.Equal(t, 1, f.donors.calls["all"])
}

func TestOnRequestCreated_GeoIndexKeepsUnindexedDonors(t *testing.T) {
	donors := append(standardDonors(),
		donor.Donor{ID: "fresh", BloodType: bloodtype.APos, Available: true, Location: at(types.Point{Lat: 27.7100, Lng: 85.3240})},
	)
	cfg := DefaultConfig()
	cfg.UseGeoIndex = true
	f := newFixture(t, donors, cfg, &fakeGeo{ids: []types.ID{"near", "mid"}}, nil)
	f.donors.unindexed["fresh"] = true
	f.putRequest("req-1", at(kathmandu), hospital.UrgencyCritical, t0)

	sum, err := f.svc.OnRequestCreated(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Considered)
	assert.Equal(t, 4, sum.Eligible)

	cands, err := f.cascade.Candidates(context.Background(), "req-1")
	require.NoError(t, err)
	require.Len(t, cands, 4)
	assert.Equal(t, types.ID("fresh"), cands[0].DonorID)
}

func TestOnRequestCreated_GeoIndexNotReadyScansAll(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseGeoIndex = true
	f := newFixture(t, standardDonors(), cfg, &fakeGeo{ids: []types.ID{"near"}, notReady: true}, nil)
	f.putRequest("req-1", at(kathmandu), hospital.UrgencyCritical, t0)

	sum, err := f.svc.OnRequestCreated(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, 6, sum.Considered)
	assert.Equal(t, 3, sum.Eligible)
	assert.Equal(t, 1, f.donors.calls["all"])
	assert.Equal(t, 0, f.donors.calls["by_ids"])
}

// The Redis index measures distance on a larger sphere than the eligibility
// gate. A donor just inside the broadcast radius and a donor whose index
// write failed must both reach the queue.
func TestOnRequestCreated_RedisIndexMatchesFullScan(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	geo := location.NewStore(rdb)
	ctx := context.Background()

	edge := types.Point{Lat: 28.16677, Lng: kathmandu.Lng}
	donors := []donor.Donor{
		{ID: "edge", BloodType: bloodtype.APos, Available: true, Location: at(edge)},
		{ID: "unindexed", BloodType: bloodtype.APos, Available: true, Location: at(types.Point{Lat: 27.7262, Lng: 85.3240})},
	}
	require.Less(t, location.HaversineKm(kathmandu, edge), 50.0)
	require.NoError(t, geo.IndexDonor(ctx, "edge", edge))
	require.NoError(t, geo.MarkReady(ctx))

	cfg := DefaultConfig()
	cfg.UseGeoIndex = true
	f := newFixture(t, donors, cfg, geo, nil)
	f.donors.unindexed["unindexed"] = true
	f.putRequest("req-1", at(kathmandu), hospital.UrgencyCritical, t0)

	sum, err := f.svc.OnRequestCreated(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Considered)
	assert.Equal(t, 2, sum.Eligible)
	assert.Equal(t, 2, sum.Queued)
	assert.Equal(t, 0, f.donors.calls["all"])
}

func TestDonorsNear(t *testing.T) {
	f := newFixture(t, standardDonors(), DefaultConfig(), nil, nil)
	f.requests.facilities = []hospital.Facility{
		{ID: "bir", Name: "Bir Hospital", Location: at(kathmandu)},
		{ID: "clinic", Name: "Unmapped Clinic"},
	}
	ctx := context.Background()

	near, err := f.svc.DonorsNear(ctx, "bir", bloodtype.APos, 0)
	require.NoError(t, err)
	ids := make([]types.ID, len(near))
	for i, n := range near {
		ids[i] = n.Donor.ID
		require.NotNil(t, n.DistanceKm)
	}
	// cooldown sits on the facility; unlocated and far are excluded
	assert.Equal(t, []types.ID{"cooldown", "mid"}, ids)

	all, err := f.svc.DonorsNear(ctx, "bir", "", 5)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	unmapped, err := f.svc.DonorsNear(ctx, "clinic", bloodtype.APos, 0)
	require.NoError(t, err)
	assert.Len(t, unmapped, 4)
	for _, n := range unmapped {
		assert.Nil(t, n.DistanceKm)
	}

	_, err = f.svc.DonorsNear(ctx, "bir", bloodtype.Type("C+"), 0)
	assert.ErrorIs(t, err, hospital.ErrBadRequest)
	_, err = f.svc.DonorsNear(ctx, "ghost", "", 0)
	assert.ErrorIs(t, err, hospital.ErrNotFound)
}

func TestFacilitiesNear(t *testing.T) {
	f := newFixture(t, standardDonors(), DefaultConfig(), nil, nil)
	f.requests.facilities = []hospital.Facility{
		{ID: "fac-pokhara", Name: "Western Regional", Location: at(pokhara)},
		{ID: "fac-mid", Name: "Maharajgunj", Location: at(types.Point{Lat: 27.8000, Lng: 85.3240})},
		{ID: "fac-city", Name: "Bir Hospital", Location: at(kathmandu)},
		{ID: "fac-unmapped", Name: "Unmapped Clinic"},
	}
	// putRequest files requests under "fac-<id>"
	f.putRequest("city", at(kathmandu), hospital.UrgencyNormal, t0)
	f.store.PutRequest(hospital.BloodRequest{
		ID: "city-b", FacilityID: "fac-city", BloodType: bloodtype.BPos, UnitsNeeded: 1,
		Urgency: hospital.UrgencyNormal, Status: hospital.StatusPending, CreatedAt: t0,
	})
	f.requests.ids = append(f.requests.ids, "city-b")
	ctx := context.Background()

	got, err := f.svc.FacilitiesNear(ctx, "mid")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, types.ID("fac-mid"), got[0].Facility.ID)
	assert.Equal(t, types.ID("fac-city"), got[1].Facility.ID)
	assert.Equal(t, 2, got[1].OpenRequests)
	assert.Equal(t, 1, got[1].CompatibleRequests)
	assert.Equal(t, 0, got[0].OpenRequests)

	_, err = f.svc.FacilitiesNear(ctx, "unlocated")
	assert.ErrorIs(t, err, ErrDonorUnlocated)
}

func TestOnRequestCreated_SkipsDonorsWhoDeclined(t *testing.T) {
	f := newFixture(t, standardDonors(), DefaultConfig(), nil, nil)
	f.putRequest("req-1", at(kathmandu), hospital.UrgencyCritical, t0)
	ctx := context.Background()

	sum, err := f.svc.OnRequestCreated(ctx, "req-1")
	require.NoError(t, err)
	_, err = f.cascade.RecordResponse(ctx, sum.Activated, cascade.OutcomeReject, "travelling")
	require.NoError(t, err)

	res, err := f.svc.EligibilityFor(ctx, "near", "req-1")
	require.NoError(t, err)
	assert.False(t, res.Eligible)
	assert.Equal(t, eligibility.GateDeclined, res.FailedGate)
}

func TestEligibilityFor_ReportsCooldown(t *testing.T) {
	f := newFixture(t, standardDonors(), DefaultConfig(), nil, nil)
	f.putRequest("req-1", at(kathmandu), hospital.UrgencyNormal, t0)

	res, err := f.svc.EligibilityFor(context.Background(), "cooldown", "req-1")
	require.NoError(t, err)
	assert.False(t, res.Eligible)
	assert.Equal(t, eligibility.GateCooldown, res.FailedGate)
	assert.Equal(t, 80, res.DaysUntilEligible)

	res, err = f.svc.EligibilityFor(context.Background(), "near", "req-1")
	require.NoError(t, err)
	assert.True(t, res.Eligible)
	require.NotNil(t, res.DistanceKm)
	assert.InDelta(t, 1.1, *res.DistanceKm, 0.1)
	assert.Equal(t, 0, res.DaysUntilEligible)
}

func TestEligibilityFor_UnknownDonor(t *testing.T) {
	f := newFixture(t, nil, DefaultConfig(), nil, nil)
	f.putRequest("req-1", at(kathmandu), hospital.UrgencyNormal, t0)

	_, err := f.svc.EligibilityFor(context.Background(), "ghost", "req-1")
	if !errors.Is(err, donor.ErrNotFound) {
		t.Fatalf("expected donor.ErrNotFound, got %v", err)
	}
}

func TestOpenRequestsFor_NearestFirstWithinDashboardRadius(t *testing.T) {
	f := newFixture(t, standardDonors(), DefaultConfig(), nil, nil)
	f.putRequest("unlocated", nil, hospital.UrgencyNormal, t0)
	f.putRequest("pokhara", at(pokhara), hospital.UrgencyCritical, t0)
	f.putRequest("mid", at(types.Point{Lat: 27.8000, Lng: 85.3240}), hospital.UrgencyNormal, t0)
	f.putRequest("city", at(kathmandu), hospital.UrgencyCritical, t0)

	open, err := f.svc.OpenRequestsFor(context.Background(), "near")
	require.NoError(t, err)
	require.Len(t, open, 3)
	assert.Equal(t, types.ID("city"), open[0].Request.ID)
	assert.Equal(t, types.ID("mid"), open[1].Request.ID)
	assert.Equal(t, types.ID("unlocated"), open[2].Request.ID)
	assert.Nil(t, open[2].DistanceKm)
}

func TestPrioritizedRequests_CriticalFirst(t *testing.T) {
	f := newFixture(t, nil, DefaultConfig(), nil, nil)
	f.putRequest("normal", at(kathmandu), hospital.UrgencyNormal, t0)
	f.putRequest("critical", at(kathmandu), hospital.UrgencyCritical, t0)

	ranked, err := f.svc.PrioritizedRequests(context.Background())
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, types.ID("critical"), ranked[0].Request.ID)
	assert.Greater(t, ranked[0].Score, ranked[1].Score)
}

func TestNewService_RequiresCollaborators(t *testing.T) {
	if _, err := NewService(Deps{}, DefaultConfig()); err == nil {
		t.Fatalf("expected error for missing collaborators")
	}
}
