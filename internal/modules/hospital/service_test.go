package hospital

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifelink/internal/modules/bloodtype"
	"lifelink/internal/types"
)

type mockRepo struct {
	mu         sync.Mutex
	facilities map[types.ID]*Facility
	requests   map[types.ID]*BloodRequest
}

func newMockRepo() *mockRepo {
	return &mockRepo{facilities: map[types.ID]*Facility{}, requests: map[types.ID]*BloodRequest{}}
}

func (m *mockRepo) CreateFacility(_ context.Context, f *Facility) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.facilities[f.ID] = f
	return nil
}

func (m *mockRepo) GetFacility(_ context.Context, id types.ID) (*Facility, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.facilities[id]
	if !ok {
		return nil, ErrNotFound
	}
	return f, nil
}

func (m *mockRepo) CreateRequest(_ context.Context, r *BloodRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r.ID] = r
	return nil
}

func (m *mockRepo) Get(_ context.Context, id types.ID) (*BloodRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

func (m *mockRepo) ListByStatus(_ context.Context, statuses ...RequestStatus) ([]BloodRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []BloodRequest
	for _, r := range m.requests {
		for _, s := range statuses {
			if r.Status == s {
				out = append(out, *r)
			}
		}
	}
	return out, nil
}

func (m *mockRepo) Stats(context.Context, *types.ID) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var st Stats
	for _, r := range m.requests {
		st.add(r.Status, 1)
	}
	return st, nil
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to RequestStatus
		want     bool
	}{
		{StatusPending, StatusNotified, true},
		{StatusPending, StatusCancelled, true},
		{StatusNotified, StatusFulfilled, true},
		{StatusNotified, StatusCancelled, true},
		{StatusNotified, StatusPending, false},
		{StatusFulfilled, StatusCancelled, false},
		{StatusCancelled, StatusNotified, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestCreateRequest(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	fid, err := svc.CreateFacility(ctx, FacilityCommand{Name: "Bir Hospital", Address: "Kathmandu"})
	require.NoError(t, err)

	id, err := svc.CreateRequest(ctx, CreateRequestCommand{
		FacilityID:  fid,
		PatientName: "Ram",
		BloodType:   "B-",
		UnitsNeeded: 2,
		Urgency:     "critical",
	})
	require.NoError(t, err)

	r, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, r.Status)
	assert.Equal(t, bloodtype.BNeg, r.BloodType)
	assert.Equal(t, UrgencyCritical, r.Urgency)

	st, err := svc.Stats(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 1, Pending: 1}, st)
}

func TestCreateRequest_Invalid(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	fid, err := svc.CreateFacility(ctx, FacilityCommand{Name: "Teaching Hospital", Address: "Maharajgunj"})
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	valid := CreateRequestCommand{FacilityID: fid, PatientName: "Ram", BloodType: "A+", UnitsNeeded: 1, Urgency: "normal"}

	cases := map[string]func(c *CreateRequestCommand){
		"zero units":       func(c *CreateRequestCommand) { c.UnitsNeeded = 0 },
		"unknown urgency":  func(c *CreateRequestCommand) { c.Urgency = "asap" },
		"bad blood type":   func(c *CreateRequestCommand) { c.BloodType = "Q" },
		"missing patient":  func(c *CreateRequestCommand) { c.PatientName = "" },
		"unknown facility": func(c *CreateRequestCommand) { c.FacilityID = "nope" },
		"required in past": func(c *CreateRequestCommand) { c.RequiredBy = &past },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cmd := valid
			mutate(&cmd)
			_, err := svc.CreateRequest(ctx, cmd)
			assert.ErrorIs(t, err, ErrBadRequest)
		})
	}
}
