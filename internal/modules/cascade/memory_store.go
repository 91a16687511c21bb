// README: In-process Store used for single-node runs and tests.
package cascade

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"lifelink/internal/modules/donor"
	"lifelink/internal/modules/hospital"
	"lifelink/internal/types"
)

// MemoryStore keeps requests, candidates, donors and donation records in
// maps. WithRequestLock holds a per-request mutex and stages writes until
// fn returns without error.
type MemoryStore struct {
	mu         sync.Mutex
	locks      map[types.ID]*sync.Mutex
	requests   map[types.ID]hospital.BloodRequest
	candidates map[types.ID]Candidate
	donors     map[types.ID]donor.Donor
	donations  []donor.DonationRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks:      map[types.ID]*sync.Mutex{},
		requests:   map[types.ID]hospital.BloodRequest{},
		candidates: map[types.ID]Candidate{},
		donors:     map[types.ID]donor.Donor{},
	}
}

func (m *MemoryStore) PutRequest(r hospital.BloodRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r.ID] = r
}

func (m *MemoryStore) PutDonor(d donor.Donor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.donors[d.ID] = d
}

func (m *MemoryStore) Request(id types.ID) (hospital.BloodRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	return r, ok
}

func (m *MemoryStore) Donor(id types.ID) (donor.Donor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.donors[id]
	return d, ok
}

func (m *MemoryStore) Donations() []donor.DonationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]donor.DonationRecord, len(m.donations))
	copy(out, m.donations)
	return out
}

// Donors exposes the stored donors as a DonorLookup.
func (m *MemoryStore) Donors() DonorLookup {
	return memoryDonors{m}
}

func (m *MemoryStore) requestLock(id types.ID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

func (m *MemoryStore) WithRequestLock(ctx context.Context, requestID types.ID, fn func(ctx context.Context, tx Tx) error) error {
	l := m.requestLock(requestID)
	l.Lock()
	defer l.Unlock()

	if _, ok := m.Request(requestID); !ok {
		return hospital.ErrNotFound
	}

	tx := &memoryTx{
		store:      m,
		requests:   map[types.ID]hospital.BloodRequest{},
		candidates: map[types.ID]Candidate{},
		donors:     map[types.ID]donor.Donor{},
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.commit(tx)
	return nil
}

func (m *MemoryStore) commit(tx *memoryTx) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range tx.requests {
		m.requests[id] = r
	}
	for id, c := range tx.candidates {
		if prev, ok := m.candidates[id]; ok {
			c.DeliveredAt = prev.DeliveredAt
		}
		m.candidates[id] = c
	}
	for id, d := range tx.donors {
		m.donors[id] = d
	}
	m.donations = append(m.donations, tx.donations...)
}

func (m *MemoryStore) GetCandidate(_ context.Context, id types.ID) (*Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.candidates[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *MemoryStore) ListCandidates(_ context.Context, requestID types.ID) ([]*Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Candidate
	for _, c := range m.candidates {
		c := c
		if c.RequestID == requestID {
			out = append(out, &c)
		}
	}
	sortByPriority(out)
	return out, nil
}

func (m *MemoryStore) MarkDelivered(_ context.Context, id types.ID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.candidates[id]
	if !ok {
		return ErrNotFound
	}
	if c.DeliveredAt == nil {
		c.DeliveredAt = &at
		m.candidates[id] = c
	}
	return nil
}

type memoryTx struct {
	store      *MemoryStore
	requests   map[types.ID]hospital.BloodRequest
	candidates map[types.ID]Candidate
	donors     map[types.ID]donor.Donor
	donations  []donor.DonationRecord
}

func (t *memoryTx) GetRequest(_ context.Context, id types.ID) (*hospital.BloodRequest, error) {
	if r, ok := t.requests[id]; ok {
		return &r, nil
	}
	r, ok := t.store.Request(id)
	if !ok {
		return nil, hospital.ErrNotFound
	}
	return &r, nil
}

func (t *memoryTx) UpdateRequestStatus(_ context.Context, r *hospital.BloodRequest, to hospital.RequestStatus, reason *string, at time.Time) error {
	if !hospital.CanTransition(r.Status, to) {
		return fmt.Errorf("%w: request %s is %s", hospital.ErrInvalidState, r.ID, r.Status)
	}
	applyRequestStatus(r, to, reason, at)
	t.requests[r.ID] = *r
	return nil
}

func (t *memoryTx) ListCandidates(ctx context.Context, requestID types.ID) ([]*Candidate, error) {
	committed, _ := t.store.ListCandidates(ctx, requestID)
	seen := map[types.ID]bool{}
	var out []*Candidate
	for _, c := range committed {
		if staged, ok := t.candidates[c.ID]; ok {
			c = &staged
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	for id, c := range t.candidates {
		c := c
		if c.RequestID == requestID && !seen[id] {
			out = append(out, &c)
		}
	}
	sortByPriority(out)
	return out, nil
}

func (t *memoryTx) InsertCandidates(ctx context.Context, cs []*Candidate) error {
	for _, c := range cs {
		existing, _ := t.ListCandidates(ctx, c.RequestID)
		for _, e := range existing {
			if e.ID == c.ID || e.DonorID == c.DonorID || e.PriorityOrder == c.PriorityOrder {
				return fmt.Errorf("duplicate candidate for request %s donor %s", c.RequestID, c.DonorID)
			}
		}
		t.candidates[c.ID] = *c
	}
	return nil
}

func (t *memoryTx) UpdateCandidate(_ context.Context, c *Candidate) error {
	if _, ok := t.candidates[c.ID]; !ok {
		if _, err := t.store.GetCandidate(context.Background(), c.ID); err != nil {
			return err
		}
	}
	t.candidates[c.ID] = *c
	return nil
}

func (t *memoryTx) RecordDonation(_ context.Context, rec donor.DonationRecord, points int) error {
	d, ok := t.donors[rec.DonorID]
	if !ok {
		d, ok = t.store.Donor(rec.DonorID)
	}
	if !ok {
		return donor.ErrNotFound
	}
	on := rec.DonatedOn
	d.DonationCount++
	d.LastDonationDate = &on
	d.Points += points
	t.donors[d.ID] = d
	t.donations = append(t.donations, rec)
	return nil
}

type memoryDonors struct {
	store *MemoryStore
}

func (m memoryDonors) Get(_ context.Context, id types.ID) (*donor.Donor, error) {
	d, ok := m.store.Donor(id)
	if !ok {
		return nil, donor.ErrNotFound
	}
	return &d, nil
}

func sortByPriority(cs []*Candidate) {
	sort.Slice(cs, func(a, b int) bool { return cs[a].PriorityOrder < cs[b].PriorityOrder })
}
