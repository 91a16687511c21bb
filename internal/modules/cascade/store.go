// README: Persistence contract for candidate queues. All transitions run inside WithRequestLock.
package cascade

import (
	"context"
	"time"

	"lifelink/internal/modules/donor"
	"lifelink/internal/modules/hospital"
	"lifelink/internal/types"
)

// Store serialises work per request. fn sees a consistent view of the
// request and its candidates; its writes commit together or not at all.
type Store interface {
	WithRequestLock(ctx context.Context, requestID types.ID, fn func(ctx context.Context, tx Tx) error) error
	GetCandidate(ctx context.Context, id types.ID) (*Candidate, error)
	ListCandidates(ctx context.Context, requestID types.ID) ([]*Candidate, error)
	// MarkDelivered sets DeliveredAt once; later calls keep the first value.
	MarkDelivered(ctx context.Context, id types.ID, at time.Time) error
}

type Tx interface {
	GetRequest(ctx context.Context, id types.ID) (*hospital.BloodRequest, error)
	// UpdateRequestStatus moves r to status and updates r in place. at stamps
	// FulfilledAt or CancelledAt.
	UpdateRequestStatus(ctx context.Context, r *hospital.BloodRequest, to hospital.RequestStatus, reason *string, at time.Time) error
	// ListCandidates returns the request's candidates ordered by PriorityOrder.
	ListCandidates(ctx context.Context, requestID types.ID) ([]*Candidate, error)
	InsertCandidates(ctx context.Context, cs []*Candidate) error
	// UpdateCandidate writes every field except DeliveredAt.
	UpdateCandidate(ctx context.Context, c *Candidate) error
	RecordDonation(ctx context.Context, rec donor.DonationRecord, points int) error
}
