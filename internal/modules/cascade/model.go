// README: Candidate aggregate and the single-flight notification state flow.
package cascade

import (
	"errors"
	"time"

	"lifelink/internal/types"
)

var (
	ErrNotFound       = errors.New("candidate not found")
	ErrInvalidState   = errors.New("invalid candidate state transition")
	ErrInvalidOutcome = errors.New("outcome must be accept or reject")
	ErrQueueExists    = errors.New("candidate queue already built for request")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusNotified  Status = "notified"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusFulfilled Status = "fulfilled"
)

// AllowedTransitions represents the candidate state flow as code.
var AllowedTransitions = map[Status][]Status{
	StatusPending:  {StatusNotified, StatusCancelled},
	StatusNotified: {StatusAccepted, StatusRejected, StatusCancelled},
	StatusAccepted: {StatusFulfilled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// CancelReason separates a silent donor from a request that went away.
type CancelReason string

const (
	ReasonTimedOut         CancelReason = "timed_out"
	ReasonRequestFulfilled CancelReason = "request_fulfilled"
	ReasonRequestCancelled CancelReason = "request_cancelled"
)

type Candidate struct {
	ID        types.ID
	RequestID types.ID
	DonorID   types.ID
	// MatchScore is the ranker score in [0,1].
	MatchScore float64
	DistanceKm *float64
	Status     Status
	// PriorityOrder is 1-based and unique per request; lower is tried first.
	PriorityOrder int
	CreatedAt     time.Time
	NotifiedAt    *time.Time
	RespondedAt   *time.Time
	// DeliveredAt is set once the push provider accepted the message.
	DeliveredAt   *time.Time
	CancelReason  CancelReason
	ResponseNotes string
}

// Open reports whether the candidate may still be activated or answered.
func (c *Candidate) Open() bool {
	return c.Status == StatusPending || c.Status == StatusNotified
}

func (c *Candidate) clone() *Candidate {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

type Outcome string

const (
	OutcomeAccept Outcome = "accept"
	OutcomeReject Outcome = "reject"
)

func (o Outcome) Valid() bool {
	return o == OutcomeAccept || o == OutcomeReject
}

type ResultKind string

const (
	ResultAccepted        ResultKind = "accepted"
	ResultRejected        ResultKind = "rejected"
	ResultTimedOut        ResultKind = "timed_out"
	ResultNoLongerActive  ResultKind = "no_longer_active"
	ResultAlreadyResolved ResultKind = "already_resolved"
)

// TransitionResult describes what a response or timeout did.
type TransitionResult struct {
	Kind      ResultKind
	Candidate *Candidate
	// Next is the candidate activated by this transition, if any.
	Next *Candidate
	// Exhausted is true when no pending candidate was left to activate.
	Exhausted bool
}
