// README: Facility and blood request aggregates and the request status flow.
package hospital

import (
	"errors"
	"time"

	"lifelink/internal/modules/bloodtype"
	"lifelink/internal/types"
)

var (
	ErrBadRequest   = errors.New("bad request")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state transition")
	ErrConflict     = errors.New("request state conflict")
)

// Urgency is the level chosen by the hospital at intake.
type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyUrgent   Urgency = "urgent"
	UrgencyNormal   Urgency = "normal"
)

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyCritical, UrgencyUrgent, UrgencyNormal:
		return true
	}
	return false
}

type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusNotified  RequestStatus = "notified"
	StatusFulfilled RequestStatus = "fulfilled"
	StatusCancelled RequestStatus = "cancelled"
)

// AllowedTransitions represents the request state flow as code.
var AllowedTransitions = map[RequestStatus][]RequestStatus{
	StatusPending:  {StatusNotified, StatusFulfilled, StatusCancelled},
	StatusNotified: {StatusFulfilled, StatusCancelled},
}

func CanTransition(from, to RequestStatus) bool {
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

// Terminal reports whether no further transitions are possible.
func (s RequestStatus) Terminal() bool {
	return s == StatusFulfilled || s == StatusCancelled
}

type Facility struct {
	ID        types.ID
	Name      string
	Address   string
	Phone     string
	Location  *types.Point
	CreatedAt time.Time
}

type BloodRequest struct {
	ID         types.ID
	FacilityID types.ID
	// Facility fields are joined in on read.
	FacilityName    string
	FacilityAddress string
	Location        *types.Point

	PatientName   string
	BloodType     bloodtype.Type
	UnitsNeeded   int
	Urgency       Urgency
	Status        RequestStatus
	StatusVersion int
	Notes         string
	CreatedAt     time.Time
	RequiredBy    *time.Time
	FulfilledAt   *time.Time
	CancelledAt   *time.Time
	CancelReason  *string
}

// Stats counts requests per status for the hospital dashboard.
type Stats struct {
	Total     int
	Pending   int
	Notified  int
	Fulfilled int
	Cancelled int
}
