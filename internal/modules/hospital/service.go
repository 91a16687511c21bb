// README: Hospital service handles facility registration, request intake and dashboard reads.
package hospital

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"lifelink/internal/modules/bloodtype"
	"lifelink/internal/types"
)

type Repository interface {
	CreateFacility(ctx context.Context, f *Facility) error
	GetFacility(ctx context.Context, id types.ID) (*Facility, error)
	CreateRequest(ctx context.Context, r *BloodRequest) error
	Get(ctx context.Context, id types.ID) (*BloodRequest, error)
	ListByStatus(ctx context.Context, statuses ...RequestStatus) ([]BloodRequest, error)
	Stats(ctx context.Context, facilityID *types.ID) (Stats, error)
}

type Service struct {
	repo     Repository
	validate *validator.Validate
	log      *zap.Logger
	now      func() time.Time
}

func NewService(repo Repository, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, validate: validator.New(), log: log, now: time.Now}
}

type FacilityCommand struct {
	Name     string `validate:"required,max=200"`
	Address  string `validate:"required,max=500"`
	Phone    string `validate:"max=32"`
	Location *types.Point
}

type CreateRequestCommand struct {
	FacilityID  types.ID `validate:"required"`
	PatientName string   `validate:"required,max=120"`
	BloodType   string   `validate:"required"`
	UnitsNeeded int      `validate:"min=1,max=50"`
	Urgency     string   `validate:"required,oneof=critical urgent normal"`
	Notes       string   `validate:"max=1000"`
	RequiredBy  *time.Time
}

func (s *Service) CreateFacility(ctx context.Context, cmd FacilityCommand) (types.ID, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if cmd.Location != nil && !cmd.Location.Valid() {
		return "", fmt.Errorf("%w: location out of range", ErrBadRequest)
	}
	f := &Facility{
		ID:        types.ID(uuid.NewString()),
		Name:      cmd.Name,
		Address:   cmd.Address,
		Phone:     cmd.Phone,
		Location:  cmd.Location,
		CreatedAt: s.now(),
	}
	if err := s.repo.CreateFacility(ctx, f); err != nil {
		return "", err
	}
	return f.ID, nil
}

// CreateRequest records a new pending request. Matching is started by the caller.
func (s *Service) CreateRequest(ctx context.Context, cmd CreateRequestCommand) (types.ID, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	bt, err := bloodtype.Parse(cmd.BloodType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	now := s.now()
	if cmd.RequiredBy != nil && !cmd.RequiredBy.After(now) {
		return "", fmt.Errorf("%w: required_by must be in the future", ErrBadRequest)
	}
	if _, err := s.repo.GetFacility(ctx, cmd.FacilityID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("%w: unknown facility %s", ErrBadRequest, cmd.FacilityID)
		}
		return "", err
	}

	r := &BloodRequest{
		ID:          types.ID(uuid.NewString()),
		FacilityID:  cmd.FacilityID,
		PatientName: cmd.PatientName,
		BloodType:   bt,
		UnitsNeeded: cmd.UnitsNeeded,
		Urgency:     Urgency(cmd.Urgency),
		Status:      StatusPending,
		Notes:       cmd.Notes,
		CreatedAt:   now,
		RequiredBy:  cmd.RequiredBy,
	}
	if err := s.repo.CreateRequest(ctx, r); err != nil {
		return "", err
	}
	s.log.Info("blood request created",
		zap.String("request_id", string(r.ID)),
		zap.String("facility_id", string(r.FacilityID)),
		zap.String("blood_type", string(r.BloodType)),
		zap.String("urgency", string(r.Urgency)),
	)
	return r.ID, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*BloodRequest, error) {
	return s.repo.Get(ctx, id)
}

// ListOpen returns requests still waiting for a donor.
func (s *Service) ListOpen(ctx context.Context) ([]BloodRequest, error) {
	return s.repo.ListByStatus(ctx, StatusPending, StatusNotified)
}

func (s *Service) Stats(ctx context.Context, facilityID *types.ID) (Stats, error) {
	return s.repo.Stats(ctx, facilityID)
}
