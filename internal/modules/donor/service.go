// README: Donor service handles registration, availability, location and the leaderboard.
package donor

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"lifelink/internal/modules/bloodtype"
	"lifelink/internal/types"
)

const (
	defaultLeaderboardSize = 20
	maxLeaderboardSize     = 100
)

type Repository interface {
	Create(ctx context.Context, d *Donor) error
	Get(ctx context.Context, id types.ID) (*Donor, error)
	UpdateLocation(ctx context.Context, id types.ID, p types.Point) error
	SetAvailability(ctx context.Context, id types.ID, available bool) error
	SetDeviceToken(ctx context.Context, id types.ID, token string) error
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
	History(ctx context.Context, donorID types.ID) ([]DonationRecord, error)
	ListLocated(ctx context.Context) ([]Donor, error)
	SetIndexed(ctx context.Context, id types.ID, indexed bool) error
}

// GeoIndex keeps available donor positions searchable by radius.
type GeoIndex interface {
	IndexDonor(ctx context.Context, id types.ID, p types.Point) error
	RemoveDonor(ctx context.Context, id types.ID) error
	MarkReady(ctx context.Context) error
	Ready(ctx context.Context) (bool, error)
}

type Service struct {
	repo     Repository
	geo      GeoIndex
	validate *validator.Validate
	log      *zap.Logger
	now      func() time.Time
}

func NewService(repo Repository, geo GeoIndex, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		geo:      geo,
		validate: validator.New(),
		log:      log,
		now:      time.Now,
	}
}

type RegisterCommand struct {
	FullName    string `validate:"required,max=120"`
	Phone       string `validate:"required,max=32"`
	DeviceToken string `validate:"max=512"`
	BloodType   string `validate:"required"`
	Location    *types.Point
	// LastDonationDate is optional; a future date is rejected.
	LastDonationDate *time.Time
}

func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (types.ID, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	bt, err := bloodtype.Parse(cmd.BloodType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if cmd.Location != nil && !cmd.Location.Valid() {
		return "", fmt.Errorf("%w: location out of range", ErrBadRequest)
	}
	now := s.now()
	var last *time.Time
	if cmd.LastDonationDate != nil {
		d := DateOf(*cmd.LastDonationDate)
		if d.After(DateOf(now)) {
			return "", fmt.Errorf("%w: last donation date is in the future", ErrBadRequest)
		}
		last = &d
	}

	d := &Donor{
		ID:               types.ID(uuid.NewString()),
		FullName:         cmd.FullName,
		Phone:            cmd.Phone,
		DeviceToken:      cmd.DeviceToken,
		BloodType:        bt,
		Location:         cmd.Location,
		Available:        true,
		LastDonationDate: last,
		CreatedAt:        now,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return "", err
	}
	if d.Location != nil {
		s.index(ctx, d.ID, *d.Location)
	}
	return d.ID, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Donor, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) UpdateLocation(ctx context.Context, id types.ID, p types.Point) error {
	if !p.Valid() {
		return fmt.Errorf("%w: location out of range", ErrBadRequest)
	}
	if err := s.repo.UpdateLocation(ctx, id, p); err != nil {
		return err
	}
	s.index(ctx, id, p)
	return nil
}

// SetAvailability toggles the donor and keeps the GEO index limited to
// available donors.
func (s *Service) SetAvailability(ctx context.Context, id types.ID, available bool) error {
	if err := s.repo.SetAvailability(ctx, id, available); err != nil {
		return err
	}
	if s.geo == nil {
		return nil
	}
	if !available {
		if err := s.geo.RemoveDonor(ctx, id); err != nil {
			s.log.Warn("donor geo index removal failed", zap.String("donor_id", string(id)), zap.Error(err))
		}
		if err := s.repo.SetIndexed(ctx, id, false); err != nil {
			s.log.Warn("clear donor index flag", zap.String("donor_id", string(id)), zap.Error(err))
		}
		return nil
	}
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if d.Location != nil {
		s.index(ctx, id, *d.Location)
	}
	return nil
}

func (s *Service) SetDeviceToken(ctx context.Context, id types.ID, token string) error {
	if token == "" {
		return fmt.Errorf("%w: empty device token", ErrBadRequest)
	}
	return s.repo.SetDeviceToken(ctx, id, token)
}

// Leaderboard returns the top donors by points. limit <= 0 means the default size.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardSize
	}
	if limit > maxLeaderboardSize {
		limit = maxLeaderboardSize
	}
	return s.repo.Leaderboard(ctx, limit)
}

func (s *Service) History(ctx context.Context, donorID types.ID) ([]DonationRecord, error) {
	return s.repo.History(ctx, donorID)
}

// RebuildIndex writes every available located donor to the GEO index and
// marks the index ready. A failed write leaves the index not ready so
// matching keeps scanning the donor table.
func (s *Service) RebuildIndex(ctx context.Context) (int, error) {
	if s.geo == nil {
		return 0, nil
	}
	donors, err := s.repo.ListLocated(ctx)
	if err != nil {
		return 0, err
	}
	for _, d := range donors {
		if err := s.geo.IndexDonor(ctx, d.ID, *d.Location); err != nil {
			return 0, fmt.Errorf("index donor %s: %w", d.ID, err)
		}
		if err := s.repo.SetIndexed(ctx, d.ID, true); err != nil {
			return 0, err
		}
	}
	if err := s.geo.MarkReady(ctx); err != nil {
		return 0, err
	}
	return len(donors), nil
}

// EnsureIndex rebuilds the GEO index when Redis reports it missing.
func (s *Service) EnsureIndex(ctx context.Context) error {
	if s.geo == nil {
		return nil
	}
	ready, err := s.geo.Ready(ctx)
	if err != nil {
		return err
	}
	if ready {
		return nil
	}
	n, err := s.RebuildIndex(ctx)
	if err != nil {
		return err
	}
	s.log.Info("donor geo index rebuilt", zap.Int("donors", n))
	return nil
}

// KeepIndexed runs EnsureIndex now and then every interval until ctx ends.
func (s *Service) KeepIndexed(ctx context.Context, every time.Duration) {
	if s.geo == nil {
		return
	}
	if every <= 0 {
		every = time.Minute
	}
	if err := s.EnsureIndex(ctx); err != nil {
		s.log.Warn("donor geo index check failed", zap.Error(err))
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.EnsureIndex(ctx); err != nil {
				s.log.Warn("donor geo index check failed", zap.Error(err))
			}
		}
	}
}

// index failures are logged only; the donor stays unindexed and matching
// picks it up from the database.
func (s *Service) index(ctx context.Context, id types.ID, p types.Point) {
	if s.geo == nil {
		return
	}
	if err := s.geo.IndexDonor(ctx, id, p); err != nil {
		s.log.Warn("donor geo index update failed", zap.String("donor_id", string(id)), zap.Error(err))
		return
	}
	if err := s.repo.SetIndexed(ctx, id, true); err != nil {
		s.log.Warn("set donor index flag", zap.String("donor_id", string(id)), zap.Error(err))
	}
}
