// README: Cascade service drives one-donor-at-a-time notification for each request.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lifelink/internal/modules/donor"
	"lifelink/internal/modules/eligibility"
	"lifelink/internal/modules/hospital"
	"lifelink/internal/types"
)

const unitsPerDonation = 1

// Notice is everything a notifier needs to ask one donor.
type Notice struct {
	Donor     donor.Donor
	Request   hospital.BloodRequest
	Candidate Candidate
	RespondBy time.Time
}

type Notifier interface {
	NotifyDonor(ctx context.Context, n Notice) error
}

// Escalator informs hospitals and administrators. Implementations log their
// own failures; the cascade never waits on them.
type Escalator interface {
	DonorAccepted(ctx context.Context, req hospital.BloodRequest, c Candidate)
	DonorTimedOut(ctx context.Context, req hospital.BloodRequest, timedOut Candidate, next *Candidate)
	QueueExhausted(ctx context.Context, req hospital.BloodRequest)
}

type DonorLookup interface {
	Get(ctx context.Context, id types.ID) (*donor.Donor, error)
}

// Observer receives one event name per cascade step.
type Observer interface {
	CascadeEvent(event string)
}

type Config struct {
	ResponseWindow    time.Duration
	PointsPerDonation int
	Clock             func() time.Time
}

func DefaultConfig() Config {
	return Config{ResponseWindow: 30 * time.Minute, PointsPerDonation: 50, Clock: time.Now}
}

type Deps struct {
	Store     Store
	Donors    DonorLookup
	Notifier  Notifier
	Escalator Escalator
	Timers    TimeoutScheduler
	Observer  Observer
	Logger    *zap.Logger
}

type Service struct {
	store     Store
	donors    DonorLookup
	notifier  Notifier
	escalator Escalator
	timers    TimeoutScheduler
	observer  Observer
	log       *zap.Logger
	cfg       Config
}

func NewService(deps Deps, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.ResponseWindow <= 0 {
		cfg.ResponseWindow = def.ResponseWindow
	}
	if cfg.PointsPerDonation <= 0 {
		cfg.PointsPerDonation = def.PointsPerDonation
	}
	if cfg.Clock == nil {
		cfg.Clock = def.Clock
	}
	s := &Service{
		store:     deps.Store,
		donors:    deps.Donors,
		notifier:  deps.Notifier,
		escalator: deps.Escalator,
		timers:    deps.Timers,
		observer:  deps.Observer,
		log:       deps.Logger,
		cfg:       cfg,
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.escalator == nil {
		s.escalator = nopEscalator{}
	}
	if s.timers == nil {
		s.timers = nopScheduler{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// Enqueue persists a freshly built queue for a pending request.
func (s *Service) Enqueue(ctx context.Context, requestID types.ID, cands []*Candidate) error {
	if len(cands) == 0 {
		return nil
	}
	return s.store.WithRequestLock(ctx, requestID, func(ctx context.Context, tx Tx) error {
		req, err := tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != hospital.StatusPending {
			return fmt.Errorf("%w: request %s is %s", hospital.ErrInvalidState, requestID, req.Status)
		}
		existing, err := tx.ListCandidates(ctx, requestID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return ErrQueueExists
		}
		for _, c := range cands {
			if c.RequestID != requestID || c.Status != StatusPending {
				return fmt.Errorf("%w: candidate %s does not belong to a fresh queue for %s", ErrInvalidState, c.ID, requestID)
			}
		}
		return tx.InsertCandidates(ctx, cands)
	})
}

// ActivateNext makes sure exactly one candidate is notified. If one already
// is, it is returned unchanged. It returns nil when the request is closed,
// already accepted, or out of pending candidates; the last case escalates.
func (s *Service) ActivateNext(ctx context.Context, requestID types.ID) (*Candidate, error) {
	var req hospital.BloodRequest
	var act activation
	err := s.store.WithRequestLock(ctx, requestID, func(ctx context.Context, tx Tx) error {
		r, err := tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if !r.Status.Terminal() {
			cands, err := tx.ListCandidates(ctx, requestID)
			if err != nil {
				return err
			}
			if act, err = s.advance(ctx, tx, r, cands, s.cfg.Clock()); err != nil {
				return err
			}
		}
		req = *r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.afterAdvance(ctx, req, act)
	return act.active.clone(), nil
}

// RecordResponse applies a donor's answer. A candidate that is no longer
// notified yields ResultNoLongerActive and changes nothing.
func (s *Service) RecordResponse(ctx context.Context, candidateID types.ID, outcome Outcome, notes string) (TransitionResult, error) {
	if !outcome.Valid() {
		return TransitionResult{}, ErrInvalidOutcome
	}
	ref, err := s.store.GetCandidate(ctx, candidateID)
	if err != nil {
		return TransitionResult{}, err
	}

	var res TransitionResult
	var req hospital.BloodRequest
	var act activation
	err = s.store.WithRequestLock(ctx, ref.RequestID, func(ctx context.Context, tx Tx) error {
		r, cands, c, err := s.load(ctx, tx, ref.RequestID, candidateID)
		if err != nil {
			return err
		}
		req = *r
		if c.Status != StatusNotified {
			res = TransitionResult{Kind: ResultNoLongerActive, Candidate: c.clone()}
			return nil
		}

		now := s.cfg.Clock()
		c.RespondedAt = &now
		c.ResponseNotes = notes
		switch outcome {
		case OutcomeAccept:
			if err := s.accept(ctx, tx, r, cands, c, now); err != nil {
				return err
			}
			res = TransitionResult{Kind: ResultAccepted, Candidate: c.clone()}
		case OutcomeReject:
			if err := transition(c, StatusRejected); err != nil {
				return err
			}
			if err := tx.UpdateCandidate(ctx, c); err != nil {
				return err
			}
			if act, err = s.advance(ctx, tx, r, cands, now); err != nil {
				return err
			}
			res = TransitionResult{Kind: ResultRejected, Candidate: c.clone(), Exhausted: act.exhausted}
			if act.fresh {
				res.Next = act.active.clone()
			}
		}
		req = *r
		return nil
	})
	if err != nil {
		return TransitionResult{}, err
	}

	switch res.Kind {
	case ResultAccepted:
		s.cancelTimer(ctx, candidateID)
		s.observe("accepted")
		s.log.Info("donor accepted",
			zap.String("request_id", string(req.ID)),
			zap.String("candidate_id", string(candidateID)),
			zap.String("donor_id", string(res.Candidate.DonorID)),
		)
		s.escalator.DonorAccepted(ctx, req, *res.Candidate)
	case ResultRejected:
		s.cancelTimer(ctx, candidateID)
		s.observe("rejected")
		s.afterAdvance(ctx, req, act)
	case ResultNoLongerActive:
		s.observe("stale_response")
	}
	return res, nil
}

// OnResponseTimeout fires when a response window closes. It is a no-op
// unless the candidate is still notified.
func (s *Service) OnResponseTimeout(ctx context.Context, candidateID types.ID) (TransitionResult, error) {
	ref, err := s.store.GetCandidate(ctx, candidateID)
	if err != nil {
		return TransitionResult{}, err
	}

	var res TransitionResult
	var req hospital.BloodRequest
	var act activation
	err = s.store.WithRequestLock(ctx, ref.RequestID, func(ctx context.Context, tx Tx) error {
		r, cands, c, err := s.load(ctx, tx, ref.RequestID, candidateID)
		if err != nil {
			return err
		}
		req = *r
		if c.Status != StatusNotified {
			res = TransitionResult{Kind: ResultAlreadyResolved, Candidate: c.clone()}
			return nil
		}

		if err := transition(c, StatusCancelled); err != nil {
			return err
		}
		c.CancelReason = ReasonTimedOut
		c.ResponseNotes = fmt.Sprintf("no response within %s", s.cfg.ResponseWindow)
		if err := tx.UpdateCandidate(ctx, c); err != nil {
			return err
		}
		if act, err = s.advance(ctx, tx, r, cands, s.cfg.Clock()); err != nil {
			return err
		}
		res = TransitionResult{Kind: ResultTimedOut, Candidate: c.clone(), Exhausted: act.exhausted}
		if act.fresh {
			res.Next = act.active.clone()
		}
		req = *r
		return nil
	})
	if err != nil {
		return TransitionResult{}, err
	}

	if res.Kind == ResultTimedOut {
		s.observe("timed_out")
		s.log.Info("donor response timed out",
			zap.String("request_id", string(req.ID)),
			zap.String("candidate_id", string(candidateID)),
		)
		s.escalator.DonorTimedOut(ctx, req, *res.Candidate, res.Next)
		s.afterAdvance(ctx, req, act)
	}
	return res, nil
}

// HandleTimeout adapts OnResponseTimeout to a TimeoutHandler.
func (s *Service) HandleTimeout(ctx context.Context, candidateID types.ID) {
	if _, err := s.OnResponseTimeout(ctx, candidateID); err != nil {
		s.log.Error("response timeout", zap.String("candidate_id", string(candidateID)), zap.Error(err))
	}
}

// CancelRequest closes a request and every candidate still open on it.
func (s *Service) CancelRequest(ctx context.Context, requestID types.ID, reason string) error {
	var notified []types.ID
	err := s.store.WithRequestLock(ctx, requestID, func(ctx context.Context, tx Tx) error {
		r, err := tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if !hospital.CanTransition(r.Status, hospital.StatusCancelled) {
			return fmt.Errorf("%w: request %s is %s", hospital.ErrInvalidState, requestID, r.Status)
		}
		cands, err := tx.ListCandidates(ctx, requestID)
		if err != nil {
			return err
		}
		for _, c := range cands {
			if !c.Open() {
				continue
			}
			if c.Status == StatusNotified {
				notified = append(notified, c.ID)
			}
			if err := transition(c, StatusCancelled); err != nil {
				return err
			}
			c.CancelReason = ReasonRequestCancelled
			if err := tx.UpdateCandidate(ctx, c); err != nil {
				return err
			}
		}
		var why *string
		if reason != "" {
			why = &reason
		}
		return tx.UpdateRequestStatus(ctx, r, hospital.StatusCancelled, why, s.cfg.Clock())
	})
	if err != nil {
		return err
	}
	for _, id := range notified {
		s.cancelTimer(ctx, id)
	}
	s.observe("request_cancelled")
	return nil
}

// MarkFulfilled records that an accepted donor actually donated.
func (s *Service) MarkFulfilled(ctx context.Context, candidateID types.ID) (*Candidate, error) {
	ref, err := s.store.GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	var out *Candidate
	err = s.store.WithRequestLock(ctx, ref.RequestID, func(ctx context.Context, tx Tx) error {
		_, _, c, err := s.load(ctx, tx, ref.RequestID, candidateID)
		if err != nil {
			return err
		}
		if err := transition(c, StatusFulfilled); err != nil {
			return err
		}
		if err := tx.UpdateCandidate(ctx, c); err != nil {
			return err
		}
		out = c.clone()
		return nil
	})
	return out, err
}

// Candidates lists a request's queue in priority order.
func (s *Service) Candidates(ctx context.Context, requestID types.ID) ([]*Candidate, error) {
	return s.store.ListCandidates(ctx, requestID)
}

// DeclinedDonors returns donors who rejected requestID.
func (s *Service) DeclinedDonors(ctx context.Context, requestID types.ID) (eligibility.DeclineSet, error) {
	cands, err := s.store.ListCandidates(ctx, requestID)
	if err != nil {
		return nil, err
	}
	set := eligibility.DeclineSet{}
	for _, c := range cands {
		if c.Status == StatusRejected {
			set[c.DonorID] = struct{}{}
		}
	}
	return set, nil
}

// ConfirmDelivery records a delivery receipt from the donor's device.
func (s *Service) ConfirmDelivery(ctx context.Context, candidateID types.ID) error {
	return s.store.MarkDelivered(ctx, candidateID, s.cfg.Clock())
}

type activation struct {
	// active is the notified candidate, fresh when this call notified it.
	active    *Candidate
	fresh     bool
	exhausted bool
}

// advance picks the next candidate. Caller holds the request lock.
func (s *Service) advance(ctx context.Context, tx Tx, req *hospital.BloodRequest, cands []*Candidate, now time.Time) (activation, error) {
	var next *Candidate
	for _, c := range cands {
		switch c.Status {
		case StatusNotified:
			return activation{active: c}, nil
		case StatusAccepted, StatusFulfilled:
			return activation{}, nil
		case StatusPending:
			if next == nil || c.PriorityOrder < next.PriorityOrder {
				next = c
			}
		}
	}
	if next == nil {
		return activation{exhausted: true}, nil
	}

	if err := transition(next, StatusNotified); err != nil {
		return activation{}, err
	}
	next.NotifiedAt = &now
	if err := tx.UpdateCandidate(ctx, next); err != nil {
		return activation{}, err
	}
	if req.Status == hospital.StatusPending {
		if err := tx.UpdateRequestStatus(ctx, req, hospital.StatusNotified, nil, now); err != nil {
			return activation{}, err
		}
	}
	return activation{active: next, fresh: true}, nil
}

// afterAdvance runs the side effects of advance once the lock is released.
func (s *Service) afterAdvance(ctx context.Context, req hospital.BloodRequest, act activation) {
	if act.fresh {
		s.dispatch(ctx, req, *act.active)
	}
	if act.exhausted {
		s.observe("queue_exhausted")
		s.log.Warn("candidate queue exhausted", zap.String("request_id", string(req.ID)))
		s.escalator.QueueExhausted(ctx, req)
	}
}

// dispatch arms the response timer and then notifies the donor. Delivery
// failures leave the timer armed so the cascade still moves on.
func (s *Service) dispatch(ctx context.Context, req hospital.BloodRequest, c Candidate) {
	deadline := c.NotifiedAt.Add(s.cfg.ResponseWindow)
	if err := s.timers.Schedule(ctx, c.ID, deadline); err != nil {
		s.log.Error("schedule response timeout", zap.String("candidate_id", string(c.ID)), zap.Error(err))
	}

	log := s.log.With(
		zap.String("request_id", string(req.ID)),
		zap.String("candidate_id", string(c.ID)),
		zap.String("donor_id", string(c.DonorID)),
		zap.Int("priority_order", c.PriorityOrder),
	)
	if s.donors == nil {
		return
	}
	d, err := s.donors.Get(ctx, c.DonorID)
	if err != nil {
		log.Warn("load donor for notification", zap.Error(err))
		s.observe("notify_failed")
		return
	}
	if err := s.notifier.NotifyDonor(ctx, Notice{Donor: *d, Request: req, Candidate: c, RespondBy: deadline}); err != nil {
		log.Warn("notify donor", zap.Error(err))
		s.observe("notify_failed")
		return
	}
	if err := s.store.MarkDelivered(ctx, c.ID, s.cfg.Clock()); err != nil {
		log.Warn("mark delivered", zap.Error(err))
	}
	s.observe("notified")
	log.Info("donor notified", zap.Time("respond_by", deadline))
}

func (s *Service) accept(ctx context.Context, tx Tx, req *hospital.BloodRequest, cands []*Candidate, c *Candidate, now time.Time) error {
	if err := transition(c, StatusAccepted); err != nil {
		return err
	}
	if err := tx.UpdateCandidate(ctx, c); err != nil {
		return err
	}
	for _, sib := range cands {
		if sib.ID == c.ID || !sib.Open() {
			continue
		}
		if err := transition(sib, StatusCancelled); err != nil {
			return err
		}
		sib.CancelReason = ReasonRequestFulfilled
		if err := tx.UpdateCandidate(ctx, sib); err != nil {
			return err
		}
	}
	if err := tx.UpdateRequestStatus(ctx, req, hospital.StatusFulfilled, nil, now); err != nil {
		return err
	}
	return tx.RecordDonation(ctx, donor.DonationRecord{
		ID:         types.ID(uuid.NewString()),
		DonorID:    c.DonorID,
		RequestID:  req.ID,
		FacilityID: req.FacilityID,
		DonatedOn:  donor.DateOf(now),
		Units:      unitsPerDonation,
		CreatedAt:  now,
	}, s.cfg.PointsPerDonation)
}

func (s *Service) load(ctx context.Context, tx Tx, requestID, candidateID types.ID) (*hospital.BloodRequest, []*Candidate, *Candidate, error) {
	r, err := tx.GetRequest(ctx, requestID)
	if err != nil {
		return nil, nil, nil, err
	}
	cands, err := tx.ListCandidates(ctx, requestID)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, c := range cands {
		if c.ID == candidateID {
			return r, cands, c, nil
		}
	}
	return nil, nil, nil, ErrNotFound
}

func (s *Service) cancelTimer(ctx context.Context, candidateID types.ID) {
	if err := s.timers.Cancel(ctx, candidateID); err != nil {
		s.log.Warn("cancel response timeout", zap.String("candidate_id", string(candidateID)), zap.Error(err))
	}
}

func (s *Service) observe(event string) {
	if s.observer != nil {
		s.observer.CascadeEvent(event)
	}
}

func transition(c *Candidate, to Status) error {
	if !CanTransition(c.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, c.Status, to)
	}
	c.Status = to
	return nil
}

// IsNotFound reports whether err means the candidate or its request is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, hospital.ErrNotFound)
}

type nopNotifier struct{}

func (nopNotifier) NotifyDonor(context.Context, Notice) error { return nil }

type nopEscalator struct{}

func (nopEscalator) DonorAccepted(context.Context, hospital.BloodRequest, Candidate) {}
func (nopEscalator) DonorTimedOut(context.Context, hospital.BloodRequest, Candidate, *Candidate) {}
func (nopEscalator) QueueExhausted(context.Context, hospital.BloodRequest) {}

type nopScheduler struct{}

func (nopScheduler) Schedule(context.Context, types.ID, time.Time) error { return nil }
func (nopScheduler) Cancel(context.Context, types.ID) error              { return nil }
