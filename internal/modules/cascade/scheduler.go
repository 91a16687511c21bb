// README: Response-window timers keyed by candidate id.
package cascade

import (
	"context"
	"sync"
	"time"

	"lifelink/internal/types"
)

// TimeoutScheduler arranges for a candidate's response window to be checked
// at a deadline. Firing is advisory: the handler re-checks state under the
// request lock, so a stale or duplicate firing is harmless.
type TimeoutScheduler interface {
	Schedule(ctx context.Context, candidateID types.ID, at time.Time) error
	Cancel(ctx context.Context, candidateID types.ID) error
}

type TimeoutHandler func(ctx context.Context, candidateID types.ID)

// MemoryScheduler runs one time.AfterFunc per candidate. Timers do not
// survive a restart; use RedisScheduler when that matters.
type MemoryScheduler struct {
	mu      sync.Mutex
	base    context.Context
	handler TimeoutHandler
	timers  map[types.ID]memoryTimer
	gen     uint64
	now     func() time.Time
}

type memoryTimer struct {
	timer *time.Timer
	gen   uint64
}

func NewMemoryScheduler(base context.Context) *MemoryScheduler {
	return &MemoryScheduler{
		base:   base,
		timers: map[types.ID]memoryTimer{},
		now:    time.Now,
	}
}

// Bind sets the function called when a deadline passes.
func (s *MemoryScheduler) Bind(h TimeoutHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

func (s *MemoryScheduler) Schedule(_ context.Context, candidateID types.ID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.timers[candidateID]; ok {
		prev.timer.Stop()
	}
	s.gen++
	gen := s.gen
	delay := at.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	t := time.AfterFunc(delay, func() { s.fire(candidateID, gen) })
	s.timers[candidateID] = memoryTimer{timer: t, gen: gen}
	return nil
}

func (s *MemoryScheduler) Cancel(_ context.Context, candidateID types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.timers[candidateID]; ok {
		prev.timer.Stop()
		delete(s.timers, candidateID)
	}
	return nil
}

// Pending reports how many timers are armed.
func (s *MemoryScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop disarms every timer.
func (s *MemoryScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.timer.Stop()
		delete(s.timers, id)
	}
}

func (s *MemoryScheduler) fire(candidateID types.ID, gen uint64) {
	s.mu.Lock()
	t, ok := s.timers[candidateID]
	if !ok || t.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.timers, candidateID)
	h := s.handler
	s.mu.Unlock()

	if h != nil {
		h(s.base, candidateID)
	}
}
