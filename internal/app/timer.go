package app

import (
	"sync"
	"time"
)

// Stopper is the part of *time.Timer the supervisor needs.
type Stopper interface {
	Stop() bool
}

// AfterFunc arms f to run once after d, like time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Stopper

// TimerSupervisor keeps at most one pending auto-advance per session, tagged
// with the question index it was armed for.
type TimerSupervisor struct {
	afterFunc AfterFunc

	mu      sync.Mutex
	pending map[string]*pendingAdvance
}

type pendingAdvance struct {
	index int
	timer Stopper
}

func NewTimerSupervisor() *TimerSupervisor {
	return NewTimerSupervisorWithAfterFunc(func(d time.Duration, f func()) Stopper {
		return time.AfterFunc(d, f)
	})
}

// NewTimerSupervisorWithAfterFunc swaps the timer facility, mainly for deterministic tests.
func NewTimerSupervisorWithAfterFunc(afterFunc AfterFunc) *TimerSupervisor {
	return &TimerSupervisor{
		afterFunc: afterFunc,
		pending:   make(map[string]*pendingAdvance),
	}
}

// Schedule cancels whatever is pending for sessionID and arms fire(sessionID, index) after delay.
func (s *TimerSupervisor) Schedule(sessionID string, index int, delay time.Duration, fire func(sessionID string, index int)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.pending[sessionID]; ok {
		prev.timer.Stop()
	}
	p := &pendingAdvance{index: index}
	s.pending[sessionID] = p
	p.timer = s.afterFunc(delay, func() {
		if s.release(sessionID, p) {
			fire(sessionID, index)
		}
	})
}

// Cancel stops the pending auto-advance for sessionID, if any.
func (s *TimerSupervisor) Cancel(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pending[sessionID]; ok {
		p.timer.Stop()
		delete(s.pending, sessionID)
	}
}

// Pending reports the question index the session's timer is armed for.
func (s *TimerSupervisor) Pending(sessionID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[sessionID]
	if !ok {
		return 0, false
	}
	return p.index, true
}

// StopAll cancels every pending timer; used on shutdown.
func (s *TimerSupervisor) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, id)
	}
}

// release drops the entry if it is still p. A false result means the timer was
// cancelled or replaced after it had already started firing.
func (s *TimerSupervisor) release(sessionID string, p *pendingAdvance) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[sessionID] != p {
		return false
	}
	delete(s.pending, sessionID)
	return true
}
