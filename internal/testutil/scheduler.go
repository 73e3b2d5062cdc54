package testutil

import (
	"slices"
	"sync"
	"time"
)

// ManualScheduler is a loop.Scheduler driven by the test. Posted closures
// run only on RunPending; timers fire only when Advance moves the virtual
// clock past their deadline.
type ManualScheduler struct {
	mu      sync.Mutex
	now     time.Duration
	posted  []func()
	timers  []*manualTimer
	nextSeq int
}

type manualTimer struct {
	at       time.Duration
	seq      int
	fn       func()
	canceled bool
}

// NewManualScheduler creates a scheduler at virtual time zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// Post implements loop.Scheduler.
func (s *ManualScheduler) Post(fn func()) {
	s.mu.Lock()
	s.posted = append(s.posted, fn)
	s.mu.Unlock()
}

// After implements loop.Scheduler.
func (s *ManualScheduler) After(d time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{at: s.now + d, seq: s.nextSeq, fn: fn}
	s.nextSeq++
	s.timers = append(s.timers, t)
	return func() {
		s.mu.Lock()
		t.canceled = true
		s.mu.Unlock()
	}
}

// RunPending runs posted closures, including ones posted while running,
// until none are left. It returns how many ran.
func (s *ManualScheduler) RunPending() int {
	n := 0
	for {
		s.mu.Lock()
		if len(s.posted) == 0 {
			s.mu.Unlock()
			return n
		}
		fn := s.posted[0]
		s.posted = s.posted[1:]
		s.mu.Unlock()

		fn()
		n++
	}
}

// Advance moves the clock forward by d, firing due timers in deadline
// order and running everything they post.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.RunPending()
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	for {
		s.mu.Lock()
		t := s.nextDueLocked(target)
		if t == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		s.now = t.at
		s.mu.Unlock()

		t.fn()
		s.RunPending()
	}
}

// RunAll fires every timer regardless of deadline, for as long as new work
// keeps appearing.
func (s *ManualScheduler) RunAll() {
	for {
		s.RunPending()
		s.mu.Lock()
		t := s.nextDueLocked(-1)
		if t == nil {
			s.mu.Unlock()
			return
		}
		if t.at > s.now {
			s.now = t.at
		}
		s.mu.Unlock()

		t.fn()
	}
}

// nextDueLocked removes and returns the earliest live timer due at or
// before limit (any timer when limit is negative).
func (s *ManualScheduler) nextDueLocked(limit time.Duration) *manualTimer {
	s.timers = slices.DeleteFunc(s.timers, func(t *manualTimer) bool { return t.canceled })
	if len(s.timers) == 0 {
		return nil
	}
	best := 0
	for i, t := range s.timers {
		b := s.timers[best]
		if t.at < b.at || (t.at == b.at && t.seq < b.seq) {
			best = i
		}
	}
	t := s.timers[best]
	if limit >= 0 && t.at > limit {
		return nil
	}
	s.timers = slices.Delete(s.timers, best, best+1)
	return t
}

// Now returns the virtual time elapsed since creation.
func (s *ManualScheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// PendingTimers returns the deadlines of live timers, earliest first.
func (s *ManualScheduler) PendingTimers() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Duration
	for _, t := range s.timers {
		if !t.canceled {
			out = append(out, t.at-s.now)
		}
	}
	slices.Sort(out)
	return out
}
