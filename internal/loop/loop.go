// Package loop provides the single logical timeline on which all
// orchestration state is mutated.
//
// Collaborator callbacks (command output, channel frames, advisory replies)
// and timers never touch orchestration state directly. They post a closure
// to the Loop, which runs closures one at a time in FIFO order on its own
// goroutine.
package loop

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Iron-Ham/stagehand/internal/logging"
)

// Scheduler is the timeline abstraction consumed by the core. Loop is the
// production implementation; tests substitute a manual one.
type Scheduler interface {
	// Post schedules fn to run on the timeline after everything already posted.
	Post(fn func())
	// After schedules fn to be posted once d has elapsed. The returned
	// function cancels the timer if it has not fired yet.
	After(d time.Duration, fn func()) (cancel func())
}

// Loop is a Scheduler backed by a goroutine draining a FIFO of closures.
type Loop struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
	stopped bool
	logger  *logging.Logger
}

// New creates a Loop. Call Run to start draining.
func New(logger *logging.Logger) *Loop {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Loop{
		wake:   make(chan struct{}, 1),
		logger: logger.WithComponent("loop"),
	}
}

// Post implements Scheduler. Posting after the loop stopped is a no-op.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// After implements Scheduler.
func (l *Loop) After(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, func() { l.Post(fn) })
	return func() { t.Stop() }
}

// Run drains posted closures until ctx is done. It returns ctx.Err().
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		l.mu.Lock()
		l.stopped = true
		l.pending = nil
		l.mu.Unlock()
	}()

	for {
		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			l.call(fn)
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		return nil, false
	}
	fn := l.pending[0]
	l.pending[0] = nil
	l.pending = l.pending[1:]
	return fn, true
}

// call runs fn, containing panics so one bad callback cannot halt the timeline.
func (l *Loop) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("posted callback panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}

// Do posts fn and blocks until it has run or ctx is done. It must not be
// called from the loop goroutine.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
