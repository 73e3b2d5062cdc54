package execqueue

import (
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Dispatcher starts a command. It is called outside the queue lock, so it
// may call back into the queue.
type Dispatcher func(Ticket)

// Queue is the single-flight FIFO command queue. All methods are safe for
// concurrent use, although the driver only calls them from its timeline.
type Queue struct {
	mu         sync.Mutex
	pending    []Ticket
	inFlight   *Ticket
	held       bool
	generation uint64
	dispatch   Dispatcher
}

// New creates an idle Queue that starts commands with dispatch.
func New(dispatch Dispatcher) *Queue {
	return &Queue{dispatch: dispatch}
}

// Submit runs req immediately when the queue is idle, otherwise appends it
// to the pending list. The returned position is 1-based for queued
// requests and 0 for dispatched ones.
func (q *Queue) Submit(req Request) (Ticket, Status, int) {
	q.mu.Lock()
	t := Ticket{Request: req, ID: uuid.NewString(), Generation: q.generation}

	if q.processingLocked() {
		q.pending = append(q.pending, t)
		pos := len(q.pending)
		q.mu.Unlock()
		return t, StatusQueued, pos
	}

	q.inFlight = &t
	q.mu.Unlock()

	q.dispatch(t)
	return t, StatusDispatched, 0
}

// DrainNext dispatches the head of the pending list. It is a no-op that
// returns false when the queue is empty or still processing.
func (q *Queue) DrainNext() bool {
	q.mu.Lock()
	if q.processingLocked() || len(q.pending) == 0 {
		q.mu.Unlock()
		return false
	}

	t := q.pending[0]
	q.pending = slices.Delete(q.pending, 0, 1)
	t.Generation = q.generation
	q.inFlight = &t
	q.mu.Unlock()

	q.dispatch(t)
	return true
}

// Complete clears the processing flag for t, whether the command succeeded
// or failed. It returns false, changing nothing, when t is not the command
// in flight (a stale completion after Cancel, or a duplicate).
func (q *Queue) Complete(t Ticket) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.inFlight == nil || q.inFlight.ID != t.ID || t.Generation != q.generation {
		return false
	}
	q.inFlight = nil
	return true
}

// Hold marks the queue as processing without a command, e.g. while an
// advisory request is outstanding. Submissions queue up behind it.
func (q *Queue) Hold() {
	q.mu.Lock()
	q.held = true
	q.mu.Unlock()
}

// ReturnControl releases a Hold and, if nothing is running, drains the next
// pending command. It reports whether a command was dispatched.
func (q *Queue) ReturnControl() bool {
	q.mu.Lock()
	q.held = false
	q.mu.Unlock()
	return q.DrainNext()
}

// Cancel drops every pending command, releases any hold and forgets the
// in-flight command. It returns how many pending commands were dropped and
// the ticket that was running, if any, so the caller can stop it.
func (q *Queue) Cancel() (dropped int, running *Ticket) {
	q.mu.Lock()
	defer q.mu.Unlock()

	dropped = len(q.pending)
	running = q.inFlight
	q.pending = nil
	q.inFlight = nil
	q.held = false
	q.generation++
	return dropped, running
}

// Processing reports whether a command is in flight or the queue is held.
func (q *Queue) Processing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.processingLocked()
}

func (q *Queue) processingLocked() bool {
	return q.inFlight != nil || q.held
}

// Idle reports whether nothing is running, held or pending.
func (q *Queue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.processingLocked() && len(q.pending) == 0
}

// InFlight returns the running ticket, if any.
func (q *Queue) InFlight() (Ticket, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inFlight == nil {
		return Ticket{}, false
	}
	return *q.inFlight, true
}

// Pending returns a copy of the pending list in dispatch order.
func (q *Queue) Pending() []Ticket {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.pending)
}

// Len returns the number of pending commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Generation returns the current cancellation generation.
func (q *Queue) Generation() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.generation
}
