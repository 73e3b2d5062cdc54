// Package execqueue serializes external command execution.
//
// At most one command is in flight at a time. While the queue is processing
// (a command is running, or the driver holds it for an advisory round trip)
// new submissions are appended to a FIFO pending list. A pending command
// only ever runs through [Queue.DrainNext].
//
// Every dispatched [Ticket] carries the queue generation. [Queue.Cancel]
// bumps the generation, so a completion that arrives for a command started
// before the cancel is recognized as stale and ignored.
//
// Usage:
//
//	q := execqueue.New(func(t execqueue.Ticket) { runner.Start(t) })
//	t, status := q.Submit(execqueue.Request{Command: "swarm build"})
//	// ... later, on the timeline, when the command exits:
//	if q.Complete(t) {
//	    q.DrainNext()
//	}
package execqueue
