// Package orchestrator implements the stage-progression state machine.
//
// A Driver owns the workflow cursor (current stage, active graph, intent),
// the execution queue and the per-command log interpretation sessions. It
// decides after every completed command or advisory reply whether to
// advance, wait for the user, or hand control back, and publishes what it
// does on the event bus.
//
// Every Driver method must run on the driver's scheduler. Collaborator
// callbacks (command output, advisory replies, timers) are posted there,
// so the driver itself holds no locks.
//
// Automatic progression is bounded: each completed command or advisory
// reply can move the cursor at most one stage, and only when the stage
// being left is marked auto-advance and no command is running, queued or
// scheduled.
package orchestrator
