// Package event provides the pub-sub bus that decouples the orchestration
// core from whatever presents it.
//
// The driver, queue, channel and inventory publish typed events; the
// terminal front-end, plain-text printer and debug log subscribe. Nothing
// in the core reads events back, so presentation can be swapped or dropped
// without changing orchestration behavior.
//
// # Thread Safety
//
// [Bus] is safe for concurrent use. Handlers are called synchronously on the
// publishing goroutine and a panicking handler never prevents delivery to
// the remaining handlers.
//
// # Event Type Naming Convention
//
// Event types follow the pattern "category.action":
//   - stage.entered, stage.awaiting
//   - plan.compiled
//   - command.queued, command.started, command.prompt, command.finished
//   - stream.instruction
//   - advisor.message, advisor.failed
//   - channel.state, channel.message
//   - inventory.updated
//   - queue.canceled
//   - notice
package event
