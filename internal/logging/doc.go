// Package logging provides structured logging for stagehand.
//
// It wraps Go's log/slog to write JSON lines to {stateDir}/debug.log. The
// orchestration driver, queue, runner and channel each log through a child
// logger carrying the stage, command or channel they are working on, so a
// session can be reconstructed from the file afterwards.
//
// # Context Propagation
//
//	stageLog := logger.WithStage("build_graph")
//	stageLog.WithCommand("swarm build").Info("dispatched")
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"dispatched","stage":"build_graph","command":"swarm build"}
//
// # Testing
//
// Use [NopLogger] to discard output, or [NewWriterLogger] to capture it.
package logging
