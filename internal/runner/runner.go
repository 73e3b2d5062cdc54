// Package runner executes external commands for the orchestration core.
//
// Commands are opaque shell strings. Run captures output for one-shot
// commands; Stream delivers output line by line and reports completion
// through a Handler, detecting lines that ask for interactive input.
package runner

import (
	"context"
)

// Result is the captured outcome of a command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Success reports a zero exit code.
func (r Result) Success() bool { return r.ExitCode == 0 }

// Handler receives the output of a streaming command. Calls are
// serialized but arrive on a runner goroutine; OnDone is called exactly
// once, after the last OnLine.
type Handler interface {
	OnLine(line string, stderr bool)
	// OnPrompt is called, after OnLine, for lines that ask for input.
	OnPrompt(line string)
	// OnDone reports completion. err is a *errors.CommandError when the
	// command exited non-zero.
	OnDone(res Result, err error)
}

// Process is a running streaming command.
type Process interface {
	// Answer writes a reply to the command's stdin.
	Answer(text string) error
}

// Runner executes commands.
type Runner interface {
	// Run executes command and waits for it. A non-zero exit is reported
	// as a *errors.CommandError alongside the captured Result.
	Run(ctx context.Context, command string) (Result, error)
	// Stream starts command and returns immediately. A start failure is
	// returned directly and OnDone is not called.
	Stream(ctx context.Context, command string, h Handler) (Process, error)
}

// DirSetter is implemented by runners whose working directory can change.
type DirSetter interface {
	SetDir(dir string)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are skipped.
type HandlerFuncs struct {
	Line   func(line string, stderr bool)
	Prompt func(line string)
	Done   func(res Result, err error)
}

func (f HandlerFuncs) OnLine(line string, stderr bool) {
	if f.Line != nil {
		f.Line(line, stderr)
	}
}

func (f HandlerFuncs) OnPrompt(line string) {
	if f.Prompt != nil {
		f.Prompt(line)
	}
}

func (f HandlerFuncs) OnDone(res Result, err error) {
	if f.Done != nil {
		f.Done(res, err)
	}
}
