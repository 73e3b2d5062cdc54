package testutil

import (
	"context"
	"sync"

	"github.com/Iron-Ham/stagehand/internal/errors"
	"github.com/Iron-Ham/stagehand/internal/runner"
)

// FakeCall is one command started through a FakeRunner.
type FakeCall struct {
	Command string
	Ctx     context.Context
	Handler runner.Handler // nil for Run calls
	Answers []string
}

// FakeRunner records commands instead of executing them. Streaming
// commands stay running until the test calls Finish or Fail.
type FakeRunner struct {
	mu    sync.Mutex
	calls []*FakeCall

	// RunResults maps a command to the Result that Run returns.
	RunResults map[string]runner.Result
	// StartErr, when set, makes Stream fail to start.
	StartErr error
}

// NewFakeRunner creates an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{RunResults: make(map[string]runner.Result)}
}

// Run implements runner.Runner.
func (f *FakeRunner) Run(ctx context.Context, command string) (runner.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, &FakeCall{Command: command, Ctx: ctx})
	res := f.RunResults[command]
	f.mu.Unlock()

	if res.ExitCode != 0 {
		return res, errors.NewCommandError(command, res.ExitCode).WithOutput(res.Stdout, res.Stderr)
	}
	return res, nil
}

// Stream implements runner.Runner.
func (f *FakeRunner) Stream(ctx context.Context, command string, h runner.Handler) (runner.Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StartErr != nil {
		return nil, f.StartErr
	}
	call := &FakeCall{Command: command, Ctx: ctx, Handler: h}
	f.calls = append(f.calls, call)
	return &fakeProcess{runner: f, call: call}, nil
}

// Commands returns every command started so far, in order.
func (f *FakeRunner) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Command
	}
	return out
}

// Last returns the most recent call, or nil.
func (f *FakeRunner) Last() *FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

// Emit delivers stdout lines to the most recent streaming command.
func (f *FakeRunner) Emit(lines ...string) {
	call := f.Last()
	for _, l := range lines {
		call.Handler.OnLine(l, false)
	}
}

// Prompt delivers a line that asks for input.
func (f *FakeRunner) Prompt(line string) {
	call := f.Last()
	call.Handler.OnLine(line, false)
	call.Handler.OnPrompt(line)
}

// Finish completes the most recent streaming command successfully.
func (f *FakeRunner) Finish(stdout string) {
	f.Last().Handler.OnDone(runner.Result{Stdout: stdout}, nil)
}

// Fail completes the most recent streaming command with exit code 1.
func (f *FakeRunner) Fail(stderr string) {
	call := f.Last()
	res := runner.Result{Stderr: stderr, ExitCode: 1}
	call.Handler.OnDone(res, errors.NewCommandError(call.Command, 1).WithOutput("", stderr))
}

type fakeProcess struct {
	runner *FakeRunner
	call   *FakeCall
}

func (p *fakeProcess) Answer(text string) error {
	p.runner.mu.Lock()
	defer p.runner.mu.Unlock()
	p.call.Answers = append(p.call.Answers, text)
	return nil
}
