package runner

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/stagehand/internal/errors"
)

func TestShell_Run(t *testing.T) {
	s := NewShell("sh", t.TempDir(), nil)

	tests := []struct {
		name     string
		command  string
		wantOut  string
		wantExit int
		wantErr  bool
	}{
		{name: "success", command: "echo hello", wantOut: "hello\n"},
		{name: "failure keeps output", command: "echo partial; echo boom >&2; exit 3", wantOut: "partial\n", wantExit: 3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Run(context.Background(), tt.command)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Run() error = %v, wantErr %v", err, tt.wantErr)
			}
			if res.Stdout != tt.wantOut {
				t.Errorf("Stdout = %q, want %q", res.Stdout, tt.wantOut)
			}
			if res.ExitCode != tt.wantExit {
				t.Errorf("ExitCode = %d, want %d", res.ExitCode, tt.wantExit)
			}
			if err == nil {
				return
			}
			var ce *errors.CommandError
			if !errors.As(err, &ce) {
				t.Fatalf("error %T is not a CommandError", err)
			}
			if ce.Detail() != "boom" {
				t.Errorf("Detail() = %q, want stderr", ce.Detail())
			}
		})
	}
}

func TestShell_RunInDir(t *testing.T) {
	dir := t.TempDir()
	s := NewShell("sh", "", nil)
	s.SetDir(dir)
	res, err := s.Run(context.Background(), "pwd")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.HasSuffix(strings.TrimSpace(res.Stdout), dir[strings.LastIndex(dir, "/"):]) {
		t.Errorf("pwd = %q, want %q", res.Stdout, dir)
	}
}

type recordingHandler struct {
	mu      sync.Mutex
	lines   []string
	prompts []string
	done    chan struct{}
	res     Result
	err     error
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{done: make(chan struct{})}
}

func (h *recordingHandler) OnLine(line string, stderr bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if stderr {
		line = "ERR " + line
	}
	h.lines = append(h.lines, line)
}

func (h *recordingHandler) OnPrompt(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.prompts = append(h.prompts, line)
}

func (h *recordingHandler) OnDone(res Result, err error) {
	h.res, h.err = res, err
	close(h.done)
}

func (h *recordingHandler) wait(t *testing.T) {
	t.Helper()
	select {
	case <-h.done:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for OnDone")
	}
}

func TestShell_Stream(t *testing.T) {
	h := newRecordingHandler()
	_, err := NewShell("sh", "", nil).Stream(context.Background(),
		"echo 'ROUND 1/3'; echo 'proposal'; echo warn >&2", h)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	h.wait(t)

	if h.err != nil {
		t.Errorf("OnDone error = %v", h.err)
	}
	stdout := []string{}
	for _, l := range h.lines {
		if !strings.HasPrefix(l, "ERR ") {
			stdout = append(stdout, l)
		}
	}
	if strings.Join(stdout, "|") != "ROUND 1/3|proposal" {
		t.Errorf("stdout lines = %v", stdout)
	}
	if !strings.Contains(strings.Join(h.lines, "|"), "ERR warn") {
		t.Errorf("stderr line missing from %v", h.lines)
	}
	if h.res.Stdout != "ROUND 1/3\nproposal\n" {
		t.Errorf("captured stdout = %q", h.res.Stdout)
	}
}

func TestShell_StreamPromptAndAnswer(t *testing.T) {
	h := newRecordingHandler()
	prompted := make(chan struct{}, 1)
	handler := HandlerFuncs{
		Line: h.OnLine,
		Prompt: func(line string) {
			h.OnPrompt(line)
			prompted <- struct{}{}
		},
		Done: h.OnDone,
	}

	proc, err := NewShell("sh", "", nil).Stream(context.Background(),
		`echo 'Overwrite existing agent? [y/N]'; read answer; echo "got $answer"`, handler)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	select {
	case <-prompted:
	case <-time.After(10 * time.Second):
		t.Fatal("prompt not detected")
	}
	if err := proc.Answer("y"); err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	h.wait(t)

	if len(h.prompts) != 1 {
		t.Errorf("prompts = %v, want one", h.prompts)
	}
	if !strings.Contains(h.res.Stdout, "got y") {
		t.Errorf("stdout = %q, want answer echoed", h.res.Stdout)
	}
	if err := proc.Answer("again"); err == nil {
		t.Error("Answer after completion should fail")
	}
}

func TestShell_StreamFailure(t *testing.T) {
	h := newRecordingHandler()
	if _, err := NewShell("sh", "", nil).Stream(context.Background(), "echo nope >&2; exit 2", h); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	h.wait(t)

	if !errors.Is(h.err, errors.ErrCommandFailed) {
		t.Fatalf("OnDone error = %v, want command failure", h.err)
	}
	if h.res.ExitCode != 2 {
		t.Errorf("ExitCode = %d, want 2", h.res.ExitCode)
	}
}

func TestShell_StreamCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := newRecordingHandler()
	if _, err := NewShell("sh", "", nil).Stream(ctx, "exec sleep 30", h); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	cancel()
	h.wait(t)

	if !errors.Is(h.err, errors.ErrCanceled) {
		t.Errorf("OnDone error = %v, want canceled", h.err)
	}
}

func TestShell_StreamStartFailure(t *testing.T) {
	_, err := NewShell("/definitely/not/a/shell", "", nil).Stream(context.Background(), "true", HandlerFuncs{})
	if !errors.Is(err, errors.ErrCommandFailed) {
		t.Errorf("Stream() error = %v, want command failure", err)
	}
}

func TestCapped_DropsOldest(t *testing.T) {
	var c capped
	line := strings.Repeat("x", 1023)
	for range 100 {
		c.writeLine(line)
	}
	if len(c.String()) != maxCapture {
		t.Errorf("len = %d, want %d", len(c.String()), maxCapture)
	}
}
