package runner

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/Iron-Ham/stagehand/internal/classify"
	"github.com/Iron-Ham/stagehand/internal/errors"
	"github.com/Iron-Ham/stagehand/internal/logging"
)

// maxCapture bounds how much output a streaming command keeps for its
// Result; the full output has already been delivered line by line.
const maxCapture = 64 * 1024

// waitDelay bounds how long Wait keeps reading pipes after a canceled
// command's process group was killed.
const waitDelay = 2 * time.Second

// Shell runs commands through a POSIX shell.
type Shell struct {
	shell  string
	logger *logging.Logger

	mu  sync.RWMutex
	dir string
}

// NewShell creates a Shell runner. shell defaults to "bash"; dir is the
// working directory (empty means the current one).
func NewShell(shell, dir string, logger *logging.Logger) *Shell {
	if shell == "" {
		shell = "bash"
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Shell{shell: shell, dir: dir, logger: logger.WithComponent("runner")}
}

// Dir returns the working directory.
func (s *Shell) Dir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dir
}

// SetDir changes the working directory of subsequent commands.
func (s *Shell) SetDir(dir string) {
	s.mu.Lock()
	s.dir = dir
	s.mu.Unlock()
}

func (s *Shell) command(ctx context.Context, command string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, s.shell, "-c", command)
	cmd.Dir = s.Dir()
	cmd.WaitDelay = waitDelay
	killProcessGroup(cmd)
	return cmd
}

// Run implements Runner.
func (s *Shell) Run(ctx context.Context, command string) (Result, error) {
	var stdout, stderr bytes.Buffer
	cmd := s.command(ctx, command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	s.logger.Debug("running command", "command", command, "dir", cmd.Dir)
	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode(cmd, err)}
	return res, commandError(command, res, err)
}

// Stream implements Runner.
func (s *Shell) Stream(ctx context.Context, command string, h Handler) (Process, error) {
	cmd := s.command(ctx, command)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.NewCommandError(command, -1).WithCause(err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.NewCommandError(command, -1).WithCause(err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.NewCommandError(command, -1).WithCause(err)
	}

	s.logger.Debug("streaming command", "command", command, "dir", cmd.Dir)
	if err := cmd.Start(); err != nil {
		return nil, errors.NewCommandError(command, -1).WithCause(err)
	}

	p := &process{stdin: stdin}
	var mu sync.Mutex // serializes handler calls across the two pipes
	var outBuf, errBuf capped
	var wg sync.WaitGroup

	pump := func(r io.Reader, buf *capped, isErr bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			line := sc.Text()
			mu.Lock()
			buf.writeLine(line)
			h.OnLine(line, isErr)
			if classify.IsPrompt(line) {
				h.OnPrompt(line)
			}
			mu.Unlock()
		}
	}
	wg.Go(func() { pump(stdout, &outBuf, false) })
	wg.Go(func() { pump(stderr, &errBuf, true) })

	go func() {
		wg.Wait()
		waitErr := cmd.Wait()
		p.close()

		res := Result{Stdout: outBuf.String(), Stderr: errBuf.String(), ExitCode: exitCode(cmd, waitErr)}
		err := commandError(command, res, waitErr)
		if err != nil && ctx.Err() != nil {
			err = errors.Join(err, errors.ErrCanceled)
		}
		s.logger.Debug("command finished", "command", command, "exit", res.ExitCode)
		h.OnDone(res, err)
	}()

	return p, nil
}

type process struct {
	mu     sync.Mutex
	stdin  io.WriteCloser
	closed bool
}

func (p *process) Answer(text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.Wrap(errors.ErrInvalidInput, "command already finished")
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	_, err := io.WriteString(p.stdin, text)
	return err
}

func (p *process) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	_ = p.stdin.Close()
}

// capped keeps at most maxCapture bytes, dropping the oldest output.
type capped struct {
	b bytes.Buffer
}

func (c *capped) writeLine(line string) {
	c.b.WriteString(line)
	c.b.WriteByte('\n')
	if over := c.b.Len() - maxCapture; over > 0 {
		c.b.Next(over)
	}
}

func (c *capped) String() string { return c.b.String() }

func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}

func commandError(command string, res Result, err error) error {
	if err == nil {
		return nil
	}
	ce := errors.NewCommandError(command, res.ExitCode).WithOutput(res.Stdout, res.Stderr)
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		ce = ce.WithCause(err)
	}
	return ce
}
