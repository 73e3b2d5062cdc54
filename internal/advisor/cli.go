package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/Iron-Ham/stagehand/internal/errors"
	"github.com/Iron-Ham/stagehand/internal/logging"
	"github.com/Iron-Ham/stagehand/internal/plan"
)

const instructions = `You are guiding a user through an agent pipeline driven by the %q command-line tool.
Stages, in order: init, check_existing, generate_agents, build_graph, negotiate, run_runtime, complete.
Always check existing agents before generating new ones.

Reply with a single JSON object and nothing else:
{"message": "<what to tell the user>",
 "action": "<optional shell command to run now>",
 "plan": {"intent": "<goal>", "workflow_stages": [{"stage": "<name>", "description": "...", "commands": ["..."]}]}}
Omit "action" and "plan" when they do not apply. End "message" with a question when you need the user to decide.`

var credentialPatterns = regexp.MustCompile(`(?i)(invalid[ _-]?api[ _-]?key|api key|unauthori[sz]ed|authentication|not logged in|/login|credit balance|\b401\b|\b403\b)`)

// CLI is an Advisor backed by a local LLM command-line tool.
type CLI struct {
	backend Backend
	command string
	model   string
	timeout time.Duration
	dir     string
	logger  *logging.Logger
}

// CLIConfig configures a CLI advisor.
type CLIConfig struct {
	Backend string
	Command string
	Model   string
	Timeout time.Duration
	Dir     string
}

// NewCLI creates a CLI advisor.
func NewCLI(cfg CLIConfig, logger *logging.Logger) (*CLI, error) {
	backend, err := NewBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}
	command := cfg.Command
	if command == "" {
		command = string(backend.Name())
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &CLI{
		backend: backend,
		command: command,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		dir:     cfg.Dir,
		logger:  logger.WithComponent("advisor"),
	}, nil
}

// Backend returns the CLI flavor in use.
func (c *CLI) Backend() Backend { return c.backend }

// Chat implements Advisor.
func (c *CLI) Chat(ctx context.Context, message string, actx Context) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt, err := BuildPrompt(message, actx)
	if err != nil {
		return Response{}, errors.NewAdvisorError("cannot encode context", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.command, c.backend.Args(prompt, c.model)...)
	cmd.Dir = c.dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	c.logger.Debug("advisor call finished", "backend", string(c.backend.Name()),
		"duration", time.Since(start), "error", runErr)

	if runErr != nil {
		return Response{}, c.classifyFailure(ctx, runErr, stdout.String(), stderr.String())
	}

	text := strings.TrimSpace(stdout.String())
	if c.backend.JSONOutput() {
		env, ok := decodeResultEnvelope(text)
		if ok {
			if env.IsError {
				return Response{}, failureFromText(env.Result, nil)
			}
			text = strings.TrimSpace(env.Result)
		}
	}
	if text == "" {
		return Response{}, errors.NewAdvisorError("empty advisory reply", errors.ErrMalformedResponse)
	}
	return ParseReply(text), nil
}

func (c *CLI) classifyFailure(ctx context.Context, err error, stdout, stderr string) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return errors.NewReconfigurationError(
			fmt.Sprintf("%s CLI %q not found; install it or set advisor.command", c.backend.DisplayName(), c.command), err)
	}
	if ctx.Err() == context.DeadlineExceeded {
		return errors.NewAdvisorError(fmt.Sprintf("advisor timed out after %s", c.timeout), ctx.Err())
	}
	detail := strings.TrimSpace(stderr)
	if detail == "" {
		if env, ok := decodeResultEnvelope(strings.TrimSpace(stdout)); ok {
			detail = env.Result
		} else {
			detail = strings.TrimSpace(stdout)
		}
	}
	return failureFromText(detail, err)
}

func failureFromText(detail string, cause error) error {
	if detail == "" {
		detail = "advisor failed"
	}
	msg := firstLine(detail)
	if credentialPatterns.MatchString(detail) {
		return errors.NewReconfigurationError(msg, cause)
	}
	return errors.NewAdvisorError(msg, cause)
}

type resultEnvelope struct {
	Type    string `json:"type"`
	IsError bool   `json:"is_error"`
	Result  string `json:"result"`
}

func decodeResultEnvelope(s string) (resultEnvelope, bool) {
	var env resultEnvelope
	if !strings.HasPrefix(s, "{") {
		return env, false
	}
	if err := json.Unmarshal([]byte(s), &env); err != nil || env.Type == "" {
		return env, false
	}
	return env, true
}

// BuildPrompt renders the full prompt sent to the CLI.
func BuildPrompt(message string, actx Context) (string, error) {
	ctxJSON, err := json.MarshalIndent(actx, "", "  ")
	if err != nil {
		return "", err
	}
	tool := actx.Tool
	if tool == "" {
		tool = "swarm"
	}
	var b strings.Builder
	fmt.Fprintf(&b, instructions, tool)
	b.WriteString("\n\nWorkflow context:\n")
	b.Write(ctxJSON)
	b.WriteString("\n\nUser message:\n")
	b.WriteString(message)
	return b.String(), nil
}

type reply struct {
	Message string            `json:"message"`
	Action  string            `json:"action"`
	Params  map[string]string `json:"params"`
	Plan    *plan.Plan        `json:"plan"`
}

var fenceRe = regexp.MustCompile("(?s)^```(?:json)?\\s*\\n(.*?)\\n\\s*```$")

// ParseReply interprets the advisor's text. A JSON reply object is used
// when present; otherwise the text is the message and any embedded plan is
// extracted from it.
func ParseReply(text string) Response {
	text = strings.TrimSpace(text)
	body := text
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		body = m[1]
	}

	var r reply
	if strings.HasPrefix(strings.TrimSpace(body), "{") && json.Unmarshal([]byte(body), &r) == nil && r.Message != "" {
		resp := Response{Message: r.Message, Action: strings.TrimSpace(r.Action), Params: r.Params}
		if r.Plan != nil && !r.Plan.Empty() {
			resp.Plan = r.Plan
		}
		return resp
	}

	resp := Response{Message: text}
	if p, ok := plan.Extract(text); ok {
		resp.Plan = &p
	}
	return resp
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
