package advisor

import (
	"fmt"
	"strings"
)

// BackendName identifies a supported advisor CLI.
type BackendName string

const (
	BackendClaude BackendName = "claude"
	BackendCodex  BackendName = "codex"
)

// ErrUnknownBackend is returned when the configured backend is unsupported.
var ErrUnknownBackend = fmt.Errorf("unknown advisor backend")

// Backend knows how to invoke one CLI non-interactively.
type Backend interface {
	Name() BackendName
	DisplayName() string
	// Args returns the arguments for a one-shot prompt.
	Args(prompt, model string) []string
	// JSONOutput reports whether Args requests a JSON result envelope.
	JSONOutput() bool
}

// NewBackend returns the backend called name.
func NewBackend(name string) (Backend, error) {
	switch BackendName(strings.ToLower(name)) {
	case BackendClaude, "":
		return claudeBackend{}, nil
	case BackendCodex:
		return codexBackend{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
}

type claudeBackend struct{}

func (claudeBackend) Name() BackendName   { return BackendClaude }
func (claudeBackend) DisplayName() string { return "Claude" }
func (claudeBackend) JSONOutput() bool    { return true }

func (claudeBackend) Args(prompt, model string) []string {
	args := []string{"-p", prompt, "--output-format", "json"}
	if model != "" {
		args = append(args, "--model", model)
	}
	return args
}

type codexBackend struct{}

func (codexBackend) Name() BackendName   { return BackendCodex }
func (codexBackend) DisplayName() string { return "Codex" }
func (codexBackend) JSONOutput() bool    { return false }

func (codexBackend) Args(prompt, model string) []string {
	args := []string{"exec"}
	if model != "" {
		args = append(args, "--model", model)
	}
	return append(args, prompt)
}
