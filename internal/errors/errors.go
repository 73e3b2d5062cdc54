// Package errors provides centralized error definitions and error handling
// utilities for stagehand. It defines sentinel errors, domain error types for
// each external collaborator, and classification helpers used by the
// orchestration driver to decide between degrading, surfacing and retrying.
//
// # Error Types
//
// Domain-specific errors represent failures from specific collaborators:
//   - CommandError: an external command exited unsuccessfully
//   - AdvisorError: the advisory service failed (transient or credential-level)
//   - ChannelError: the persistent channel failed or was abandoned
//   - PlanError: a plan could not be decoded at all
//
// # Usage
//
//	err := errors.NewCommandError("swarm build", 1).WithOutput(stdout, stderr)
//	if errors.RequiresUserAction(err) { ... }
//
// # Error Classification
//
// Local, recoverable conditions are absorbed by the component that hits them.
// Only channel exhaustion and advisory credential failures are durable and
// reported by RequiresUserAction.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions so callers only import this package.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are only useful while debugging.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for degraded-but-functional continuations.
	SeverityWarning
	// SeverityError is for errors that stop the current operation.
	SeverityError
	// SeverityCritical is for durable failures that need user action.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Command-related sentinel errors
var (
	// ErrCommandFailed indicates that an external command exited non-zero.
	ErrCommandFailed = New("command failed")
	// ErrCommandStale indicates a completion arrived for a cancelled dispatch.
	ErrCommandStale = New("command completion is stale")
)

// Advisory-related sentinel errors
var (
	// ErrAdvisorUnavailable indicates a transient advisory failure.
	ErrAdvisorUnavailable = New("advisory service unavailable")
	// ErrNeedsReconfiguration indicates credentials or setup must be redone.
	ErrNeedsReconfiguration = New("advisory service needs reconfiguration")
	// ErrMalformedResponse indicates the advisory reply could not be decoded.
	ErrMalformedResponse = New("malformed advisory response")
)

// Channel-related sentinel errors
var (
	// ErrNotConnected indicates a send was attempted without a live channel.
	ErrNotConnected = New("channel not connected")
	// ErrChannelAbandoned indicates reconnection attempts were exhausted.
	ErrChannelAbandoned = New("channel abandoned after repeated failures")
)

// Plan-related sentinel errors
var (
	// ErrPlanUnreadable indicates a plan document could not be decoded.
	ErrPlanUnreadable = New("plan could not be read")
)

// General sentinel errors
var (
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// StagehandError is the base interface for all stagehand errors.
type StagehandError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the operation may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the message is safe to show end users.
	IsUserFacing() bool
}

type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error      { return e.cause }
func (e *baseError) Severity() Severity { return e.severity }
func (e *baseError) IsRetryable() bool  { return e.retryable }
func (e *baseError) IsUserFacing() bool { return e.userFacing }

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// CommandError reports an external command that did not succeed. Captured
// output is kept so it can be surfaced to the user verbatim.
type CommandError struct {
	baseError
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
}

// NewCommandError creates a CommandError for the given command and exit code.
func NewCommandError(command string, exitCode int) *CommandError {
	return &CommandError{
		baseError: baseError{
			message:    "command failed",
			cause:      ErrCommandFailed,
			severity:   SeverityError,
			userFacing: true,
		},
		Command:  command,
		ExitCode: exitCode,
	}
}

// WithOutput attaches the captured stdout and stderr.
func (e *CommandError) WithOutput(stdout, stderr string) *CommandError {
	e.Stdout = stdout
	e.Stderr = stderr
	return e
}

// WithCause replaces the underlying cause (e.g. a spawn error).
func (e *CommandError) WithCause(cause error) *CommandError {
	e.cause = Join(ErrCommandFailed, cause)
	return e
}

// Detail returns the most useful captured output, preferring stderr.
func (e *CommandError) Detail() string {
	if s := strings.TrimSpace(e.Stderr); s != "" {
		return s
	}
	return strings.TrimSpace(e.Stdout)
}

// Error returns the formatted error message.
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command error [cmd=%q, exit=%d]", e.Command, e.ExitCode)
	if d := e.Detail(); d != "" {
		return msg + ": " + firstLine(d)
	}
	return msg
}

// AdvisorError represents an advisory service failure. NeedsReconfiguration
// distinguishes credential-level failures from transient ones.
type AdvisorError struct {
	baseError
	NeedsReconfiguration bool
}

// NewAdvisorError creates a transient AdvisorError.
func NewAdvisorError(message string, cause error) *AdvisorError {
	return &AdvisorError{
		baseError: baseError{
			message:    message,
			cause:      Join(ErrAdvisorUnavailable, cause),
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
	}
}

// NewReconfigurationError creates an AdvisorError that requires new setup.
func NewReconfigurationError(message string, cause error) *AdvisorError {
	return &AdvisorError{
		baseError: baseError{
			message:    message,
			cause:      Join(ErrNeedsReconfiguration, cause),
			severity:   SeverityCritical,
			userFacing: true,
		},
		NeedsReconfiguration: true,
	}
}

// Error returns the formatted error message.
func (e *AdvisorError) Error() string {
	prefix := "advisor error"
	if e.NeedsReconfiguration {
		prefix = "advisor error [reconfigure]"
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// ChannelError represents a failure of the persistent channel.
type ChannelError struct {
	baseError
	URL       string
	Attempts  int
	Abandoned bool
}

// NewChannelError creates a retryable ChannelError.
func NewChannelError(message string, cause error) *ChannelError {
	return &ChannelError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
	}
}

// NewAbandonedError creates the durable ChannelError raised once the
// reconnect budget is spent.
func NewAbandonedError(url string, attempts int, cause error) *ChannelError {
	return &ChannelError{
		baseError: baseError{
			message:    "giving up on channel",
			cause:      Join(ErrChannelAbandoned, cause),
			severity:   SeverityCritical,
			userFacing: true,
		},
		URL:       url,
		Attempts:  attempts,
		Abandoned: true,
	}
}

// WithURL adds the channel URL to the error context.
func (e *ChannelError) WithURL(url string) *ChannelError {
	e.URL = url
	return e
}

// WithAttempts records how many attempts have been made.
func (e *ChannelError) WithAttempts(n int) *ChannelError {
	e.Attempts = n
	return e
}

// Error returns the formatted error message.
func (e *ChannelError) Error() string {
	var parts []string
	if e.URL != "" {
		parts = append(parts, fmt.Sprintf("url=%s", e.URL))
	}
	if e.Attempts > 0 {
		parts = append(parts, fmt.Sprintf("attempts=%d", e.Attempts))
	}
	prefix := "channel error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("channel error [%s]", strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// PlanError reports a plan document that could not be decoded. Plans that
// decode but reference unknown stages never produce a PlanError.
type PlanError struct {
	baseError
	Source string
}

// NewPlanError creates a PlanError for the given source (path or "advisor").
func NewPlanError(source string, cause error) *PlanError {
	return &PlanError{
		baseError: baseError{
			message:    "cannot decode plan",
			cause:      Join(ErrPlanUnreadable, cause),
			severity:   SeverityWarning,
			userFacing: true,
		},
		Source: source,
	}
}

// Error returns the formatted error message.
func (e *PlanError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("plan error [source=%s]: %v", e.Source, e.cause)
	}
	return fmt.Sprintf("plan error: %v", e.cause)
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error is transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se StagehandError
	if As(err, &se) {
		return se.IsRetryable()
	}
	return Is(err, ErrAdvisorUnavailable)
}

// IsUserFacing returns true if the error message is safe to display.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	var se StagehandError
	if As(err, &se) {
		return se.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity level of the error, defaulting to
// SeverityError for foreign errors.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var se StagehandError
	if As(err, &se) {
		return se.Severity()
	}
	return SeverityError
}

// RequiresUserAction reports the two durable, user-facing failure states:
// an abandoned channel and an advisory credential failure.
func RequiresUserAction(err error) bool {
	if err == nil {
		return false
	}
	var ch *ChannelError
	if As(err, &ch) && ch.Abandoned {
		return true
	}
	var adv *AdvisorError
	if As(err, &adv) && adv.NeedsReconfiguration {
		return true
	}
	return false
}

// Wrap adds context to an error. Returns nil if err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. Returns nil if err is nil.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
