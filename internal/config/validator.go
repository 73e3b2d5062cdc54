package config

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "channel.max_attempts")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// toolNameRegex restricts the tool to a bare executable name or path
var toolNameRegex = regexp.MustCompile(`^[A-Za-z0-9_./-]+$`)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError
	errors = append(errors, c.validatePipeline()...)
	errors = append(errors, c.validateAdvisor()...)
	errors = append(errors, c.validateChannel()...)
	errors = append(errors, c.validateTUI()...)
	errors = append(errors, c.validateLogging()...)
	return errors
}

func (c *Config) validatePipeline() []ValidationError {
	var errors []ValidationError

	if !toolNameRegex.MatchString(c.Pipeline.Tool) {
		errors = append(errors, ValidationError{
			Field:   "pipeline.tool",
			Value:   c.Pipeline.Tool,
			Message: "must be a bare executable name or path without spaces",
		})
	}
	if strings.TrimSpace(c.Pipeline.AgentsDir) == "" {
		errors = append(errors, ValidationError{
			Field:   "pipeline.agents_dir",
			Value:   c.Pipeline.AgentsDir,
			Message: "cannot be empty",
		})
	}
	if strings.TrimSpace(c.Pipeline.Shell) == "" {
		errors = append(errors, ValidationError{
			Field:   "pipeline.shell",
			Value:   c.Pipeline.Shell,
			Message: "cannot be empty",
		})
	}
	if c.Pipeline.SettleDelayMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "pipeline.settle_delay_ms",
			Value:   c.Pipeline.SettleDelayMs,
			Message: "must be non-negative",
		})
	}
	if c.Pipeline.CommandGapMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "pipeline.command_gap_ms",
			Value:   c.Pipeline.CommandGapMs,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateAdvisor() []ValidationError {
	var errors []ValidationError

	if !c.Advisor.Enabled {
		return errors
	}
	if !slices.Contains(ValidAdvisorBackends(), strings.ToLower(c.Advisor.Backend)) {
		errors = append(errors, ValidationError{
			Field:   "advisor.backend",
			Value:   c.Advisor.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidAdvisorBackends(), ", ")),
		})
	}
	if strings.TrimSpace(c.Advisor.Command) == "" {
		errors = append(errors, ValidationError{
			Field:   "advisor.command",
			Value:   c.Advisor.Command,
			Message: "cannot be empty when the advisor is enabled",
		})
	}
	if c.Advisor.TimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "advisor.timeout_seconds",
			Value:   c.Advisor.TimeoutSeconds,
			Message: "must be at least 1",
		})
	}

	return errors
}

// ValidAdvisorBackends returns the supported advisor CLI flavors.
func ValidAdvisorBackends() []string {
	return []string{"claude", "codex"}
}

func (c *Config) validateChannel() []ValidationError {
	var errors []ValidationError

	if c.Channel.Enabled {
		u, err := url.Parse(c.Channel.URL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   "channel.url",
				Value:   c.Channel.URL,
				Message: "must be a ws:// or wss:// URL with a host",
			})
		}
	}
	if c.Channel.BaseDelayMs < 1 {
		errors = append(errors, ValidationError{
			Field:   "channel.base_delay_ms",
			Value:   c.Channel.BaseDelayMs,
			Message: "must be at least 1",
		})
	}

	// 2^(max-1) must not overflow a time.Duration of milliseconds
	const maxReconnectAttempts = 20
	if c.Channel.MaxAttempts < 1 || c.Channel.MaxAttempts > maxReconnectAttempts {
		errors = append(errors, ValidationError{
			Field:   "channel.max_attempts",
			Value:   c.Channel.MaxAttempts,
			Message: fmt.Sprintf("must be between 1 and %d", maxReconnectAttempts),
		})
	}

	return errors
}

func (c *Config) validateTUI() []ValidationError {
	var errors []ValidationError

	if c.TUI.MaxOutputLines < 10 {
		errors = append(errors, ValidationError{
			Field:   "tui.max_output_lines",
			Value:   c.TUI.MaxOutputLines,
			Message: "must be at least 10",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
