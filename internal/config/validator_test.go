package config

import (
	"strings"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "test.field",
		Value:   123,
		Message: "must be greater than zero",
	}

	expected := "test.field: must be greater than zero (got: 123)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty errors", func(t *testing.T) {
		var errs ValidationErrors
		if errs.Error() != "" {
			t.Errorf("Error() for empty = %q, want empty string", errs.Error())
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "field1", Value: "bad", Message: "is invalid"},
			{Field: "field2", Value: -1, Message: "must be positive"},
		}
		result := errs.Error()
		if !strings.Contains(result, "2 validation errors") {
			t.Errorf("Error() should mention 2 errors: %s", result)
		}
		if !strings.Contains(result, "field1") || !strings.Contains(result, "field2") {
			t.Errorf("Error() should mention both fields: %s", result)
		}
	})
}

func TestConfig_Validate_DefaultConfig(t *testing.T) {
	if errs := Default().Validate(); len(errs) != 0 {
		t.Errorf("Default config should be valid, got: %v", ValidationErrors(errs))
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"tool with spaces", func(c *Config) { c.Pipeline.Tool = "rm -rf" }, "pipeline.tool"},
		{"empty tool", func(c *Config) { c.Pipeline.Tool = "" }, "pipeline.tool"},
		{"empty agents dir", func(c *Config) { c.Pipeline.AgentsDir = " " }, "pipeline.agents_dir"},
		{"empty shell", func(c *Config) { c.Pipeline.Shell = "" }, "pipeline.shell"},
		{"negative settle", func(c *Config) { c.Pipeline.SettleDelayMs = -1 }, "pipeline.settle_delay_ms"},
		{"negative gap", func(c *Config) { c.Pipeline.CommandGapMs = -5 }, "pipeline.command_gap_ms"},
		{"empty advisor command", func(c *Config) { c.Advisor.Command = "" }, "advisor.command"},
		{"zero advisor timeout", func(c *Config) { c.Advisor.TimeoutSeconds = 0 }, "advisor.timeout_seconds"},
		{"unknown advisor backend", func(c *Config) { c.Advisor.Backend = "gpt" }, "advisor.backend"},
		{"http channel url", func(c *Config) { c.Channel.Enabled = true; c.Channel.URL = "http://x" }, "channel.url"},
		{"zero base delay", func(c *Config) { c.Channel.BaseDelayMs = 0 }, "channel.base_delay_ms"},
		{"zero attempts", func(c *Config) { c.Channel.MaxAttempts = 0 }, "channel.max_attempts"},
		{"too many attempts", func(c *Config) { c.Channel.MaxAttempts = 21 }, "channel.max_attempts"},
		{"tiny scrollback", func(c *Config) { c.TUI.MaxOutputLines = 5 }, "tui.max_output_lines"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			errs := cfg.Validate()
			if len(errs) != 1 {
				t.Fatalf("Validate() returned %d errors, want 1: %v", len(errs), ValidationErrors(errs))
			}
			if errs[0].Field != tt.field {
				t.Errorf("Field = %q, want %q", errs[0].Field, tt.field)
			}
		})
	}
}

func TestConfig_Validate_DisabledSectionsSkipChecks(t *testing.T) {
	cfg := Default()
	cfg.Advisor.Enabled = false
	cfg.Advisor.Command = ""
	cfg.Channel.Enabled = false
	cfg.Channel.URL = "not a url"

	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("disabled sections should not be validated: %v", ValidationErrors(errs))
	}
}
