package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete stagehand configuration
type Config struct {
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Advisor  AdvisorConfig  `mapstructure:"advisor"`
	Channel  ChannelConfig  `mapstructure:"channel"`
	TUI      TUIConfig      `mapstructure:"tui"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Paths    PathsConfig    `mapstructure:"paths"`
}

// PipelineConfig controls how stage actions are turned into commands
type PipelineConfig struct {
	// Tool is the orchestrated command-line tool (default: "swarm").
	// Stage actions render as "<tool> build", "<tool> negotiate", ...
	Tool string `mapstructure:"tool"`
	// AgentsDir is where generated agent files live (default: "agents")
	AgentsDir string `mapstructure:"agents_dir"`
	// ProbeCommand lists existing agents. Empty means "ls -1 <agents_dir>".
	ProbeCommand string `mapstructure:"probe_command"`
	// Shell runs each command as "<shell> -c <command>" (default: "bash")
	Shell string `mapstructure:"shell"`
	// SettleDelayMs is the pause before an auto-run command is dispatched
	SettleDelayMs int `mapstructure:"settle_delay_ms"`
	// CommandGapMs spaces consecutive commands of a multi-command stage
	CommandGapMs int `mapstructure:"command_gap_ms"`
	// WatchAgents keeps the known-agent set fresh via filesystem events
	WatchAgents bool `mapstructure:"watch_agents"`
}

// AdvisorConfig controls the advisory service
type AdvisorConfig struct {
	// Enabled controls whether free text is sent to the advisor at all.
	// When false, free text is compiled locally by keyword analysis.
	Enabled bool `mapstructure:"enabled"`
	// Backend selects the CLI flavor: "claude" or "codex" (default: "claude")
	Backend string `mapstructure:"backend"`
	// Command is the LLM CLI binary (default: "claude")
	Command string `mapstructure:"command"`
	// Model is passed as --model when non-empty
	Model string `mapstructure:"model"`
	// TimeoutSeconds bounds a single advisory round trip (default: 120)
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// ChannelConfig controls the persistent duplex channel
type ChannelConfig struct {
	// Enabled connects to URL at startup (default: false)
	Enabled bool `mapstructure:"enabled"`
	// URL is the websocket endpoint of the local agent service
	URL string `mapstructure:"url"`
	// BaseDelayMs is the first reconnect delay; it doubles per failure
	BaseDelayMs int `mapstructure:"base_delay_ms"`
	// MaxAttempts is the number of consecutive failures before giving up
	MaxAttempts int `mapstructure:"max_attempts"`
}

// TUIConfig controls the terminal front-end
type TUIConfig struct {
	// MaxOutputLines limits the scrollback kept in the viewport
	MaxOutputLines int `mapstructure:"max_output_lines"`
	// Plain disables the interactive UI and prints rendered lines
	Plain bool `mapstructure:"plain"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether debug logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
}

// PathsConfig controls where stagehand stores data
type PathsConfig struct {
	// StateDir holds debug.log. Relative paths resolve against the
	// working directory (default: ".stagehand").
	StateDir string `mapstructure:"state_dir"`
}

// ResolveStateDir returns the absolute state directory for baseDir.
func (p *PathsConfig) ResolveStateDir(baseDir string) string {
	path := p.StateDir
	if path == "" {
		path = ".stagehand"
	}
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	return path
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Tool:          "swarm",
			AgentsDir:     "agents",
			Shell:         "bash",
			SettleDelayMs: 500,
			CommandGapMs:  250,
		},
		Advisor: AdvisorConfig{
			Enabled:        true,
			Backend:        "claude",
			Command:        "claude",
			TimeoutSeconds: 120,
		},
		Channel: ChannelConfig{
			URL:         "ws://127.0.0.1:8765/ws",
			BaseDelayMs: 1000,
			MaxAttempts: 5,
		},
		TUI: TUIConfig{
			MaxOutputLines: 1000,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
		},
		Paths: PathsConfig{
			StateDir: ".stagehand",
		},
	}
}

// SettleDelay returns the settle delay as a time.Duration
func (c *PipelineConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

// CommandGap returns the inter-command gap as a time.Duration
func (c *PipelineConfig) CommandGap() time.Duration {
	return time.Duration(c.CommandGapMs) * time.Millisecond
}

// Probe returns the inventory probe command.
func (c *PipelineConfig) Probe() string {
	if c.ProbeCommand != "" {
		return c.ProbeCommand
	}
	return "ls -1 " + c.AgentsDir
}

// Timeout returns the advisory timeout as a time.Duration
func (c *AdvisorConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BaseDelay returns the reconnect base delay as a time.Duration
func (c *ChannelConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMs) * time.Millisecond
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Pipeline defaults
	viper.SetDefault("pipeline.tool", defaults.Pipeline.Tool)
	viper.SetDefault("pipeline.agents_dir", defaults.Pipeline.AgentsDir)
	viper.SetDefault("pipeline.probe_command", defaults.Pipeline.ProbeCommand)
	viper.SetDefault("pipeline.shell", defaults.Pipeline.Shell)
	viper.SetDefault("pipeline.settle_delay_ms", defaults.Pipeline.SettleDelayMs)
	viper.SetDefault("pipeline.command_gap_ms", defaults.Pipeline.CommandGapMs)
	viper.SetDefault("pipeline.watch_agents", defaults.Pipeline.WatchAgents)

	// Advisor defaults
	viper.SetDefault("advisor.enabled", defaults.Advisor.Enabled)
	viper.SetDefault("advisor.backend", defaults.Advisor.Backend)
	viper.SetDefault("advisor.command", defaults.Advisor.Command)
	viper.SetDefault("advisor.model", defaults.Advisor.Model)
	viper.SetDefault("advisor.timeout_seconds", defaults.Advisor.TimeoutSeconds)

	// Channel defaults
	viper.SetDefault("channel.enabled", defaults.Channel.Enabled)
	viper.SetDefault("channel.url", defaults.Channel.URL)
	viper.SetDefault("channel.base_delay_ms", defaults.Channel.BaseDelayMs)
	viper.SetDefault("channel.max_attempts", defaults.Channel.MaxAttempts)

	// TUI defaults
	viper.SetDefault("tui.max_output_lines", defaults.TUI.MaxOutputLines)
	viper.SetDefault("tui.plain", defaults.TUI.Plain)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)

	// Paths defaults
	viper.SetDefault("paths.state_dir", defaults.Paths.StateDir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults when the
// loaded configuration is invalid.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "stagehand")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".stagehand"
	}
	return filepath.Join(home, ".config", "stagehand")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
