package cmd

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/stagehand/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify stagehand configuration",
	Long: `View or modify stagehand configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  stagehand config set pipeline.tool swarm
  stagehand config set advisor.backend codex
  stagehand config set channel.enabled true

Run 'stagehand config show' to list every key.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at $XDG_CONFIG_HOME/stagehand/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

// keyKind is the value type of a settable key.
type keyKind int

const (
	kindString keyKind = iota
	kindBool
	kindInt
)

var settableKeys = map[string]keyKind{
	"pipeline.tool":            kindString,
	"pipeline.agents_dir":      kindString,
	"pipeline.probe_command":   kindString,
	"pipeline.shell":           kindString,
	"pipeline.settle_delay_ms": kindInt,
	"pipeline.command_gap_ms":  kindInt,
	"pipeline.watch_agents":    kindBool,
	"advisor.enabled":          kindBool,
	"advisor.backend":          kindString,
	"advisor.command":          kindString,
	"advisor.model":            kindString,
	"advisor.timeout_seconds":  kindInt,
	"channel.enabled":          kindBool,
	"channel.url":              kindString,
	"channel.base_delay_ms":    kindInt,
	"channel.max_attempts":     kindInt,
	"tui.max_output_lines":     kindInt,
	"tui.plain":                kindBool,
	"logging.enabled":          kindBool,
	"logging.level":            kindString,
	"paths.state_dir":          kindString,
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintln(out, "# Config file: (none - using defaults)")
	}

	data, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

// parseValue converts value to the type key expects.
func parseValue(key, value string) (any, error) {
	kind, ok := settableKeys[key]
	if !ok {
		return nil, fmt.Errorf("unknown configuration key: %s\nRun 'stagehand config show' to see valid keys", key)
	}

	switch kind {
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		return b, nil
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		if n < 0 {
			return nil, fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		return n, nil
	default:
		return value, nil
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	typed, err := parseValue(key, value)
	if err != nil {
		return err
	}

	viper.Set(key, typed)
	// Reject values the validator would refuse at startup.
	if _, err := config.Load(); err != nil {
		return err
	}

	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = config.ConfigFile()
	}
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\nConfig saved to %s\n", key, typed, configFile)
	return nil
}

const configTemplate = `# stagehand configuration

pipeline:
  # Command-line tool driven by each stage ("<tool> build", "<tool> negotiate", ...)
  tool: swarm
  # Directory holding generated *_agent.py files
  agents_dir: agents
  # Command listing existing agents (empty: "ls -1 <agents_dir>")
  probe_command: ""
  # Shell used as "<shell> -c <command>"
  shell: bash
  # Pause before an automatic command starts, and between commands of one stage
  settle_delay_ms: 500
  command_gap_ms: 250
  # Keep the known-agent list fresh by watching agents_dir
  watch_agents: false

advisor:
  # Send free text to an LLM CLI; when false, plans come from keyword analysis
  enabled: true
  # claude or codex
  backend: claude
  command: claude
  model: ""
  timeout_seconds: 120

channel:
  # Persistent websocket to the local agent service
  enabled: false
  url: ws://127.0.0.1:8765/ws
  # First reconnect delay; doubles per failure until max_attempts is reached
  base_delay_ms: 1000
  max_attempts: 5

tui:
  max_output_lines: 1000
  plain: false

logging:
  enabled: true
  # debug, info, warn, error
  level: info

paths:
  # debug.log lives here; relative to the working directory
  state_dir: .stagehand
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'stagehand config set' to modify values", configFile)
	}

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(configTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created config file at %s\n", configFile)
	fmt.Fprintln(out, "Edit this file to customize stagehand's behavior.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "Active config: %s\n", used)
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", config.ConfigFile())
	}

	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Fprintln(out, "  2. ./config.yaml (current directory)")
	fmt.Fprintln(out, "\nEnvironment variables: STAGEHAND_* (e.g., STAGEHAND_PIPELINE_TOOL)")
	fmt.Fprintf(out, "Settable keys: %s\n", strings.Join(sortedKeys(), ", "))
	return nil
}

func sortedKeys() []string {
	return slices.Sorted(maps.Keys(settableKeys))
}
