package stage

import (
	"fmt"
	"slices"
)

// ActionKind reports which command shape an ActionResult carries.
type ActionKind int

const (
	// ActionNone carries no command (prompt only or awaiting input).
	ActionNone ActionKind = iota
	// ActionSingle carries exactly one command.
	ActionSingle
	// ActionList carries an ordered list of commands.
	ActionList
)

// String returns the string representation of the kind.
func (k ActionKind) String() string {
	switch k {
	case ActionNone:
		return "none"
	case ActionSingle:
		return "single"
	case ActionList:
		return "list"
	default:
		return "unknown"
	}
}

// ActionResult is what a stage asks the driver to do when it is entered.
// Build values with PromptOnly, Single, List or AwaitInput so that at most
// one command shape is ever set.
type ActionResult struct {
	Prompt            string
	Command           string
	Commands          []string
	AutoRun           bool
	RequiresUserInput bool

	// FollowUp asks the driver to advance once when the command succeeds,
	// even though the stage itself does not auto-advance.
	FollowUp bool
	// Streaming routes the command's output through the log interpreter.
	Streaming bool
}

// PromptOnly returns an action that only shows text.
func PromptOnly(prompt string) ActionResult {
	return ActionResult{Prompt: prompt}
}

// Single returns an action carrying one command.
func Single(prompt, command string, autoRun bool) ActionResult {
	return ActionResult{Prompt: prompt, Command: command, AutoRun: autoRun}
}

// List returns an action carrying an ordered list of commands. A list of
// one collapses to Single; an empty list carries no command.
func List(prompt string, commands []string, autoRun bool) ActionResult {
	switch len(commands) {
	case 0:
		return ActionResult{Prompt: prompt, AutoRun: autoRun}
	case 1:
		return Single(prompt, commands[0], autoRun)
	}
	return ActionResult{Prompt: prompt, Commands: slices.Clone(commands), AutoRun: autoRun}
}

// AwaitInput returns an action that stops progression until the user acts.
func AwaitInput(prompt string) ActionResult {
	return ActionResult{Prompt: prompt, RequiresUserInput: true}
}

// Kind reports which command shape the result carries.
func (a ActionResult) Kind() ActionKind {
	switch {
	case a.Command != "":
		return ActionSingle
	case len(a.Commands) > 0:
		return ActionList
	default:
		return ActionNone
	}
}

// AllCommands returns the commands in dispatch order regardless of shape.
func (a ActionResult) AllCommands() []string {
	switch a.Kind() {
	case ActionSingle:
		return []string{a.Command}
	case ActionList:
		return slices.Clone(a.Commands)
	default:
		return nil
	}
}

// Validate reports a result that sets both command shapes.
func (a ActionResult) Validate() error {
	if a.Command != "" && len(a.Commands) > 0 {
		return fmt.Errorf("action sets both a single command and a command list")
	}
	return nil
}
