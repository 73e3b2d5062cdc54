package event

import (
	"time"

	"github.com/Iron-Ham/stagehand/internal/logstream"
)

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "stage.entered").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// Event type identifiers.
const (
	TypeStageEntered      = "stage.entered"
	TypeAwaitingUser      = "stage.awaiting"
	TypePlanCompiled      = "plan.compiled"
	TypeCommandQueued     = "command.queued"
	TypeCommandStarted    = "command.started"
	TypeCommandPrompt     = "command.prompt"
	TypeCommandFinished   = "command.finished"
	TypeStreamInstruction = "stream.instruction"
	TypeAdvisoryMessage   = "advisor.message"
	TypeAdvisoryFailed    = "advisor.failed"
	TypeChannelState      = "channel.state"
	TypeChannelMessage    = "channel.message"
	TypeInventoryUpdated  = "inventory.updated"
	TypeContextChanged    = "context.changed"
	TypeQueueCanceled     = "queue.canceled"
	TypeNotice            = "notice"
)

// -----------------------------------------------------------------------------
// Stage Events
// -----------------------------------------------------------------------------

// StageEnteredEvent is emitted when the cursor moves to a new stage.
type StageEnteredEvent struct {
	baseEvent
	From   string
	To     string
	Label  string
	Prompt string
	Auto   bool // true when the hop was an automatic progression
}

// NewStageEnteredEvent creates a StageEnteredEvent.
func NewStageEnteredEvent(from, to, label, prompt string, auto bool) StageEnteredEvent {
	return StageEnteredEvent{
		baseEvent: newBaseEvent(TypeStageEntered),
		From:      from,
		To:        to,
		Label:     label,
		Prompt:    prompt,
		Auto:      auto,
	}
}

// AwaitingUserEvent is emitted when progression stops until the user acts.
type AwaitingUserEvent struct {
	baseEvent
	Stage  string
	Prompt string
}

// NewAwaitingUserEvent creates an AwaitingUserEvent.
func NewAwaitingUserEvent(stage, prompt string) AwaitingUserEvent {
	return AwaitingUserEvent{
		baseEvent: newBaseEvent(TypeAwaitingUser),
		Stage:     stage,
		Prompt:    prompt,
	}
}

// PlanCompiledEvent is emitted when a new stage graph becomes active.
type PlanCompiledEvent struct {
	baseEvent
	Intent string
	Origin string // "plan", "free_text" or "default"
	Order  []string
}

// NewPlanCompiledEvent creates a PlanCompiledEvent.
func NewPlanCompiledEvent(intent, origin string, order []string) PlanCompiledEvent {
	return PlanCompiledEvent{
		baseEvent: newBaseEvent(TypePlanCompiled),
		Intent:    intent,
		Origin:    origin,
		Order:     order,
	}
}

// -----------------------------------------------------------------------------
// Command Events
// -----------------------------------------------------------------------------

// CommandQueuedEvent is emitted when a command waits behind another.
type CommandQueuedEvent struct {
	baseEvent
	Command  string
	Position int // 1-based position in the pending list
}

// NewCommandQueuedEvent creates a CommandQueuedEvent.
func NewCommandQueuedEvent(command string, position int) CommandQueuedEvent {
	return CommandQueuedEvent{
		baseEvent: newBaseEvent(TypeCommandQueued),
		Command:   command,
		Position:  position,
	}
}

// CommandStartedEvent is emitted when a command is dispatched.
type CommandStartedEvent struct {
	baseEvent
	TicketID string
	Command  string
	Stage    string
}

// NewCommandStartedEvent creates a CommandStartedEvent.
func NewCommandStartedEvent(ticketID, command, stage string) CommandStartedEvent {
	return CommandStartedEvent{
		baseEvent: newBaseEvent(TypeCommandStarted),
		TicketID:  ticketID,
		Command:   command,
		Stage:     stage,
	}
}

// CommandPromptEvent is emitted when a running command asks for input.
type CommandPromptEvent struct {
	baseEvent
	TicketID string
	Command  string
	Prompt   string
}

// NewCommandPromptEvent creates a CommandPromptEvent.
func NewCommandPromptEvent(ticketID, command, prompt string) CommandPromptEvent {
	return CommandPromptEvent{
		baseEvent: newBaseEvent(TypeCommandPrompt),
		TicketID:  ticketID,
		Command:   command,
		Prompt:    prompt,
	}
}

// CommandFinishedEvent is emitted when a dispatched command completes.
type CommandFinishedEvent struct {
	baseEvent
	TicketID string
	Command  string
	Success  bool
	ExitCode int
	Detail   string // captured stderr/stdout on failure
}

// NewCommandFinishedEvent creates a CommandFinishedEvent.
func NewCommandFinishedEvent(ticketID, command string, success bool, exitCode int, detail string) CommandFinishedEvent {
	return CommandFinishedEvent{
		baseEvent: newBaseEvent(TypeCommandFinished),
		TicketID:  ticketID,
		Command:   command,
		Success:   success,
		ExitCode:  exitCode,
		Detail:    detail,
	}
}

// StreamInstructionEvent carries one render instruction produced from a
// command's output.
type StreamInstructionEvent struct {
	baseEvent
	Command     string
	Instruction logstream.Instruction
}

// NewStreamInstructionEvent creates a StreamInstructionEvent.
func NewStreamInstructionEvent(command string, ins logstream.Instruction) StreamInstructionEvent {
	return StreamInstructionEvent{
		baseEvent:   newBaseEvent(TypeStreamInstruction),
		Command:     command,
		Instruction: ins,
	}
}

// QueueCanceledEvent is emitted when the user cancels.
type QueueCanceledEvent struct {
	baseEvent
	Dropped  int  // pending commands discarded
	InFlight bool // whether a running command was asked to stop
}

// NewQueueCanceledEvent creates a QueueCanceledEvent.
func NewQueueCanceledEvent(dropped int, inFlight bool) QueueCanceledEvent {
	return QueueCanceledEvent{
		baseEvent: newBaseEvent(TypeQueueCanceled),
		Dropped:   dropped,
		InFlight:  inFlight,
	}
}

// -----------------------------------------------------------------------------
// Advisory Events
// -----------------------------------------------------------------------------

// AdvisoryMessageEvent carries advisory text together with how it was read.
type AdvisoryMessageEvent struct {
	baseEvent
	Message  string
	Decision string // "await", "hand_off", "continue", "auto_progress"
}

// NewAdvisoryMessageEvent creates an AdvisoryMessageEvent.
func NewAdvisoryMessageEvent(message, decision string) AdvisoryMessageEvent {
	return AdvisoryMessageEvent{
		baseEvent: newBaseEvent(TypeAdvisoryMessage),
		Message:   message,
		Decision:  decision,
	}
}

// AdvisoryFailedEvent is emitted when the advisory service fails.
// Reconfigure marks the durable credential-level failure.
type AdvisoryFailedEvent struct {
	baseEvent
	Reconfigure bool
	Err         string
}

// NewAdvisoryFailedEvent creates an AdvisoryFailedEvent.
func NewAdvisoryFailedEvent(reconfigure bool, err string) AdvisoryFailedEvent {
	return AdvisoryFailedEvent{
		baseEvent:   newBaseEvent(TypeAdvisoryFailed),
		Reconfigure: reconfigure,
		Err:         err,
	}
}

// -----------------------------------------------------------------------------
// Channel Events
// -----------------------------------------------------------------------------

// ChannelStateEvent is emitted on every channel state transition.
type ChannelStateEvent struct {
	baseEvent
	State   string
	Attempt int
	Delay   time.Duration // delay before the next attempt, zero if none
	Err     string
}

// NewChannelStateEvent creates a ChannelStateEvent.
func NewChannelStateEvent(state string, attempt int, delay time.Duration, err string) ChannelStateEvent {
	return ChannelStateEvent{
		baseEvent: newBaseEvent(TypeChannelState),
		State:     state,
		Attempt:   attempt,
		Delay:     delay,
		Err:       err,
	}
}

// ChannelMessageEvent carries a decoded inbound channel message.
type ChannelMessageEvent struct {
	baseEvent
	Kind string // envelope type, e.g. "progress"
	Text string
}

// NewChannelMessageEvent creates a ChannelMessageEvent.
func NewChannelMessageEvent(kind, text string) ChannelMessageEvent {
	return ChannelMessageEvent{
		baseEvent: newBaseEvent(TypeChannelMessage),
		Kind:      kind,
		Text:      text,
	}
}

// -----------------------------------------------------------------------------
// Inventory and Notice Events
// -----------------------------------------------------------------------------

// InventoryUpdatedEvent is emitted when the known-agent set changes.
type InventoryUpdatedEvent struct {
	baseEvent
	Agents []string
}

// NewInventoryUpdatedEvent creates an InventoryUpdatedEvent.
func NewInventoryUpdatedEvent(agents []string) InventoryUpdatedEvent {
	return InventoryUpdatedEvent{
		baseEvent: newBaseEvent(TypeInventoryUpdated),
		Agents:    agents,
	}
}

// ContextChangedEvent is emitted when the working directory changes.
// AgentsDir is the agents directory resolved against the new Dir.
type ContextChangedEvent struct {
	baseEvent
	Dir       string
	AgentsDir string
}

// NewContextChangedEvent creates a ContextChangedEvent.
func NewContextChangedEvent(dir, agentsDir string) ContextChangedEvent {
	return ContextChangedEvent{
		baseEvent: newBaseEvent(TypeContextChanged),
		Dir:       dir,
		AgentsDir: agentsDir,
	}
}

// NoticeLevel grades a NoticeEvent.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// NoticeEvent is a free-form message for the user.
type NoticeEvent struct {
	baseEvent
	Level NoticeLevel
	Text  string
}

// NewNoticeEvent creates a NoticeEvent.
func NewNoticeEvent(level NoticeLevel, text string) NoticeEvent {
	return NoticeEvent{
		baseEvent: newBaseEvent(TypeNotice),
		Level:     level,
		Text:      text,
	}
}
