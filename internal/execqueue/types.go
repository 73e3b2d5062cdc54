package execqueue

// Request describes a command to run and how its result should be treated.
type Request struct {
	Command string
	Stage   string // stage that issued the command, empty for user commands

	// Streaming routes output through the log interpreter.
	Streaming bool
	// Probe marks the inventory probe; its output refreshes known agents.
	Probe bool
	// FollowUp asks for one stage advance when the command succeeds.
	FollowUp bool
}

// Ticket is a Request accepted by the queue.
type Ticket struct {
	Request
	ID         string
	Generation uint64
}

// Status reports what Submit did with a request.
type Status string

const (
	// StatusDispatched means the command started immediately.
	StatusDispatched Status = "dispatched"
	// StatusQueued means the command is waiting behind another.
	StatusQueued Status = "queued"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}
