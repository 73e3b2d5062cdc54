package channel

import (
	"encoding/json"
)

// Inbound message types.
const (
	TypeAgentMessage = "agent_message"
	TypeProgress     = "progress"
	TypeQuestion     = "question"
	TypeError        = "error"
	TypeResult       = "result"
)

// Outbound message types.
const (
	TypeUserMessage = "user_message"
	TypeAnswer      = "answer"
	TypeNegotiate   = "negotiate"
)

// Envelope is the wire frame.
type Envelope struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// AgentMessage is a status update from an agent.
type AgentMessage struct {
	Agent string `json:"agent"`
	Text  string `json:"text"`
}

// Progress reports how far a long-running operation has come.
type Progress struct {
	Stage   string  `json:"stage,omitempty"`
	Message string  `json:"message"`
	Percent float64 `json:"percent,omitempty"`
}

// Question asks the user for a reply.
type Question struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
}

// Result is the terminal outcome of an operation.
type Result struct {
	Success bool   `json:"success"`
	Summary string `json:"summary"`
}

// ErrorMessage is an error reported by the remote side.
type ErrorMessage struct {
	Message string `json:"message"`
}

// UserMessage carries free text from the user.
type UserMessage struct {
	Text string `json:"text"`
}

// Answer replies to a Question.
type Answer struct {
	QuestionID string `json:"question_id"`
	Text       string `json:"text"`
}

// NegotiateRequest asks the service to start a negotiation.
type NegotiateRequest struct {
	Intent string `json:"intent,omitempty"`
}
