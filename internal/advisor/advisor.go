// Package advisor talks to the external advisory service (an LLM CLI).
//
// The advisor receives the user's message together with the workflow
// context and answers in free text, optionally embedding a structured plan.
// Failures are reported as *errors.AdvisorError; NeedsReconfiguration
// separates credential problems from transient ones.
package advisor

import (
	"context"

	"github.com/Iron-Ham/stagehand/internal/plan"
)

// Context describes the workflow state the advisor should reason about.
type Context struct {
	Stage       string   `json:"stage"`
	Intent      string   `json:"intent,omitempty"`
	KnownAgents []string `json:"known_agents,omitempty"`
	Tool        string   `json:"tool,omitempty"`
	WorkingDir  string   `json:"working_dir,omitempty"`
	Queued      int      `json:"queued_commands,omitempty"`
}

// Response is a successful advisory reply.
type Response struct {
	Message string
	// Action is an optional command the advisor suggests running now.
	Action string
	Params map[string]string
	// Plan is set when the reply embedded a structured plan.
	Plan *plan.Plan
}

// HasPlan reports whether the reply carries a non-empty plan.
func (r Response) HasPlan() bool {
	return r.Plan != nil && !r.Plan.Empty()
}

// Advisor is the advisory service collaborator.
type Advisor interface {
	Chat(ctx context.Context, message string, actx Context) (Response, error)
}
