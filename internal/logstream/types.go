package logstream

import "fmt"

// Phase is the position within a negotiation round.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseProposing
	PhaseEvaluating
	PhaseCommitting
	PhaseModifying
	PhaseComplete
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhaseProposing:
		return "proposing"
	case PhaseEvaluating:
		return "evaluating"
	case PhaseCommitting:
		return "committing"
	case PhaseModifying:
		return "modifying"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// bannerText is the section heading shown when a phase begins.
func (p Phase) bannerText() string {
	switch p {
	case PhaseProposing:
		return "Proposals"
	case PhaseEvaluating:
		return "Evaluations"
	case PhaseCommitting:
		return "Commits"
	case PhaseModifying:
		return "File changes"
	case PhaseComplete:
		return "Negotiation complete"
	default:
		return ""
	}
}

// Kind distinguishes the shape of an Instruction.
type Kind int

const (
	// KindBanner is a section or round heading.
	KindBanner Kind = iota
	// KindBody is a recognized line shown under the current banner.
	KindBody
	// KindPassthrough is an unrecognized line shown verbatim.
	KindPassthrough
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindBanner:
		return "banner"
	case KindBody:
		return "body"
	case KindPassthrough:
		return "passthrough"
	default:
		return "unknown"
	}
}

// Category names the pattern family a line matched.
type Category string

const (
	CategoryIntent     Category = "intent"
	CategoryRound      Category = "round"
	CategoryProposal   Category = "proposal"
	CategoryEvaluation Category = "evaluation"
	CategoryCommit     Category = "commit"
	CategoryRejection  Category = "rejection"
	CategoryFiles      Category = "files"
	CategoryCompletion Category = "completion"
	CategoryTotals     Category = "totals"
	CategoryWarning    Category = "warning"
	CategoryError      Category = "error"
	CategoryPlain      Category = "plain"
)

// Instruction is one unit of output for the presentation layer.
type Instruction struct {
	Kind     Kind
	Category Category
	Phase    Phase // phase in effect after this instruction
	Text     string
	Event    Event // set on the instruction that represents the input line
}

// Event is a typed lifecycle event extracted from a line.
type Event interface {
	Name() string
}

// IntentAnnounced is emitted for the intent banner.
type IntentAnnounced struct{ Intent string }

// RoundStarted is emitted for a round banner.
type RoundStarted struct{ Round, Total int }

// ProposalMade is emitted when an agent proposes.
type ProposalMade struct{ Agent, Proposal string }

// VoteCast is emitted when one agent evaluates another's proposal.
type VoteCast struct {
	Evaluator string
	Target    string
	Accept    bool
	Reason    string
}

// CommitMade is emitted when a proposal is committed.
type CommitMade struct {
	Target           string
	Accepts, Rejects int
}

// Rejected is emitted when a proposal is rejected.
type Rejected struct {
	Target           string
	Accepts, Rejects int
}

// FilesModified is emitted for a file-modification count.
type FilesModified struct{ Count int }

// Completed is emitted for the completion banner.
type Completed struct{}

// Totals is emitted for the aggregate totals line.
type Totals struct{ Summary string }

// Warning is emitted for warning and error lines.
type Warning struct {
	Severity string // "warning" or "error"
	Message  string
}

func (IntentAnnounced) Name() string { return "intent_announced" }
func (RoundStarted) Name() string    { return "round_started" }
func (ProposalMade) Name() string    { return "proposal_made" }
func (VoteCast) Name() string        { return "vote_cast" }
func (CommitMade) Name() string      { return "commit_made" }
func (Rejected) Name() string        { return "rejected" }
func (FilesModified) Name() string   { return "files_modified" }
func (Completed) Name() string       { return "completed" }
func (Totals) Name() string          { return "totals" }
func (Warning) Name() string         { return "warning" }

// State is the fold accumulator. The zero value is the start of a stream.
type State struct {
	Phase Phase
	Round int
	Total int
}

// String renders the state for logs.
func (s State) String() string {
	if s.Round == 0 {
		return s.Phase.String()
	}
	return fmt.Sprintf("round %d/%d %s", s.Round, s.Total, s.Phase)
}
