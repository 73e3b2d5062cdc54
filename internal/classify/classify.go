// Package classify turns free-text advisory messages into control signals
// for the orchestration driver.
//
// Classification is driven by an explicit rule table. Each [Rule] names a
// pattern family, the [Signal] it raises and its precedence. Signals are
// evaluated independently and then combined:
//
//  1. HandedToUser: the message hands the next step to the user.
//  2. ShouldAutoContinue: continuation language, suppressed by a hand-off.
//     A closing "would you like me to proceed?" carries both families.
//  3. HasExplicitContinuationMarker: narrow markers ("continuing",
//     "moving on", a sentence opening with "Generating"/"Building"/"Running").
//  4. RequiresUserInput: a hand-off that contains a question mark.
//  5. IsComplete: completion language together with a hand-off.
package classify

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Signal identifies what a rule contributes to a Result.
type Signal int

const (
	// SignalHandOff marks "the next step is yours" language.
	SignalHandOff Signal = iota
	// SignalContinuation marks "I will / proceeding / now / next" language.
	SignalContinuation
	// SignalExplicitContinue marks the narrow forced-continue markers.
	SignalExplicitContinue
	// SignalCompletion marks "done / complete / finished" language.
	SignalCompletion
)

// String returns the string representation of the signal.
func (s Signal) String() string {
	switch s {
	case SignalHandOff:
		return "hand_off"
	case SignalContinuation:
		return "continuation"
	case SignalExplicitContinue:
		return "explicit_continue"
	case SignalCompletion:
		return "completion"
	default:
		return "unknown"
	}
}

// Rule is one row of the classification table.
type Rule struct {
	Name       string
	Signal     Signal
	Precedence int // lower evaluates first and is listed first in Matched
	Patterns   []string
}

// Pattern families for the default rule table.
var (
	// HandOffPatterns detect the advisor waiting on or inviting the user.
	HandOffPatterns = []string{
		`(?i)\blet me know\b`,
		`(?i)\b(?:would|do) you (?:like|want|prefer)\b`,
		`(?i)\bwhen(?:ever)? you(?:'re| are) ready\b`,
		`(?i)\b(?:over|up) to you\b`,
		`(?i)\bwaiting (?:for|on) (?:you|your)\b`,
		`(?i)\b(?:shall|should|can|may) I (?:proceed|continue|go ahead|start)\b`,
		`(?i)\bplease (?:confirm|review|choose|select|provide|specify|tell me)\b`,
		`(?i)\bfeel free to\b`,
		`(?i)\byour (?:turn|call|choice)\b`,
	}

	// ContinuationPatterns detect the advisor announcing its own next step.
	ContinuationPatterns = []string{
		`(?i)\bI(?:'ll| will) (?:now |next |then )?(?:check|generate|build|run|start|begin|create|proceed|continue|launch|negotiate|move)\b`,
		`(?i)\bproceeding\b`,
		`(?i)\bnow (?:I|let's|we)\b`,
		`(?i)\bnext,? (?:I|let's|we)\b`,
		`(?i)\blet me (?:now )?(?:start|begin|run|generate|build|check|create)\b`,
		`(?i)\b(?:going|about) to (?:check|generate|build|run|start|begin|create|launch)\b`,
	}

	// ExplicitContinuePatterns force continuation unless the user is asked
	// a question.
	ExplicitContinuePatterns = []string{
		`(?i)\b(?:continuing|moving on)\b`,
		`(?i)(?:^|[.!:]\s+)(?:now\s+)?(?:generating|building|running)\b`,
	}

	// CompletionPatterns detect the advisor declaring the work finished.
	CompletionPatterns = []string{
		`(?i)\b(?:all )?done\b`,
		`(?i)\bcompleted?\b`,
		`(?i)\bfinished\b`,
		`(?i)\ball set\b`,
		`(?i)\bsuccessfully\b`,
	}
)

// DefaultRules returns the built-in rule table.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "hand_off", Signal: SignalHandOff, Precedence: 10, Patterns: HandOffPatterns},
		{Name: "continuation", Signal: SignalContinuation, Precedence: 20, Patterns: ContinuationPatterns},
		{Name: "explicit_continue", Signal: SignalExplicitContinue, Precedence: 30, Patterns: ExplicitContinuePatterns},
		{Name: "completion", Signal: SignalCompletion, Precedence: 40, Patterns: CompletionPatterns},
	}
}

// Result is the classification of one message.
type Result struct {
	HandedToUser                  bool
	ShouldAutoContinue            bool
	HasExplicitContinuationMarker bool
	RequiresUserInput             bool
	IsComplete                    bool
	Matched                       []string // names of rules that fired, in precedence order
}

// Decision is what the driver should do with a classified message.
type Decision int

const (
	// DecisionAutoProgress silently checks whether the current stage may hop.
	DecisionAutoProgress Decision = iota
	// DecisionAwait stops and waits for the user's answer.
	DecisionAwait
	// DecisionHandOff returns control to the user, draining queued commands.
	DecisionHandOff
	// DecisionContinue shows the plan and executes the next stage.
	DecisionContinue
)

// String returns the string representation of the decision.
func (d Decision) String() string {
	switch d {
	case DecisionAutoProgress:
		return "auto_progress"
	case DecisionAwait:
		return "await"
	case DecisionHandOff:
		return "hand_off"
	case DecisionContinue:
		return "continue"
	default:
		return "unknown"
	}
}

// Decision maps the result to a driver action. A question to the user
// always wins; an explicit marker beats a hand-off; plain continuation
// language has already been suppressed by a hand-off.
func (r Result) Decision() Decision {
	switch {
	case r.RequiresUserInput:
		return DecisionAwait
	case r.HasExplicitContinuationMarker:
		return DecisionContinue
	case r.HandedToUser:
		return DecisionHandOff
	case r.ShouldAutoContinue:
		return DecisionContinue
	default:
		return DecisionAutoProgress
	}
}

type compiledRule struct {
	Rule
	res []*regexp.Regexp
}

// Classifier evaluates a rule table against messages. It is immutable and
// safe for concurrent use.
type Classifier struct {
	rules []compiledRule
}

// New compiles rules. Rules are evaluated in ascending precedence, ties in
// table order.
func New(rules []Rule) (*Classifier, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		cr := compiledRule{Rule: r, res: make([]*regexp.Regexp, 0, len(r.Patterns))}
		for _, p := range r.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("rule %q: invalid pattern %q: %w", r.Name, p, err)
			}
			cr.res = append(cr.res, re)
		}
		compiled = append(compiled, cr)
	}
	slices.SortStableFunc(compiled, func(a, b compiledRule) int {
		return a.Precedence - b.Precedence
	})
	return &Classifier{rules: compiled}, nil
}

// NewDefault returns a Classifier over DefaultRules.
func NewDefault() *Classifier {
	c, err := New(DefaultRules())
	if err != nil {
		panic(err)
	}
	return c
}

// Classify evaluates every rule against message and combines the signals.
func (c *Classifier) Classify(message string) Result {
	var r Result
	fired := make(map[Signal]bool, 4)

	for _, rule := range c.rules {
		if matchesAny(message, rule.res) {
			fired[rule.Signal] = true
			r.Matched = append(r.Matched, rule.Name)
		}
	}

	r.HandedToUser = fired[SignalHandOff]
	r.ShouldAutoContinue = fired[SignalContinuation] && !r.HandedToUser
	r.HasExplicitContinuationMarker = fired[SignalExplicitContinue]
	r.RequiresUserInput = r.HandedToUser && strings.Contains(message, "?")
	r.IsComplete = fired[SignalCompletion] && r.HandedToUser
	return r
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
