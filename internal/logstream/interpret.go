package logstream

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Pattern families, tested in this order.
var (
	intentRe     = regexp.MustCompile(`(?i)^intent\s*:\s*(.+)$`)
	roundRe      = regexp.MustCompile(`(?i)^(?:[=#\-\s]*)round\s+(\d+)\s*(?:/|of)\s*(\d+)`)
	proposalRe   = regexp.MustCompile(`(?i)^\[?([\w\- ]+?)\]?\s+proposes?\s*:\s*(.+)$`)
	evaluationRe = regexp.MustCompile(`(?i)^\[?([\w\- ]+?)\]?\s+evaluates?\s+\[?([\w\- ]+?)\]?(?:'s proposal)?\s*:\s*(accept|reject)(?:ed|s)?\b\W*(.*)$`)
	commitRe     = regexp.MustCompile(`(?i)^committed\s*:?\s*(.+?)(?:\s*\((\d+)\s+accept(?:s|ed)?,\s*(\d+)\s+reject(?:s|ed)?\))?\s*$`)
	rejectionRe  = regexp.MustCompile(`(?i)^rejected\s*:?\s*(.+?)(?:\s*\((\d+)\s+accept(?:s|ed)?,\s*(\d+)\s+reject(?:s|ed)?\))?\s*$`)
	filesRe      = regexp.MustCompile(`(?i)\b(\d+)\s+files?\s+(?:modified|changed|written|updated)\b`)
	completionRe = regexp.MustCompile(`(?i)^(?:[=#\-\s]*)negotiation\s+complete\b`)
	totalsRe     = regexp.MustCompile(`(?i)^totals?\b\s*:?\s*(.*)$`)
	warningRe    = regexp.MustCompile(`(?i)^\[?(warn(?:ing)?|error)\b\]?\s*:?\s*(.*)$`)
)

// Noise patterns.
var (
	separatorRe = regexp.MustCompile(`^[\s\-=─━═*#_~.]{3,}$`)
	debugRe     = regexp.MustCompile(`(?i)^\[(?:debug|trace)\]`)
	spinnerRe   = regexp.MustCompile(`^[⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏]`)
	progressRe  = regexp.MustCompile(`(?i)^(?:loading|waiting|thinking|working|processing|connecting)\b.*(?:\.{3}|…)\s*$`)
	percentRe   = regexp.MustCompile(`^\[?[#=>.\s]*\]?\s*\d{1,3}(?:\.\d+)?%$`)
	ansiRe      = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]|\x1b\][^\x07]*\x07`)
)

// StripANSI removes ANSI escape sequences (CSI and OSC) from text.
func StripANSI(text string) string {
	return ansiRe.ReplaceAllString(text, "")
}

// IsNoise reports whether line should be dropped without affecting state.
func IsNoise(line string) bool {
	s := strings.TrimSpace(StripANSI(line))
	switch {
	case s == "":
		return true
	case separatorRe.MatchString(s):
		return true
	case debugRe.MatchString(s):
		return true
	case spinnerRe.MatchString(s):
		return true
	case progressRe.MatchString(s):
		return true
	case percentRe.MatchString(s):
		return true
	}
	return false
}

// Step folds one line into the state.
func Step(s State, line string) (State, []Instruction) {
	if IsNoise(line) {
		return s, nil
	}

	text := strings.TrimSpace(StripANSI(line))

	if m := intentRe.FindStringSubmatch(text); m != nil {
		intent := strings.TrimSpace(m[1])
		return s, []Instruction{{
			Kind:     KindBanner,
			Category: CategoryIntent,
			Phase:    s.Phase,
			Text:     "Intent: " + intent,
			Event:    IntentAnnounced{Intent: intent},
		}}
	}

	if m := roundRe.FindStringSubmatch(text); m != nil {
		round, _ := strconv.Atoi(m[1])
		total, _ := strconv.Atoi(m[2])
		next := State{Phase: PhaseNone, Round: round, Total: total}
		return next, []Instruction{{
			Kind:     KindBanner,
			Category: CategoryRound,
			Phase:    PhaseNone,
			Text:     fmt.Sprintf("Round %d of %d", round, total),
			Event:    RoundStarted{Round: round, Total: total},
		}}
	}

	if m := proposalRe.FindStringSubmatch(text); m != nil {
		ev := ProposalMade{Agent: strings.TrimSpace(m[1]), Proposal: strings.TrimSpace(m[2])}
		return phased(s, PhaseProposing, CategoryProposal, text, ev)
	}

	if m := evaluationRe.FindStringSubmatch(text); m != nil {
		ev := VoteCast{
			Evaluator: strings.TrimSpace(m[1]),
			Target:    strings.TrimSpace(m[2]),
			Accept:    strings.EqualFold(m[3], "accept"),
			Reason:    strings.TrimSpace(m[4]),
		}
		return phased(s, PhaseEvaluating, CategoryEvaluation, text, ev)
	}

	if m := commitRe.FindStringSubmatch(text); m != nil {
		ev := CommitMade{Target: strings.TrimSpace(m[1]), Accepts: atoi(m[2]), Rejects: atoi(m[3])}
		return phased(s, PhaseCommitting, CategoryCommit, text, ev)
	}

	if m := rejectionRe.FindStringSubmatch(text); m != nil {
		ev := Rejected{Target: strings.TrimSpace(m[1]), Accepts: atoi(m[2]), Rejects: atoi(m[3])}
		return phased(s, PhaseCommitting, CategoryRejection, text, ev)
	}

	if m := filesRe.FindStringSubmatch(text); m != nil {
		return phased(s, PhaseModifying, CategoryFiles, text, FilesModified{Count: atoi(m[1])})
	}

	if completionRe.MatchString(text) {
		if s.Phase == PhaseComplete {
			return s, []Instruction{body(CategoryCompletion, s.Phase, text, Completed{})}
		}
		s.Phase = PhaseComplete
		return s, []Instruction{{
			Kind:     KindBanner,
			Category: CategoryCompletion,
			Phase:    PhaseComplete,
			Text:     PhaseComplete.bannerText(),
			Event:    Completed{},
		}}
	}

	if m := totalsRe.FindStringSubmatch(text); m != nil {
		return s, []Instruction{body(CategoryTotals, s.Phase, text, Totals{Summary: strings.TrimSpace(m[1])})}
	}

	if m := warningRe.FindStringSubmatch(text); m != nil {
		severity, category := "warning", CategoryWarning
		if strings.EqualFold(m[1], "error") {
			severity, category = "error", CategoryError
		}
		return s, []Instruction{body(category, s.Phase, text, Warning{Severity: severity, Message: strings.TrimSpace(m[2])})}
	}

	return s, []Instruction{{
		Kind:     KindPassthrough,
		Category: CategoryPlain,
		Phase:    s.Phase,
		Text:     strings.TrimRight(line, "\r\n"),
	}}
}

// phased emits a body line for phase p, preceded by a banner when p moves
// the round forward. A line from an earlier phase is shown without a banner
// and leaves the phase where it was.
func phased(s State, p Phase, c Category, text string, ev Event) (State, []Instruction) {
	if p <= s.Phase {
		return s, []Instruction{body(c, s.Phase, text, ev)}
	}
	s.Phase = p
	return s, []Instruction{
		{Kind: KindBanner, Category: c, Phase: p, Text: p.bannerText()},
		body(c, p, text, ev),
	}
}

func body(c Category, p Phase, text string, ev Event) Instruction {
	return Instruction{Kind: KindBody, Category: c, Phase: p, Text: text, Event: ev}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// Interpret folds a complete transcript from the zero State.
func Interpret(lines []string) []Instruction {
	var (
		s   State
		out []Instruction
	)
	for _, line := range lines {
		var ins []Instruction
		s, ins = Step(s, line)
		out = append(out, ins...)
	}
	return out
}
