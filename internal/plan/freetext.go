package plan

import (
	"regexp"
	"slices"

	"github.com/Iron-Ham/stagehand/internal/stage"
)

// Detector decides from free text whether a stage is intended. A detector
// fires when any of its patterns matches.
type Detector struct {
	Stage    stage.ID
	Patterns []*regexp.Regexp
}

// Fires reports whether any pattern matches text.
func (d Detector) Fires(text string) bool {
	for _, re := range d.Patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func patterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}
	return out
}

// DefaultDetectors returns the five stage detectors in canonical order.
func DefaultDetectors() []Detector {
	return []Detector{
		{Stage: stage.CheckExisting, Patterns: patterns(
			`\b(check|inspect|scan|list|look (for|at))\b.{0,40}\bagents?\b`,
			`\bexisting agents?\b`,
			`\b(see|find out) (what|which) agents\b`,
			`\bwill check\b`,
		)},
		{Stage: stage.GenerateAgents, Patterns: patterns(
			`\b(generat|creat|scaffold)\w*\b.{0,40}\bagents?\b`,
			`\bnew agents?\b`,
			`\bwill generate\b`,
		)},
		{Stage: stage.BuildGraph, Patterns: patterns(
			`\bbuild\w*\b.{0,40}\b(graph|dag|dependenc\w*)\b`,
			`\bdependency graph\b`,
			`\bwill build\b`,
		)},
		{Stage: stage.Negotiate, Patterns: patterns(
			`\bnegotiat\w*`,
			`\bvot(e|es|ing)\b`,
			`\bconsensus\b`,
		)},
		{Stage: stage.RunRuntime, Patterns: patterns(
			`\b(run|launch|start)\w*\b.{0,40}\b(runtime|system|swarm)\b`,
			`\bexecut\w* the (runtime|system)\b`,
			`\bwill run\b`,
		)},
	}
}

// Detect returns the stages whose detectors fire on message, in canonical
// order.
func (c *Compiler) Detect(message string) []stage.ID {
	var ids []stage.ID
	for _, d := range c.detectors {
		if d.Fires(message) {
			ids = append(ids, d.Stage)
		}
	}
	return ids
}

// FromFreeText compiles a graph from an advisory message by keyword
// detection. Detected stages run in canonical order and end in complete.
// When nothing is detected the full default pipeline is used.
func (c *Compiler) FromFreeText(message string, ctx Context) *stage.Graph {
	ids := c.Detect(message)
	if len(ids) == 0 {
		c.logger.Debug("no stages detected in free text, using full pipeline",
			"current", string(ctx.Current))
		return c.defaultWithIntent(ctx.Intent, stage.OriginFreeText)
	}

	// Detectors are in canonical order, so a check stage is always ahead of
	// generation once present.
	if slices.Contains(ids, stage.GenerateAgents) && !slices.Contains(ids, stage.CheckExisting) {
		ids = append([]stage.ID{stage.CheckExisting}, ids...)
	}
	ids = append(ids, stage.Complete)

	c.logger.Debug("stages detected in free text", "stages", ids, "current", string(ctx.Current))
	return stage.MustGraph(ctx.Intent, stage.OriginFreeText, stage.Chain(ids...)...)
}
