package plan

import (
	"fmt"
	"strings"

	"github.com/Iron-Ham/stagehand/internal/logging"
	"github.com/Iron-Ham/stagehand/internal/stage"
)

// Context is what free-text compilation knows about the running workflow.
type Context struct {
	Current stage.ID
	Intent  string
}

// Compiler turns plans and free text into stage graphs.
type Compiler struct {
	detectors []Detector
	logger    *logging.Logger
}

// NewCompiler creates a Compiler using the default free-text detectors.
// A nil logger discards output.
func NewCompiler(logger *logging.Logger) *Compiler {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Compiler{
		detectors: DefaultDetectors(),
		logger:    logger.WithComponent("plan"),
	}
}

// Default returns the static default pipeline.
func (c *Compiler) Default() *stage.Graph {
	return stage.Default()
}

type compiledEntry struct {
	id       stage.ID
	known    bool
	entry    Entry
	injected bool
}

// FromPlan compiles a structured plan. The result follows the plan's order
// with a check stage inserted before any generate stage that lacks one, and
// always ends in a terminal complete stage. An empty plan yields the
// default pipeline carrying the plan's intent.
func (c *Compiler) FromPlan(p Plan) *stage.Graph {
	entries, completeEntry := c.normalize(p.Stages)
	if len(entries) == 0 && completeEntry == nil {
		c.logger.Warn("plan has no stages, using default pipeline", "intent", p.Intent)
		return c.defaultWithIntent(p.Intent, stage.OriginPlan)
	}

	entries, repaired := repairCheckBeforeGenerate(entries)
	if repaired {
		c.logger.Info("inserted check stage before generation", "intent", p.Intent)
	}

	present := make(map[stage.ID]bool, len(entries)+1)
	for _, e := range entries {
		present[e.id] = true
	}
	present[stage.Complete] = true

	stages := make([]*stage.Stage, 0, len(entries)+1)
	for i, e := range entries {
		next := stage.Complete
		if i+1 < len(entries) {
			next = entries[i+1].id
		}
		if e.entry.NextStage != "" {
			want, _ := stage.Normalize(e.entry.NextStage)
			switch {
			case !present[want]:
				c.logger.Warn("plan links to a missing stage, using document order",
					"stage", string(e.id), "next_stage", e.entry.NextStage)
			case want == e.id:
				c.logger.Warn("plan links a stage to itself, using document order", "stage", string(e.id))
			default:
				next = want
			}
		}
		if repaired {
			// The repaired check stage always hands over to generation,
			// whatever the plan linked it to.
			switch {
			case e.id == stage.CheckExisting:
				next = stage.GenerateAgents
			case next == stage.GenerateAgents:
				next = stage.CheckExisting
			}
		}
		stages = append(stages, c.buildStage(e, next))
	}

	done := stage.New(stage.Complete, "")
	if completeEntry != nil {
		done = c.buildStage(compiledEntry{id: stage.Complete, known: true, entry: *completeEntry}, "")
	}
	stages = append(stages, done)

	g, err := stage.NewGraph(p.Intent, stage.OriginPlan, stages...)
	if err != nil {
		// Links are resolved against present above, so this only fires on a
		// programming error.
		c.logger.Error("compiled plan is inconsistent, using default pipeline", "error", err)
		return c.defaultWithIntent(p.Intent, stage.OriginPlan)
	}
	return g
}

// normalize resolves stage names, drops blanks and duplicates (the first
// occurrence wins) and pulls out the complete entry, which always goes last.
func (c *Compiler) normalize(in []Entry) ([]compiledEntry, *Entry) {
	var out []compiledEntry
	var completeEntry *Entry
	seen := make(map[stage.ID]bool)

	for _, e := range in {
		id, known := stage.Normalize(e.Stage)
		if id == "" {
			c.logger.Warn("plan entry has no stage name, skipping", "description", e.Description)
			continue
		}
		if seen[id] {
			c.logger.Debug("duplicate plan stage ignored", "stage", string(id))
			continue
		}
		seen[id] = true
		if id == stage.Complete {
			completeEntry = &e
			continue
		}
		if !known {
			c.logger.Info("plan names an unknown stage, synthesizing it", "stage", e.Stage)
		}
		out = append(out, compiledEntry{id: id, known: known, entry: e})
	}
	return out, completeEntry
}

// repairCheckBeforeGenerate makes sure a check stage directly precedes the
// generate stage when no check stage runs before it. A check stage the plan
// placed later is moved rather than duplicated.
func repairCheckBeforeGenerate(entries []compiledEntry) ([]compiledEntry, bool) {
	gen, check := -1, -1
	for i, e := range entries {
		switch e.id {
		case stage.GenerateAgents:
			gen = i
		case stage.CheckExisting:
			check = i
		}
	}
	if gen < 0 || (check >= 0 && check < gen) {
		return entries, false
	}

	checkEntry := compiledEntry{id: stage.CheckExisting, known: true, injected: true}
	if check >= 0 {
		checkEntry = entries[check]
		entries = append(entries[:check:check], entries[check+1:]...)
	}

	out := make([]compiledEntry, 0, len(entries)+1)
	out = append(out, entries[:gen]...)
	out = append(out, checkEntry)
	out = append(out, entries[gen:]...)
	return out, true
}

func (c *Compiler) buildStage(e compiledEntry, next stage.ID) *stage.Stage {
	cmds := e.entry.AllCommands()

	if !e.known {
		s := stage.Synthesized(e.id, unknownStagePrompt(e), next)
		if e.entry.Description != "" {
			s.Description = e.entry.Description
		}
		return s
	}

	s := stage.New(e.id, next)
	if e.entry.Description != "" {
		s.Description = e.entry.Description
	}
	if e.entry.AutoAdvance != nil {
		s.AutoAdvance = *e.entry.AutoAdvance
	}
	if len(cmds) == 0 && e.entry.Prompt == "" {
		return s
	}

	base := s.Action
	prompt := e.entry.Prompt
	s.Action = func(ctx stage.Context) stage.ActionResult {
		a := base(ctx)
		text := prompt
		if text == "" {
			text = a.Prompt
		}
		if len(cmds) == 0 {
			a.Prompt = text
			return a
		}
		r := stage.List(text, cmds, true)
		r.Streaming = a.Streaming
		r.FollowUp = a.FollowUp
		return r
	}
	return s
}

func unknownStagePrompt(e compiledEntry) string {
	var b strings.Builder
	switch {
	case e.entry.Prompt != "":
		b.WriteString(e.entry.Prompt)
	case e.entry.Description != "":
		fmt.Fprintf(&b, "%s: %s", stage.LabelFor(e.id), e.entry.Description)
	default:
		fmt.Fprintf(&b, "Stage %q has no built-in action. Tell me how to proceed.", string(e.id))
	}
	if cmds := e.entry.AllCommands(); len(cmds) > 0 {
		b.WriteString("\nSuggested commands (not run automatically):")
		for _, cmd := range cmds {
			b.WriteString("\n  " + cmd)
		}
	}
	return b.String()
}

func (c *Compiler) defaultWithIntent(intent string, origin stage.Origin) *stage.Graph {
	if intent == "" && origin == stage.OriginDefault {
		return stage.Default()
	}
	return stage.MustGraph(intent, origin, stage.Chain(stage.CanonicalOrder()...)...)
}
