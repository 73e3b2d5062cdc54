package stage

import (
	"fmt"
	"strings"
)

// ID is the lowercase identity of a stage.
type ID string

// Canonical stage identities, in pipeline order.
const (
	Init           ID = "init"
	CheckExisting  ID = "check_existing"
	GenerateAgents ID = "generate_agents"
	BuildGraph     ID = "build_graph"
	Negotiate      ID = "negotiate"
	RunRuntime     ID = "run_runtime"
	Complete       ID = "complete"
)

// CanonicalOrder returns the seven canonical stages in pipeline order.
func CanonicalOrder() []ID {
	return []ID{Init, CheckExisting, GenerateAgents, BuildGraph, Negotiate, RunRuntime, Complete}
}

// IsCanonical reports whether id is one of the canonical stages.
func IsCanonical(id ID) bool {
	_, ok := labels[id]
	return ok
}

var labels = map[ID]string{
	Init:           "Getting started",
	CheckExisting:  "Check existing agents",
	GenerateAgents: "Generate agents",
	BuildGraph:     "Build dependency graph",
	Negotiate:      "Negotiate",
	RunRuntime:     "Run runtime",
	Complete:       "Complete",
}

// aliases maps names the advisory service tends to use onto canonical IDs.
var aliases = map[string]ID{
	"start":           Init,
	"setup":           Init,
	"check":           CheckExisting,
	"check_agents":    CheckExisting,
	"inspect":         CheckExisting,
	"detect":          CheckExisting,
	"list_agents":     CheckExisting,
	"generate":        GenerateAgents,
	"generate_agent":  GenerateAgents,
	"create_agents":   GenerateAgents,
	"create":          GenerateAgents,
	"build":           BuildGraph,
	"build_dag":       BuildGraph,
	"graph":           BuildGraph,
	"negotiation":     Negotiate,
	"run":             RunRuntime,
	"runtime":         RunRuntime,
	"launch":          RunRuntime,
	"done":            Complete,
	"finish":          Complete,
}

// Normalize lowercases name, folds spaces and hyphens to underscores and
// resolves aliases. known is false when the result is not canonical.
func Normalize(name string) (id ID, known bool) {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '\t'
	}), "_")
	id = ID(s)
	if IsCanonical(id) {
		return id, true
	}
	if alias, ok := aliases[s]; ok {
		return alias, true
	}
	return id, false
}

// Context is what a stage action sees when it is evaluated.
type Context struct {
	Intent       string   // carried across stages
	Agents       []string // agent names requested for generation
	KnownAgents  []string // agents already present on disk
	Tool         string   // orchestrated CLI, e.g. "swarm"
	AgentsDir    string
	ProbeCommand string
	Next         ID // successor of the stage being evaluated; set by Stage.Run
}

// Action produces the ActionResult for a stage.
type Action func(Context) ActionResult

// Stage is one immutable step of a pipeline.
type Stage struct {
	ID          ID
	Label       string
	Description string
	AutoAdvance bool
	Next        ID // empty for a terminal stage
	Action      Action
}

// Terminal reports whether the stage has no successor.
func (s *Stage) Terminal() bool {
	return s.Next == ""
}

// Run evaluates the stage action with ctx.Next set to the stage successor.
func (s *Stage) Run(ctx Context) ActionResult {
	if s.Action == nil {
		return ActionResult{}
	}
	ctx.Next = s.Next
	return s.Action(ctx)
}

// WithNext returns a copy of s linked to next.
func (s *Stage) WithNext(next ID) *Stage {
	c := *s
	c.Next = next
	return &c
}

// LabelFor returns the human label of id, deriving one for unknown stages.
func LabelFor(id ID) string {
	if l, ok := labels[id]; ok {
		return l
	}
	words := strings.Fields(strings.ReplaceAll(string(id), "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	if len(words) == 0 {
		return "Unnamed stage"
	}
	return strings.Join(words, " ")
}

// New returns the canonical definition of id linked to next. Unknown IDs
// get a synthesized stage that waits for the user.
func New(id ID, next ID) *Stage {
	s := &Stage{ID: id, Label: LabelFor(id), Next: next}
	switch id {
	case Init:
		s.Description = "Capture what the user wants to build"
		s.AutoAdvance = true
		s.Action = initAction
	case CheckExisting:
		s.Description = "List agents that already exist so none are generated twice"
		s.AutoAdvance = true
		s.Action = checkAction
	case GenerateAgents:
		s.Description = "Generate the agents that are still missing"
		s.AutoAdvance = true
		s.Action = generateAction
	case BuildGraph:
		s.Description = "Build the agent dependency graph"
		s.Action = buildAction
	case Negotiate:
		s.Description = "Let the agents negotiate a shared plan"
		s.Action = negotiateAction
	case RunRuntime:
		s.Description = "Launch the agent runtime"
		s.AutoAdvance = true
		s.Action = runAction
	case Complete:
		s.Description = "Pipeline finished"
		s.Action = completeAction
	default:
		return Synthesized(id, "", next)
	}
	return s
}

// Synthesized returns the fallback stage for a name no template knows. It
// never runs a command; prompt (if any) is shown while waiting for the user.
func Synthesized(id ID, prompt string, next ID) *Stage {
	if prompt == "" {
		prompt = fmt.Sprintf("Stage %q has no built-in action. Tell me how to proceed.", string(id))
	}
	return &Stage{
		ID:          id,
		Label:       LabelFor(id),
		Description: "Custom stage",
		Next:        next,
		Action: func(Context) ActionResult {
			return AwaitInput(prompt)
		},
	}
}

func initAction(ctx Context) ActionResult {
	if ctx.Intent != "" {
		return PromptOnly(fmt.Sprintf("Working on: %s", ctx.Intent))
	}
	return PromptOnly("Describe the system you want to build, or say \"continue\" to inspect the existing agents.")
}

func checkAction(ctx Context) ActionResult {
	probe := ctx.ProbeCommand
	if probe == "" {
		probe = "ls -1 " + shellQuote(dirOrDefault(ctx.AgentsDir))
	}
	return Single(fmt.Sprintf("Checking for existing agents in %s/", dirOrDefault(ctx.AgentsDir)), probe, true)
}

func generateAction(ctx Context) ActionResult {
	tool := toolOrDefault(ctx.Tool)
	if len(ctx.Agents) > 0 {
		cmds := make([]string, 0, len(ctx.Agents))
		for _, name := range ctx.Agents {
			cmds = append(cmds, fmt.Sprintf("%s generate agent %s", tool, shellQuote(name)))
		}
		return List("Generating missing agents", cmds, true)
	}
	if ctx.Intent != "" {
		return Single("Generating agents for the current intent",
			fmt.Sprintf("%s generate --intent %s", tool, shellQuote(ctx.Intent)), true)
	}
	return AwaitInput("Which agents should be generated?")
}

func buildAction(ctx Context) ActionResult {
	a := Single("Building the dependency graph", toolOrDefault(ctx.Tool)+" build", true)
	a.FollowUp = ctx.Next == Negotiate
	return a
}

func negotiateAction(ctx Context) ActionResult {
	cmd := toolOrDefault(ctx.Tool) + " negotiate"
	if ctx.Intent != "" {
		cmd += " --intent " + shellQuote(ctx.Intent)
	}
	a := Single("Starting negotiation", cmd, true)
	a.Streaming = true
	return a
}

func runAction(ctx Context) ActionResult {
	a := Single("Launching the runtime", toolOrDefault(ctx.Tool)+" run", true)
	a.Streaming = true
	return a
}

func completeAction(Context) ActionResult {
	return PromptOnly("Pipeline complete.")
}

func toolOrDefault(tool string) string {
	if tool == "" {
		return "swarm"
	}
	return tool
}

func dirOrDefault(dir string) string {
	if dir == "" {
		return "agents"
	}
	return dir
}

// shellQuote single-quotes s unless it is made only of safe characters.
func shellQuote(s string) string {
	if s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' ||
			r == '_' || r == '-' || r == '.' || r == '/')
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
