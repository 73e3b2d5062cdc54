package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Iron-Ham/stagehand/internal/advisor"
	"github.com/Iron-Ham/stagehand/internal/classify"
	"github.com/Iron-Ham/stagehand/internal/config"
	"github.com/Iron-Ham/stagehand/internal/errors"
	"github.com/Iron-Ham/stagehand/internal/event"
	"github.com/Iron-Ham/stagehand/internal/execqueue"
	"github.com/Iron-Ham/stagehand/internal/inventory"
	"github.com/Iron-Ham/stagehand/internal/logging"
	"github.com/Iron-Ham/stagehand/internal/loop"
	"github.com/Iron-Ham/stagehand/internal/plan"
	"github.com/Iron-Ham/stagehand/internal/runner"
	"github.com/Iron-Ham/stagehand/internal/stage"
)

// Outcome is the result of trying to move the cursor.
type Outcome int

const (
	// Advanced means the cursor moved and the new stage's action started.
	Advanced Outcome = iota
	// NoFurtherStage means the current stage is terminal; nothing changed.
	NoFurtherStage
	// AwaitingUser means the cursor moved and the new stage waits for input.
	AwaitingUser
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case Advanced:
		return "advanced"
	case NoFurtherStage:
		return "no_further_stage"
	case AwaitingUser:
		return "awaiting_user"
	default:
		return "unknown"
	}
}

// Cursor is the mutable workflow position.
type Cursor struct {
	Current stage.ID
	Graph   *stage.Graph
	Intent  string
	// Entered is false while Current has been selected (e.g. by installing
	// a plan) but its action has not run yet.
	Entered bool
}

// Options are the pipeline settings the driver needs.
type Options struct {
	Tool         string
	AgentsDir    string
	ProbeCommand string
	SettleDelay  time.Duration
	CommandGap   time.Duration
	WorkingDir   string
}

// OptionsFromConfig extracts driver options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config, workDir string) Options {
	return Options{
		Tool:         cfg.Pipeline.Tool,
		AgentsDir:    cfg.Pipeline.AgentsDir,
		ProbeCommand: cfg.Pipeline.Probe(),
		SettleDelay:  cfg.Pipeline.SettleDelay(),
		CommandGap:   cfg.Pipeline.CommandGap(),
		WorkingDir:   workDir,
	}
}

// Channel is the outbound side of the live link to the agent service.
// Sends fail with errors.ErrNotConnected while the link is down.
type Channel interface {
	SendAnswer(questionID, text string) error
	SendUserMessage(text string) error
	SendNegotiate(intent string) error
}

// Deps are the collaborators of a Driver. Advisor and Channel may be nil.
type Deps struct {
	Runner     runner.Runner
	Advisor    advisor.Advisor
	Channel    Channel
	Scheduler  loop.Scheduler
	Bus        *event.Bus
	Classifier *classify.Classifier
	Compiler   *plan.Compiler
	Inventory  *inventory.Set
	Logger     *logging.Logger
}

// Driver is the orchestration state machine.
type Driver struct {
	opts       Options
	runner     runner.Runner
	advisor    advisor.Advisor
	channel    Channel
	sched      loop.Scheduler
	bus        *event.Bus
	classifier *classify.Classifier
	compiler   *plan.Compiler
	inventory  *inventory.Set
	logger     *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	cursor Cursor
	queue  *execqueue.Queue
	active *activeCommand
	agents []string // names requested for generation

	// epoch invalidates timers and advisory replies issued before a cancel.
	epoch     uint64
	timers    map[int]func()
	nextTimer int
	scheduled int // commands waiting on a settle or gap timer

	followUp        bool // the current stage advances once its commands succeed
	followUpDue     bool // a follow-up command succeeded; advance when idle
	advising        bool
	adviceQueue     []string // user messages waiting for the advisor
	autoHop         bool
	needsReconfig   bool
	pendingQuestion string
}

// New creates a Driver positioned before the default pipeline. Call Start
// to enter the first stage.
func New(opts Options, deps Deps) *Driver {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	bus := deps.Bus
	if bus == nil {
		bus = event.NewBus()
	}
	classifier := deps.Classifier
	if classifier == nil {
		classifier = classify.NewDefault()
	}
	compiler := deps.Compiler
	if compiler == nil {
		compiler = plan.NewCompiler(logger)
	}
	inv := deps.Inventory
	if inv == nil {
		inv = inventory.NewSet()
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Driver{
		opts:       opts,
		runner:     deps.Runner,
		advisor:    deps.Advisor,
		channel:    deps.Channel,
		sched:      deps.Scheduler,
		bus:        bus,
		classifier: classifier,
		compiler:   compiler,
		inventory:  inv,
		logger:     logger.WithComponent("driver"),
		ctx:        ctx,
		cancel:     cancel,
		timers:     make(map[int]func()),
	}
	d.queue = execqueue.New(d.dispatch)
	d.reset()
	return d
}

func (d *Driver) reset() {
	g := d.compiler.Default()
	d.cursor = Cursor{Current: g.First(), Graph: g}
	d.agents = nil
	d.followUp, d.followUpDue = false, false
	d.pendingQuestion = ""
}

// Cursor returns a copy of the cursor.
func (d *Driver) Cursor() Cursor { return d.cursor }

// Queue exposes the execution queue for inspection.
func (d *Driver) Queue() *execqueue.Queue { return d.queue }

// Inventory returns the known-agents set.
func (d *Driver) Inventory() *inventory.Set { return d.inventory }

// Bus returns the event bus the driver publishes on.
func (d *Driver) Bus() *event.Bus { return d.bus }

// SetIntent records what the user wants to build.
func (d *Driver) SetIntent(intent string) { d.cursor.Intent = intent }

// Busy reports whether a command is running, queued or scheduled, or an
// advisory reply is outstanding.
func (d *Driver) Busy() bool {
	return !d.queue.Idle() || d.scheduled > 0 || d.advising
}

// NeedsReconfiguration reports a durable advisory credential failure.
func (d *Driver) NeedsReconfiguration() bool { return d.needsReconfig }

// Start enters the current stage (the pipeline's first stage on a fresh
// driver).
func (d *Driver) Start() Outcome {
	s, ok := d.cursor.Graph.Get(d.cursor.Current)
	if !ok {
		return NoFurtherStage
	}
	return d.enter("", s)
}

// Shutdown cancels everything and stops any running command.
func (d *Driver) Shutdown() {
	d.Cancel()
	d.cancel()
}

// AdvanceToNext moves the cursor to the successor of the current stage
// and runs its action. On a terminal stage it returns NoFurtherStage and
// leaves the cursor alone. A selected but not yet entered stage is entered
// in place.
func (d *Driver) AdvanceToNext() Outcome {
	cur, ok := d.cursor.Graph.Get(d.cursor.Current)
	if !ok {
		return NoFurtherStage
	}
	if !d.cursor.Entered {
		return d.enter("", cur)
	}
	if cur.Terminal() {
		return NoFurtherStage
	}
	next, ok := d.cursor.Graph.Get(cur.Next)
	if !ok {
		return NoFurtherStage
	}
	return d.enter(cur.ID, next)
}

func (d *Driver) atTerminal() bool {
	cur, ok := d.cursor.Graph.Get(d.cursor.Current)
	return !ok || cur.Terminal()
}

// AutoProgressIfEligible advances exactly one stage when the current stage
// is marked auto-advance and nothing is running, queued or scheduled.
func (d *Driver) AutoProgressIfEligible() bool {
	if !d.eligible() {
		return false
	}
	d.logger.Debug("auto-advancing", "from", string(d.cursor.Current))
	d.autoHop = true
	defer func() { d.autoHop = false }()
	return d.AdvanceToNext() != NoFurtherStage
}

func (d *Driver) eligible() bool {
	cur, ok := d.cursor.Graph.Get(d.cursor.Current)
	if !ok || !d.cursor.Entered || !cur.AutoAdvance || cur.Terminal() {
		return false
	}
	return d.queue.Idle() && d.scheduled == 0 && !d.advising
}

func (d *Driver) stageContext() stage.Context {
	return stage.Context{
		Intent:       d.cursor.Intent,
		Agents:       d.agents,
		KnownAgents:  d.inventory.Names(),
		Tool:         d.opts.Tool,
		AgentsDir:    d.opts.AgentsDir,
		ProbeCommand: d.opts.ProbeCommand,
	}
}

// enter makes s current and carries out its action.
func (d *Driver) enter(from stage.ID, s *stage.Stage) Outcome {
	d.cursor.Current = s.ID
	d.cursor.Entered = true
	d.followUp, d.followUpDue = false, false

	a := s.Run(d.stageContext())
	if err := a.Validate(); err != nil {
		d.logger.Error("stage produced an invalid action", "stage", string(s.ID), "error", err)
		a = stage.AwaitInput(a.Prompt)
	}

	d.logger.Info("entered stage", "from", string(from), "to", string(s.ID), "kind", a.Kind().String())
	d.bus.Publish(event.NewStageEnteredEvent(string(from), string(s.ID), s.Label, a.Prompt, d.autoHop))

	switch {
	case a.RequiresUserInput:
		return d.awaitUser(s.ID, a.Prompt)

	case a.Kind() == stage.ActionNone:
		return Advanced

	case !a.AutoRun:
		return d.awaitUser(s.ID, suggest(a.Prompt, a.AllCommands()))
	}

	cmds := a.AllCommands()
	if s.ID == stage.GenerateAgents && a.Kind() == stage.ActionList {
		kept, skipped := plan.FilterExisting(cmds, d.inventory)
		for _, c := range skipped {
			d.notice(event.NoticeInfo, fmt.Sprintf("Skipping %q: agent already exists", c))
		}
		cmds = kept
		if len(cmds) == 0 {
			d.notice(event.NoticeInfo, "All requested agents already exist")
			d.sched.Post(func() { d.AutoProgressIfEligible() })
			return Advanced
		}
	}

	if s.ID == stage.Negotiate && d.negotiateOverChannel() {
		return Advanced
	}

	if a.FollowUp {
		d.followUp = true
	}
	for i, c := range cmds {
		req := execqueue.Request{
			Command:   c,
			Stage:     string(s.ID),
			Streaming: a.Streaming,
			Probe:     s.ID == stage.CheckExisting,
			FollowUp:  a.FollowUp,
		}
		d.schedule(d.opts.SettleDelay+time.Duration(i)*d.opts.CommandGap, req)
	}
	return Advanced
}

// negotiateOverChannel asks a connected agent service to run the
// negotiation. It reports false when the command should run instead.
func (d *Driver) negotiateOverChannel() bool {
	if d.channel == nil {
		return false
	}
	err := d.channel.SendNegotiate(d.cursor.Intent)
	switch {
	case err == nil:
		d.logger.Info("negotiation requested over channel", "intent", d.cursor.Intent)
		d.notice(event.NoticeInfo, "Negotiation requested from the agent service.")
		return true
	case !errors.Is(err, errors.ErrNotConnected):
		d.logger.Warn("channel negotiate failed, running command", "error", err)
	}
	return false
}

func (d *Driver) awaitUser(id stage.ID, prompt string) Outcome {
	d.queue.ReturnControl()
	d.bus.Publish(event.NewAwaitingUserEvent(string(id), prompt))
	return AwaitingUser
}

func suggest(prompt string, cmds []string) string {
	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\nRun these when ready (prefix with !):")
	for _, c := range cmds {
		b.WriteString("\n  " + c)
	}
	return strings.TrimSpace(b.String())
}

// schedule submits req after delay unless a cancel intervenes.
func (d *Driver) schedule(delay time.Duration, req execqueue.Request) {
	epoch := d.epoch
	id := d.nextTimer
	d.nextTimer++
	d.scheduled++
	d.timers[id] = d.sched.After(delay, func() {
		if epoch != d.epoch {
			return
		}
		delete(d.timers, id)
		d.scheduled--
		d.submit(req)
	})
}

// Cancel drops queued and scheduled commands, requests termination of the
// running one and resets the cursor to the start of the default pipeline.
// A late completion of the terminated command is ignored.
func (d *Driver) Cancel() {
	d.epoch++
	for id, stop := range d.timers {
		stop()
		delete(d.timers, id)
	}
	d.scheduled = 0
	d.advising = false
	d.adviceQueue = nil

	dropped, running := d.queue.Cancel()
	if d.active != nil {
		d.active.cancel()
		d.active = nil
	}
	d.reset()

	d.logger.Info("workflow canceled", "dropped", dropped, "in_flight", running != nil)
	d.bus.Publish(event.NewQueueCanceledEvent(dropped, running != nil))
}

// ChangeContext cancels the workflow and points it at another working
// directory. The known-agents set is cleared until the next probe.
func (d *Driver) ChangeContext(dir string) {
	d.Cancel()
	d.opts.WorkingDir = dir
	if ds, ok := d.runner.(runner.DirSetter); ok {
		ds.SetDir(dir)
	}
	d.inventory.Replace(nil)
	d.bus.Publish(event.NewInventoryUpdatedEvent(nil))
	d.bus.Publish(event.NewContextChangedEvent(dir, d.agentsDir()))
	d.notice(event.NoticeInfo, "Working directory: "+dir)
}

// agentsDir resolves the agents directory against the working directory.
func (d *Driver) agentsDir() string {
	dir := d.opts.AgentsDir
	if dir == "" {
		dir = "agents"
	}
	if filepath.IsAbs(dir) || d.opts.WorkingDir == "" {
		return dir
	}
	return filepath.Join(d.opts.WorkingDir, dir)
}

func (d *Driver) notice(level event.NoticeLevel, text string) {
	d.bus.Publish(event.NewNoticeEvent(level, text))
}
