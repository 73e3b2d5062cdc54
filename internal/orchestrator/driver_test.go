package orchestrator

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/stagehand/internal/advisor"
	"github.com/Iron-Ham/stagehand/internal/classify"
	"github.com/Iron-Ham/stagehand/internal/errors"
	"github.com/Iron-Ham/stagehand/internal/event"
	"github.com/Iron-Ham/stagehand/internal/execqueue"
	"github.com/Iron-Ham/stagehand/internal/inventory"
	"github.com/Iron-Ham/stagehand/internal/logstream"
	"github.com/Iron-Ham/stagehand/internal/plan"
	"github.com/Iron-Ham/stagehand/internal/stage"
	"github.com/Iron-Ham/stagehand/internal/testutil"
)

const (
	settle = 100 * time.Millisecond
	gap    = 50 * time.Millisecond
)

type harness struct {
	t      *testing.T
	d      *Driver
	sched  *testutil.ManualScheduler
	run    *testutil.FakeRunner
	events []event.Event
}

func newHarness(t *testing.T, adv advisor.Advisor, known ...string) *harness {
	t.Helper()
	h := &harness{t: t, sched: testutil.NewManualScheduler(), run: testutil.NewFakeRunner()}
	bus := event.NewBus()
	bus.SubscribeAll(func(e event.Event) { h.events = append(h.events, e) })

	h.d = New(Options{Tool: "swarm", AgentsDir: "agents", SettleDelay: settle, CommandGap: gap}, Deps{
		Runner:    h.run,
		Advisor:   adv,
		Scheduler: h.sched,
		Bus:       bus,
		Inventory: inventory.NewSet(known...),
	})
	t.Cleanup(h.d.Shutdown)
	return h
}

func (h *harness) step() { h.sched.RunPending() }

func (h *harness) install(ids ...stage.ID) {
	h.d.InstallGraph(stage.MustGraph("", stage.OriginPlan, stage.Chain(ids...)...))
}

func eventsOf[T event.Event](h *harness) []T {
	var out []T
	for _, e := range h.events {
		if v, ok := e.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func lastOf[T event.Event](h *harness) T {
	h.t.Helper()
	all := eventsOf[T](h)
	require.NotEmpty(h.t, all, "no %T published", *new(T))
	return all[len(all)-1]
}

type fakeAdvisor struct {
	mu    sync.Mutex
	resp  advisor.Response
	err   error
	calls []advisor.Context
	msgs  []string
}

func (f *fakeAdvisor) Chat(_ context.Context, msg string, actx advisor.Context) (advisor.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, actx)
	f.msgs = append(f.msgs, msg)
	return f.resp, f.err
}

func (f *fakeAdvisor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeChannel struct {
	answers      map[string]string
	messages     []string
	negotiations []string
	down         bool
}

func (f *fakeChannel) SendAnswer(id, text string) error {
	f.answers[id] = text
	return nil
}

func (f *fakeChannel) SendUserMessage(text string) error {
	if f.down {
		return errors.NewChannelError("cannot send user_message", errors.ErrNotConnected)
	}
	f.messages = append(f.messages, text)
	return nil
}

func (f *fakeChannel) SendNegotiate(intent string) error {
	if f.down {
		return errors.NewChannelError("cannot send negotiate", errors.ErrNotConnected)
	}
	f.negotiations = append(f.negotiations, intent)
	return nil
}

func TestOutcome_String(t *testing.T) {
	tests := []struct {
		o    Outcome
		want string
	}{
		{Advanced, "advanced"},
		{NoFurtherStage, "no_further_stage"},
		{AwaitingUser, "awaiting_user"},
		{Outcome(42), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.o.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDriver_StartEntersInit(t *testing.T) {
	h := newHarness(t, nil)

	assert.Equal(t, Advanced, h.d.Start())
	assert.Equal(t, stage.Init, h.d.Cursor().Current)
	assert.True(t, h.d.Cursor().Entered)
	assert.Equal(t, string(stage.Init), lastOf[event.StageEnteredEvent](h).To)

	h.sched.Advance(time.Second)
	assert.Empty(t, h.run.Commands(), "init runs nothing")
	assert.Equal(t, stage.Init, h.d.Cursor().Current, "prompt-only stages do not hop on their own")
}

func TestDriver_ProbeRefreshesInventoryAndHopsOnce(t *testing.T) {
	h := newHarness(t, nil)
	h.d.Start()

	require.Equal(t, Advanced, h.d.AdvanceToNext())
	assert.Equal(t, stage.CheckExisting, h.d.Cursor().Current)
	assert.Empty(t, h.run.Commands(), "commands wait for the settle delay")

	h.sched.Advance(settle)
	require.Equal(t, []string{"ls -1 agents"}, h.run.Commands())

	h.run.Finish("alpha_agent.py\nbeta_agent.py\nREADME.md\n")
	h.step()

	assert.Equal(t, 2, h.d.Inventory().Len())
	assert.True(t, h.d.Inventory().Has("alpha"))
	assert.Len(t, lastOf[event.InventoryUpdatedEvent](h).Agents, 2)

	// One hop into generation, which has nothing to generate and waits.
	assert.Equal(t, stage.GenerateAgents, h.d.Cursor().Current)
	entered := lastOf[event.StageEnteredEvent](h)
	assert.True(t, entered.Auto)
	assert.Equal(t, string(stage.CheckExisting), entered.From)
	assert.Equal(t, string(stage.GenerateAgents), lastOf[event.AwaitingUserEvent](h).Stage)

	h.sched.Advance(time.Second)
	assert.Equal(t, stage.GenerateAgents, h.d.Cursor().Current)
	assert.Len(t, h.run.Commands(), 1)
}

func TestDriver_GenerateSkipsExistingAgents(t *testing.T) {
	h := newHarness(t, nil, "alpha")
	h.install(stage.GenerateAgents, stage.BuildGraph)
	h.d.SetAgents([]string{"Alpha", "gamma"})

	require.Equal(t, Advanced, h.d.AdvanceToNext())
	h.sched.Advance(settle)

	assert.Equal(t, []string{"swarm generate agent gamma"}, h.run.Commands())
	assert.Empty(t, h.sched.PendingTimers())

	notice := lastOf[event.NoticeEvent](h)
	assert.Contains(t, notice.Text, "Alpha")
}

func TestDriver_AllAgentsExistAdvances(t *testing.T) {
	h := newHarness(t, nil, "alpha", "beta")
	h.install(stage.GenerateAgents, stage.BuildGraph)
	h.d.SetAgents([]string{"alpha", "beta_agent"})

	h.d.AdvanceToNext()
	h.step()

	assert.Equal(t, stage.BuildGraph, h.d.Cursor().Current)
	h.sched.Advance(settle)
	assert.Equal(t, []string{"swarm build"}, h.run.Commands())
}

func TestDriver_QueueSerializesAndHopsOnce(t *testing.T) {
	h := newHarness(t, nil)
	h.install(stage.GenerateAgents, stage.BuildGraph, stage.Negotiate)
	h.d.SetAgents([]string{"a", "b"})
	h.d.AdvanceToNext()

	h.sched.Advance(settle)
	assert.Equal(t, []string{"swarm generate agent a"}, h.run.Commands())

	h.sched.Advance(gap)
	assert.Len(t, h.run.Commands(), 1, "second command waits behind the first")
	assert.Equal(t, 1, h.d.Queue().Len())
	assert.Equal(t, 1, lastOf[event.CommandQueuedEvent](h).Position)

	h.run.Finish("")
	h.step()
	assert.Equal(t, []string{"swarm generate agent a", "swarm generate agent b"}, h.run.Commands())
	assert.Equal(t, stage.GenerateAgents, h.d.Cursor().Current, "no hop while a command runs")

	h.run.Finish("")
	h.step()
	assert.Equal(t, stage.BuildGraph, h.d.Cursor().Current)
	assert.Len(t, h.run.Commands(), 2, "build waits for its settle delay")
	assert.Len(t, h.sched.PendingTimers(), 1)
}

func TestDriver_WaitsForScheduledCommands(t *testing.T) {
	h := newHarness(t, nil)
	h.install(stage.GenerateAgents, stage.BuildGraph)
	h.d.SetAgents([]string{"a", "b"})
	h.d.AdvanceToNext()

	h.sched.Advance(settle)
	h.run.Finish("")
	h.step()
	assert.Equal(t, stage.GenerateAgents, h.d.Cursor().Current, "b is still scheduled")

	h.sched.Advance(gap)
	assert.Len(t, h.run.Commands(), 2)
	h.run.Finish("")
	h.step()
	assert.Equal(t, stage.BuildGraph, h.d.Cursor().Current)
}

func TestDriver_BuildFollowUpTriggersNegotiationOnce(t *testing.T) {
	h := newHarness(t, nil)
	h.install(stage.BuildGraph, stage.Negotiate, stage.Complete)
	h.d.AdvanceToNext()
	h.sched.Advance(settle)
	require.Equal(t, []string{"swarm build"}, h.run.Commands())

	h.run.Emit("compiling graph")
	h.step()
	ins := lastOf[event.StreamInstructionEvent](h)
	assert.Equal(t, "swarm build", ins.Command)
	assert.Equal(t, logstream.KindPassthrough, ins.Instruction.Kind)
	assert.Equal(t, "compiling graph", ins.Instruction.Text)

	h.run.Finish("")
	h.step()
	assert.Equal(t, stage.Negotiate, h.d.Cursor().Current)

	h.sched.Advance(settle)
	require.Equal(t, []string{"swarm build", "swarm negotiate"}, h.run.Commands())

	before := len(eventsOf[event.StreamInstructionEvent](h))
	h.run.Emit("something unrecognized")
	h.step()
	assert.Greater(t, len(eventsOf[event.StreamInstructionEvent](h)), before)

	h.run.Finish("")
	h.step()
	h.sched.Advance(time.Second)
	assert.Equal(t, stage.Negotiate, h.d.Cursor().Current, "negotiation does not advance by itself")
	assert.Len(t, h.run.Commands(), 2, "follow-up fires once")
}

func TestDriver_BuildFollowUpWaitsForQueuedCommand(t *testing.T) {
	h := newHarness(t, nil)
	h.install(stage.BuildGraph, stage.Negotiate, stage.Complete)
	h.d.AdvanceToNext()
	h.sched.Advance(settle)
	require.Equal(t, []string{"swarm build"}, h.run.Commands())

	assert.Equal(t, execqueue.StatusQueued, h.d.Submit("echo hi"))

	h.run.Finish("")
	h.step()
	require.Equal(t, []string{"swarm build", "echo hi"}, h.run.Commands())
	assert.Equal(t, stage.BuildGraph, h.d.Cursor().Current, "advance waits for the queued command")

	h.run.Finish("")
	h.step()
	assert.Equal(t, stage.Negotiate, h.d.Cursor().Current)

	h.sched.Advance(time.Second)
	assert.Equal(t, []string{"swarm build", "echo hi", "swarm negotiate"}, h.run.Commands())
}

func TestDriver_BuildFollowUpWaitsForLastBuildCommand(t *testing.T) {
	tests := []struct {
		name        string
		secondFails bool
		wantStage   stage.ID
		wantCmds    []string
	}{
		{
			name:      "both succeed",
			wantStage: stage.Negotiate,
			wantCmds:  []string{"swarm build a", "swarm build b", "swarm negotiate"},
		},
		{
			name:        "second fails",
			secondFails: true,
			wantStage:   stage.BuildGraph,
			wantCmds:    []string{"swarm build a", "swarm build b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.d.InstallPlan(plan.Plan{Stages: []plan.Entry{
				{Stage: "build_graph", Commands: []string{"swarm build a", "swarm build b"}},
				{Stage: "negotiate"},
			}})
			h.d.AdvanceToNext()
			h.sched.Advance(settle)
			require.Equal(t, []string{"swarm build a"}, h.run.Commands())

			h.run.Finish("")
			h.step()
			assert.Equal(t, stage.BuildGraph, h.d.Cursor().Current, "second build command is still scheduled")
			assert.True(t, h.d.Busy())

			h.sched.Advance(gap)
			require.Equal(t, []string{"swarm build a", "swarm build b"}, h.run.Commands())
			if tt.secondFails {
				h.run.Fail("cycle detected")
			} else {
				h.run.Finish("")
			}
			h.step()
			assert.Equal(t, tt.wantStage, h.d.Cursor().Current)

			h.sched.Advance(time.Second)
			assert.Equal(t, tt.wantCmds, h.run.Commands())
		})
	}
}

func TestDriver_CommandFailureStops(t *testing.T) {
	h := newHarness(t, nil)
	h.install(stage.CheckExisting, stage.GenerateAgents)
	h.d.AdvanceToNext()
	h.sched.Advance(settle)

	h.run.Fail("ls: agents: No such file or directory")
	h.step()

	done := lastOf[event.CommandFinishedEvent](h)
	assert.False(t, done.Success)
	assert.Equal(t, 1, done.ExitCode)
	assert.Equal(t, "ls: agents: No such file or directory", done.Detail)
	assert.Equal(t, event.NoticeError, lastOf[event.NoticeEvent](h).Level)

	assert.True(t, h.d.Queue().Idle())
	assert.Equal(t, stage.CheckExisting, h.d.Cursor().Current, "failures never auto-advance")
}

func TestDriver_StartFailureClearsProcessing(t *testing.T) {
	h := newHarness(t, nil)
	h.run.StartErr = errors.New("no shell")

	h.d.Submit("swarm build")
	h.step()

	done := lastOf[event.CommandFinishedEvent](h)
	assert.False(t, done.Success)
	assert.Equal(t, "no shell", done.Detail)
	assert.True(t, h.d.Queue().Idle())
}

func TestDriver_CancelIgnoresLateCompletion(t *testing.T) {
	h := newHarness(t, nil)
	h.install(stage.CheckExisting, stage.GenerateAgents)
	h.d.AdvanceToNext()
	h.sched.Advance(settle)
	call := h.run.Last()
	h.d.Submit("swarm status")

	h.d.Cancel()

	assert.Error(t, call.Ctx.Err(), "running command is asked to stop")
	canceled := lastOf[event.QueueCanceledEvent](h)
	assert.Equal(t, 1, canceled.Dropped)
	assert.True(t, canceled.InFlight)
	assert.Equal(t, stage.Init, h.d.Cursor().Current)
	assert.Equal(t, stage.OriginDefault, h.d.Cursor().Graph.Origin())

	h.run.Finish("alpha_agent.py")
	h.step()
	assert.Zero(t, h.d.Inventory().Len(), "stale probe output is discarded")
	assert.Empty(t, eventsOf[event.CommandFinishedEvent](h))
	assert.True(t, h.d.Queue().Idle())
	assert.Equal(t, stage.Init, h.d.Cursor().Current)
}

func TestDriver_CancelDropsScheduledCommands(t *testing.T) {
	h := newHarness(t, nil)
	h.d.Start()
	h.d.AdvanceToNext()

	h.d.Cancel()
	h.sched.Advance(time.Second)

	assert.Empty(t, h.run.Commands())
	assert.False(t, lastOf[event.QueueCanceledEvent](h).InFlight)
}

func TestDriver_AnswersCommandPrompt(t *testing.T) {
	h := newHarness(t, nil)
	h.d.Submit("swarm init")
	require.Equal(t, []string{"swarm init"}, h.run.Commands())

	h.run.Prompt("Overwrite existing config? [y/N]")
	h.step()
	assert.Equal(t, "Overwrite existing config? [y/N]", lastOf[event.CommandPromptEvent](h).Prompt)

	h.d.HandleUserInput("y")
	assert.Equal(t, []string{"y"}, h.run.Last().Answers)

	h.d.HandleUserInput("!ls")
	assert.Len(t, h.run.Commands(), 1, "second command queues behind the prompting one")
}

func TestDriver_HandleUserInput_Commands(t *testing.T) {
	h := newHarness(t, nil, "alpha")
	h.d.Start()

	h.d.HandleUserInput("  ")
	h.d.HandleUserInput("!ls -la")
	assert.Equal(t, []string{"ls -la"}, h.run.Commands())

	h.d.HandleUserInput("Continue")
	assert.Equal(t, stage.CheckExisting, h.d.Cursor().Current)

	h.d.HandleUserInput("/agents foo, bar")
	assert.Equal(t, []string{"foo", "bar"}, h.d.agents)

	h.d.HandleUserInput("/bogus")
	assert.Contains(t, lastOf[event.NoticeEvent](h).Text, "unknown command /bogus")

	h.d.HandleUserInput("/cancel")
	assert.Equal(t, stage.Init, h.d.Cursor().Current)
}

func TestDriver_NoFurtherStageAtTerminal(t *testing.T) {
	h := newHarness(t, nil)
	h.install(stage.Complete)

	assert.Equal(t, Advanced, h.d.AdvanceToNext(), "selected stage is entered first")
	before := len(h.events)
	assert.Equal(t, NoFurtherStage, h.d.AdvanceToNext())
	assert.Equal(t, stage.Complete, h.d.Cursor().Current)
	assert.Len(t, h.events, before, "nothing is published")
}

func TestDriver_HandleAdvisoryDecisions(t *testing.T) {
	tests := []struct {
		name      string
		message   string
		want      classify.Decision
		wantStage stage.ID
		wantGraph stage.Origin
	}{
		{"question waits", "Which agents would you like me to create?", classify.DecisionAwait, stage.Init, stage.OriginDefault},
		{"hand off waits", "Everything is prepared. Let me know when you are ready.", classify.DecisionHandOff, stage.Init, stage.OriginDefault},
		{"silent message checks auto progress", "Looks good.", classify.DecisionAutoProgress, stage.CheckExisting, stage.OriginDefault},
		{"continuation installs detected plan", "I will check the existing agents now.", classify.DecisionContinue, stage.CheckExisting, stage.OriginFreeText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.d.Start()

			got := h.d.HandleAdvisory(advisor.Response{Message: tt.message})

			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.String(), lastOf[event.AdvisoryMessageEvent](h).Decision)
			assert.Equal(t, tt.wantStage, h.d.Cursor().Current)
			assert.Equal(t, tt.wantGraph, h.d.Cursor().Graph.Origin())
			if tt.want == classify.DecisionAwait || tt.want == classify.DecisionHandOff {
				assert.Equal(t, tt.message, lastOf[event.AwaitingUserEvent](h).Prompt)
			}
		})
	}
}

func TestDriver_CompletedAdvisoryPointsAtNextStage(t *testing.T) {
	const done = "Everything is done! Let me know if you need anything else."
	tests := []struct {
		name       string
		terminal   bool
		wantNotice bool
	}{
		{"stage with a successor", false, true},
		{"terminal stage", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			if tt.terminal {
				h.install(stage.Complete)
			}
			h.d.Start()

			assert.Equal(t, classify.DecisionHandOff, h.d.HandleAdvisory(advisor.Response{Message: done}))
			assert.Equal(t, done, lastOf[event.AwaitingUserEvent](h).Prompt)

			var found bool
			for _, n := range eventsOf[event.NoticeEvent](h) {
				found = found || strings.Contains(n.Text, "this step is done")
			}
			assert.Equal(t, tt.wantNotice, found)
		})
	}
}

func TestDriver_HandleAdvisoryWithPlan(t *testing.T) {
	h := newHarness(t, nil)
	h.d.Start()

	h.d.HandleAdvisory(advisor.Response{
		Message: "Here is the plan. I will check the existing agents first.",
		Params:  map[string]string{"agents": "planner, coder"},
		Plan: &plan.Plan{
			Intent: "chat app",
			Stages: []plan.Entry{
				{Stage: "generate_agents"},
				{Stage: "complete"},
			},
		},
	})

	c := h.d.Cursor()
	assert.Equal(t, stage.OriginPlan, c.Graph.Origin())
	assert.Equal(t, []stage.ID{stage.CheckExisting, stage.GenerateAgents, stage.Complete}, c.Graph.Order())
	assert.Equal(t, stage.CheckExisting, c.Current)
	assert.Equal(t, "chat app", c.Intent)
	assert.Equal(t, []string{"planner", "coder"}, h.d.agents)

	compiled := lastOf[event.PlanCompiledEvent](h)
	assert.Equal(t, "chat app", compiled.Intent)
	assert.Equal(t, []string{"check_existing", "generate_agents", "complete"}, compiled.Order)
}

func TestDriver_AdvisoryActionRunsOnHandOff(t *testing.T) {
	h := newHarness(t, nil)
	h.d.Start()
	h.d.Queue().Hold()

	h.d.HandleAdvisory(advisor.Response{Message: "Let me know if the status looks right.", Action: "swarm status"})

	assert.Equal(t, []string{"swarm status"}, h.run.Commands(), "queue drains once control returns")
}

func TestDriver_ConsultsAdvisor(t *testing.T) {
	adv := &fakeAdvisor{resp: advisor.Response{Message: "Which agents would you like?"}}
	h := newHarness(t, adv, "alpha")
	h.d.Start()

	h.d.HandleUserInput("build me a chat app")
	assert.True(t, h.d.Queue().Processing(), "queue is held while the advisor thinks")
	assert.Equal(t, "build me a chat app", h.d.Cursor().Intent)

	require.Eventually(t, func() bool {
		h.step()
		return len(eventsOf[event.AdvisoryMessageEvent](h)) > 0
	}, time.Second, 5*time.Millisecond)

	assert.False(t, h.d.Queue().Processing())
	require.Equal(t, 1, adv.count())
	assert.Equal(t, "init", adv.calls[0].Stage)
	assert.Equal(t, []string{"alpha"}, adv.calls[0].KnownAgents)
	assert.Equal(t, string(stage.Init), lastOf[event.AwaitingUserEvent](h).Stage)
}

// gatedAdvisor answers one Chat call per value sent on release.
type gatedAdvisor struct {
	fakeAdvisor
	release chan struct{}
}

func (g *gatedAdvisor) Chat(ctx context.Context, msg string, actx advisor.Context) (advisor.Response, error) {
	g.mu.Lock()
	g.msgs = append(g.msgs, msg)
	g.mu.Unlock()
	select {
	case <-g.release:
	case <-ctx.Done():
		return advisor.Response{}, ctx.Err()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, actx)
	return g.resp, g.err
}

func (g *gatedAdvisor) sent() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.msgs...)
}

func TestDriver_MessagesWaitForOutstandingAdvice(t *testing.T) {
	adv := &gatedAdvisor{
		fakeAdvisor: fakeAdvisor{resp: advisor.Response{Message: "Which agents would you like?"}},
		release:     make(chan struct{}),
	}
	h := newHarness(t, adv)
	h.d.Start()

	h.d.HandleUserInput("build me a chat app")
	h.d.HandleUserInput("with a moderator")
	require.Eventually(t, func() bool { return len(adv.sent()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "The advisor is still answering; your message will be sent next.", lastOf[event.NoticeEvent](h).Text)

	adv.release <- struct{}{}
	require.Eventually(t, func() bool {
		h.step()
		return len(eventsOf[event.AdvisoryMessageEvent](h)) == 1
	}, time.Second, 5*time.Millisecond)
	assert.True(t, h.d.Busy(), "second message is still with the advisor")
	require.Eventually(t, func() bool { return len(adv.sent()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"build me a chat app", "with a moderator"}, adv.sent())

	adv.release <- struct{}{}
	require.Eventually(t, func() bool {
		h.step()
		return len(eventsOf[event.AdvisoryMessageEvent](h)) == 2
	}, time.Second, 5*time.Millisecond)
	assert.False(t, h.d.Busy())
}

func TestDriver_AdvisorFailure(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		reconfigure bool
	}{
		{"transient falls back to local plan", errors.NewAdvisorError("timed out", nil), false},
		{"credentials disable the advisor", errors.NewReconfigurationError("invalid api key", nil), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adv := &fakeAdvisor{err: tt.err}
			h := newHarness(t, adv)
			h.d.Start()

			h.d.HandleUserInput("generate agents for a chat app")
			require.Eventually(t, func() bool {
				h.step()
				return len(eventsOf[event.AdvisoryFailedEvent](h)) > 0
			}, time.Second, 5*time.Millisecond)

			failed := lastOf[event.AdvisoryFailedEvent](h)
			assert.Equal(t, tt.reconfigure, failed.Reconfigure)
			assert.Equal(t, tt.reconfigure, h.d.NeedsReconfiguration())
			assert.False(t, h.d.Queue().Processing())

			if !tt.reconfigure {
				assert.Equal(t, stage.OriginFreeText, h.d.Cursor().Graph.Origin())
				assert.Equal(t, stage.CheckExisting, h.d.Cursor().Current)
				return
			}

			// Later messages use local heuristics until /advisor.
			h.d.HandleUserInput("build the dependency graph")
			assert.Equal(t, 1, adv.count())
			assert.Equal(t, stage.BuildGraph, h.d.Cursor().Current)

			h.d.HandleUserInput("/advisor")
			assert.False(t, h.d.NeedsReconfiguration())
		})
	}
}

func TestDriver_LocalHeuristicsWithoutAdvisor(t *testing.T) {
	h := newHarness(t, nil)
	h.d.Start()

	h.d.HandleUserInput("generate agents and build the dependency graph")

	c := h.d.Cursor()
	assert.Equal(t, []stage.ID{stage.CheckExisting, stage.GenerateAgents, stage.BuildGraph, stage.Complete}, c.Graph.Order())
	assert.False(t, c.Entered)
	assert.True(t, strings.HasPrefix(lastOf[event.AwaitingUserEvent](h).Prompt, "Plan ready"))

	h.d.HandleUserInput("next")
	assert.Equal(t, stage.CheckExisting, h.d.Cursor().Current)
	assert.True(t, h.d.Cursor().Entered)
}

func TestDriver_ChannelQuestion(t *testing.T) {
	ch := &fakeChannel{answers: make(map[string]string)}
	h := newHarness(t, nil)
	h.d.channel = ch
	h.d.Start()

	h.d.HandleChannelQuestion("q1", "planner", "Which database?")
	assert.Equal(t, "planner asks: Which database?", lastOf[event.AwaitingUserEvent](h).Prompt)

	h.d.HandleUserInput("postgres")
	assert.Equal(t, map[string]string{"q1": "postgres"}, ch.answers)
	assert.Equal(t, stage.OriginDefault, h.d.Cursor().Graph.Origin(), "answers are not treated as requests")
}

func TestDriver_NegotiateOverChannel(t *testing.T) {
	tests := []struct {
		name         string
		down         bool
		wantCmds     []string
		negotiations []string
	}{
		{"connected service negotiates", false, []string{}, []string{"chat app"}},
		{"disconnected runs the command", true, []string{"swarm negotiate --intent 'chat app'"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &fakeChannel{answers: make(map[string]string), down: tt.down}
			h := newHarness(t, nil)
			h.d.channel = ch
			h.d.SetIntent("chat app")
			h.install(stage.Negotiate, stage.Complete)

			assert.Equal(t, Advanced, h.d.AdvanceToNext())
			h.sched.Advance(time.Second)

			assert.Equal(t, tt.wantCmds, h.run.Commands())
			assert.Equal(t, tt.negotiations, ch.negotiations)
			assert.Equal(t, stage.Negotiate, h.d.Cursor().Current)
			if !tt.down {
				assert.Equal(t, "Negotiation requested from the agent service.", lastOf[event.NoticeEvent](h).Text)
			}
		})
	}
}

func TestDriver_FreeTextReachesChannelWithoutAdvisor(t *testing.T) {
	ch := &fakeChannel{answers: make(map[string]string)}
	h := newHarness(t, nil)
	h.d.channel = ch
	h.d.Start()

	h.d.HandleUserInput("negotiate a release plan")
	assert.Equal(t, []string{"negotiate a release plan"}, ch.messages)
	assert.Equal(t, "user_message", lastOf[event.ChannelMessageEvent](h).Kind)
	assert.Equal(t, stage.OriginFreeText, h.d.Cursor().Graph.Origin(), "the local plan is still built")

	ch.down = true
	h.d.HandleUserInput("and then run it")
	assert.Len(t, ch.messages, 1)
	assert.Empty(t, eventsOf[event.NoticeEvent](h), "a disconnected channel is not an error")
}

func TestDriver_ChangeContext(t *testing.T) {
	h := newHarness(t, nil, "alpha")
	h.d.Start()
	h.d.AdvanceToNext()

	dir := t.TempDir()
	h.d.ChangeContext(dir)

	assert.Zero(t, h.d.Inventory().Len())
	assert.Empty(t, lastOf[event.InventoryUpdatedEvent](h).Agents)
	changed := lastOf[event.ContextChangedEvent](h)
	assert.Equal(t, dir, changed.Dir)
	assert.Equal(t, filepath.Join(dir, "agents"), changed.AgentsDir)
	assert.Equal(t, stage.Init, h.d.Cursor().Current)
	h.sched.Advance(time.Second)
	assert.Empty(t, h.run.Commands())
}
