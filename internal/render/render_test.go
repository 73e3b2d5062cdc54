package render

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Iron-Ham/stagehand/internal/event"
	"github.com/Iron-Ham/stagehand/internal/logstream"
	"github.com/Iron-Ham/stagehand/internal/stage"
)

func TestInstruction_Plain(t *testing.T) {
	r := NewPlain(0)
	tests := []struct {
		name string
		in   logstream.Instruction
		want string
	}{
		{
			name: "banner",
			in:   logstream.Instruction{Kind: logstream.KindBanner, Phase: logstream.PhaseProposing, Text: "Proposals"},
			want: "== Proposals ==",
		},
		{
			name: "body is indented",
			in:   logstream.Instruction{Kind: logstream.KindBody, Category: logstream.CategoryProposal, Text: "planner: split the API"},
			want: "  planner: split the API",
		},
		{
			name: "passthrough is verbatim",
			in:   logstream.Instruction{Kind: logstream.KindPassthrough, Category: logstream.CategoryPlain, Text: "  raw\toutput"},
			want: "  raw\toutput",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Instruction(tt.in); got != tt.want {
				t.Errorf("Instruction() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInstruction_Truncates(t *testing.T) {
	r := NewPlain(10)
	got := r.Instruction(logstream.Instruction{Kind: logstream.KindBody, Text: strings.Repeat("x", 40)})
	if len(got) > 10 {
		t.Errorf("Instruction() = %q, want at most 10 columns", got)
	}
}

func TestEvent_Plain(t *testing.T) {
	r := NewPlain(0)
	tests := []struct {
		name string
		ev   event.Event
		want []string
	}{
		{
			name: "auto stage entry",
			ev:   event.NewStageEnteredEvent("check_existing", "generate_agents", "Generate agents", "", true),
			want: []string{"Generate agents (auto)"},
		},
		{
			name: "awaiting user",
			ev:   event.NewAwaitingUserEvent("init", "Which agents?\nPick any."),
			want: []string{"? Which agents?", "? Pick any."},
		},
		{
			name: "plan",
			ev:   event.NewPlanCompiledEvent("", "plan", []string{"check_existing", "complete"}),
			want: []string{"Plan (plan): check_existing → complete"},
		},
		{
			name: "failure shows detail",
			ev:   event.NewCommandFinishedEvent("t1", "swarm build", false, 2, "boom"),
			want: []string{"✗ swarm build (exit 2)", "  boom"},
		},
		{
			name: "channel retry",
			ev:   event.NewChannelStateEvent("connecting", 2, 2*time.Second, "refused"),
			want: []string{"channel connecting (attempt 2, retry in 2s): refused"},
		},
		{
			name: "empty inventory",
			ev:   event.NewInventoryUpdatedEvent(nil),
			want: []string{"no agents found"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Event(tt.ev)
			if !ok {
				t.Fatal("Event() reported no rendering")
			}
			if strings.Join(got, "\n") != strings.Join(tt.want, "\n") {
				t.Errorf("Event() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSteps(t *testing.T) {
	g := stage.MustGraph("chat app", stage.OriginPlan, stage.Chain(stage.CheckExisting, stage.Complete)...)
	lines := NewPlain(0).Steps(g, g.Steps(stage.Context{AgentsDir: "agents"}))

	joined := strings.Join(lines, "\n")
	for _, want := range []string{"Plan (plan)", "intent: chat app", "1. check_existing", "$ ls -1 agents", "2. complete"} {
		if !strings.Contains(joined, want) {
			t.Errorf("Steps() missing %q in:\n%s", want, joined)
		}
	}
}

func TestSummary(t *testing.T) {
	got := NewPlain(0).Summary(logstream.Summary{Rounds: 2, Commits: 1, Completed: true})
	if !strings.HasPrefix(got, "completed rounds=2") || !strings.Contains(got, "commits=1") {
		t.Errorf("Summary() = %q", got)
	}
}

func TestTerminalWidth_NotATerminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()
	if got := TerminalWidth(f); got != DefaultWidth {
		t.Errorf("TerminalWidth() = %d, want %d", got, DefaultWidth)
	}
	if got := TerminalWidth(nil); got != DefaultWidth {
		t.Errorf("TerminalWidth(nil) = %d, want %d", got, DefaultWidth)
	}
}
