package stage

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  ID
		known bool
	}{
		{"init", Init, true},
		{"  Check Existing ", CheckExisting, true},
		{"check-existing", CheckExisting, true},
		{"generate", GenerateAgents, true},
		{"Create Agents", GenerateAgents, true},
		{"build", BuildGraph, true},
		{"RUN", RunRuntime, true},
		{"negotiation", Negotiate, true},
		{"deploy to prod", ID("deploy_to_prod"), false},
		{"", ID(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, known := Normalize(tt.input)
			if got != tt.want || known != tt.known {
				t.Errorf("Normalize(%q) = (%q, %v), want (%q, %v)", tt.input, got, known, tt.want, tt.known)
			}
		})
	}
}

func TestActionResult_Kind(t *testing.T) {
	tests := []struct {
		name   string
		action ActionResult
		want   ActionKind
	}{
		{"prompt only", PromptOnly("hi"), ActionNone},
		{"await input", AwaitInput("?"), ActionNone},
		{"single", Single("", "swarm build", true), ActionSingle},
		{"list", List("", []string{"a", "b"}, true), ActionList},
		{"list of one collapses", List("", []string{"a"}, true), ActionSingle},
		{"empty list", List("", nil, true), ActionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.action.Kind(); got != tt.want {
				t.Errorf("Kind() = %v, want %v", got, tt.want)
			}
			if err := tt.action.Validate(); err != nil {
				t.Errorf("Validate() = %v", err)
			}
		})
	}

	bad := ActionResult{Command: "a", Commands: []string{"b"}}
	if bad.Validate() == nil {
		t.Error("Validate() should reject a result with both command shapes")
	}
}

func TestList_CopiesInput(t *testing.T) {
	cmds := []string{"a", "b"}
	a := List("", cmds, true)
	cmds[0] = "mutated"
	if a.Commands[0] != "a" {
		t.Error("List should not alias the caller's slice")
	}
}

func TestCanonicalActions(t *testing.T) {
	ctx := Context{Tool: "swarm", AgentsDir: "agents"}

	t.Run("check probes the agents dir", func(t *testing.T) {
		a := New(CheckExisting, GenerateAgents).Run(ctx)
		if a.Command != "ls -1 agents" || !a.AutoRun {
			t.Errorf("check action = %+v", a)
		}
	})

	t.Run("check honors a configured probe", func(t *testing.T) {
		c := ctx
		c.ProbeCommand = "swarm list"
		if a := New(CheckExisting, "").Run(c); a.Command != "swarm list" {
			t.Errorf("Command = %q, want %q", a.Command, "swarm list")
		}
	})

	t.Run("generate without names or intent waits", func(t *testing.T) {
		a := New(GenerateAgents, BuildGraph).Run(ctx)
		if !a.RequiresUserInput || a.Kind() != ActionNone {
			t.Errorf("generate action = %+v", a)
		}
	})

	t.Run("generate with names lists one command each", func(t *testing.T) {
		c := ctx
		c.Agents = []string{"Planner", "Code Reviewer"}
		a := New(GenerateAgents, BuildGraph).Run(c)
		want := []string{"swarm generate agent Planner", "swarm generate agent 'Code Reviewer'"}
		if !reflect.DeepEqual(a.Commands, want) {
			t.Errorf("Commands = %q, want %q", a.Commands, want)
		}
	})

	t.Run("build flags follow-up only before negotiate", func(t *testing.T) {
		if a := New(BuildGraph, Negotiate).Run(ctx); !a.FollowUp {
			t.Error("build followed by negotiate should set FollowUp")
		}
		if a := New(BuildGraph, RunRuntime).Run(ctx); a.FollowUp {
			t.Error("build followed by run should not set FollowUp")
		}
	})

	t.Run("negotiate streams and quotes intent", func(t *testing.T) {
		c := ctx
		c.Intent = "a todo app, with auth"
		a := New(Negotiate, RunRuntime).Run(c)
		if a.Command != "swarm negotiate --intent 'a todo app, with auth'" || !a.Streaming {
			t.Errorf("negotiate action = %+v", a)
		}
	})

	t.Run("quote escapes single quotes", func(t *testing.T) {
		if got := shellQuote("it's"); got != `'it'\''s'` {
			t.Errorf("shellQuote = %q", got)
		}
	})
}

func TestSynthesized(t *testing.T) {
	s := New(ID("deploy"), Complete)
	if s.AutoAdvance {
		t.Error("synthesized stage must not auto-advance")
	}
	if s.Label != "Deploy" {
		t.Errorf("Label = %q, want Deploy", s.Label)
	}
	a := s.Run(Context{})
	if !a.RequiresUserInput || a.Kind() != ActionNone {
		t.Errorf("synthesized action = %+v, want await input without command", a)
	}
}

func TestStage_WithNext(t *testing.T) {
	s := New(BuildGraph, Negotiate)
	c := s.WithNext(Complete)
	if s.Next != Negotiate || c.Next != Complete {
		t.Error("WithNext should copy, not mutate")
	}
}
