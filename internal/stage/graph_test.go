package stage

import (
	"reflect"
	"testing"
)

func TestDefault(t *testing.T) {
	g := Default()

	if g != Default() {
		t.Error("Default() should return the shared graph")
	}
	if !reflect.DeepEqual(g.Order(), CanonicalOrder()) {
		t.Errorf("Order() = %v, want canonical order", g.Order())
	}
	if g.First() != Init {
		t.Errorf("First() = %q, want init", g.First())
	}

	last, _ := g.Get(Complete)
	if !last.Terminal() {
		t.Error("complete should be terminal")
	}
	for _, id := range g.Order()[:g.Len()-1] {
		s, _ := g.Get(id)
		if s.Terminal() {
			t.Errorf("%s should not be terminal", id)
		}
	}
}

func TestNewGraph_Validation(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		if _, err := NewGraph("", OriginPlan); err == nil {
			t.Error("expected error for empty graph")
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		if _, err := NewGraph("", OriginPlan, New(Init, ""), New(Init, "")); err == nil {
			t.Error("expected error for duplicate stage")
		}
	})

	t.Run("dangling next", func(t *testing.T) {
		if _, err := NewGraph("", OriginPlan, New(Init, BuildGraph)); err == nil {
			t.Error("expected error for next outside the graph")
		}
	})
}

func TestGraph_OrderIsCopied(t *testing.T) {
	g := Default()
	order := g.Order()
	order[0] = "mutated"
	if g.First() != Init {
		t.Error("mutating Order() result should not affect the graph")
	}
}

func TestGraph_Steps(t *testing.T) {
	g := MustGraph("demo", OriginPlan, Chain(BuildGraph, Negotiate, Complete)...)
	steps := g.Steps(Context{Tool: "hive", Intent: "demo"})

	if len(steps) != 3 {
		t.Fatalf("len(steps) = %d, want 3", len(steps))
	}
	if steps[0].Action.Command != "hive build" || !steps[0].Action.FollowUp {
		t.Errorf("build step = %+v", steps[0])
	}
	if steps[1].Action.Command != "hive negotiate --intent demo" {
		t.Errorf("negotiate command = %q", steps[1].Action.Command)
	}
	if steps[2].Next != "" {
		t.Error("last chained step should be terminal")
	}
	if g.IndexOf(Negotiate) != 1 || g.IndexOf(Init) != -1 {
		t.Error("IndexOf returned unexpected positions")
	}
}
