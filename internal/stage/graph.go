package stage

import (
	"fmt"
	"slices"
	"sync"
)

// Origin records how a Graph was produced.
type Origin string

const (
	OriginDefault  Origin = "default"
	OriginPlan     Origin = "plan"
	OriginFreeText Origin = "free_text"
)

// Graph is an immutable set of stages plus the order a plan intends to
// traverse them.
type Graph struct {
	stages map[ID]*Stage
	order  []ID
	intent string
	origin Origin
}

// NewGraph builds a Graph whose order is the order of stages. It rejects
// duplicate IDs and Next links that leave the graph.
func NewGraph(intent string, origin Origin, stages ...*Stage) (*Graph, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("graph has no stages")
	}

	g := &Graph{
		stages: make(map[ID]*Stage, len(stages)),
		order:  make([]ID, 0, len(stages)),
		intent: intent,
		origin: origin,
	}
	for _, s := range stages {
		if _, dup := g.stages[s.ID]; dup {
			return nil, fmt.Errorf("duplicate stage %q", s.ID)
		}
		g.stages[s.ID] = s
		g.order = append(g.order, s.ID)
	}
	for _, s := range stages {
		if s.Next != "" {
			if _, ok := g.stages[s.Next]; !ok {
				return nil, fmt.Errorf("stage %q links to unknown stage %q", s.ID, s.Next)
			}
		}
	}
	return g, nil
}

// MustGraph is NewGraph for statically known stage sets.
func MustGraph(intent string, origin Origin, stages ...*Stage) *Graph {
	g, err := NewGraph(intent, origin, stages...)
	if err != nil {
		panic(err)
	}
	return g
}

// Get looks up a stage by ID.
func (g *Graph) Get(id ID) (*Stage, bool) {
	s, ok := g.stages[id]
	return s, ok
}

// Contains reports whether id is part of the graph.
func (g *Graph) Contains(id ID) bool {
	_, ok := g.stages[id]
	return ok
}

// Order returns a copy of the intended traversal order.
func (g *Graph) Order() []ID { return slices.Clone(g.order) }

// First returns the first stage in traversal order.
func (g *Graph) First() ID { return g.order[0] }

// Intent returns the intent the graph was compiled for.
func (g *Graph) Intent() string { return g.intent }

// Origin reports how the graph was produced.
func (g *Graph) Origin() Origin { return g.origin }

// Len returns the number of stages.
func (g *Graph) Len() int { return len(g.order) }

// IndexOf returns the position of id in the traversal order, or -1.
func (g *Graph) IndexOf(id ID) int { return slices.Index(g.order, id) }

// Step is a stage with its action evaluated, used for previews and
// comparisons.
type Step struct {
	ID          ID
	Label       string
	Description string
	AutoAdvance bool
	Next        ID
	Action      ActionResult
}

// Steps evaluates every stage action against ctx in traversal order.
func (g *Graph) Steps(ctx Context) []Step {
	steps := make([]Step, 0, len(g.order))
	for _, id := range g.order {
		s := g.stages[id]
		steps = append(steps, Step{
			ID:          s.ID,
			Label:       s.Label,
			Description: s.Description,
			AutoAdvance: s.AutoAdvance,
			Next:        s.Next,
			Action:      s.Run(ctx),
		})
	}
	return steps
}

// Chain links stages in the given order, leaving the last one terminal.
func Chain(ids ...ID) []*Stage {
	stages := make([]*Stage, 0, len(ids))
	for i, id := range ids {
		var next ID
		if i+1 < len(ids) {
			next = ids[i+1]
		}
		stages = append(stages, New(id, next))
	}
	return stages
}

var defaultGraph = sync.OnceValue(func() *Graph {
	return MustGraph("", OriginDefault, Chain(CanonicalOrder()...)...)
})

// Default returns the shared seven-stage pipeline used when no plan is
// active.
func Default() *Graph {
	return defaultGraph()
}
