package sector

import (
	"sort"
)

// Edge is a directed influence from Source to Target. A unit change in
// Source induces Coefficient units of change in Target.
type Edge struct {
	Source      string  `json:"source" yaml:"source"`
	Target      string  `json:"target" yaml:"target"`
	Coefficient float64 `json:"coefficient" yaml:"coefficient"`
}

// Graph is an immutable sparse influence graph. Outgoing edges are held per
// source and sorted by target, so every traversal visits them in the same
// order. A nil *Graph is a valid empty graph.
//
// There are no mutating methods. Callers that need a different graph build
// a new one and publish it.
type Graph struct {
	out     map[string][]Edge
	sources []string
	sectors []string
	edges   int
}

// NewGraph builds a Graph from a source -> target -> coefficient mapping.
// The mapping is copied; later changes to m do not affect the graph.
// A source with an empty (or nil) target map is kept as a node.
func NewGraph(m map[string]map[string]float64) *Graph {
	g := &Graph{out: make(map[string][]Edge, len(m))}
	nodes := make(map[string]struct{})

	for src, targets := range m {
		nodes[src] = struct{}{}
		edges := make([]Edge, 0, len(targets))
		for tgt, c := range targets {
			nodes[tgt] = struct{}{}
			edges = append(edges, Edge{Source: src, Target: tgt, Coefficient: c})
		}
		sort.Slice(edges, func(i, j int) bool {
			return edges[i].Target < edges[j].Target
		})
		g.out[src] = edges
		g.sources = append(g.sources, src)
		g.edges += len(edges)
	}
	sort.Strings(g.sources)

	g.sectors = make([]string, 0, len(nodes))
	for n := range nodes {
		g.sectors = append(g.sectors, n)
	}
	sort.Strings(g.sectors)

	return g
}

// DefaultGraph returns the built-in cascade rules. Each call returns a new
// value.
func DefaultGraph() *Graph {
	return NewGraph(map[string]map[string]float64{
		"transport":   {"industry": -0.05, "power": -0.02},
		"industry":    {"power": -0.08},
		"residential": {"power": -0.03},
		"power":       {},
	})
}

// Out returns the outgoing edges of source, sorted by target. The returned
// slice is shared with the graph and must not be modified.
func (g *Graph) Out(source string) []Edge {
	if g == nil {
		return nil
	}
	return g.out[source]
}

// Sources returns every node that appears as a source key, sorted.
func (g *Graph) Sources() []string {
	if g == nil {
		return nil
	}
	return append([]string(nil), g.sources...)
}

// Sectors returns every node in the graph (sources and targets), sorted.
func (g *Graph) Sectors() []string {
	if g == nil {
		return nil
	}
	return append([]string(nil), g.sectors...)
}

// Edges returns a copy of all edges, ordered by source then target.
func (g *Graph) Edges() []Edge {
	if g == nil {
		return nil
	}
	all := make([]Edge, 0, g.edges)
	for _, src := range g.sources {
		all = append(all, g.out[src]...)
	}
	return all
}

// Len returns the number of edges.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return g.edges
}

// Coefficient returns the coefficient of source -> target and whether the
// edge exists.
func (g *Graph) Coefficient(source, target string) (float64, bool) {
	for _, e := range g.Out(source) {
		if e.Target == target {
			return e.Coefficient, true
		}
	}
	return 0, false
}

// Map returns the graph as a freshly allocated source -> target ->
// coefficient mapping.
func (g *Graph) Map() map[string]map[string]float64 {
	if g == nil {
		return map[string]map[string]float64{}
	}
	m := make(map[string]map[string]float64, len(g.sources))
	for _, src := range g.sources {
		targets := make(map[string]float64, len(g.out[src]))
		for _, e := range g.out[src] {
			targets[e.Target] = e.Coefficient
		}
		m[src] = targets
	}
	return m
}
