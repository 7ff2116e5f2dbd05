package sector

import (
	"fmt"
	"math"
)

// AmplificationLimit is the conventional upper bound on |coefficient|.
// Larger coefficients are allowed but flagged by ValidateGraph.
const AmplificationLimit = 0.15

// Issue kinds reported by ValidateGraph.
const (
	IssueSelfReference = "self-reference"
	IssueCycle         = "cycle"
	IssueAmplifying    = "amplifying"
	IssueNonFinite     = "non-finite"
)

// ValidationIssue describes a questionable edge in an influence graph.
type ValidationIssue struct {
	Source      string   `json:"source"`
	Target      string   `json:"target"`
	Coefficient float64  `json:"coefficient"`
	Issue       string   `json:"issue"`
	Path        []string `json:"path,omitempty"` // cycle members, for IssueCycle
}

// String returns a human-readable description of the issue.
func (i ValidationIssue) String() string {
	switch i.Issue {
	case IssueCycle:
		return fmt.Sprintf("%s: %s -> %s closes %v", i.Issue, i.Source, i.Target, i.Path)
	default:
		return fmt.Sprintf("%s: %s -> %s (%g)", i.Issue, i.Source, i.Target, i.Coefficient)
	}
}

// ValidateGraph reports edges that are legal but likely to surprise:
//   - self-references (a sector feeding itself)
//   - cycles between two or more sectors
//   - coefficients with |c| >= limit
//   - NaN or infinite coefficients
//
// The engine runs any graph; damping and the iteration cap keep cycles
// bounded. A limit <= 0 disables the amplification check.
func ValidateGraph(g *Graph, limit float64) []ValidationIssue {
	var issues []ValidationIssue
	adjacency := make(map[string][]string)

	for _, e := range g.Edges() {
		switch {
		case math.IsNaN(e.Coefficient) || math.IsInf(e.Coefficient, 0):
			issues = append(issues, ValidationIssue{Source: e.Source, Target: e.Target, Coefficient: e.Coefficient, Issue: IssueNonFinite})
		case limit > 0 && math.Abs(e.Coefficient) >= limit:
			issues = append(issues, ValidationIssue{Source: e.Source, Target: e.Target, Coefficient: e.Coefficient, Issue: IssueAmplifying})
		}

		if e.Source == e.Target {
			issues = append(issues, ValidationIssue{Source: e.Source, Target: e.Target, Coefficient: e.Coefficient, Issue: IssueSelfReference})
			continue
		}
		adjacency[e.Source] = append(adjacency[e.Source], e.Target)
	}

	for _, cycle := range detectCycles(g.Sources(), adjacency) {
		c, _ := g.Coefficient(cycle[len(cycle)-1], cycle[0])
		issues = append(issues, ValidationIssue{
			Source:      cycle[len(cycle)-1],
			Target:      cycle[0],
			Coefficient: c,
			Issue:       IssueCycle,
			Path:        cycle,
		})
	}

	return issues
}

// detectCycles finds back edges with a colouring DFS. Each returned path
// starts at the node the back edge points to and ends at the node it leaves
// from. Roots are visited in the given order.
func detectCycles(roots []string, adjacency map[string][]string) [][]string {
	// 0 = unvisited, 1 = on the stack, 2 = done
	color := make(map[string]int)
	var stack []string
	var cycles [][]string

	var dfs func(node string)
	dfs = func(node string) {
		color[node] = 1
		stack = append(stack, node)

		for _, next := range adjacency[node] {
			switch color[next] {
			case 1:
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == next {
						cycles = append(cycles, append([]string(nil), stack[i:]...))
						break
					}
				}
			case 0:
				dfs(next)
			}
		}

		stack = stack[:len(stack)-1]
		color[node] = 2
	}

	for _, root := range roots {
		if color[root] == 0 {
			dfs(root)
		}
	}
	return cycles
}
