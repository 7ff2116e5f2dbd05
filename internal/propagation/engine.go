// Package propagation implements the cascade engine for sector
// interventions. A one-time direct change is applied to each requested
// sector, and the resulting absolute deltas then spread through the
// influence graph in damped rounds until they fall below a tolerance or an
// iteration cap is reached.
package propagation

import (
	"math"
	"sort"

	"github.com/nvandessel/co2twin/internal/sector"
)

// Config holds tunable parameters for the cascade.
type Config struct {
	// MaxIterations caps the number of cascade rounds. Default: 10.
	// Zero or negative applies the direct changes only.
	MaxIterations int

	// Tolerance is the absolute delta below which effects are dropped and
	// at which the cascade is considered converged. Default: 1e-6.
	Tolerance float64

	// InitialDamping scales every effect in the first round. Default: 0.8.
	InitialDamping float64

	// DampingDecay multiplies the damping after each round, so round n
	// uses InitialDamping * DampingDecay^(n-1). Default: 0.9.
	DampingDecay float64
}

// DefaultConfig returns the default cascade configuration.
func DefaultConfig() Config {
	return Config{
		MaxIterations:  10,
		Tolerance:      1e-6,
		InitialDamping: 0.8,
		DampingDecay:   0.9,
	}
}

// Round records one cascade round.
type Round struct {
	Index     int           // 1-based
	Damping   float64       // damping factor applied in this round
	MaxEffect float64       // largest |effect| applied in this round
	Frontier  sector.Values // deltas produced for the next round
}

// Result is the outcome of a propagation run.
type Result struct {
	// Values covers every sector in the run's universe.
	Values sector.Values

	// Direct holds the absolute delta applied to each requested sector
	// before any cascade.
	Direct sector.Values

	// Rounds lists the cascade rounds actually performed.
	Rounds []Round

	// Converged is false only when the iteration cap stopped the cascade.
	Converged bool
}

// Engine runs the cascade over a fixed influence graph.
// The engine is stateless: all mutable state lives in maps created during
// each call, so one Engine may serve concurrent callers.
type Engine struct {
	graph  *sector.Graph
	config Config
}

// NewEngine creates a cascade engine. A nil graph is an empty graph.
func NewEngine(g *sector.Graph, config Config) *Engine {
	return &Engine{
		graph:  g,
		config: config,
	}
}

// Graph returns the engine's influence graph.
func (e *Engine) Graph() *sector.Graph { return e.graph }

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.config }

// Propagate applies changes (decimal fractions) to values and returns the
// resulting values. Neither argument is modified.
func (e *Engine) Propagate(values, changes sector.Values) sector.Values {
	return e.Run(values, changes).Values
}

// Propagate is a one-shot helper around NewEngine(g, config).Propagate.
func Propagate(values, changes sector.Values, g *sector.Graph, config Config) sector.Values {
	return NewEngine(g, config).Propagate(values, changes)
}

// Run applies changes to values and cascades the effects, returning the
// final values together with a trace of the rounds.
func (e *Engine) Run(values, changes sector.Values) Result {
	tol := e.config.Tolerance

	// Step 1: Build the working map over the full sector universe.
	updated := values.Clone()
	for s := range changes {
		if _, ok := updated[s]; !ok {
			updated[s] = 0
		}
	}
	for _, s := range e.graph.Sectors() {
		if _, ok := updated[s]; !ok {
			updated[s] = 0
		}
	}

	// Step 2: Direct, one-time application of the requested changes.
	direct := make(sector.Values, len(changes))
	for s, p := range changes {
		delta := updated[s] * p
		direct[s] = delta
		updated[s] += delta
	}

	result := Result{
		Values:    updated,
		Direct:    direct,
		Converged: true,
	}

	// Step 3: Cascade rounds.
	frontier := direct.Clone()
	damping := e.config.InitialDamping

	for i := 0; i < e.config.MaxIterations; i++ {
		if len(frontier) == 0 {
			return result
		}

		next := make(sector.Values)
		maxEffect := 0.0

		// Visit sources in sorted order so summation order, and therefore
		// the floating point result, is reproducible.
		for _, src := range frontier.Keys() {
			delta := frontier[src]
			if math.Abs(delta) < tol {
				continue
			}
			for _, edge := range e.graph.Out(src) {
				effect := delta * edge.Coefficient * damping
				if math.Abs(effect) < tol {
					continue
				}
				updated[edge.Target] += effect
				next[edge.Target] += effect
				maxEffect = math.Max(maxEffect, math.Abs(effect))
			}
		}

		result.Rounds = append(result.Rounds, Round{
			Index:     i + 1,
			Damping:   damping,
			MaxEffect: maxEffect,
			Frontier:  next,
		})

		if maxEffect <= tol || len(next) == 0 {
			return result
		}
		frontier = next
		damping *= e.config.DampingDecay
	}

	// Falling out of the loop means the iteration cap stopped the cascade
	// with deltas still pending.
	result.Converged = len(frontier) == 0
	return result
}

// Universe returns the sorted set of sectors a run over values and changes
// would cover with graph g.
func Universe(values, changes sector.Values, g *sector.Graph) []string {
	set := make(map[string]struct{}, len(values)+len(changes))
	for s := range values {
		set[s] = struct{}{}
	}
	for s := range changes {
		set[s] = struct{}{}
	}
	for _, s := range g.Sectors() {
		set[s] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
