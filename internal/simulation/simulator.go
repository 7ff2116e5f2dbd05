// Package simulation is the caller-facing entry point for what-if runs.
// It validates the baseline, normalizes the requested interventions, and
// hands both to the propagation engine.
//
// Usage:
//
//	sim := simulation.New(sector.DefaultGraph(), propagation.DefaultConfig(), logger)
//	out, err := sim.Run(
//	    map[string]float64{"transport": 1000, "industry": 2000, "power": 3000},
//	    map[string]interface{}{"transport": -20},
//	)
package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/nvandessel/co2twin/internal/logging"
	"github.com/nvandessel/co2twin/internal/normalize"
	"github.com/nvandessel/co2twin/internal/propagation"
	"github.com/nvandessel/co2twin/internal/sector"
	"github.com/nvandessel/co2twin/internal/utils"
)

// ErrInvalidArgument is returned when the baseline is not a mapping.
var ErrInvalidArgument = errors.New("invalid argument")

// Request describes a single simulation run.
type Request struct {
	// Values is the baseline. It must be a map with string keys
	// (sector.Values, map[string]float64, map[string]interface{}, ...).
	// Entries that are not numbers count as 0.
	Values interface{}

	// Changes maps sectors to requested changes, as fractions (-0.2) or
	// percents (-20).
	Changes map[string]interface{}

	// Graph overrides the simulator's influence graph when non-nil.
	Graph *sector.Graph

	// Config overrides the simulator's cascade configuration when non-nil.
	Config *propagation.Config
}

// Outcome is the result of a simulation run.
type Outcome struct {
	RunID     string        `json:"run_id"`
	Baseline  sector.Values `json:"baseline"`
	Changes   sector.Values `json:"changes"`
	Values    sector.Values `json:"values"`
	Rounds    int           `json:"rounds"`
	Converged bool          `json:"converged"`
}

// Simulator runs simulations against a published influence graph.
// It is safe for concurrent use: the graph is immutable and swapped
// atomically by SetGraph, so a run in flight keeps the graph it started
// with.
type Simulator struct {
	graph  atomic.Pointer[sector.Graph]
	config propagation.Config
	logger *slog.Logger
}

// New creates a Simulator. A nil logger discards log output.
func New(g *sector.Graph, config propagation.Config, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Simulator{
		config: config,
		logger: logger,
	}
	s.graph.Store(g)
	return s
}

// Graph returns the currently published influence graph.
func (s *Simulator) Graph() *sector.Graph {
	return s.graph.Load()
}

// SetGraph publishes a new influence graph for subsequent runs.
func (s *Simulator) SetGraph(g *sector.Graph) {
	s.graph.Store(g)
}

// Config returns the default cascade configuration.
func (s *Simulator) Config() propagation.Config {
	return s.config
}

// Run simulates changes against values using the published graph and
// returns the resulting sector values.
func (s *Simulator) Run(values interface{}, changes map[string]interface{}) (sector.Values, error) {
	out, err := s.Simulate(Request{Values: values, Changes: changes})
	if err != nil {
		return nil, err
	}
	return out.Values, nil
}

// Simulate performs a full run described by req.
func (s *Simulator) Simulate(req Request) (*Outcome, error) {
	baseline, err := coerceValues(req.Values)
	if err != nil {
		return nil, err
	}

	g := req.Graph
	if g == nil {
		g = s.graph.Load()
	}
	config := s.config
	if req.Config != nil {
		config = *req.Config
	}

	changes := normalize.Changes(req.Changes)
	result := propagation.NewEngine(g, config).Run(baseline, changes)

	runID := uuid.NewString()
	logger := s.logger.With("run_id", runID)
	for _, r := range result.Rounds {
		logger.Log(context.Background(), logging.LevelTrace, "cascade round",
			"round", r.Index,
			"damping", r.Damping,
			"max_effect", r.MaxEffect,
			"frontier", len(r.Frontier))
	}
	logger.Debug("simulation complete",
		"sectors", len(result.Values),
		"changes", len(changes),
		"edges", g.Len(),
		"rounds", len(result.Rounds),
		"converged", result.Converged)

	return &Outcome{
		RunID:     runID,
		Baseline:  baseline,
		Changes:   changes,
		Values:    result.Values,
		Rounds:    len(result.Rounds),
		Converged: result.Converged,
	}, nil
}

// coerceValues copies a string-keyed map into sector.Values. Non-numeric
// entries become 0. Anything that is not a string-keyed map is rejected.
func coerceValues(v interface{}) (sector.Values, error) {
	switch m := v.(type) {
	case sector.Values:
		return m.Clone(), nil
	case map[string]float64:
		return sector.Values(m).Clone(), nil
	case map[string]interface{}:
		out := make(sector.Values, len(m))
		for k, val := range m {
			out[k] = utils.ToFloat64(val)
		}
		return out, nil
	}

	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("%w: values must be a mapping of sector to number, got %T", ErrInvalidArgument, v)
	}

	out := make(sector.Values, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = utils.ToFloat64(iter.Value().Interface())
	}
	return out, nil
}
