package workspace

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nvandessel/co2twin/internal/dataset"
	"github.com/nvandessel/co2twin/internal/report"
	"github.com/nvandessel/co2twin/internal/sector"
	"github.com/nvandessel/co2twin/internal/simulation"
)

// RunRequest describes a city-level simulation.
type RunRequest struct {
	// City names a preset or stored dataset. Ignored when Dataset is set.
	City    string
	Dataset *dataset.Dataset

	Changes map[string]interface{}

	// Graph overrides the simulator's graph when non-nil.
	Graph *sector.Graph

	// MaxIterations and Tolerance override the cascade settings when
	// positive.
	MaxIterations int
	Tolerance     float64
}

// RunResult is a simulation together with its comparison report.
type RunResult struct {
	RunID     string         `json:"run_id"`
	City      string         `json:"city"`
	Rows      []report.Row   `json:"rows"`
	Summary   report.Summary `json:"summary"`
	Text      string         `json:"text"`
	Values    sector.Values  `json:"values"`
	Rounds    int            `json:"rounds"`
	Converged bool           `json:"converged"`
}

// Run resolves the dataset, runs it through sim, and builds the report.
func (w *Workspace) Run(ctx context.Context, sim *simulation.Simulator, req RunRequest) (*RunResult, error) {
	ds := req.Dataset
	if ds == nil {
		if req.City == "" {
			return nil, fmt.Errorf("%w: a city or dataset is required", simulation.ErrInvalidArgument)
		}
		var err error
		ds, err = w.Dataset(ctx, req.City)
		if err != nil {
			return nil, err
		}
	}

	simReq := simulation.Request{
		Values:  ds.Sectors,
		Changes: req.Changes,
		Graph:   req.Graph,
	}
	if req.MaxIterations > 0 || req.Tolerance > 0 {
		cfg := sim.Config()
		if req.MaxIterations > 0 {
			cfg.MaxIterations = req.MaxIterations
		}
		if req.Tolerance > 0 {
			cfg.Tolerance = req.Tolerance
		}
		simReq.Config = &cfg
	}

	out, err := sim.Simulate(simReq)
	if err != nil {
		return nil, err
	}

	order := ds.OrderedSectors()
	rows := report.Compare(out.Baseline, out.Values, order)
	summary := report.Summarize(rows)
	summary.PerSector = nil

	w.Logger.Info("simulation run",
		"run_id", out.RunID,
		"city", ds.City,
		"sectors", len(rows),
		"rounds", out.Rounds,
		"converged", out.Converged)

	return &RunResult{
		RunID:     out.RunID,
		City:      ds.City,
		Rows:      rows,
		Summary:   summary,
		Text:      report.Text(out.Baseline, out.Values, order),
		Values:    out.Values,
		Rounds:    out.Rounds,
		Converged: out.Converged,
	}, nil
}

// InlineDataset builds a dataset from a caller-supplied sectors object,
// read the same way preset files are so sector order and value coercion
// match. A sectors value that is not an object is an invalid argument.
func InlineDataset(city string, sectors json.RawMessage) (*dataset.Dataset, error) {
	doc, err := json.Marshal(map[string]interface{}{
		"city":    city,
		"sectors": sectors,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", simulation.ErrInvalidArgument, err)
	}
	ds, err := dataset.Parse(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", simulation.ErrInvalidArgument, err)
	}
	return ds, nil
}
