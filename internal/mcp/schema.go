package mcp

import (
	"github.com/nvandessel/co2twin/internal/report"
	"github.com/nvandessel/co2twin/internal/sector"
)

// SimulateInput defines the input for the co2_simulate tool.
type SimulateInput struct {
	City          string                 `json:"city,omitempty" jsonschema:"Preset or imported city name. Ignored when sectors is given"`
	Sectors       map[string]interface{} `json:"sectors,omitempty" jsonschema:"Inline baseline as sector name to emissions. Takes precedence over city"`
	Changes       map[string]interface{} `json:"changes,omitempty" jsonschema:"Requested change per sector as a fraction (-0.2) or a percent (-20)"`
	MaxIterations int                    `json:"max_iterations,omitempty" jsonschema:"Cascade round limit (default from config)"`
	Tolerance     float64                `json:"tolerance,omitempty" jsonschema:"Smallest effect that keeps a cascade going (default from config)"`
}

// SimulateOutput defines the output for the co2_simulate tool.
type SimulateOutput struct {
	RunID     string         `json:"run_id" jsonschema:"Identifier of this run, also present in server logs"`
	City      string         `json:"city" jsonschema:"City the baseline belongs to"`
	Rows      []report.Row   `json:"rows" jsonschema:"Per-sector comparison of baseline and simulated emissions"`
	Summary   report.Summary `json:"summary" jsonschema:"Totals across all sectors"`
	Text      string         `json:"text" jsonschema:"Short narrative summary"`
	Values    sector.Values  `json:"values" jsonschema:"Simulated emissions per sector, including sectors reached only by the cascade"`
	Rounds    int            `json:"rounds" jsonschema:"Number of cascade rounds run"`
	Converged bool           `json:"converged" jsonschema:"False when the round limit stopped a cascade that was still moving"`
}

// CitiesInput defines the input for the co2_cities tool.
type CitiesInput struct{}

// CitiesOutput defines the output for the co2_cities tool.
type CitiesOutput struct {
	Presets []string `json:"presets" jsonschema:"Preset datasets shipped in the data directory"`
	Stored  []string `json:"stored" jsonschema:"Datasets imported into the local library"`
	Count   int      `json:"count" jsonschema:"Total number of cities"`
}

// GraphInput defines the input for the co2_graph tool.
type GraphInput struct {
	Format string `json:"format,omitempty" jsonschema:"Output format: dot or json (default json)"`
	City   string `json:"city,omitempty" jsonschema:"Annotate nodes with this city's baseline values"`
}

// GraphOutput defines the output for the co2_graph tool.
type GraphOutput struct {
	Format    string      `json:"format" jsonschema:"Format of the graph field"`
	Graph     interface{} `json:"graph" jsonschema:"Rendered influence graph"`
	NodeCount int         `json:"node_count" jsonschema:"Number of sectors"`
	EdgeCount int         `json:"edge_count" jsonschema:"Number of influence edges"`
}

// ValidateGraphInput defines the input for the co2_validate_graph tool.
type ValidateGraphInput struct {
	Graph              map[string]map[string]float64 `json:"graph,omitempty" jsonschema:"Graph to check as source to target to coefficient. Defaults to the published graph"`
	AmplificationLimit *float64                      `json:"amplification_limit,omitempty" jsonschema:"Flag coefficients at or above this magnitude (default 0.15). 0 or less disables the check"`
}

// ValidateGraphOutput defines the output for the co2_validate_graph tool.
type ValidateGraphOutput struct {
	Valid      bool                     `json:"valid" jsonschema:"True when no issues were found"`
	IssueCount int                      `json:"issue_count" jsonschema:"Number of issues"`
	Issues     []sector.ValidationIssue `json:"issues,omitempty" jsonschema:"Questionable edges"`
	Message    string                   `json:"message" jsonschema:"Human-readable summary"`
}
