package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/co2twin/internal/ratelimit"
	"github.com/nvandessel/co2twin/internal/sector"
	"github.com/nvandessel/co2twin/internal/visualization"
	"github.com/nvandessel/co2twin/internal/workspace"
)

const (
	graphResourceURI  = "co2twin://graph"
	citiesResourceURI = "co2twin://cities"
)

// registerTools registers all co2twin MCP tools with the server.
func (s *Server) registerTools() error {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "co2_simulate",
		Description: "Simulate sector-level CO2 interventions for a city and cascade their effects through the influence graph",
	}, s.handleSimulate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "co2_cities",
		Description: "List the preset and imported city datasets available to co2_simulate",
	}, s.handleCities)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "co2_graph",
		Description: "Render the sector influence graph in DOT (Graphviz) or JSON format",
	}, s.handleGraph)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "co2_validate_graph",
		Description: "Check an influence graph for self-references, cycles, amplifying and non-finite coefficients",
	}, s.handleValidateGraph)

	return nil
}

// registerResources registers MCP resources for auto-loading into context.
func (s *Server) registerResources() error {
	s.server.AddResource(&sdk.Resource{
		URI:         graphResourceURI,
		Name:        "co2twin-influence-graph",
		Description: "The sector influence graph simulations currently run against.",
		MIMEType:    "text/markdown",
	}, s.handleGraphResource)

	s.server.AddResource(&sdk.Resource{
		URI:         citiesResourceURI,
		Name:        "co2twin-cities",
		Description: "City datasets available for simulation.",
		MIMEType:    "text/markdown",
	}, s.handleCitiesResource)

	return nil
}

// handleGraphResource returns the published graph as a markdown edge table.
func (s *Server) handleGraphResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	g := s.sim.Graph()

	var sb strings.Builder
	sb.WriteString("# Sector Influence Graph\n\n")
	edges := g.Edges()
	if len(edges) == 0 {
		sb.WriteString("The graph has no edges; interventions do not cascade.\n")
	} else {
		sb.WriteString("A change in the source sector moves the target by delta x coefficient, damped each round.\n\n")
		sb.WriteString("| Source | Target | Coefficient |\n|---|---|---|\n")
		for _, e := range edges {
			fmt.Fprintf(&sb, "| %s | %s | %+.3f |\n", e.Source, e.Target, e.Coefficient)
		}
	}
	fmt.Fprintf(&sb, "\n---\n*%d sectors, %d edges*\n", len(g.Sectors()), len(edges))

	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      graphResourceURI,
				MIMEType: "text/markdown",
				Text:     sb.String(),
			},
		},
	}, nil
}

// handleCitiesResource lists the available datasets.
func (s *Server) handleCitiesResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	presets, stored, err := s.ws.Cities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cities: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("# Cities\n\n")
	if len(presets)+len(stored) == 0 {
		sb.WriteString("No datasets yet. Add preset JSON files to the data directory or import one with `co2twin import`.\n")
	}
	for _, name := range presets {
		fmt.Fprintf(&sb, "- %s\n", name)
	}
	for _, name := range stored {
		fmt.Fprintf(&sb, "- %s (library)\n", name)
	}

	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      citiesResourceURI,
				MIMEType: "text/markdown",
				Text:     sb.String(),
			},
		},
	}, nil
}

// handleSimulate implements the co2_simulate tool.
func (s *Server) handleSimulate(ctx context.Context, req *sdk.CallToolRequest, args SimulateInput) (_ *sdk.CallToolResult, _ SimulateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("co2_simulate", start, retErr, sanitizeToolParams(map[string]interface{}{
			"city":           args.City,
			"sectors":        args.Sectors,
			"changes":        args.Changes,
			"max_iterations": args.MaxIterations,
			"tolerance":      args.Tolerance,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "co2_simulate"); err != nil {
		return nil, SimulateOutput{}, err
	}

	runReq := workspace.RunRequest{
		City:          args.City,
		Changes:       args.Changes,
		MaxIterations: args.MaxIterations,
		Tolerance:     args.Tolerance,
	}
	if args.Sectors != nil {
		raw, err := json.Marshal(args.Sectors)
		if err != nil {
			return nil, SimulateOutput{}, fmt.Errorf("encoding sectors: %w", err)
		}
		ds, err := workspace.InlineDataset(args.City, raw)
		if err != nil {
			return nil, SimulateOutput{}, err
		}
		runReq.Dataset = ds
	}

	res, err := s.ws.Run(ctx, s.sim, runReq)
	if err != nil {
		return nil, SimulateOutput{}, err
	}

	return nil, SimulateOutput{
		RunID:     res.RunID,
		City:      res.City,
		Rows:      res.Rows,
		Summary:   res.Summary,
		Text:      res.Text,
		Values:    res.Values,
		Rounds:    res.Rounds,
		Converged: res.Converged,
	}, nil
}

// handleCities implements the co2_cities tool.
func (s *Server) handleCities(ctx context.Context, req *sdk.CallToolRequest, args CitiesInput) (_ *sdk.CallToolResult, _ CitiesOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("co2_cities", start, retErr, nil)
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "co2_cities"); err != nil {
		return nil, CitiesOutput{}, err
	}

	presets, stored, err := s.ws.Cities(ctx)
	if err != nil {
		return nil, CitiesOutput{}, fmt.Errorf("failed to list cities: %w", err)
	}
	if presets == nil {
		presets = []string{}
	}

	return nil, CitiesOutput{
		Presets: presets,
		Stored:  stored,
		Count:   len(presets) + len(stored),
	}, nil
}

// handleGraph implements the co2_graph tool.
func (s *Server) handleGraph(ctx context.Context, req *sdk.CallToolRequest, args GraphInput) (_ *sdk.CallToolResult, _ GraphOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("co2_graph", start, retErr, sanitizeToolParams(map[string]interface{}{
			"format": args.Format,
			"city":   args.City,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "co2_graph"); err != nil {
		return nil, GraphOutput{}, err
	}

	format := args.Format
	if format == "" {
		format = string(visualization.FormatJSON)
	}
	f, err := visualization.ParseFormat(format)
	if err != nil {
		return nil, GraphOutput{}, err
	}

	var values sector.Values
	if args.City != "" {
		ds, err := s.ws.Dataset(ctx, args.City)
		if err != nil {
			return nil, GraphOutput{}, err
		}
		values = ds.Sectors
	}

	g := s.sim.Graph()
	out := GraphOutput{
		Format:    string(f),
		NodeCount: len(g.Sectors()),
		EdgeCount: g.Len(),
	}

	switch f {
	case visualization.FormatDOT:
		out.Graph = visualization.RenderDOT(g, values)
	default:
		rendered := visualization.RenderJSON(g, values)
		out.Graph = rendered
		out.NodeCount = rendered.NodeCount
	}
	return nil, out, nil
}

// handleValidateGraph implements the co2_validate_graph tool.
func (s *Server) handleValidateGraph(ctx context.Context, req *sdk.CallToolRequest, args ValidateGraphInput) (_ *sdk.CallToolResult, _ ValidateGraphOutput, retErr error) {
	start := time.Now()
	defer func() {
		params := map[string]interface{}{"graph": args.Graph}
		if args.AmplificationLimit != nil {
			params["amplification_limit"] = *args.AmplificationLimit
		}
		s.auditTool("co2_validate_graph", start, retErr, sanitizeToolParams(params))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "co2_validate_graph"); err != nil {
		return nil, ValidateGraphOutput{}, err
	}

	g := s.sim.Graph()
	if args.Graph != nil {
		g = sector.NewGraph(args.Graph)
	}
	limit := sector.AmplificationLimit
	if args.AmplificationLimit != nil {
		limit = *args.AmplificationLimit
	}

	issues := sector.ValidateGraph(g, limit)

	return nil, ValidateGraphOutput{
		Valid:      len(issues) == 0,
		IssueCount: len(issues),
		Issues:     issues,
		Message:    validationMessage(issues),
	}, nil
}

// validationMessage summarizes issues by kind.
func validationMessage(issues []sector.ValidationIssue) string {
	if len(issues) == 0 {
		return "Influence graph is valid - no issues found"
	}

	counts := make(map[string]int)
	for _, i := range issues {
		counts[i.Issue]++
	}

	var parts []string
	for _, kind := range []struct{ issue, label string }{
		{sector.IssueSelfReference, "self-reference(s)"},
		{sector.IssueCycle, "cycle(s)"},
		{sector.IssueAmplifying, "amplifying coefficient(s)"},
		{sector.IssueNonFinite, "non-finite coefficient(s)"},
	} {
		if n := counts[kind.issue]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, kind.label))
		}
	}
	return fmt.Sprintf("Found %d issue(s): %s", len(issues), strings.Join(parts, ", "))
}
