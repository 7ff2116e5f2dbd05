package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nvandessel/co2twin/internal/dataset"
	"github.com/nvandessel/co2twin/internal/export"
	"github.com/nvandessel/co2twin/internal/report"
	"github.com/nvandessel/co2twin/internal/workspace"
	"github.com/spf13/cobra"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a what-if simulation for a city",
		Long: `Apply sector-level changes to a city's baseline and cascade their effects
through the influence graph.

Changes are fractions (-0.2) or percents (-20); both mean a 20% cut.

Examples:
  co2twin simulate --city delhi --change transport=-20
  co2twin simulate --file mycity.json --change power=-0.1 --change industry=-5
  co2twin simulate --city delhi --change transport=-20 --save --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			city, _ := cmd.Flags().GetString("city")
			file, _ := cmd.Flags().GetString("file")
			changeFlags, _ := cmd.Flags().GetStringArray("change")
			graphPath, _ := cmd.Flags().GetString("graph")
			profile, _ := cmd.Flags().GetString("profile")
			maxIter, _ := cmd.Flags().GetInt("max-iterations")
			tolerance, _ := cmd.Flags().GetFloat64("tolerance")
			save, _ := cmd.Flags().GetBool("save")
			outDir, _ := cmd.Flags().GetString("out")

			if city == "" && file == "" {
				return fmt.Errorf("one of --city or --file is required")
			}
			changes, err := parseChanges(changeFlags)
			if err != nil {
				return err
			}

			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			ctx := context.Background()
			req := workspace.RunRequest{
				City:          city,
				Changes:       changes,
				MaxIterations: maxIter,
				Tolerance:     tolerance,
			}
			if file != "" {
				ds, err := dataset.LoadFile(file)
				if err != nil {
					return err
				}
				req.Dataset = ds
			}
			if graphPath != "" || profile != "" {
				g, err := ws.LoadGraph(ctx, graphPath, profile)
				if err != nil {
					return fmt.Errorf("loading influence graph: %w", err)
				}
				req.Graph = g
			}

			sim, err := ws.Simulator(ctx)
			if err != nil {
				return err
			}
			res, err := ws.Run(ctx, sim, req)
			if err != nil {
				return err
			}

			var saved []string
			if save {
				if outDir == "" {
					outDir = ws.Config.Data.OutputDir
				}
				jsonPath, csvPath, err := export.SaveResults(outDir, res.City, res.Rows, time.Now())
				if err != nil {
					return err
				}
				saved = []string{jsonPath, csvPath}
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd, struct {
					*workspace.RunResult
					Saved []string `json:"saved,omitempty"`
				}{res, saved})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "City: %s (run %s)\n\n", res.City, res.RunID)
			printRows(out, res.Rows)
			fmt.Fprintf(out, "\n%s\n", res.Text)
			if !res.Converged {
				fmt.Fprintf(out, "\nNote: the cascade hit the %d-round limit before settling.\n", res.Rounds)
			}
			for _, p := range saved {
				fmt.Fprintf(out, "Saved %s\n", p)
			}
			return nil
		},
	}

	cmd.Flags().String("city", "", "Preset or imported city name")
	cmd.Flags().String("file", "", "Dataset JSON file to simulate instead of a named city")
	cmd.Flags().StringArray("change", nil, "Sector change as sector=value (repeatable)")
	cmd.Flags().String("graph", "", "Influence graph file (YAML or JSON)")
	cmd.Flags().String("profile", "", "Influence graph profile stored in the library")
	cmd.Flags().Int("max-iterations", 0, "Cascade round limit (default from config)")
	cmd.Flags().Float64("tolerance", 0, "Smallest effect that keeps a cascade going (default from config)")
	cmd.Flags().Bool("save", false, "Save results as JSON and CSV")
	cmd.Flags().String("out", "", "Output directory for --save (default from config)")

	return cmd
}

// parseChanges turns repeated sector=value flags into a change map. Later
// flags for the same sector win.
func parseChanges(flags []string) (map[string]interface{}, error) {
	changes := make(map[string]interface{}, len(flags))
	for _, f := range flags {
		sector, value, ok := strings.Cut(f, "=")
		sector = strings.TrimSpace(sector)
		if !ok || sector == "" {
			return nil, fmt.Errorf("invalid --change %q: want sector=value", f)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --change %q: %q is not a number", f, value)
		}
		changes[sector] = v
	}
	return changes, nil
}

// printRows writes the comparison as an aligned table.
func printRows(w io.Writer, rows []report.Row) {
	width := len("Sector")
	for _, r := range rows {
		if len(r.Sector) > width {
			width = len(r.Sector)
		}
	}
	fmt.Fprintf(w, "%-*s  %12s  %12s  %10s  %8s\n", width, "Sector", "Baseline", "Simulated", "Delta", "Change")
	for _, r := range rows {
		fmt.Fprintf(w, "%-*s  %12.1f  %12.1f  %10.1f  %7.1f%%\n",
			width, r.Sector, r.Baseline, r.Simulated, r.Delta, r.PctChange)
	}
}
