package main

import (
	"context"
	"fmt"

	"github.com/nvandessel/co2twin/internal/sanitize"
	"github.com/nvandessel/co2twin/internal/sector"
	"github.com/nvandessel/co2twin/internal/visualization"
	"github.com/nvandessel/co2twin/internal/workspace"
	"github.com/spf13/cobra"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Show the sector influence graph",
		Long: `Output the influence graph in DOT (Graphviz) or JSON format.

The graph comes from --graph, else --profile, else the configured graph,
else the built-in rules.

Examples:
  co2twin graph | dot -Tsvg > graph.svg
  co2twin graph --format json --profile eu-2030
  co2twin graph import eu-2030 ./eu-2030.yaml
  co2twin graph validate --graph ./draft.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			city, _ := cmd.Flags().GetString("city")

			f, err := visualization.ParseFormat(format)
			if err != nil {
				return err
			}

			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			ctx := context.Background()
			g, err := selectGraph(ctx, cmd, ws)
			if err != nil {
				return err
			}

			var values sector.Values
			if city != "" {
				ds, err := ws.Dataset(ctx, city)
				if err != nil {
					return err
				}
				values = ds.Sectors
			}

			if jsonOutput(cmd) {
				f = visualization.FormatJSON
			}
			return visualization.Render(cmd.OutOrStdout(), f, g, values)
		},
	}

	addGraphSourceFlags(cmd)
	cmd.Flags().String("format", "dot", "Output format: dot or json")
	cmd.Flags().String("city", "", "Annotate nodes with this city's baseline values")

	cmd.AddCommand(
		newGraphImportCmd(),
		newGraphListCmd(),
		newGraphDeleteCmd(),
		newGraphValidateCmd(),
	)

	return cmd
}

func addGraphSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("graph", "", "Influence graph file (YAML or JSON)")
	cmd.Flags().String("profile", "", "Influence graph profile stored in the library")
}

// selectGraph resolves --graph and --profile, falling back to the
// configured graph.
func selectGraph(ctx context.Context, cmd *cobra.Command, ws *workspace.Workspace) (*sector.Graph, error) {
	path, _ := cmd.Flags().GetString("graph")
	profile, _ := cmd.Flags().GetString("profile")
	if path == "" && profile == "" {
		return ws.Graph(ctx)
	}
	return ws.LoadGraph(ctx, path, profile)
}

func newGraphImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <name> <file>",
		Short: "Store an influence graph file as a named profile",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := sanitize.Name(args[0])
			if name == "" {
				return fmt.Errorf("invalid profile name %q", args[0])
			}
			g, err := sector.LoadGraph(args[1])
			if err != nil {
				return err
			}

			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			if err := ws.Library.PutGraph(context.Background(), name, g); err != nil {
				return err
			}

			issues := sector.ValidateGraph(g, sector.AmplificationLimit)
			for _, issue := range issues {
				ws.Logger.Warn("graph issue", "profile", name, "issue", issue.String())
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd, map[string]interface{}{
					"status": "imported",
					"name":   name,
					"edges":  g.Len(),
					"issues": len(issues),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported graph profile %q (%d edges)\n", name, g.Len())
			if len(issues) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%d issue(s) found; run 'co2twin graph validate --profile %s' for details\n", len(issues), name)
			}
			return nil
		},
	}
}

func newGraphListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored influence graph profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			graphs, err := ws.Library.ListGraphs(context.Background())
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd, map[string]interface{}{
					"graphs": graphs,
					"count":  len(graphs),
				})
			}
			if len(graphs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No graph profiles stored.")
				return nil
			}
			for _, g := range graphs {
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %3d edges, created %s\n",
					g.Name, g.Edges, g.CreatedAt.Format("2006-01-02"))
			}
			return nil
		},
	}
}

func newGraphDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Remove a stored influence graph profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			if err := ws.Library.DeleteGraph(context.Background(), args[0]); err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd, map[string]string{"status": "deleted", "name": args[0]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted graph profile %q\n", args[0])
			return nil
		},
	}
}

func newGraphValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check an influence graph for questionable edges",
		Long: `Report self-references, cycles, amplifying coefficients (|c| at or above the
limit) and non-finite coefficients. These are warnings: the engine runs any
graph, and damping plus the round limit keep cycles bounded.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetFloat64("limit")

			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			g, err := selectGraph(context.Background(), cmd, ws)
			if err != nil {
				return err
			}
			issues := sector.ValidateGraph(g, limit)

			if jsonOutput(cmd) {
				if issues == nil {
					issues = []sector.ValidationIssue{}
				}
				return writeJSON(cmd, map[string]interface{}{
					"valid":  len(issues) == 0,
					"issues": issues,
				})
			}
			if len(issues) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Influence graph is valid (%d sectors, %d edges)\n", len(g.Sectors()), g.Len())
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Found %d issue(s):\n", len(issues))
			for _, issue := range issues {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", issue)
			}
			return nil
		},
	}

	addGraphSourceFlags(cmd)
	cmd.Flags().Float64("limit", sector.AmplificationLimit, "Flag coefficients at or above this magnitude (0 disables)")

	return cmd
}
