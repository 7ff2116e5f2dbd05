package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nvandessel/co2twin/internal/graphwatch"
	"github.com/nvandessel/co2twin/internal/mcp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Run co2twin as an MCP server over stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout so AI tools can run
simulations.

Tools:     co2_simulate, co2_cities, co2_graph, co2_validate_graph
Resources: co2twin://graph, co2twin://cities

Logs go to stderr; stdout carries the protocol. With --watch the configured
graph file is reloaded whenever it changes.

Example MCP client configuration:
  {
    "mcpServers": {
      "co2twin": { "command": "co2twin", "args": ["mcp-server", "--watch"] }
    }
  }`,
		RunE: func(cmd *cobra.Command, args []string) error {
			watch, _ := cmd.Flags().GetBool("watch")

			// stdout belongs to the protocol.
			cmd.SetErr(os.Stderr)
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()
			logger := ws.Logger

			ctx := context.Background()
			sim, err := ws.Simulator(ctx)
			if err != nil {
				return err
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:      "co2twin",
				Version:   version,
				Workspace: ws,
				Simulator: sim,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			g, gctx := errgroup.WithContext(ctx)
			gctx, cancel := context.WithCancel(gctx)
			defer cancel()

			g.Go(func() error {
				// The watcher stops once the client disconnects.
				defer cancel()
				return server.Run(gctx)
			})
			if watch {
				if ws.Config.Graph.Path == "" {
					logger.Warn("--watch ignored: no graph.path configured")
				} else {
					g.Go(func() error {
						return graphwatch.Watch(gctx, ws.Config.Graph.Path, sim.SetGraph, logger)
					})
				}
			}
			return g.Wait()
		},
	}

	cmd.Flags().Bool("watch", false, "Reload the configured graph file when it changes")

	return cmd
}
