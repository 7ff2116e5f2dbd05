package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nvandessel/co2twin/internal/graphwatch"
	"github.com/nvandessel/co2twin/internal/visualization"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local simulation workbench",
		Long: `Start a local web workbench showing the influence graph with a form for
running simulations. Blocks until Ctrl-C.

Endpoints:
  GET  /             workbench page
  GET  /api/graph    influence graph (?format=dot|json, ?city=name)
  POST /api/simulate run a simulation (JSON body)

Examples:
  co2twin serve
  co2twin serve --addr localhost:8080 --no-open --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			noOpen, _ := cmd.Flags().GetBool("no-open")
			watch, _ := cmd.Flags().GetBool("watch")

			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			ctx, cancel := signalContext(context.Background())
			defer cancel()

			sim, err := ws.Simulator(ctx)
			if err != nil {
				return err
			}
			srv := visualization.NewServer(ws, sim, addr)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				if err := srv.ListenAndServe(gctx); err != nil {
					return fmt.Errorf("server error: %w", err)
				}
				return nil
			})
			if watch {
				if ws.Config.Graph.Path == "" {
					ws.Logger.Warn("--watch ignored: no graph.path configured")
				} else {
					g.Go(func() error {
						return graphwatch.Watch(gctx, ws.Config.Graph.Path, sim.SetGraph, ws.Logger)
					})
				}
			}

			// Wait for the listener to bind.
			deadline := time.Now().Add(3 * time.Second)
			for srv.Addr() == "" && time.Now().Before(deadline) && gctx.Err() == nil {
				time.Sleep(10 * time.Millisecond)
			}
			if srv.Addr() == "" {
				cancel()
				if err := g.Wait(); err != nil {
					return err
				}
				return fmt.Errorf("server failed to start")
			}

			url := "http://" + srv.Addr()
			fmt.Fprintf(cmd.OutOrStdout(), "Workbench running at %s\n", url)
			fmt.Fprintf(cmd.OutOrStdout(), "Press Ctrl-C to stop.\n")

			if !noOpen {
				if err := visualization.OpenBrowser(url); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Could not open browser: %v\nOpen %s manually.\n", err, url)
				}
			}

			return g.Wait()
		},
	}

	cmd.Flags().String("addr", "localhost:0", "Listen address")
	cmd.Flags().Bool("no-open", false, "Don't open a browser")
	cmd.Flags().Bool("watch", false, "Reload the configured graph file when it changes")

	return cmd
}
