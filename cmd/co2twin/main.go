package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/nvandessel/co2twin/internal/config"
	"github.com/nvandessel/co2twin/internal/logging"
	"github.com/nvandessel/co2twin/internal/workspace"
	"github.com/spf13/cobra"
)

// Set via ldflags at release time.
var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "co2twin",
		Short: "City CO2 what-if simulator",
		Long: `co2twin estimates how sector-level interventions change a city's CO2
emissions.

A requested change (for example "cut transport emissions by 20%") is applied
to the city's baseline and then cascades through a sector influence graph,
damped each round, until the effects die out.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.co2twin/config.yaml)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newSimulateCmd(),
		newCitiesCmd(),
		newImportCmd(),
		newDeleteCmd(),
		newGraphCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
		newServeCmd(),
	)
	return rootCmd
}

// loadConfig loads and validates the configuration named by --config, or
// the default one.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadPath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the operational logger described by cfg.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	if cfg.Logging.Format == "json" {
		return logging.NewJSONLogger(cfg.Logging.Level, w)
	}
	return logging.NewLogger(cfg.Logging.Level, w)
}

// openWorkspace loads configuration and opens the dataset library. Logs go
// to the command's stderr.
func openWorkspace(cmd *cobra.Command) (*workspace.Workspace, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	ws, err := workspace.Open(cfg, newLogger(cfg, cmd.ErrOrStderr()))
	if err != nil {
		return nil, fmt.Errorf("failed to open workspace: %w", err)
	}
	return ws, nil
}

func jsonOutput(cmd *cobra.Command) bool {
	jsonOut, _ := cmd.Flags().GetBool("json")
	return jsonOut
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
