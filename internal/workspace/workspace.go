// Package workspace ties configuration, preset datasets, and the SQLite
// library together for the CLI, the MCP server, and the HTTP workbench.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nvandessel/co2twin/internal/config"
	"github.com/nvandessel/co2twin/internal/dataset"
	"github.com/nvandessel/co2twin/internal/logging"
	"github.com/nvandessel/co2twin/internal/sector"
	"github.com/nvandessel/co2twin/internal/simulation"
	"github.com/nvandessel/co2twin/internal/store"
)

// Workspace resolves datasets and influence graphs by name.
type Workspace struct {
	Config  *config.Config
	Presets *dataset.Catalog
	Library *store.Library
	Logger  *slog.Logger
}

// Open builds a workspace from cfg, opening the SQLite library at
// cfg.DatabasePath(). A nil logger discards output.
func Open(cfg *config.Config, logger *slog.Logger) (*Workspace, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return nil, err
	}
	lib, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening library: %w", err)
	}

	return &Workspace{
		Config:  cfg,
		Presets: dataset.NewCatalog(cfg.Data.Dir, logger),
		Library: lib,
		Logger:  logger,
	}, nil
}

// Close releases the library.
func (w *Workspace) Close() error {
	if w.Library == nil {
		return nil
	}
	return w.Library.Close()
}

// Dataset returns the preset called name or, failing that, the stored
// dataset called name. The error wraps dataset.ErrNotFound when neither
// exists.
func (w *Workspace) Dataset(ctx context.Context, name string) (*dataset.Dataset, error) {
	ds, err := w.Presets.Load(name)
	if err == nil {
		return ds, nil
	}
	if !errors.Is(err, dataset.ErrNotFound) {
		return nil, err
	}

	if w.Library != nil {
		ds, err = w.Library.GetDataset(ctx, name)
		if err == nil {
			return ds, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("city %q: %w", name, dataset.ErrNotFound)
}

// Cities lists preset and stored dataset names, each sorted.
func (w *Workspace) Cities(ctx context.Context) (presets, stored []string, err error) {
	presets, err = w.Presets.List()
	if err != nil {
		return nil, nil, err
	}
	stored = []string{}
	if w.Library != nil {
		stored, err = w.Library.DatasetNames(ctx)
		if err != nil {
			return nil, nil, err
		}
	}
	return presets, stored, nil
}

// Graph selects the configured influence graph: the graph file when set,
// else the stored profile, else the built-in rules.
func (w *Workspace) Graph(ctx context.Context) (*sector.Graph, error) {
	return w.LoadGraph(ctx, w.Config.Graph.Path, w.Config.Graph.Profile)
}

// LoadGraph resolves a graph from an explicit path or profile name using
// the same precedence as Graph.
func (w *Workspace) LoadGraph(ctx context.Context, path, profile string) (*sector.Graph, error) {
	switch {
	case path != "":
		return sector.LoadGraph(path)
	case profile != "":
		if w.Library == nil {
			return nil, fmt.Errorf("graph profile %q: %w", profile, store.ErrNotFound)
		}
		return w.Library.GetGraph(ctx, profile)
	default:
		return sector.DefaultGraph(), nil
	}
}

// Simulator builds a simulator over the configured graph and cascade
// settings.
func (w *Workspace) Simulator(ctx context.Context) (*simulation.Simulator, error) {
	g, err := w.Graph(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading influence graph: %w", err)
	}
	return simulation.New(g, w.Config.Simulation.Propagation(), w.Logger), nil
}
