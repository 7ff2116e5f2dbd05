// Package graphwatch reloads an influence graph file when it changes on
// disk and publishes the new graph to running simulators.
package graphwatch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nvandessel/co2twin/internal/logging"
	"github.com/nvandessel/co2twin/internal/sector"
)

// DefaultDebounce is how long the watcher waits after the last event before
// reloading. Editors often write a file in several steps.
const DefaultDebounce = 100 * time.Millisecond

// Watch blocks until ctx is cancelled, calling publish with the freshly
// parsed graph each time the file at path is written, created, or renamed
// into place. Files that fail to parse are logged and skipped, leaving the
// previously published graph in effect.
//
// The parent directory is watched rather than the file so that editors
// that replace the file atomically keep triggering reloads.
func Watch(ctx context.Context, path string, publish func(*sector.Graph), logger *slog.Logger) error {
	return watch(ctx, path, publish, logger, DefaultDebounce)
}

func watch(ctx context.Context, path string, publish func(*sector.Graph), logger *slog.Logger, debounce time.Duration) error {
	if logger == nil {
		logger = logging.Discard()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving graph path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(abs)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	logger = logger.With("component", "graphwatch", "path", abs)
	logger.Info("watching influence graph")

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("graph watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			logger.Log(ctx, logging.LevelTrace, "graph file event", "op", event.Op.String())
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("file watcher error", "error", err)

		case <-timer.C:
			g, err := sector.LoadGraph(abs)
			if err != nil {
				logger.Warn("keeping previous influence graph", "error", err)
				continue
			}
			publish(g)
			logger.Info("influence graph reloaded", "sectors", len(g.Sectors()), "edges", g.Len())
		}
	}
}
