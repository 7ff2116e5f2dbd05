package dataset

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nvandessel/co2twin/internal/logging"
)

// Catalog serves preset datasets from a directory of *.json files. The
// preset name is the file's basename without the extension.
type Catalog struct {
	dir    string
	logger *slog.Logger
}

// NewCatalog creates a catalog rooted at dir. A nil logger discards output.
func NewCatalog(dir string, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Catalog{dir: dir, logger: logger}
}

// Dir returns the presets directory.
func (c *Catalog) Dir() string {
	return c.dir
}

// List returns the sorted preset names. A missing directory yields an
// empty list.
func (c *Catalog) List() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("listing presets: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name, ok := presetName(e.Name()); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Load reads the preset called name.
func (c *Catalog) Load(name string) (*Dataset, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	path := filepath.Join(c.dir, name+".json")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return nil, fmt.Errorf("loading preset %q: %w", name, err)
	}
	return LoadFile(path)
}

// LoadAll reads every valid preset. Files that fail to parse are skipped
// and logged.
func (c *Catalog) LoadAll() (map[string]*Dataset, error) {
	names, err := c.List()
	if err != nil {
		return nil, err
	}

	out := make(map[string]*Dataset, len(names))
	for _, name := range names {
		ds, err := c.Load(name)
		if err != nil {
			c.logger.Warn("skipping invalid preset", "name", name, "error", err)
			continue
		}
		out[name] = ds
	}
	return out, nil
}

func presetName(file string) (string, bool) {
	ext := filepath.Ext(file)
	if !strings.EqualFold(ext, ".json") {
		return "", false
	}
	return strings.TrimSuffix(file, ext), true
}
