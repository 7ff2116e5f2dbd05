// Package config provides unified configuration loading for co2twin.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/co2twin/internal/logging"
	"github.com/nvandessel/co2twin/internal/propagation"
	"gopkg.in/yaml.v3"
)

// DirName is the per-user configuration directory under $HOME.
const DirName = ".co2twin"

// Config contains all co2twin configuration settings.
type Config struct {
	// Simulation tunes the cascade engine.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Graph selects the influence graph.
	Graph GraphConfig `json:"graph" yaml:"graph"`

	// Data locates datasets, exports and the SQLite library.
	Data DataConfig `json:"data" yaml:"data"`

	// Logging contains settings for operational logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// SimulationConfig mirrors propagation.Config in file form.
type SimulationConfig struct {
	MaxIterations  int     `json:"max_iterations" yaml:"max_iterations"`
	Tolerance      float64 `json:"tolerance" yaml:"tolerance"`
	InitialDamping float64 `json:"initial_damping" yaml:"initial_damping"`
	DampingDecay   float64 `json:"damping_decay" yaml:"damping_decay"`
}

// Propagation converts the settings to an engine configuration.
func (c SimulationConfig) Propagation() propagation.Config {
	return propagation.Config{
		MaxIterations:  c.MaxIterations,
		Tolerance:      c.Tolerance,
		InitialDamping: c.InitialDamping,
		DampingDecay:   c.DampingDecay,
	}
}

// GraphConfig selects the influence graph. Path wins over Profile; with
// neither set the built-in default rules are used.
type GraphConfig struct {
	// Path is a YAML or JSON graph file. Supports ${VAR} expansion.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Profile names a graph stored in the SQLite library.
	Profile string `json:"profile,omitempty" yaml:"profile,omitempty"`
}

// DataConfig locates on-disk data.
type DataConfig struct {
	// Dir holds preset city datasets (*.json).
	Dir string `json:"dir" yaml:"dir"`

	// OutputDir receives exported results.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// Database is the SQLite library path. Empty means ~/.co2twin/co2twin.db.
	Database string `json:"database,omitempty" yaml:"database,omitempty"`
}

// LoggingConfig configures co2twin's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "trace" logs every cascade round.
	Level string `json:"level" yaml:"level"`

	// Format is "text" (default) or "json".
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	p := propagation.DefaultConfig()
	return &Config{
		Simulation: SimulationConfig{
			MaxIterations:  p.MaxIterations,
			Tolerance:      p.Tolerance,
			InitialDamping: p.InitialDamping,
			DampingDecay:   p.DampingDecay,
		},
		Data: DataConfig{
			Dir:       "data",
			OutputDir: "outputs",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Path returns the default config file location, ~/.co2twin/config.yaml.
func Path() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(homeDir, DirName, "config.yaml"), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.co2twin/config.yaml -> environment variables
func Load() (*Config, error) {
	config := Default()

	if configPath, err := Path(); err == nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadPath is Load with an explicit config file. An empty path behaves
// exactly like Load.
func LoadPath(path string) (*Config, error) {
	if path == "" {
		return Load()
	}
	config, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(config)
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
// Keys missing from the file keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Graph.Path = expandEnvVars(config.Graph.Path)
	config.Data.Dir = expandEnvVars(config.Data.Dir)
	config.Data.OutputDir = expandEnvVars(config.Data.OutputDir)
	config.Data.Database = expandEnvVars(config.Data.Database)

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	s := c.Simulation
	if s.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1, got %d", s.MaxIterations)
	}
	if !(s.Tolerance > 0) || math.IsInf(s.Tolerance, 0) {
		return fmt.Errorf("tolerance must be a positive number, got %g", s.Tolerance)
	}
	if !(s.InitialDamping > 0 && s.InitialDamping <= 1) {
		return fmt.Errorf("initial_damping must be in (0, 1], got %g", s.InitialDamping)
	}
	if !(s.DampingDecay > 0 && s.DampingDecay <= 1) {
		return fmt.Errorf("damping_decay must be in (0, 1], got %g", s.DampingDecay)
	}

	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	validFormats := map[string]bool{"": true, "text": true, "json": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (valid: text, json)", c.Logging.Format)
	}

	return nil
}

// DatabasePath returns the SQLite library path, defaulting to
// ~/.co2twin/co2twin.db.
func (c *Config) DatabasePath() (string, error) {
	if c.Data.Database != "" {
		return c.Data.Database, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(homeDir, DirName, "co2twin.db"), nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Malformed numbers are ignored.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("CO2TWIN_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.MaxIterations = n
		}
	}

	if v := os.Getenv("CO2TWIN_TOLERANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Simulation.Tolerance = f
		}
	}

	if v := os.Getenv("CO2TWIN_GRAPH"); v != "" {
		config.Graph.Path = v
	}

	if v := os.Getenv("CO2TWIN_GRAPH_PROFILE"); v != "" {
		config.Graph.Profile = v
	}

	if v := os.Getenv("CO2TWIN_DATA_DIR"); v != "" {
		config.Data.Dir = v
	}

	if v := os.Getenv("CO2TWIN_OUTPUT_DIR"); v != "" {
		config.Data.OutputDir = v
	}

	if v := os.Getenv("CO2TWIN_DB"); v != "" {
		config.Data.Database = v
	}

	if v := os.Getenv("CO2TWIN_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
