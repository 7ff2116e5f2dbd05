package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nvandessel/co2twin/internal/dataset"
	"github.com/nvandessel/co2twin/internal/sector"
	_ "modernc.org/sqlite" // SQLite driver
)

// ErrNotFound is returned when a named dataset or graph does not exist.
var ErrNotFound = errors.New("not found")

// DatasetInfo summarizes a stored dataset.
type DatasetInfo struct {
	Name       string    `json:"name" db:"name"`
	City       string    `json:"city" db:"city"`
	Sectors    int       `json:"sectors" db:"sectors"`
	ImportedAt time.Time `json:"imported_at" db:"-"`
}

// GraphInfo summarizes a stored influence-graph profile.
type GraphInfo struct {
	Name      string    `json:"name" db:"name"`
	Edges     int       `json:"edges" db:"edges"`
	CreatedAt time.Time `json:"created_at" db:"-"`
}

// Library is the SQLite-backed store of datasets and graph profiles.
type Library struct {
	mu   sync.RWMutex
	db   *sqlx.DB
	path string
	now  func() time.Time
}

// Open opens (creating if needed) the library database at path.
func Open(path string) (*Library, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create library directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Library{db: db, path: path, now: time.Now}, nil
}

// Path returns the database file path.
func (l *Library) Path() string {
	return l.path
}

// Close closes the database.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.db.Close()
}

type sectorRow struct {
	Sector   string  `db:"sector"`
	Position int     `db:"position"`
	Baseline float64 `db:"baseline"`
}

type edgeRow struct {
	Source      string  `db:"source"`
	Target      string  `db:"target"`
	Coefficient float64 `db:"coefficient"`
}

// PutDataset stores ds under name, replacing any dataset with that name.
func (l *Library) PutDataset(ctx context.Context, name string, ds *dataset.Dataset) error {
	if name == "" {
		return fmt.Errorf("dataset name is required")
	}
	if ds == nil {
		return fmt.Errorf("dataset %q is nil", name)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM datasets WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to replace dataset: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO datasets (name, city, imported_at) VALUES (?, ?, ?)`,
		name, ds.City, l.now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to insert dataset: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx,
		`INSERT INTO dataset_sectors (dataset, sector, position, baseline) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare sector insert: %w", err)
	}
	defer stmt.Close()

	for i, s := range ds.OrderedSectors() {
		if _, err := stmt.ExecContext(ctx, name, s, i, ds.Sectors[s]); err != nil {
			return fmt.Errorf("failed to insert sector %q: %w", s, err)
		}
	}

	return tx.Commit()
}

// GetDataset loads the dataset stored under name.
func (l *Library) GetDataset(ctx context.Context, name string) (*dataset.Dataset, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var city string
	err := l.db.GetContext(ctx, &city, `SELECT city FROM datasets WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dataset %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query dataset: %w", err)
	}

	var rows []sectorRow
	if err := l.db.SelectContext(ctx, &rows,
		`SELECT sector, position, baseline FROM dataset_sectors WHERE dataset = ? ORDER BY position`,
		name); err != nil {
		return nil, fmt.Errorf("failed to query sectors: %w", err)
	}

	ds := &dataset.Dataset{
		City:    city,
		Sectors: make(sector.Values, len(rows)),
		Order:   make([]string, 0, len(rows)),
	}
	for _, r := range rows {
		ds.Sectors[r.Sector] = r.Baseline
		ds.Order = append(ds.Order, r.Sector)
	}
	return ds, nil
}

// ListDatasets returns all stored datasets ordered by name.
func (l *Library) ListDatasets(ctx context.Context) ([]DatasetInfo, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var rows []struct {
		DatasetInfo
		ImportedAt string `db:"imported_at"`
	}
	if err := l.db.SelectContext(ctx, &rows, `
		SELECT d.name, d.city, d.imported_at, COUNT(s.sector) AS sectors
		FROM datasets d
		LEFT JOIN dataset_sectors s ON s.dataset = d.name
		GROUP BY d.name, d.city, d.imported_at
		ORDER BY d.name`); err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}

	out := make([]DatasetInfo, 0, len(rows))
	for _, r := range rows {
		info := r.DatasetInfo
		info.ImportedAt = parseTime(r.ImportedAt)
		out = append(out, info)
	}
	return out, nil
}

// DeleteDataset removes the dataset stored under name.
func (l *Library) DeleteDataset(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, err := l.db.ExecContext(ctx, `DELETE FROM datasets WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	return requireAffected(res, "dataset", name)
}

// PutGraph stores g under name, replacing any profile with that name.
func (l *Library) PutGraph(ctx context.Context, name string, g *sector.Graph) error {
	if name == "" {
		return fmt.Errorf("graph name is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM graphs WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to replace graph: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO graphs (name, created_at) VALUES (?, ?)`,
		name, l.now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to insert graph: %w", err)
	}

	for _, src := range g.Sources() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO graph_nodes (graph, sector) VALUES (?, ?)`, name, src); err != nil {
			return fmt.Errorf("failed to insert graph node %q: %w", src, err)
		}
	}

	for _, e := range g.Edges() {
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO graph_edges (graph, source, target, coefficient)
			 VALUES (:graph, :source, :target, :coefficient)`,
			map[string]interface{}{
				"graph":       name,
				"source":      e.Source,
				"target":      e.Target,
				"coefficient": e.Coefficient,
			}); err != nil {
			return fmt.Errorf("failed to insert edge %s->%s: %w", e.Source, e.Target, err)
		}
	}

	return tx.Commit()
}

// GetGraph loads the profile stored under name.
func (l *Library) GetGraph(ctx context.Context, name string) (*sector.Graph, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var exists int
	err := l.db.GetContext(ctx, &exists, `SELECT 1 FROM graphs WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("graph %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query graph: %w", err)
	}

	var sources []string
	if err := l.db.SelectContext(ctx, &sources,
		`SELECT sector FROM graph_nodes WHERE graph = ?`, name); err != nil {
		return nil, fmt.Errorf("failed to query graph nodes: %w", err)
	}

	var edges []edgeRow
	if err := l.db.SelectContext(ctx, &edges,
		`SELECT source, target, coefficient FROM graph_edges WHERE graph = ?`, name); err != nil {
		return nil, fmt.Errorf("failed to query graph edges: %w", err)
	}

	m := make(map[string]map[string]float64, len(sources))
	for _, s := range sources {
		m[s] = map[string]float64{}
	}
	for _, e := range edges {
		if m[e.Source] == nil {
			m[e.Source] = map[string]float64{}
		}
		m[e.Source][e.Target] = e.Coefficient
	}
	return sector.NewGraph(m), nil
}

// ListGraphs returns all stored profiles ordered by name.
func (l *Library) ListGraphs(ctx context.Context) ([]GraphInfo, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var rows []struct {
		GraphInfo
		CreatedAt string `db:"created_at"`
	}
	if err := l.db.SelectContext(ctx, &rows, `
		SELECT g.name, g.created_at, COUNT(e.target) AS edges
		FROM graphs g
		LEFT JOIN graph_edges e ON e.graph = g.name
		GROUP BY g.name, g.created_at
		ORDER BY g.name`); err != nil {
		return nil, fmt.Errorf("failed to list graphs: %w", err)
	}

	out := make([]GraphInfo, 0, len(rows))
	for _, r := range rows {
		info := r.GraphInfo
		info.CreatedAt = parseTime(r.CreatedAt)
		out = append(out, info)
	}
	return out, nil
}

// DeleteGraph removes the profile stored under name.
func (l *Library) DeleteGraph(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, err := l.db.ExecContext(ctx, `DELETE FROM graphs WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete graph: %w", err)
	}
	return requireAffected(res, "graph", name)
}

// DatasetNames returns the stored dataset names, sorted.
func (l *Library) DatasetNames(ctx context.Context) ([]string, error) {
	infos, err := l.ListDatasets(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	sort.Strings(names)
	return names, nil
}

func requireAffected(res sql.Result, kind, name string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %q: %w", kind, name, ErrNotFound)
	}
	return nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
