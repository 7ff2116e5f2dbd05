// Package store persists imported city datasets and named influence-graph
// profiles in a SQLite library.
package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// schemaV1 is the initial schema for the SQLite library.
const schemaV1 = `
-- Imported city datasets
CREATE TABLE IF NOT EXISTS datasets (
    name TEXT PRIMARY KEY,
    city TEXT NOT NULL,
    imported_at TEXT NOT NULL
);

-- Per-sector baselines, position keeps document order
CREATE TABLE IF NOT EXISTS dataset_sectors (
    dataset TEXT NOT NULL REFERENCES datasets(name) ON DELETE CASCADE,
    sector TEXT NOT NULL,
    position INTEGER NOT NULL,
    baseline REAL NOT NULL,
    PRIMARY KEY (dataset, sector)
);

-- Named influence-graph profiles
CREATE TABLE IF NOT EXISTS graphs (
    name TEXT PRIMARY KEY,
    created_at TEXT NOT NULL
);

-- Source keys of a profile, including sources without edges
CREATE TABLE IF NOT EXISTS graph_nodes (
    graph TEXT NOT NULL REFERENCES graphs(name) ON DELETE CASCADE,
    sector TEXT NOT NULL,
    PRIMARY KEY (graph, sector)
);

CREATE TABLE IF NOT EXISTS graph_edges (
    graph TEXT NOT NULL REFERENCES graphs(name) ON DELETE CASCADE,
    source TEXT NOT NULL,
    target TEXT NOT NULL,
    coefficient REAL NOT NULL,
    PRIMARY KEY (graph, source, target)
);
CREATE INDEX IF NOT EXISTS idx_graph_edges_source ON graph_edges(graph, source);

-- Schema version
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// InitSchema creates the schema on a fresh database. An existing library is
// integrity-checked and must not be newer than this binary understands.
func InitSchema(ctx context.Context, db *sqlx.DB) error {
	currentVersion, err := getSchemaVersion(ctx, db)
	if err != nil {
		// Schema version table doesn't exist yet, create fresh schema
		if err := createSchema(ctx, db); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		return nil
	}

	if err := ValidateIntegrity(ctx, db); err != nil {
		return fmt.Errorf("database integrity check failed: %w", err)
	}

	if currentVersion > SchemaVersion {
		return fmt.Errorf("library schema version %d is newer than supported version %d", currentVersion, SchemaVersion)
	}

	return nil
}

// getSchemaVersion returns the current schema version from the database.
// Returns 0 and an error if the schema_version table doesn't exist.
func getSchemaVersion(ctx context.Context, db *sqlx.DB) (int, error) {
	var version int
	if err := db.GetContext(ctx, &version, `SELECT MAX(version) FROM schema_version`); err != nil {
		return 0, err
	}
	return version, nil
}

func createSchema(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	return tx.Commit()
}

// ValidateIntegrity runs PRAGMA integrity_check and PRAGMA
// foreign_key_check and returns an error if either reports a problem.
func ValidateIntegrity(ctx context.Context, db *sqlx.DB) error {
	var results []string
	if err := db.SelectContext(ctx, &results, `PRAGMA integrity_check`); err != nil {
		return fmt.Errorf("failed to run integrity_check: %w", err)
	}
	for _, r := range results {
		if r != "ok" {
			return fmt.Errorf("integrity_check failed: %s", r)
		}
	}

	rows, err := db.QueryxContext(ctx, `PRAGMA foreign_key_check`)
	if err != nil {
		return fmt.Errorf("failed to run foreign_key_check: %w", err)
	}
	defer rows.Close()

	var fkErrors []string
	for rows.Next() {
		var table, rowid, parent, fkid interface{}
		if err := rows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return fmt.Errorf("failed to scan foreign_key_check result: %w", err)
		}
		fkErrors = append(fkErrors, fmt.Sprintf("table=%v rowid=%v parent=%v fkid=%v", table, rowid, parent, fkid))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading foreign_key_check result: %w", err)
	}

	if len(fkErrors) > 0 {
		return fmt.Errorf("foreign_key_check failed: %v", fkErrors)
	}
	return nil
}
