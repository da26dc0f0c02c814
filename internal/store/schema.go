package store

import (
	"context"
	"database/sql"
	"fmt"
)

const SchemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    created_at TEXT NOT NULL,
    name TEXT,
    motion_kind TEXT NOT NULL,
    calculator_kind TEXT NOT NULL,
    motion TEXT NOT NULL,      -- JSON record
    calculator TEXT NOT NULL,  -- JSON record
    converged INTEGER NOT NULL,
    iterations INTEGER NOT NULL,
    max_error REAL NOT NULL,
    input_pga REAL,
    input_pgv REAL,
    duration REAL,
    surface_pga REAL
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);

CREATE TABLE IF NOT EXISTS run_iterations (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    iteration INTEGER NOT NULL,
    max_error REAL NOT NULL,
    PRIMARY KEY (run_id, iteration)
);

CREATE TABLE IF NOT EXISTS run_layers (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    idx INTEGER NOT NULL,
    depth REAL NOT NULL,
    thickness REAL NOT NULL,
    shear_vel REAL NOT NULL,
    initial_strain REAL,
    eff_strain REAL,
    max_strain REAL,
    shear_mod REAL,
    modulus_ratio REAL,
    damping REAL,
    PRIMARY KEY (run_id, idx)
);

CREATE TABLE IF NOT EXISTS run_spectra (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    idx INTEGER NOT NULL,
    freq REAL NOT NULL,
    input_fas REAL,
    surface_fas REAL,
    PRIMARY KEY (run_id, idx)
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// InitSchema creates the tables on a fresh database.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if _, err := getSchemaVersion(ctx, db); err == nil {
		return nil
	}
	if err := createSchema(ctx, db); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func getSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
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
