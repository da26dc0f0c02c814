package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (or creates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// SaveRun inserts run with its history, layers and spectrum. A missing ID
// or creation time is filled in.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, name, motion_kind, calculator_kind, motion, calculator,
			converged, iterations, max_error, input_pga, input_pgv, duration, surface_pga)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.Format(time.RFC3339Nano), run.Name, run.MotionKind, run.CalculatorKind,
		string(run.Motion), string(run.Calculator),
		boolToInt(run.Converged), run.Iterations, run.MaxError,
		run.InputPGA, run.InputPGV, run.Duration, run.SurfacePGA)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, it := range run.History {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_iterations (run_id, iteration, max_error) VALUES (?, ?, ?)`,
			run.ID, it.Iteration, it.MaxError); err != nil {
			return fmt.Errorf("failed to insert iteration %d: %w", it.Iteration, err)
		}
	}

	for i, l := range run.Layers {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_layers (run_id, idx, depth, thickness, shear_vel, initial_strain,
				eff_strain, max_strain, shear_mod, modulus_ratio, damping)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, l.Depth, l.Thickness, l.ShearVel, l.InitialStrain,
			l.EffStrain, l.MaxStrain, l.ShearMod, l.ModulusRatio, l.Damping); err != nil {
			return fmt.Errorf("failed to insert layer %d: %w", i, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_spectra (run_id, idx, freq, input_fas, surface_fas) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare spectrum insert: %w", err)
	}
	defer stmt.Close()
	for i, p := range run.Spectrum {
		if _, err := stmt.ExecContext(ctx, run.ID, i, p.Freq, p.InputFAS, p.SurfaceFAS); err != nil {
			return fmt.Errorf("failed to insert spectrum point %d: %w", i, err)
		}
	}

	return tx.Commit()
}

const runColumns = `id, created_at, name, motion_kind, calculator_kind, motion, calculator,
	converged, iterations, max_error, input_pga, input_pgv, duration, surface_pga`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run        Run
		createdAt  string
		name       sql.NullString
		motion     string
		calculator string
		converged  int
		inputPGA   sql.NullFloat64
		inputPGV   sql.NullFloat64
		duration   sql.NullFloat64
		surfacePGA sql.NullFloat64
	)
	err := row.Scan(&run.ID, &createdAt, &name, &run.MotionKind, &run.CalculatorKind, &motion, &calculator,
		&converged, &run.Iterations, &run.MaxError, &inputPGA, &inputPGV, &duration, &surfacePGA)
	if err != nil {
		return nil, err
	}

	run.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	run.Name = name.String
	run.Motion = []byte(motion)
	run.Calculator = []byte(calculator)
	run.Converged = converged != 0
	run.InputPGA = inputPGA.Float64
	run.InputPGV = inputPGV.Float64
	run.Duration = duration.Float64
	run.SurfacePGA = surfacePGA.Float64
	return &run, nil
}

// GetRun loads a run with all of its detail rows.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	if err := s.loadHistory(ctx, run); err != nil {
		return nil, err
	}
	if err := s.loadLayers(ctx, run); err != nil {
		return nil, err
	}
	if err := s.loadSpectrum(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *SQLiteStore) loadHistory(ctx context.Context, run *Run) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT iteration, max_error FROM run_iterations WHERE run_id = ? ORDER BY iteration`, run.ID)
	if err != nil {
		return fmt.Errorf("failed to query iterations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it Iteration
		if err := rows.Scan(&it.Iteration, &it.MaxError); err != nil {
			return fmt.Errorf("failed to scan iteration: %w", err)
		}
		run.History = append(run.History, it)
	}
	return rows.Err()
}

func (s *SQLiteStore) loadLayers(ctx context.Context, run *Run) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT depth, thickness, shear_vel, initial_strain, eff_strain, max_strain,
			shear_mod, modulus_ratio, damping
		FROM run_layers WHERE run_id = ? ORDER BY idx`, run.ID)
	if err != nil {
		return fmt.Errorf("failed to query layers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l Layer
		if err := rows.Scan(&l.Depth, &l.Thickness, &l.ShearVel, &l.InitialStrain, &l.EffStrain,
			&l.MaxStrain, &l.ShearMod, &l.ModulusRatio, &l.Damping); err != nil {
			return fmt.Errorf("failed to scan layer: %w", err)
		}
		run.Layers = append(run.Layers, l)
	}
	return rows.Err()
}

func (s *SQLiteStore) loadSpectrum(ctx context.Context, run *Run) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT freq, input_fas, surface_fas FROM run_spectra WHERE run_id = ? ORDER BY idx`, run.ID)
	if err != nil {
		return fmt.Errorf("failed to query spectrum: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p SpectrumPoint
		if err := rows.Scan(&p.Freq, &p.InputFAS, &p.SurfaceFAS); err != nil {
			return fmt.Errorf("failed to scan spectrum point: %w", err)
		}
		run.Spectrum = append(run.Spectrum, p)
	}
	return rows.Err()
}

// ListRuns returns run summaries, newest first. limit <= 0 returns all.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and, through the foreign keys, its detail rows.
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
