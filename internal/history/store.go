// Package history persists reconstruction runs to a local SQLite database
// so earlier settings and output locations can be recalled.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one recorded reconstruction attempt.
type Run struct {
	ID             int64
	StartedAt      time.Time
	DurationSec    float64
	ProjectionPath string
	Collimator     string
	ScatterMethod  string
	Algorithm      string
	Iterations     int
	Subsets        int
	EnergyKeV      float64
	OutputDir      string
	Status         string // "ok" or "failed"
	Message        string // error text for failed runs
}

// Succeeded reports whether the run completed.
func (r *Run) Succeeded() bool {
	return r.Status == "ok"
}

// Store provides access to the run history database.
type Store struct {
	db *sql.DB
}

// DefaultDBPath returns the history database location inside the user
// config directory.
func DefaultDBPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(configDir, "spect-recon", "history.sqlite")
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	startedAt REAL NOT NULL,
	durationSec REAL NOT NULL,
	projectionPath TEXT NOT NULL,
	collimator TEXT NOT NULL,
	scatterMethod TEXT NOT NULL,
	algorithm TEXT NOT NULL,
	iterations INTEGER NOT NULL,
	subsets INTEGER NOT NULL,
	energyKev REAL NOT NULL,
	outputDir TEXT NOT NULL,
	status TEXT NOT NULL,
	message TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_runs_startedAt ON runs(startedAt DESC);
`

// Open opens (and if needed creates) the history database at path. The
// special path ":memory:" opens a throwaway in-memory database.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		dsn = fmt.Sprintf("file:%s?_journal_mode=WAL", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add records a completed run and returns its row id.
func (s *Store) Add(run Run) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO runs (startedAt, durationSec, projectionPath, collimator,
			scatterMethod, algorithm, iterations, subsets, energyKev,
			outputDir, status, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, unixFloat(run.StartedAt), run.DurationSec, run.ProjectionPath,
		run.Collimator, run.ScatterMethod, run.Algorithm, run.Iterations,
		run.Subsets, run.EnergyKeV, run.OutputDir, run.Status, run.Message)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns the most recent runs, newest first.
func (s *Store) Recent(limit int) ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT id, startedAt, durationSec, projectionPath, collimator,
			scatterMethod, algorithm, iterations, subsets, energyKev,
			outputDir, status, message
		FROM runs
		ORDER BY startedAt DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var startedAt float64
		if err := rows.Scan(&r.ID, &startedAt, &r.DurationSec, &r.ProjectionPath,
			&r.Collimator, &r.ScatterMethod, &r.Algorithm, &r.Iterations,
			&r.Subsets, &r.EnergyKeV, &r.OutputDir, &r.Status, &r.Message); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = timeFromUnix(startedAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LastForProjection returns the most recent run against the given
// projection study, or nil if it was never reconstructed.
func (s *Store) LastForProjection(path string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT id, startedAt, durationSec, projectionPath, collimator,
			scatterMethod, algorithm, iterations, subsets, energyKev,
			outputDir, status, message
		FROM runs
		WHERE projectionPath = ?
		ORDER BY startedAt DESC, id DESC
		LIMIT 1
	`, path)

	var r Run
	var startedAt float64
	if err := row.Scan(&r.ID, &startedAt, &r.DurationSec, &r.ProjectionPath,
		&r.Collimator, &r.ScatterMethod, &r.Algorithm, &r.Iterations,
		&r.Subsets, &r.EnergyKeV, &r.OutputDir, &r.Status, &r.Message); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	r.StartedAt = timeFromUnix(startedAt)
	return &r, nil
}

// Prune deletes all but the newest keep runs and returns how many rows
// were removed.
func (s *Store) Prune(keep int) (int64, error) {
	res, err := s.db.Exec(`
		DELETE FROM runs
		WHERE id NOT IN (
			SELECT id FROM runs
			ORDER BY startedAt DESC, id DESC
			LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

func unixFloat(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
