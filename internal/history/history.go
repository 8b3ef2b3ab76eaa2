// Package history persists completed session runs to SQLite so operators
// can inspect past sprints after the scheduler process exits.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite connection.
type Store struct {
	sql  *sql.DB
	path string
}

// Record is one completed session run.
type Record struct {
	SessionID      string
	SprintID       string
	Status         string
	TasksTotal     int
	TasksCompleted int
	TasksFailed    int
	TotalCost      float64
	StartedAt      time.Time
	CompletedAt    time.Time
}

// DefaultPath returns the default database path.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "sprintd", "sprintd.db")
}

// Open opens or creates the database, applies pragmas, and migrates.
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := applyPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{sql: db, path: path}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	if s == nil || s.sql == nil {
		return nil
	}
	return s.sql.Close()
}

// Record inserts a session run.
func (s *Store) Record(rec Record) error {
	_, err := s.sql.Exec(`
		INSERT INTO session_runs
			(session_id, sprint_id, status, tasks_total, tasks_completed,
			 tasks_failed, total_cost, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.SprintID, rec.Status,
		rec.TasksTotal, rec.TasksCompleted, rec.TasksFailed, rec.TotalCost,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.CompletedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting session run: %w", err)
	}
	return nil
}

// Recent returns the last n runs, most recent first.
func (s *Store) Recent(n int) ([]Record, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := s.sql.Query(`
		SELECT session_id, sprint_id, status, tasks_total, tasks_completed,
		       tasks_failed, total_cost, started_at, completed_at
		FROM session_runs
		ORDER BY completed_at DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("querying session runs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var started, completed string
		if err := rows.Scan(
			&rec.SessionID, &rec.SprintID, &rec.Status,
			&rec.TasksTotal, &rec.TasksCompleted, &rec.TasksFailed, &rec.TotalCost,
			&started, &completed,
		); err != nil {
			return nil, fmt.Errorf("scanning session run: %w", err)
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		rec.CompletedAt, _ = time.Parse(time.RFC3339Nano, completed)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("setting pragma %q: %w", pragma, err)
		}
	}
	return nil
}
