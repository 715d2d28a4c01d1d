// ABOUTME: SQLite-backed history of ingestion runs.
// ABOUTME: Guards a destination against concurrent runs and records their outcome.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harperreed/healthx/internal/models"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// FileName is the ledger database name inside the data directory.
const FileName = "runs.db"

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run is one ingestion attempt.
type Run struct {
	ID          string           `json:"id" yaml:"id"`
	Destination string           `json:"destination" yaml:"destination"`
	Backend     string           `json:"backend" yaml:"backend"`
	Source      string           `json:"source" yaml:"source"`
	Status      Status           `json:"status" yaml:"status"`
	StartedAt   time.Time        `json:"started_at" yaml:"started_at"`
	FinishedAt  *time.Time       `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Counts      map[string]int64 `json:"counts,omitempty" yaml:"counts,omitempty"`
	Error       string           `json:"error,omitempty" yaml:"error,omitempty"`
}

// Ledger stores runs in a SQLite file.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// DefaultPath returns the ledger path inside dataDir.
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, FileName)
}

// Open opens or creates the ledger at path.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Ledger{db: db, now: time.Now}, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Begin records a new running run for destination. It fails with
// models.ErrRunInProgress while another run for the same destination is
// running, unless force is set, in which case the stale runs are marked failed.
func (l *Ledger) Begin(ctx context.Context, destination, backend, source string, force bool) (*Run, error) {
	now := l.now().UTC()
	if force {
		_, err := l.db.ExecContext(ctx,
			`UPDATE runs SET status = ?, finished_at = ?, error = ? WHERE destination = ? AND status = ?`,
			StatusFailed, formatTime(now), "superseded by a forced run", destination, StatusRunning)
		if err != nil {
			return nil, fmt.Errorf("failed to supersede runs: %w", err)
		}
	}

	run := &Run{
		ID:          ulid.Make().String(),
		Destination: destination,
		Backend:     backend,
		Source:      source,
		Status:      StatusRunning,
		StartedAt:   now,
	}
	res, err := l.db.ExecContext(ctx, `
		INSERT INTO runs (id, destination, backend, source, status, started_at)
		SELECT ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM runs WHERE destination = ? AND status = ?)`,
		run.ID, destination, backend, source, StatusRunning, formatTime(now),
		destination, StatusRunning)
	if err != nil {
		return nil, fmt.Errorf("failed to begin run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to begin run: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrRunInProgress, destination)
	}
	return run, nil
}

// Finish marks the run succeeded and stores its per-table row counts.
func (l *Ledger) Finish(ctx context.Context, id string, counts map[string]int64) error {
	data, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("failed to encode counts: %w", err)
	}
	return l.close(ctx, id, StatusSucceeded, string(data), "")
}

// Fail marks the run failed with cause.
func (l *Ledger) Fail(ctx context.Context, id string, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return l.close(ctx, id, StatusFailed, "", msg)
}

func (l *Ledger) close(ctx context.Context, id string, status Status, counts, msg string) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, counts = ?, error = ? WHERE id = ? AND status = ?`,
		status, formatTime(l.now().UTC()), nullable(counts), nullable(msg), id, StatusRunning)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s is not running", id)
	}
	return nil
}

// Get returns one run.
func (l *Ledger) Get(ctx context.Context, id string) (*Run, error) {
	row := l.db.QueryRowContext(ctx, selectRuns+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	return run, err
}

// List returns up to limit runs, newest first. A limit of 0 returns all.
func (l *Ledger) List(ctx context.Context, limit int) ([]*Run, error) {
	q := selectRuns + ` ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

const selectRuns = `SELECT id, destination, backend, source, status, started_at, finished_at, counts, error FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run                       Run
		started                   string
		finished, counts, errText sql.NullString
	)
	if err := s.Scan(&run.ID, &run.Destination, &run.Backend, &run.Source, &run.Status,
		&started, &finished, &counts, &errText); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	var err error
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return nil, fmt.Errorf("failed to parse started_at: %w", err)
	}
	if finished.Valid {
		t, err := time.Parse(time.RFC3339Nano, finished.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse finished_at: %w", err)
		}
		run.FinishedAt = &t
	}
	if counts.Valid && counts.String != "" {
		if err := json.Unmarshal([]byte(counts.String), &run.Counts); err != nil {
			return nil, fmt.Errorf("failed to decode counts: %w", err)
		}
	}
	run.Error = errText.String
	return &run, nil
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
