// Package history records one row per mirror run in a local SQLite
// database. It is bookkeeping for operators: the mirror never reads it to
// decide what to fetch.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/tonimelisma/gdrive-mirror/internal/mirror"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

// DefaultListLimit is the number of runs List returns when limit <= 0.
const DefaultListLimit = 20

const (
	sqlInsertRun = `INSERT INTO runs (id, destination, trashed, dry_run, started_at, status)
		VALUES (?, ?, ?, ?, ?, ?)`

	sqlFinishRun = `UPDATE runs SET
		 finished_at = ?, status = ?, folders = ?, fetched = ?, skipped = ?,
		 warnings = ?, bytes_written = ?, error = ?
		WHERE id = ?`

	sqlListRuns = `SELECT id, destination, trashed, dry_run, started_at, finished_at,
		 status, folders, fetched, skipped, warnings, bytes_written, error
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`
)

// Run is one recorded mirror run.
type Run struct {
	ID          string
	Destination string
	Trashed     bool
	DryRun      bool
	StartedAt   time.Time
	FinishedAt  time.Time // zero while running or if the process died
	Status      string
	Folders     int
	Fetched     int
	Skipped     int
	Warnings    int
	Bytes       int64
	Error       string
}

// Duration is the wall time of a finished run, zero otherwise.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}

	return r.FinishedAt.Sub(r.StartedAt)
}

// Store is the run history database.
type Store struct {
	db     *sql.DB
	clock  clockwork.Clock
	logger *slog.Logger
}

// Open opens (creating if needed) the history database at path and applies
// migrations. A nil clock uses the real clock.
func Open(ctx context.Context, path string, clock clockwork.Clock, logger *slog.Logger) (*Store, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("history: creating directory for %s: %w", path, err)
	}

	// DSN parameters ensure pragmas apply to every connection from the pool.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: opening database %s: %w", path, err)
	}

	// Sole-writer pattern: only one connection writes at a time.
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("history store opened", slog.String("db_path", path))

	return &Store{db: db, clock: clock, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Begin records the start of a run and returns it with a fresh ID.
func (s *Store) Begin(ctx context.Context, cfg mirror.SyncConfig) (*Run, error) {
	run := &Run{
		ID:          uuid.NewString(),
		Destination: cfg.Destination,
		Trashed:     cfg.IncludeTrashed,
		DryRun:      cfg.DryRun,
		StartedAt:   s.clock.Now().UTC(),
		Status:      StatusRunning,
	}

	_, err := s.db.ExecContext(ctx, sqlInsertRun,
		run.ID, run.Destination, run.Trashed, run.DryRun, run.StartedAt.UnixNano(), run.Status)
	if err != nil {
		return nil, fmt.Errorf("history: recording run start: %w", err)
	}

	return run, nil
}

// Finish records the outcome of run from the walker's report and the error
// Run returned. report may be nil when the run never started walking.
func (s *Store) Finish(ctx context.Context, run *Run, report *mirror.Report, runErr error) error {
	run.FinishedAt = s.clock.Now().UTC()
	run.Status = statusFor(runErr)

	if runErr != nil {
		run.Error = runErr.Error()
	}

	if report != nil {
		run.Folders = report.Folders
		run.Fetched = report.Fetched
		run.Skipped = report.Skipped
		run.Warnings = len(report.Warnings)
		run.Bytes = report.BytesWritten
	}

	res, err := s.db.ExecContext(ctx, sqlFinishRun,
		run.FinishedAt.UnixNano(), run.Status, run.Folders, run.Fetched, run.Skipped,
		run.Warnings, run.Bytes, run.Error, run.ID)
	if err != nil {
		return fmt.Errorf("history: recording run %s outcome: %w", run.ID, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("history: run %s not found", run.ID)
	}

	s.logger.Debug("run recorded",
		slog.String("run_id", run.ID),
		slog.String("status", run.Status),
		slog.Duration("duration", run.Duration()),
	)

	return nil
}

func statusFor(err error) string {
	switch {
	case err == nil:
		return StatusSucceeded
	case errors.Is(err, context.Canceled):
		return StatusCanceled
	default:
		return StatusFailed
	}
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, sqlListRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("history: listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run

	for rows.Next() {
		var (
			r        Run
			started  int64
			finished sql.NullInt64
		)

		if err := rows.Scan(&r.ID, &r.Destination, &r.Trashed, &r.DryRun, &started, &finished,
			&r.Status, &r.Folders, &r.Fetched, &r.Skipped, &r.Warnings, &r.Bytes, &r.Error); err != nil {
			return nil, fmt.Errorf("history: scanning run: %w", err)
		}

		r.StartedAt = time.Unix(0, started).UTC()
		if finished.Valid {
			r.FinishedAt = time.Unix(0, finished.Int64).UTC()
		}

		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterating runs: %w", err)
	}

	return runs, nil
}
