package trace

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"edfsched/internal/sched"

	_ "modernc.org/sqlite"
)

// schema contains the DDL for the trace tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id      TEXT NOT NULL,
		tick        INTEGER NOT NULL,
		kind        TEXT NOT NULL,
		task_id     INTEGER NOT NULL DEFAULT 0,
		name        TEXT NOT NULL DEFAULT '',
		deadline    INTEGER NOT NULL DEFAULT 0,
		recorded_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_run_id ON events(run_id, tick)`,
	`CREATE INDEX IF NOT EXISTS idx_events_task ON events(run_id, task_id)`,
}

// SQLiteSink persists records in a SQLite database.
type SQLiteSink struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteSink opens (or creates) a SQLite database at dbPath.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteSink(dbPath string, logger *slog.Logger) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// A single connection keeps ":memory:" databases shared and writes ordered.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteSink{
		db:     db,
		logger: logger.With("component", "trace-store"),
	}, nil
}

// Migrate creates all required tables and indexes.
func (s *SQLiteSink) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLiteSink) Write(rec Record) error {
	_, err := s.db.Exec(
		`INSERT INTO events (run_id, tick, kind, task_id, name, deadline, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, int64(rec.Tick), rec.Kind.String(), int64(rec.TaskID), rec.Name,
		int64(rec.Deadline), rec.Time.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Events returns a run's records in insertion order.
func (s *SQLiteSink) Events(ctx context.Context, runID string) ([]Record, error) {
	s.logger.Debug("sql", "op", "select", "table", "events", "run_id", runID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, tick, kind, task_id, name, deadline, recorded_at
		 FROM events WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec                    Record
			tick, taskID, deadline int64
			kind, recordedAt       string
		)
		if err := rows.Scan(&rec.RunID, &tick, &kind, &taskID, &rec.Name, &deadline, &recordedAt); err != nil {
			return nil, err
		}
		k, ok := sched.ParseStatusKind(kind)
		if !ok {
			return nil, fmt.Errorf("unknown event kind %q", kind)
		}
		rec.Kind = k
		rec.Tick = sched.Tick(tick)
		rec.TaskID = sched.TaskID(taskID)
		rec.Deadline = sched.Tick(deadline)
		if rec.Time, err = time.Parse(time.RFC3339Nano, recordedAt); err != nil {
			return nil, fmt.Errorf("parse recorded_at: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountByKind tallies a run's events per kind.
func (s *SQLiteSink) CountByKind(ctx context.Context, runID string) (map[sched.StatusKind]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, COUNT(*) FROM events WHERE run_id = ? GROUP BY kind`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[sched.StatusKind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		if k, ok := sched.ParseStatusKind(kind); ok {
			counts[k] = n
		}
	}
	return counts, rows.Err()
}

// Close closes the underlying database connection.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
