// Package report persists harness run history to SQLite.
//
// Recording is optional (the CLI only opens a store when --db is given)
// and never affects an invocation's outcome: a run is recorded after the
// harness has already succeeded or failed.
package report

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Run statuses stored in the runs table.
const (
	StatusPass        = "pass"
	StatusFail        = "fail"
	StatusStall       = "stall"
	StatusLaunchError = "launch_error"
	StatusDecodeError = "decode_error"
	StatusError       = "error"
)

// Run is one recorded harness invocation.
type Run struct {
	// ID is a UUIDv7; RecordRun assigns one when empty.
	ID string

	// Scenario names what was run: a scenario name or a flow file path.
	Scenario string

	// Status is one of the Status* constants.
	Status string

	// Expected is the message count the invocation asked for.
	Expected int

	// Collected is how many messages were actually decoded.
	Collected int

	// Messages is the canonical JSON array of collected payloads.
	Messages string

	// Duration is the wall time of the invocation.
	Duration time.Duration

	// StartedAt is when the invocation began, stored in UTC.
	StartedAt time.Time
}

// Store provides durable run history. Uses SQLite with WAL mode.
type Store struct {
	db *sql.DB
}

// Open creates or opens the run database at path, applying pragmas and
// the schema. Idempotent.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening run database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to run database: %w", err)
	}

	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("executing %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying run schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordRun inserts one run row, assigning an ID if the caller did not.
func (s *Store) RecordRun(ctx context.Context, r Run) error {
	if r.ID == "" {
		r.ID = uuid.Must(uuid.NewV7()).String()
	}
	if r.Messages == "" {
		r.Messages = "[]"
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, scenario, status, expected, collected, messages, duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		r.Scenario,
		r.Status,
		r.Expected,
		r.Collected,
		r.Messages,
		r.Duration.Milliseconds(),
		r.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. A non-positive
// limit returns everything.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT id, scenario, status, expected, collected, messages, duration_ms, started_at
		FROM runs
		ORDER BY started_at DESC, id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var durationMS int64
		var startedAt string
		if err := rows.Scan(&r.ID, &r.Scenario, &r.Status, &r.Expected, &r.Collected, &r.Messages, &durationMS, &startedAt); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		if ts, perr := time.Parse(time.RFC3339Nano, startedAt); perr == nil {
			r.StartedAt = ts
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
