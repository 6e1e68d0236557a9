package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/promptrunner/internal/domain"
)

const (
	// DefaultListLimit is used when a caller passes a non-positive limit.
	DefaultListLimit = 20
	// MaxListLimit caps ListExecutions.
	MaxListLimit = 200

	maxWriteRetries = 3
	baseRetryDelay  = 100 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex // serialises writers to keep SQLITE_BUSY rare
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS executions (
		id TEXT PRIMARY KEY,
		session_id TEXT,
		prompt TEXT NOT NULL,
		url TEXT,
		success INTEGER NOT NULL DEFAULT 0,
		final_status TEXT NOT NULL,
		total_steps INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_executions_started ON executions(started_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveExecution inserts or replaces an execution summary.
// Implements retry logic with exponential backoff to handle SQLITE_BUSY errors.
func (s *SQLiteStore) SaveExecution(ctx context.Context, exec *domain.Execution) error {
	if exec == nil || exec.ID == "" {
		return fmt.Errorf("execution id is required")
	}

	var err error
	for i := 0; i < maxWriteRetries; i++ {
		if err = s.saveExecutionOnce(ctx, exec); err == nil {
			return nil
		}
		if !isConflict(err) || i == maxWriteRetries-1 {
			break
		}

		delay := baseRetryDelay * time.Duration(1<<i) // 100ms, 200ms, 400ms
		slog.Debug("SaveExecution failed with SQLITE_BUSY, retrying",
			"execution_id", exec.ID,
			"attempt", i+1,
			"delay", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("save execution %s: %w", exec.ID, err)
}

func (s *SQLiteStore) saveExecutionOnce(ctx context.Context, exec *domain.Execution) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	query := `
	INSERT INTO executions (id, session_id, prompt, url, success, final_status, total_steps, error, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		session_id = excluded.session_id,
		success = excluded.success,
		final_status = excluded.final_status,
		total_steps = excluded.total_steps,
		error = excluded.error,
		finished_at = excluded.finished_at`

	_, err := s.db.ExecContext(ctx, query,
		exec.ID, nullString(exec.SessionID), exec.Prompt, nullString(exec.URL),
		boolToInt(exec.Success), string(exec.FinalStatus), exec.TotalSteps,
		nullString(exec.Error), exec.StartedAt.UnixMilli(), exec.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert execution: %w", err)
	}
	return nil
}

// GetExecution retrieves an execution by ID.
func (s *SQLiteStore) GetExecution(ctx context.Context, id string) (*domain.Execution, error) {
	query := `
		SELECT id, session_id, prompt, url, success, final_status, total_steps, error, started_at, finished_at
		FROM executions WHERE id = ?`

	exec, err := scanExecution(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return exec, nil
}

// ListExecutions returns the most recent executions, newest first.
func (s *SQLiteStore) ListExecutions(ctx context.Context, limit int) ([]*domain.Execution, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	query := `
		SELECT id, session_id, prompt, url, success, final_status, total_steps, error, started_at, finished_at
		FROM executions ORDER BY started_at DESC, id LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*domain.Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate executions: %w", err)
	}
	return out, nil
}

// DeleteExecutionsBefore removes executions that started before cutoff.
func (s *SQLiteStore) DeleteExecutionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM executions WHERE started_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete old executions: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(row rowScanner) (*domain.Execution, error) {
	var exec domain.Execution
	var sessionID, url, errMsg sql.NullString
	var success int
	var finalStatus string
	var startedAt, finishedAt int64

	err := row.Scan(
		&exec.ID, &sessionID, &exec.Prompt, &url, &success, &finalStatus,
		&exec.TotalSteps, &errMsg, &startedAt, &finishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan execution row: %w", err)
	}

	exec.SessionID = sessionID.String
	exec.URL = url.String
	exec.Error = errMsg.String
	exec.Success = success != 0
	exec.FinalStatus = domain.FinalStatus(finalStatus)
	exec.StartedAt = time.UnixMilli(startedAt)
	exec.FinishedAt = time.UnixMilli(finishedAt)
	return &exec, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
