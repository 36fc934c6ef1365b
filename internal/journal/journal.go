// Package journal records session lifecycles and execution outcomes in a
// local sqlite database. It is purely observational: every write is
// best-effort and a broken journal never blocks a sandbox.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			engine TEXT NOT NULL,
			template TEXT NOT NULL,
			container_id TEXT NOT NULL DEFAULT '',
			created_ts TEXT NOT NULL,
			prepared_ts TEXT NOT NULL DEFAULT '',
			cleaned_ts TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS executions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			ts TEXT NOT NULL DEFAULT (datetime('now')),
			success INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			log_bytes INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY(session_id) REFERENCES sessions(id)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *Store) RecordSessionCreated(ctx context.Context, id, engine, template string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(id, engine, template, created_ts) VALUES(?,?,?,?)`,
		id, engine, template, at.UTC().Format(timeLayout))
	return err
}

func (s *Store) RecordSessionPrepared(ctx context.Context, id, containerID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET container_id = ?, prepared_ts = ? WHERE id = ?`,
		containerID, at.UTC().Format(timeLayout), id)
	return err
}

func (s *Store) RecordSessionCleaned(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET cleaned_ts = ? WHERE id = ?`,
		at.UTC().Format(timeLayout), id)
	return err
}

func (s *Store) RecordExecution(ctx context.Context, sessionID string, success bool, duration time.Duration, logBytes int) error {
	successInt := 0
	if success {
		successInt = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO executions(session_id, success, duration_ms, log_bytes) VALUES(?,?,?,?)`,
		sessionID, successInt, duration.Milliseconds(), logBytes)
	return err
}

// Summary aggregates journal contents for reporting.
type Summary struct {
	Sessions   int
	Executions int
	Failures   int
}

func (s *Store) GetSummary(ctx context.Context) (Summary, error) {
	var out Summary
	row := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM sessions),
			(SELECT COUNT(*) FROM executions),
			(SELECT COUNT(*) FROM executions WHERE success = 0)
	`)
	if err := row.Scan(&out.Sessions, &out.Executions, &out.Failures); err != nil {
		return Summary{}, err
	}
	return out, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

const timeLayout = "2006-01-02T15:04:05Z07:00"
