// Package audit records gate verdicts and side effects in a local SQLite
// database.
//
// The trail is append-only: one row per recorded verdict or custom action.
// It exists so a denied session can be reconstructed after the fact without
// the transcript.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	schemaVersion = 1

	schema = `
CREATE TABLE IF NOT EXISTS schema_info (
	version INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS entries (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	gate       TEXT NOT NULL,
	event      TEXT NOT NULL,
	verdict    TEXT NOT NULL,
	message    TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_session ON entries(session_id, created_at);
`
)

// Entry is one audit record.
type Entry struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Gate      string    `json:"gate"`
	Event     string    `json:"event"`
	Verdict   string    `json:"verdict"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the SQLite-backed audit trail.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the audit database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("audit database path not configured")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}

	// Hook invocations are short-lived single writers; WAL keeps concurrent
	// invocations from tripping over each other.
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=2000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring audit database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating audit schema: %w", err)
	}
	if err := ensureVersion(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func ensureVersion(db *sql.DB) error {
	var version int
	err := db.QueryRow("SELECT version FROM schema_info LIMIT 1").Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.Exec("INSERT INTO schema_info (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("stamping audit schema version: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("reading audit schema version: %w", err)
	case version > schemaVersion:
		return fmt.Errorf("audit database schema version %d is newer than supported %d", version, schemaVersion)
	default:
		return nil
	}
}

// Record appends one entry. A zero ID or CreatedAt is filled in.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (id, session_id, gate, event, verdict, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.Gate, e.Event, e.Verdict, e.Message, e.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("recording audit entry: %w", err)
	}
	return nil
}

// BySession returns the most recent entries for a session, newest first.
func (s *Store) BySession(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, gate, event, verdict, message, created_at
		 FROM entries WHERE session_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created int64
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Gate, &e.Event, &e.Verdict, &e.Message, &created); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.CreatedAt = time.Unix(created, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}
	return entries, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
