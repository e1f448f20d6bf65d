// Package sqlite provides the local single-user runtime.Store backed by
// modernc.org/sqlite, grounded on the retrieved sqlite3 store's
// connection-setup conventions (WAL journal mode, single writer
// connection, PRAGMA foreign_keys) adapted here to a single
// JSON-blob-per-session table rather than a relational schema, since
// ExecutionSession's step list is read and written as one unit per §4.6
// and never queried by individual step.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/mindscape-ai/core/internal/runtime"
)

const schema = `
CREATE TABLE IF NOT EXISTS execution_sessions (
	execution_id TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	status       TEXT NOT NULL,
	document     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_execution_sessions_workspace ON execution_sessions(workspace_id);
`

// Store is a sqlite-backed runtime.Store for the local adapter's
// DATABASE_PATH persistence (§6).
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and
// ensures its schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: open %q: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store/sqlite: ping: %w", err)
	}

	// sqlite is single-writer; serialize all access through one connection
	// so concurrent playbook sessions never collide on a locked database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store/sqlite: set WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store/sqlite: enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store/sqlite: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ErrNotFound indicates no session exists for the requested execution ID.
var ErrNotFound = errors.New("store/sqlite: execution session not found")

// Create implements runtime.Store.
func (s *Store) Create(ctx context.Context, session *runtime.ExecutionSession) error {
	doc, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("store/sqlite: marshal session: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO execution_sessions (execution_id, workspace_id, status, document) VALUES (?, ?, ?, ?)`,
		session.ExecutionID, session.WorkspaceID, string(session.Status), string(doc))
	if err != nil {
		return fmt.Errorf("store/sqlite: insert session %q: %w", session.ExecutionID, err)
	}
	return nil
}

// Update implements runtime.Store, rejecting the write if the stored
// session has already reached a terminal state.
func (s *Store) Update(ctx context.Context, session *runtime.ExecutionSession) error {
	existing, err := s.Get(ctx, session.ExecutionID)
	if err != nil {
		return err
	}
	if existing.Status.Terminal() {
		return runtime.ErrTerminal
	}

	doc, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("store/sqlite: marshal session: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE execution_sessions SET status = ?, document = ? WHERE execution_id = ?`,
		string(session.Status), string(doc), session.ExecutionID)
	if err != nil {
		return fmt.Errorf("store/sqlite: update session %q: %w", session.ExecutionID, err)
	}
	return nil
}

// Get implements runtime.Store.
func (s *Store) Get(ctx context.Context, executionID string) (*runtime.ExecutionSession, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM execution_sessions WHERE execution_id = ?`, executionID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: get session %q: %w", executionID, err)
	}
	var session runtime.ExecutionSession
	if err := json.Unmarshal([]byte(doc), &session); err != nil {
		return nil, fmt.Errorf("store/sqlite: unmarshal session %q: %w", executionID, err)
	}
	return &session, nil
}

// ListByWorkspace implements runtime.Store.
func (s *Store) ListByWorkspace(ctx context.Context, workspaceID string) ([]*runtime.ExecutionSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document FROM execution_sessions WHERE workspace_id = ?`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("store/sqlite: list workspace %q: %w", workspaceID, err)
	}
	defer rows.Close()

	var out []*runtime.ExecutionSession
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("store/sqlite: scan session row: %w", err)
		}
		var session runtime.ExecutionSession
		if err := json.Unmarshal([]byte(doc), &session); err != nil {
			return nil, fmt.Errorf("store/sqlite: unmarshal session row: %w", err)
		}
		out = append(out, &session)
	}
	return out, rows.Err()
}
