// Package statedb stores per-session view state and panel layouts in SQLite.
package statedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sjoeboo/dockyard/internal/logging"
)

// ErrNotFound is returned when a session has no stored row.
var ErrNotFound = errors.New("statedb: not found")

const schema = `
CREATE TABLE IF NOT EXISTS view_state (
	session_id TEXT PRIMARY KEY,
	data TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS layouts (
	session_id TEXT PRIMARY KEY,
	data TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// DB is the persistence gateway.
type DB struct {
	db   *sql.DB
	path string
	log  *slog.Logger
}

// Open creates or opens the database at path. ":memory:" opens a private
// in-memory database.
func Open(path string) (*DB, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	// Single connection: SQLite has one writer and :memory: is per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init state schema: %w", err)
	}

	return &DB{db: db, path: path, log: logging.ForComponent(logging.CompStateDB)}, nil
}

// Path returns the file the database was opened from.
func (d *DB) Path() string { return d.path }

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) get(ctx context.Context, table, sessionID string) ([]byte, error) {
	var data string
	err := d.db.QueryRowContext(ctx, "SELECT data FROM "+table+" WHERE session_id = ?", sessionID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s for %s: %w", table, sessionID, err)
	}
	return []byte(data), nil
}

func (d *DB) put(ctx context.Context, table, sessionID string, data []byte) error {
	_, err := d.db.ExecContext(ctx,
		"INSERT INTO "+table+" (session_id, data, updated_at) VALUES (?, ?, ?) "+
			"ON CONFLICT(session_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at",
		sessionID, string(data), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("write %s for %s: %w", table, sessionID, err)
	}
	d.log.Debug("state written", slog.String("table", table), slog.String("session", sessionID), slog.Int("bytes", len(data)))
	return nil
}

// GetViewState returns the stored view state JSON for a session.
func (d *DB) GetViewState(ctx context.Context, sessionID string) ([]byte, error) {
	return d.get(ctx, "view_state", sessionID)
}

// SetViewState stores view state JSON for a session.
func (d *DB) SetViewState(ctx context.Context, sessionID string, data []byte) error {
	return d.put(ctx, "view_state", sessionID, data)
}

// DeleteViewState removes a session's view state. Deleting a missing row is not an error.
func (d *DB) DeleteViewState(ctx context.Context, sessionID string) error {
	if _, err := d.db.ExecContext(ctx, "DELETE FROM view_state WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("delete view_state for %s: %w", sessionID, err)
	}
	return nil
}

// GetLayout returns the stored layout JSON for a session.
func (d *DB) GetLayout(ctx context.Context, sessionID string) ([]byte, error) {
	return d.get(ctx, "layouts", sessionID)
}

// SetLayout stores layout JSON for a session.
func (d *DB) SetLayout(ctx context.Context, sessionID string, data []byte) error {
	return d.put(ctx, "layouts", sessionID, data)
}

// Sessions lists session ids with any stored state, most recently updated first.
func (d *DB) Sessions(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT session_id FROM (
			SELECT session_id, updated_at FROM view_state
			UNION ALL
			SELECT session_id, updated_at FROM layouts
		) GROUP BY session_id ORDER BY MAX(updated_at) DESC, session_id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
