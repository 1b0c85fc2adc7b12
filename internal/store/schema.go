// Package store provides SQLite-backed, user-scoped persistence for contacts,
// activity logs and webhooks, with optional FTS5 contact search.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS contacts (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL,
	company    TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT '',
	source     TEXT NOT NULL DEFAULT '',
	tags       TEXT NOT NULL DEFAULT '[]',
	notes      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_contacts_user ON contacts(user_id, updated_at);

CREATE TABLE IF NOT EXISTS activity_logs (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	contact_id  TEXT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
	action      TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL,
	reminder_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_activity_contact ON activity_logs(contact_id, created_at);
CREATE INDEX IF NOT EXISTS idx_activity_reminder ON activity_logs(user_id, reminder_at);

CREATE TABLE IF NOT EXISTS webhooks (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	event_trigger TEXT NOT NULL,
	url           TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL,
	UNIQUE(user_id, event_trigger)
);

CREATE INDEX IF NOT EXISTS idx_webhooks_trigger ON webhooks(event_trigger);
`

// DB wraps a sql.DB with CRM-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Ping checks the connection; used by the readiness probe.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
