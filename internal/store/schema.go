// Package store provides the SQLite-backed schema store: one row per
// SchemaProject, keyed by id with a uniqueness index on widget_key, plus the
// bundle-import ledger used by the auto-import watcher.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS schemas (
	id               TEXT PRIMARY KEY,
	widget_key       TEXT NOT NULL UNIQUE,
	name             TEXT NOT NULL DEFAULT '',
	description      TEXT NOT NULL DEFAULT '',
	type             TEXT NOT NULL DEFAULT 'static',
	channel_keys     TEXT NOT NULL DEFAULT '[]',
	channel_aliases  TEXT NOT NULL DEFAULT '[]',
	self_channel_key TEXT NOT NULL DEFAULT '',
	nested_schemas   TEXT NOT NULL DEFAULT '[]',
	tree             TEXT NOT NULL DEFAULT '{}',
	created_at       INTEGER NOT NULL DEFAULT 0,
	updated_at       INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_schemas_type    ON schemas(type);
CREATE INDEX IF NOT EXISTS idx_schemas_updated ON schemas(updated_at);

CREATE TABLE IF NOT EXISTS bundle_imports (
	path     TEXT PRIMARY KEY,
	checksum TEXT NOT NULL DEFAULT ''
);
`

// DB wraps a sql.DB with schema-store operations.
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
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
