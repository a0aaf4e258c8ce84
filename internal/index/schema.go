// Package index provides a SQLite-backed index of canvases, cards and
// connections with optional FTS5 full-text search over card text.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS canvases (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL DEFAULT '',
	description      TEXT NOT NULL DEFAULT '',
	checksum         TEXT NOT NULL DEFAULT '',
	card_count       INTEGER NOT NULL DEFAULT 0,
	connection_count INTEGER NOT NULL DEFAULT 0,
	updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS cards (
	canvas_id TEXT NOT NULL REFERENCES canvases(id) ON DELETE CASCADE,
	card_id   TEXT NOT NULL,
	type      TEXT NOT NULL DEFAULT 'note',
	title     TEXT NOT NULL DEFAULT '',
	body      TEXT NOT NULL DEFAULT '',
	tags      TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (canvas_id, card_id)
);

CREATE TABLE IF NOT EXISTS connections (
	canvas_id TEXT NOT NULL REFERENCES canvases(id) ON DELETE CASCADE,
	conn_id   TEXT NOT NULL,
	from_id   TEXT NOT NULL,
	to_id     TEXT NOT NULL,
	type      TEXT NOT NULL DEFAULT 'simple',
	PRIMARY KEY (canvas_id, conn_id)
);

CREATE INDEX IF NOT EXISTS idx_connections_from ON connections(canvas_id, from_id);
CREATE INDEX IF NOT EXISTS idx_connections_to ON connections(canvas_id, to_id);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
