package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection
type DB struct {
	conn *sql.DB
	Path string
}

const schema = `
CREATE TABLE IF NOT EXISTS datasets (
	name       TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS items (
	id                 TEXT PRIMARY KEY,
	dataset            TEXT NOT NULL REFERENCES datasets(name) ON DELETE CASCADE,
	filepath           TEXT NOT NULL,
	metadata           TEXT,
	duplicate_group_id TEXT,
	embedding          BLOB,
	created_at         INTEGER NOT NULL,
	UNIQUE (dataset, filepath)
);
CREATE INDEX IF NOT EXISTS idx_items_group ON items(dataset, duplicate_group_id);
CREATE TABLE IF NOT EXISTS saved_views (
	dataset     TEXT NOT NULL REFERENCES datasets(name) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	kind        TEXT NOT NULL,
	group_field TEXT,
	item_ids    TEXT NOT NULL,
	created_at  INTEGER NOT NULL,
	PRIMARY KEY (dataset, name)
);
CREATE TABLE IF NOT EXISTS similarity_runs (
	dataset    TEXT NOT NULL REFERENCES datasets(name) ON DELETE CASCADE,
	key        TEXT NOT NULL,
	metric     TEXT NOT NULL,
	num_items  INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (dataset, key)
);
`

// OpenDB opens a SQLite database with WAL mode and foreign keys enabled,
// creating the schema if it does not exist yet.
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// In-memory databases are per-connection
	if path == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{conn: conn, Path: path}, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.conn.Close()
}
