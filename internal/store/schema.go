// Package store provides the SQLite-backed page index and revision chain,
// with optional FTS5 full-text search over head revisions.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS areas (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	title      TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS pages (
	area_id      TEXT NOT NULL REFERENCES areas(id),
	path         TEXT NOT NULL,
	parent_path  TEXT NOT NULL DEFAULT '',
	parent_paths TEXT NOT NULL DEFAULT '[]',
	tags         TEXT NOT NULL DEFAULT '[]',
	deps         BLOB,
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL,
	PRIMARY KEY (area_id, path)
);

CREATE INDEX IF NOT EXISTS idx_pages_parent ON pages(area_id, parent_path, path);
CREATE INDEX IF NOT EXISTS idx_pages_updated ON pages(area_id, updated_at DESC, path);

CREATE TABLE IF NOT EXISTS page_links (
	area_id TEXT NOT NULL,
	source  TEXT NOT NULL,
	target  TEXT NOT NULL,
	pos     INTEGER NOT NULL DEFAULT 0,
	UNIQUE(area_id, source, target)
);

CREATE INDEX IF NOT EXISTS idx_page_links_target ON page_links(area_id, target);

CREATE TABLE IF NOT EXISTS revision_heads (
	area_id    TEXT NOT NULL REFERENCES areas(id),
	path       TEXT NOT NULL,
	generation INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	author_key TEXT NOT NULL DEFAULT '',
	editor_key TEXT NOT NULL DEFAULT '',
	editor_ip  TEXT NOT NULL DEFAULT '',
	title      TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL DEFAULT '',
	body_raw   TEXT NOT NULL DEFAULT '',
	toc        TEXT NOT NULL DEFAULT '',
	format     TEXT NOT NULL DEFAULT '',
	notes      TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (area_id, path)
);

CREATE TABLE IF NOT EXISTS revision_archive (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	area_id    TEXT NOT NULL,
	path       TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	author_key TEXT NOT NULL DEFAULT '',
	editor_key TEXT NOT NULL DEFAULT '',
	editor_ip  TEXT NOT NULL DEFAULT '',
	title      TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL DEFAULT '',
	body_raw   TEXT NOT NULL DEFAULT '',
	toc        TEXT NOT NULL DEFAULT '',
	format     TEXT NOT NULL DEFAULT '',
	notes      TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_revision_archive_page ON revision_archive(area_id, path, updated_at DESC, id DESC);

CREATE TABLE IF NOT EXISTS pastes (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	area_id    TEXT NOT NULL REFERENCES areas(id),
	user_key   TEXT NOT NULL DEFAULT '',
	code_raw   TEXT NOT NULL,
	code       TEXT NOT NULL DEFAULT '',
	language   TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pastes_area ON pastes(area_id, id DESC);
`

// DefaultRetries is how many times a save transaction is retried after a
// concurrent modification before ErrWriteConflict is returned.
const DefaultRetries = 3

// DB wraps a sql.DB with page, revision and paste operations.
type DB struct {
	conn    *sql.DB
	retries int
	now     func() time.Time
}

// Option configures a DB.
type Option func(*DB)

// WithRetries sets the save retry budget. Negative values are ignored.
func WithRetries(n int) Option {
	return func(db *DB) {
		if n >= 0 {
			db.retries = n
		}
	}
}

// WithClock overrides the time source used to stamp revisions.
func WithClock(now func() time.Time) Option {
	return func(db *DB) {
		if now != nil {
			db.now = now
		}
	}
}

// Open opens (or creates) the SQLite database and applies the schema.
// Transactions take the write lock up front so that two saves never
// deadlock upgrading a read lock.
func Open(dsn string, opts ...Option) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
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
	db := &DB{conn: conn, retries: DefaultRetries, now: time.Now}
	for _, o := range opts {
		o(db)
	}
	return db, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

func toUnix(t time.Time) int64 { return t.UTC().UnixNano() }

func fromUnix(n int64) time.Time { return time.Unix(0, n).UTC() }
