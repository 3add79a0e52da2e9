// Package index persists Norg document records in SQLite and keeps them in
// step with a workspace on disk.
package index

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// created/updated hold author-supplied strings and stay TEXT so the driver
// never coerces them into timestamps.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS docs (
	id          INTEGER PRIMARY KEY,
	path        TEXT UNIQUE NOT NULL,
	title       TEXT,
	description TEXT,
	authors     TEXT,
	created     TEXT,
	updated     TEXT,
	indexed     DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TRIGGER IF NOT EXISTS docs_indexed
AFTER UPDATE OF path, title, description, authors, created, updated ON docs
FOR EACH ROW
BEGIN
	UPDATE docs SET indexed = CURRENT_TIMESTAMP WHERE id = old.id;
END;

CREATE TABLE IF NOT EXISTS categories (
	id      INTEGER PRIMARY KEY,
	file_id INTEGER REFERENCES docs(id) ON DELETE CASCADE,
	name    TEXT NOT NULL,
	UNIQUE (file_id, name) ON CONFLICT IGNORE
);

CREATE TABLE IF NOT EXISTS tasks (
	task_id   INTEGER PRIMARY KEY,
	file_id   INTEGER NOT NULL REFERENCES docs(id) ON DELETE CASCADE,
	text      TEXT NOT NULL,
	status    TEXT NOT NULL,
	due       DATETIME,
	starts    DATETIME,
	recurs    DATETIME,
	priority  TEXT,
	timestamp DATETIME,
	parent_id INTEGER REFERENCES tasks(task_id) ON DELETE CASCADE,
	created   TEXT DEFAULT CURRENT_TIMESTAMP,
	updated   TEXT DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (file_id, parent_id, text) ON CONFLICT ABORT
);

CREATE INDEX IF NOT EXISTS idx_categories_name ON categories(name);
CREATE INDEX IF NOT EXISTS idx_tasks_file ON tasks(file_id);
`

// Store is the document index. Mutations go through a single read-write
// connection and are serialised; ad-hoc reads use a separate read-only one.
type Store struct {
	conn   *sql.DB
	read   *sql.DB
	logger *slog.Logger

	mu sync.Mutex // held for every mutation
}

// Open opens (or creates) the SQLite database at path and applies the schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := sql.Open("sqlite3", "file:"+path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply schema: %w", err)
	}

	read, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: open read-only db: %w", err)
	}
	if err := read.Ping(); err != nil {
		conn.Close()
		read.Close()
		return nil, fmt.Errorf("index: ping read-only: %w", err)
	}

	return &Store{conn: conn, read: read, logger: logger}, nil
}

// Close closes both connections.
func (s *Store) Close() error {
	rerr := s.read.Close()
	if err := s.conn.Close(); err != nil {
		return err
	}
	return rerr
}
