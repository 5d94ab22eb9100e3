// Package store persists build history and rendered bodies in SQLite.
package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/contentbuilder/internal/foundation/errors"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteStore is a SQLite database holding the builds and render_cache tables.
type SQLiteStore struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// Open opens (creating if needed) the database at dbPath. Use MemoryPath for
// an in-memory database.
func Open(dbPath string) (*SQLiteStore, error) {
	if dbPath != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, errors.WrapError(err, errors.CategoryFileSystem, "create database directory").
				WithPath(dbPath).Build()
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryStore, "open sqlite database").
			WithPath(dbPath).Build()
	}
	// A single connection keeps ":memory:" databases shared across queries.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, path: dbPath}
	if err := s.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, errors.WrapError(err, errors.CategoryStore, "initialize schema").
			WithPath(dbPath).Build()
	}
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		status TEXT NOT NULL,
		policy TEXT NOT NULL,
		documents INTEGER NOT NULL,
		failures INTEGER NOT NULL,
		cache_hits INTEGER NOT NULL DEFAULT 0,
		commit_hash TEXT,
		counts TEXT,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_builds_started_at ON builds(started_at);
	CREATE TABLE IF NOT EXISTS render_cache (
		key TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		used_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_render_cache_used_at ON render_cache(used_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database location.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func storeError(err error, msg string) error {
	return errors.WrapError(err, errors.CategoryStore, msg).Build()
}
