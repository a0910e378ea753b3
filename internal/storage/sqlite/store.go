// Package sqlite implements the embedded pool store.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Store is the embedded SQLite-backed store.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens the database file, creating it and its directory when
// missing, and migrates the schema to the current version.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}

	if _, _, err := Migrate(db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, logger: logger}, nil
}

// OpenDB opens the raw database handle without migrating. Used by the
// db subcommands to inspect and migrate explicitly.
func OpenDB(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func dsn(path string) string {
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)"
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Version returns the current schema version.
func (s *Store) Version() (int, error) {
	return SchemaVersion(s.db)
}
