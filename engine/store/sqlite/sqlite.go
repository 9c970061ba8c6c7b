package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// Register modernc SQLite driver with database/sql.
	_ "modernc.org/sqlite"
)

// Store wraps a SQLite database holding the loom metadata schema.
type Store struct {
	db   *sql.DB
	path string
}

func buildDSN(path string) string {
	if path == ":memory:" {
		return "file::memory:?cache=shared&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	}
	pragmas := []string{
		"_pragma=journal_mode(WAL)",
		"_pragma=foreign_keys(ON)",
		"_pragma=busy_timeout(5000)",
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(pragmas, "&"))
}

// NewStore opens (creating if necessary) the SQLite database at path.
// Use ":memory:" for an in-memory store.
func NewStore(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", buildDSN(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	// The modernc driver serializes access per connection; a single
	// connection avoids table-lock races between writers.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping database: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// DB exposes the underlying database handle.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	return s.db.Close()
}
