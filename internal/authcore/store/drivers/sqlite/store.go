package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/haulaway/authcore/internal/authcore/store"

	_ "modernc.org/sqlite"
)

// Store is the sqlite-backed implementation of store.Store. It is the default
// driver: the blacklist is small, append-mostly, and self-pruning, so an
// embedded database with WAL enabled holds up fine for a single instance.
type Store struct {
	db  *sql.DB
	dsn string
}

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, dsn: dsn}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Blacklist() store.Blacklist { return &blacklistRepo{db: s.db} }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// isUniqueViolation matches modernc's constraint error text; there is no
// typed error to test against.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
