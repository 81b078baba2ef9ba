// Package postgres is the PostgreSQL driver for the blacklist store, for
// multi-instance deployments that need revocation state shared across
// replicas.
package postgres

import (
	"context"

	"github.com/haulaway/authcore/internal/authcore/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxPool is a minimal abstraction over a Postgres connection pool, satisfied
// by *pgxpool.Pool and by fakes in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Store implements store.Store on top of a pgx pool.
type Store struct {
	pool PgxPool
	dsn  string
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, dsn: dsn}, nil
}

// NewStoreWithPool wraps an existing pool; used by tests.
func NewStoreWithPool(pool PgxPool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Blacklist() store.Blacklist { return &blacklistRepo{pool: s.pool} }
