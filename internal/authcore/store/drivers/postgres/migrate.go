package postgres

import (
	"database/sql"

	"github.com/haulaway/authcore/internal/authcore/store/drivers/postgres/migrations"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// ApplyMigrations runs all pending migrations from the embedded filesystem.
// goose needs a database/sql handle, so a short-lived stdlib connection is
// opened alongside the pool.
func (s *Store) ApplyMigrations() error {
	db, err := sql.Open("pgx", s.dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return goose.Up(db, ".")
}
