package catalogstore

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate applies pending schema migrations to the Catalogue Store's
// Postgres database using the stdlib *sql.DB driven by the pgx stdlib
// adapter — goose operates on database/sql, the runtime path uses
// pgxpool directly.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrationFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("catalogstore: set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("catalogstore: migrate: %w", err)
	}
	return nil
}
