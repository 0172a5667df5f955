// internal/storage/init.go
package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"
	log "github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationPath = "migrations"

func runMigrations(db *sql.DB) error {
	const op = "storage.migrations"

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err := goose.Up(db, migrationPath)
	if err != nil {
		if errors.Is(err, goose.ErrNoNextVersion) {
			log.Info("No migrations to apply.")
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("Database migrations applied successfully.")
	return nil
}
