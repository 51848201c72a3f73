package repository

import (
	"context"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations applies every pending migration.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	goose.SetBaseFS(migrationsFS)
	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	return nil
}

// MigrationVersion returns the current schema version.
func MigrationVersion(ctx context.Context, db *gorm.DB) (int64, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return 0, err
	}
	if err := goose.SetDialect("sqlite3"); err != nil {
		return 0, err
	}
	goose.SetBaseFS(migrationsFS)
	return goose.GetDBVersionContext(ctx, sqlDB)
}
