package repository

import (
	"context"
	"fmt"
)

// Storage drivers accepted by OpenStore.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// OpenStore opens the configured backend. For SQLite it also applies
// pending migrations.
func OpenStore(ctx context.Context, driver, path string, opts ...Option) (Store, error) {
	switch driver {
	case DriverSQLite, "":
		db, err := Open(path)
		if err != nil {
			return nil, err
		}
		if err := RunMigrations(ctx, db); err != nil {
			return nil, err
		}
		return NewSQLStore(ctx, db, opts...)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
