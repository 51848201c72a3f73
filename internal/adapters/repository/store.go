// Package repository persists the catalog, the metadata cache and the
// completion ledger.
package repository

import (
	"context"

	"github.com/okian/vnclub/internal/domain/catalog"
	"github.com/okian/vnclub/internal/domain/ledger"
	"github.com/okian/vnclub/internal/domain/metadata"
)

// Store is the full persistence surface used by the service.
type Store interface {
	catalog.Store
	metadata.Store
	ledger.Store

	// Ping checks that the backing storage is reachable.
	Ping(ctx context.Context) error
	// Close releases the underlying resources.
	Close() error
}

var (
	_ Store = (*SQLStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
