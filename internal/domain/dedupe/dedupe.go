// Package dedupe guards against concurrent duplicate submissions.
//
// The ledger's unique index is the source of truth for "one completion per
// user and title". The guard here rejects a second submission for the same
// key while the first is still in flight, so the loser gets a clean
// duplicate error without racing the storage layer.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper tracks keys that are currently being processed.
type Deduper interface {
	// Acquire atomically marks key as in flight.
	// Returns false if key is already held by another caller.
	Acquire(ctx context.Context, key string) bool

	// Release clears key so it may be acquired again.
	// Releasing a key that is not held is a no-op.
	Release(ctx context.Context, key string)

	// Size returns the number of keys currently held.
	Size() int64
}

// inFlight implements Deduper with a mutex-protected set.
type inFlight struct {
	mu   sync.Mutex
	held map[string]struct{}
	size atomic.Int64
}

// NewInFlight creates an unbounded in-flight guard. Only a held key is ever
// refused, however many distinct keys are in flight.
func NewInFlight() Deduper {
	return &inFlight{held: make(map[string]struct{})}
}

// Acquire marks key as in flight.
func (d *inFlight) Acquire(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.held[key]; exists {
		return false
	}
	d.held[key] = struct{}{}
	d.size.Add(1)
	return true
}

// Release clears key.
func (d *inFlight) Release(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.held[key]; exists {
		delete(d.held, key)
		d.size.Add(-1)
	}
}

// Size returns the current number of held keys.
func (d *inFlight) Size() int64 {
	return d.size.Load()
}

// Key builds the guard key for a (user, title) pair.
func Key(userID, titleID string) string {
	return userID + "\x00" + titleID
}
