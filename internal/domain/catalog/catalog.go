// Package catalog manages promoted titles and their validity windows.
//
// Reads are served from a snapshot of the backing store that is reloaded
// once it is older than the configured TTL. Writes go straight to the store
// and drop the snapshot.
package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/vnclub/internal/domain/model"
	"github.com/okian/vnclub/pkg/logger"
	"github.com/okian/vnclub/pkg/metrics"
)

const defaultTTL = 5 * time.Minute

// Store persists catalog entries.
type Store interface {
	// InsertTitle stores a new entry. Returns model.ErrDuplicateTitle if the id exists.
	InsertTitle(ctx context.Context, entry model.TitleEntry) error
	// DeleteTitle removes and returns an entry. Returns model.ErrNotFound if absent.
	DeleteTitle(ctx context.Context, id string) (model.TitleEntry, error)
	// ListTitles returns every entry by descending start period, ties in insertion order.
	ListTitles(ctx context.Context) ([]model.TitleEntry, error)
}

// Option applies a configuration option to the Catalog.
type Option func(*Catalog)

// WithTTL sets how long a snapshot is served before reloading.
// A non-positive ttl reloads on every read.
func WithTTL(ttl time.Duration) Option {
	return func(c *Catalog) {
		c.ttl = ttl
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.logger = l
		}
	}
}

// Catalog is the title catalog.
type Catalog struct {
	store  Store
	ttl    time.Duration
	now    func() time.Time
	logger logger.Logger

	mu       sync.Mutex
	snapshot []model.TitleEntry
	loadedAt time.Time
	loaded   bool
}

// New creates a catalog with configuration options.
func New(store Store, opts ...Option) *Catalog {
	c := &Catalog{
		store:  store,
		ttl:    defaultTTL,
		now:    time.Now,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Add validates and stores entry. A zero Points value takes the default.
func (c *Catalog) Add(ctx context.Context, entry model.TitleEntry) (model.TitleEntry, error) {
	id, err := model.ParseTitleID(entry.ID)
	if err != nil {
		return model.TitleEntry{}, err
	}
	entry.ID = id
	if entry.Points == 0 {
		entry.Points = model.DefaultTitlePoints
	}
	if err := entry.Validate(); err != nil {
		return model.TitleEntry{}, err
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = c.now().UTC()
	}

	if err := c.store.InsertTitle(ctx, entry); err != nil {
		return model.TitleEntry{}, fmt.Errorf("add title %s: %w", entry.ID, err)
	}
	c.invalidate()

	c.logger.Info(ctx, "title added to catalog",
		logger.String("title_id", entry.ID),
		logger.String("start", entry.StartPeriod.String()),
		logger.String("end", entry.EndPeriod.String()),
		logger.Int("points", entry.Points),
	)
	return entry, nil
}

// Remove deletes the entry and returns it.
func (c *Catalog) Remove(ctx context.Context, id string) (model.TitleEntry, error) {
	id = model.NormalizeTitleID(id)
	entry, err := c.store.DeleteTitle(ctx, id)
	if err != nil {
		return model.TitleEntry{}, fmt.Errorf("remove title %s: %w", id, err)
	}
	c.invalidate()

	c.logger.Info(ctx, "title removed from catalog", logger.String("title_id", id))
	return entry, nil
}

// Get returns the entry with the given id.
func (c *Catalog) Get(ctx context.Context, id string) (model.TitleEntry, error) {
	id = model.NormalizeTitleID(id)
	entries, err := c.entries(ctx)
	if err != nil {
		return model.TitleEntry{}, err
	}
	for _, e := range entries {
		if e.ID == id {
			return e, nil
		}
	}
	return model.TitleEntry{}, fmt.Errorf("title %s: %w", id, model.ErrNotFound)
}

// List returns all entries by descending start period.
func (c *Catalog) List(ctx context.Context) ([]model.TitleEntry, error) {
	entries, err := c.entries(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.TitleEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// Current returns the entries whose window contains p.
func (c *Catalog) Current(ctx context.Context, p model.Period) ([]model.TitleEntry, error) {
	if _, err := model.ParsePeriod(string(p)); err != nil {
		return nil, err
	}
	entries, err := c.entries(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.TitleEntry, 0)
	for _, e := range entries {
		if e.Active(p) {
			out = append(out, e)
		}
	}
	return out, nil
}

// IsCurrent reports whether id is a promoted title during p.
func (c *Catalog) IsCurrent(ctx context.Context, id string, p model.Period) (bool, error) {
	e, err := c.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return e.Active(p), nil
}

func (c *Catalog) entries(ctx context.Context) ([]model.TitleEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded && c.ttl > 0 && c.now().Sub(c.loadedAt) < c.ttl {
		return c.snapshot, nil
	}

	entries, err := c.store.ListTitles(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	c.snapshot = entries
	c.loadedAt = c.now()
	c.loaded = true
	metrics.RecordCatalogRefresh(len(entries))
	return c.snapshot, nil
}

func (c *Catalog) invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.snapshot = nil
	c.mu.Unlock()
}
