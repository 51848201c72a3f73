// Package metadata caches descriptive title data fetched from the
// bibliographic API.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/okian/vnclub/internal/domain/model"
	"github.com/okian/vnclub/pkg/logger"
	"github.com/okian/vnclub/pkg/metrics"
)

// Store persists cached metadata.
type Store interface {
	// GetMetadata returns model.ErrNotFound when nothing is cached for id.
	GetMetadata(ctx context.Context, id string) (model.MetadataEntry, error)
	UpsertMetadata(ctx context.Context, entry model.MetadataEntry) error
}

// Fetcher retrieves metadata from upstream. It returns model.ErrNotFound
// when the title does not exist and model.ErrUpstreamUnavailable when the
// upstream cannot be reached.
type Fetcher interface {
	Fetch(ctx context.Context, id string) (model.MetadataEntry, error)
}

// Option applies a configuration option to the Cache.
type Option func(*Cache)

// WithTTL sets the freshness window. Zero means entries never expire.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl >= 0 {
			c.ttl = ttl
		}
	}
}

// WithFetchTimeout bounds a shared upstream fetch. The fetch outlives the
// caller that started it, so this is its only deadline.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// Cache is a read-through metadata cache.
type Cache struct {
	store        Store
	fetcher      Fetcher
	ttl          time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
	logger       logger.Logger
	group        singleflight.Group
}

const defaultFetchTimeout = 10 * time.Second

// New creates a cache with configuration options.
func New(store Store, fetcher Fetcher, opts ...Option) *Cache {
	c := &Cache{
		store:        store,
		fetcher:      fetcher,
		fetchTimeout: defaultFetchTimeout,
		now:          time.Now,
		logger:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Peek returns the cached entry without contacting upstream.
func (c *Cache) Peek(ctx context.Context, id string) (model.MetadataEntry, error) {
	return c.store.GetMetadata(ctx, model.NormalizeTitleID(id))
}

// GetOrFetch returns a fresh cached entry, or fetches, stores and returns a
// new one. If the fetch fails and a stale entry is cached, the stale entry
// is returned. Concurrent misses for the same id share one fetch.
func (c *Cache) GetOrFetch(ctx context.Context, id string) (model.MetadataEntry, error) {
	id, err := model.ParseTitleID(id)
	if err != nil {
		return model.MetadataEntry{}, err
	}

	cached, err := c.store.GetMetadata(ctx, id)
	hasCached := err == nil
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return model.MetadataEntry{}, fmt.Errorf("read metadata cache %s: %w", id, err)
	}
	if hasCached && c.fresh(cached) {
		metrics.RecordMetadataHit()
		return cached, nil
	}
	metrics.RecordMetadataMiss()

	// The shared fetch outlives the caller that started it; each caller
	// stops waiting when its own ctx ends.
	ch := c.group.DoChan(id, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		return c.fetch(fctx, id)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return model.MetadataEntry{}, fmt.Errorf("fetch metadata %s: %w", id, ctx.Err())
	}
	if res.Err == nil {
		return res.Val.(model.MetadataEntry), nil
	}
	err = res.Err

	if hasCached && !errors.Is(err, model.ErrNotFound) {
		metrics.RecordMetadataStaleServed()
		c.logger.Warn(ctx, "serving stale metadata",
			logger.String("title_id", id),
			logger.Error(err),
		)
		return cached, nil
	}
	return model.MetadataEntry{}, err
}

func (c *Cache) fetch(ctx context.Context, id string) (model.MetadataEntry, error) {
	start := time.Now()
	entry, err := c.fetcher.Fetch(ctx, id)
	metrics.RecordMetadataFetchLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.MetadataEntry{}, fmt.Errorf("title %s: %w", id, err)
		}
		metrics.RecordMetadataUpstreamError()
		if !errors.Is(err, model.ErrUpstreamUnavailable) {
			err = fmt.Errorf("%w: %w", model.ErrUpstreamUnavailable, err)
		}
		return model.MetadataEntry{}, fmt.Errorf("fetch metadata %s: %w", id, err)
	}

	entry.ID = id
	entry.FetchedAt = c.now().UTC()
	if err := c.store.UpsertMetadata(ctx, entry); err != nil {
		c.logger.Error(ctx, "failed to cache metadata",
			logger.String("title_id", id),
			logger.Error(err),
		)
	}
	return entry, nil
}

func (c *Cache) fresh(e model.MetadataEntry) bool {
	if c.ttl == 0 {
		return true
	}
	return c.now().Sub(e.FetchedAt) < c.ttl
}
