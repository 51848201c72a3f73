package metadata_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/vnclub/internal/domain/metadata"
	"github.com/okian/vnclub/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type memStore struct {
	mu      sync.Mutex
	entries map[string]model.MetadataEntry
}

func newMemStore() *memStore { return &memStore{entries: map[string]model.MetadataEntry{}} }

func (m *memStore) GetMetadata(_ context.Context, id string) (model.MetadataEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return model.MetadataEntry{}, model.ErrNotFound
	}
	return e, nil
}

func (m *memStore) UpsertMetadata(_ context.Context, e model.MetadataEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID] = e
	return nil
}

type stubFetcher struct {
	calls atomic.Int64
	err   error
	delay time.Duration
}

func (f *stubFetcher) Fetch(_ context.Context, id string) (model.MetadataEntry, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return model.MetadataEntry{}, f.err
	}
	return model.MetadataEntry{ID: id, TitleEN: "Title " + id, LengthMinutes: model.IntPtr(1200)}, nil
}

func TestGetOrFetch(t *testing.T) {
	Convey("Given an empty cache", t, func() {
		ctx := context.Background()
		store := newMemStore()
		fetcher := &stubFetcher{}
		now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		cache := metadata.New(store, fetcher, metadata.WithClock(func() time.Time { return now }))

		Convey("When fetching a title for the first time", func() {
			e, err := cache.GetOrFetch(ctx, "17")

			Convey("Then upstream is called and the result cached", func() {
				So(err, ShouldBeNil)
				So(e.ID, ShouldEqual, "v17")
				So(e.FetchedAt, ShouldEqual, now)
				So(fetcher.calls.Load(), ShouldEqual, 1)

				peek, err := cache.Peek(ctx, "v17")
				So(err, ShouldBeNil)
				So(peek.TitleEN, ShouldEqual, "Title v17")
			})

			Convey("Then a second read is served from the cache", func() {
				_, err := cache.GetOrFetch(ctx, "v17")
				So(err, ShouldBeNil)
				So(fetcher.calls.Load(), ShouldEqual, 1)
			})
		})

		Convey("When upstream is down and nothing is cached", func() {
			fetcher.err = errors.New("connection refused")
			_, err := cache.GetOrFetch(ctx, "v1")
			So(errors.Is(err, model.ErrUpstreamUnavailable), ShouldBeTrue)
		})

		Convey("When upstream reports the title does not exist", func() {
			fetcher.err = model.ErrNotFound
			_, err := cache.GetOrFetch(ctx, "v1")
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			So(errors.Is(err, model.ErrUpstreamUnavailable), ShouldBeFalse)
		})

		Convey("When many callers miss the same id at once", func() {
			fetcher.delay = 50 * time.Millisecond
			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = cache.GetOrFetch(ctx, "v9")
				}()
			}
			wg.Wait()

			Convey("Then upstream sees a single request", func() {
				So(fetcher.calls.Load(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a cache with a one hour TTL and an old entry", t, func() {
		ctx := context.Background()
		store := newMemStore()
		fetcher := &stubFetcher{}
		now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		_ = store.UpsertMetadata(ctx, model.MetadataEntry{ID: "v5", TitleEN: "Old", FetchedAt: now.Add(-2 * time.Hour)})
		cache := metadata.New(store, fetcher,
			metadata.WithTTL(time.Hour),
			metadata.WithClock(func() time.Time { return now }),
		)

		Convey("When upstream is healthy the entry is refreshed", func() {
			e, err := cache.GetOrFetch(ctx, "v5")
			So(err, ShouldBeNil)
			So(e.TitleEN, ShouldEqual, "Title v5")
			So(fetcher.calls.Load(), ShouldEqual, 1)
		})

		Convey("When upstream is down the stale entry is served", func() {
			fetcher.err = model.ErrUpstreamUnavailable
			e, err := cache.GetOrFetch(ctx, "v5")
			So(err, ShouldBeNil)
			So(e.TitleEN, ShouldEqual, "Old")
		})
	})

	Convey("Given a cache that never expires", t, func() {
		ctx := context.Background()
		store := newMemStore()
		fetcher := &stubFetcher{}
		_ = store.UpsertMetadata(ctx, model.MetadataEntry{ID: "v5", TitleEN: "Old"})
		cache := metadata.New(store, fetcher)

		e, err := cache.GetOrFetch(ctx, "v5")
		So(err, ShouldBeNil)
		So(e.TitleEN, ShouldEqual, "Old")
		So(fetcher.calls.Load(), ShouldEqual, 0)
	})
}

// gatedFetcher blocks until release is closed or its ctx ends.
type gatedFetcher struct {
	calls   atomic.Int64
	started chan struct{}
	release chan struct{}
}

func (f *gatedFetcher) Fetch(ctx context.Context, id string) (model.MetadataEntry, error) {
	if f.calls.Add(1) == 1 {
		close(f.started)
	}
	select {
	case <-f.release:
		return model.MetadataEntry{ID: id, TitleEN: "Title " + id}, nil
	case <-ctx.Done():
		return model.MetadataEntry{}, fmt.Errorf("%w: %w", model.ErrUpstreamUnavailable, ctx.Err())
	}
}

type fetchResult struct {
	entry model.MetadataEntry
	err   error
}

func TestGetOrFetchSharedFetch(t *testing.T) {
	Convey("Given two callers waiting on the same fetch", t, func() {
		fetcher := &gatedFetcher{started: make(chan struct{}), release: make(chan struct{})}
		cache := metadata.New(newMemStore(), fetcher, metadata.WithFetchTimeout(5*time.Second))

		firstCtx, cancelFirst := context.WithCancel(context.Background())
		defer cancelFirst()

		first := make(chan fetchResult, 1)
		go func() {
			e, err := cache.GetOrFetch(firstCtx, "v5")
			first <- fetchResult{e, err}
		}()
		<-fetcher.started

		second := make(chan fetchResult, 1)
		go func() {
			e, err := cache.GetOrFetch(context.Background(), "v5")
			second <- fetchResult{e, err}
		}()
		time.Sleep(20 * time.Millisecond)

		Convey("When the caller that started the fetch gives up", func() {
			cancelFirst()
			r1 := <-first
			close(fetcher.release)
			r2 := <-second

			Convey("Then only that caller fails and the other gets the entry", func() {
				So(errors.Is(r1.err, context.Canceled), ShouldBeTrue)
				So(r2.err, ShouldBeNil)
				So(r2.entry.TitleEN, ShouldEqual, "Title v5")
				So(fetcher.calls.Load(), ShouldEqual, 1)
			})
		})
	})
}

func TestGetOrFetchRejectsMalformedIDs(t *testing.T) {
	Convey("Given a cache", t, func() {
		fetcher := &stubFetcher{}
		cache := metadata.New(newMemStore(), fetcher)

		Convey("Then ids that are not v<digits> never reach upstream", func() {
			for _, id := range []string{"", "abc", "v", "v1x", "vv17"} {
				_, err := cache.GetOrFetch(context.Background(), id)
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
			}
			So(fetcher.calls.Load(), ShouldEqual, 0)
		})

		Convey("Then an upper-case prefix is accepted", func() {
			e, err := cache.GetOrFetch(context.Background(), "V17")
			So(err, ShouldBeNil)
			So(e.ID, ShouldEqual, "v17")
		})
	})
}
