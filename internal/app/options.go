package service

import (
	"time"

	"github.com/okian/vnclub/internal/adapters/repository"
	"github.com/okian/vnclub/internal/domain/metadata"
	"github.com/okian/vnclub/internal/domain/reconcile"
	"github.com/okian/vnclub/internal/domain/tier"
	"github.com/okian/vnclub/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the persistence backend. Without it the service uses an
// in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithFetcher sets the metadata source used on cache misses.
func WithFetcher(f metadata.Fetcher) Option {
	return func(s *Service) {
		if f != nil {
			s.fetcher = f
		}
	}
}

// WithMembership sets the role backend driven by the reconciler.
func WithMembership(m reconcile.Membership) Option {
	return func(s *Service) {
		if m != nil {
			s.members = m
		}
	}
}

// WithTiers sets the per-community tier ladders.
func WithTiers(tiers map[string]tier.Rules) Option {
	return func(s *Service) {
		s.tiers = tiers
	}
}

// WithClock overrides time.Now. The clock decides the current period.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetadataTTL sets how long cached metadata stays fresh. 0 never expires.
func WithMetadataTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl >= 0 {
			s.metadataTTL = ttl
		}
	}
}

// WithFetchTimeout bounds each shared upstream metadata fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// WithCatalogTTL sets how long the catalog snapshot is served.
func WithCatalogTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl >= 0 {
			s.catalogTTL = ttl
		}
	}
}

// WithReconciler enables the periodic tier reconciler with the given schedule.
func WithReconciler(interval, initialDelay, jitter time.Duration) Option {
	return func(s *Service) {
		s.reconcileEnabled = true
		if interval > 0 {
			s.reconcileInterval = interval
		}
		if initialDelay >= 0 {
			s.reconcileDelay = initialDelay
		}
		if jitter >= 0 {
			s.reconcileJitter = jitter
		}
	}
}

// WithDryRun makes the reconciler log role changes instead of applying them.
func WithDryRun(dry bool) Option {
	return func(s *Service) {
		s.dryRun = dry
	}
}

// WithMaxLeaderboardLimit caps the number of standings a leaderboard query returns.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithShutdownTimeout bounds how long Stop waits for the reconciler.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}
