package worker

import (
	"math/rand"
	"time"

	"github.com/okian/vnclub/pkg/logger"
)

// Option applies a configuration option to the Periodic worker.
type Option func(*Periodic)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *Periodic) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *Periodic) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithInterval sets the time between the end of one tick and the start of the next.
func WithInterval(d time.Duration) Option {
	return func(w *Periodic) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithInitialDelay sets the fixed wait before the first tick.
func WithInitialDelay(d time.Duration) Option {
	return func(w *Periodic) {
		if d >= 0 {
			w.initialDelay = d
		}
	}
}

// WithJitter adds a random wait in [0, d) before the first tick.
func WithJitter(d time.Duration) Option {
	return func(w *Periodic) {
		if d >= 0 {
			w.jitter = d
		}
	}
}

// WithSeed makes the jitter deterministic.
func WithSeed(seed int64) Option {
	return func(w *Periodic) {
		w.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic seed for reproducible testing
	}
}
