// Package worker runs periodic background jobs.
package worker

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/okian/vnclub/pkg/logger"
)

// Default worker configuration constants.
const (
	defaultInterval = 5 * time.Minute
	defaultDelay    = 30 * time.Second
)

// Job is one unit of periodic work.
type Job interface {
	Tick(ctx context.Context) error
}

// JobFunc adapts a function to Job.
type JobFunc func(ctx context.Context) error

// Tick calls f.
func (f JobFunc) Tick(ctx context.Context) error { return f(ctx) }

// Worker runs a Job on a schedule.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or Shutdown is called.
	Run(ctx context.Context)

	// Shutdown stops the worker, waiting for an in-flight tick to finish.
	Shutdown(ctx context.Context) error
}

// Periodic runs its job after an initial delay plus random jitter, then on
// a fixed interval. Ticks never overlap: a slow tick delays the next one.
type Periodic struct {
	job          Job
	name         string
	interval     time.Duration
	initialDelay time.Duration
	jitter       time.Duration
	rng          *rand.Rand

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	// Logging
	logger logger.Logger
}

// NewPeriodic creates a periodic worker with configuration options.
func NewPeriodic(job Job, opts ...Option) *Periodic {
	w := &Periodic{
		job:          job,
		name:         "worker",
		interval:     defaultInterval,
		initialDelay: defaultDelay,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // jitter does not need a secure source
		shutdown:     make(chan struct{}),
		done:         make(chan struct{}),
		logger:       logger.Nop(),
	}

	for _, opt := range opts {
		opt(w)
	}

	w.logger = w.logger.Named(w.name)
	return w
}

// StartDelay returns the wait before the first tick: the initial delay plus
// a uniform jitter in [0, jitter).
func (w *Periodic) StartDelay() time.Duration {
	d := w.initialDelay
	if w.jitter > 0 {
		d += time.Duration(w.rng.Int63n(int64(w.jitter)))
	}
	return d
}

// Run starts the worker loop.
func (w *Periodic) Run(ctx context.Context) {
	defer close(w.done)

	delay := w.StartDelay()
	w.logger.Info(ctx, "worker scheduled",
		logger.Duration("start_in", delay),
		logger.Duration("interval", w.interval),
	)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case <-timer.C:
			w.tick(ctx)
			timer.Reset(w.interval)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *Periodic) Shutdown(ctx context.Context) error {
	// Signal shutdown
	close(w.shutdown)

	// Wait for worker to finish or context to timeout
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *Periodic) tick(ctx context.Context) {
	start := time.Now()
	if err := w.job.Tick(ctx); err != nil {
		w.logger.Error(ctx, "tick failed",
			logger.Duration("elapsed", time.Since(start)),
			logger.Error(err),
		)
		return
	}
	w.logger.Debug(ctx, "tick completed", logger.Duration("elapsed", time.Since(start)))
}
