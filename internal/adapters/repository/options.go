package repository

import (
	"time"

	"github.com/okian/vnclub/pkg/logger"
)

// Option applies a configuration option to the SQLStore.
type Option func(*SQLStore)

// WithBusyTimeout sets how long SQLite waits on a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(s *SQLStore) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *SQLStore) {
		if l != nil {
			s.logger = l
		}
	}
}
