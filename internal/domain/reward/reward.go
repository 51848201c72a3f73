// Package reward computes the points a completion is worth.
package reward

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/vnclub/internal/domain/model"
	"github.com/okian/vnclub/pkg/logger"
	"github.com/okian/vnclub/pkg/metrics"
)

// Length-based award constants.
const (
	MinutesPerPoint = 600
	MinPoints       = 1
)

// Award is the outcome of a reward computation.
type Award struct {
	Points int    `json:"points"`
	Reason string `json:"reason"`
}

// Catalog looks up promoted titles.
type Catalog interface {
	Get(ctx context.Context, id string) (model.TitleEntry, error)
}

// Metadata resolves descriptive data for a title, fetching it if needed.
type Metadata interface {
	GetOrFetch(ctx context.Context, id string) (model.MetadataEntry, error)
}

// Calculator turns (title, period) into an Award.
type Calculator interface {
	Compute(ctx context.Context, titleID string, period model.Period) (Award, error)
}

// Option applies a configuration option to the DefaultCalculator.
type Option func(*DefaultCalculator)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *DefaultCalculator) {
		if l != nil {
			c.logger = l
		}
	}
}

// DefaultCalculator implements Calculator against a catalog and a metadata cache.
type DefaultCalculator struct {
	catalog  Catalog
	metadata Metadata
	logger   logger.Logger
}

// NewCalculator creates a calculator with configuration options.
func NewCalculator(catalog Catalog, metadata Metadata, opts ...Option) *DefaultCalculator {
	c := &DefaultCalculator{
		catalog:  catalog,
		metadata: metadata,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compute returns the monthly award when period falls in the title's catalog
// window, otherwise a length-based award from the title's metadata. A
// metadata failure is returned to the caller rather than defaulted.
func (c *DefaultCalculator) Compute(ctx context.Context, titleID string, period model.Period) (Award, error) {
	if _, err := model.ParsePeriod(string(period)); err != nil {
		return Award{}, err
	}

	entry, err := c.catalog.Get(ctx, titleID)
	switch {
	case err == nil:
		if entry.Active(period) {
			metrics.RecordRewardComputed(model.ReasonMonthly)
			return Award{Points: entry.Points, Reason: model.ReasonMonthly}, nil
		}
	case errors.Is(err, model.ErrNotFound):
	default:
		metrics.RecordRewardError()
		return Award{}, fmt.Errorf("catalog lookup %s: %w", titleID, err)
	}

	start := time.Now()
	meta, err := c.metadata.GetOrFetch(ctx, titleID)
	if err != nil {
		metrics.RecordRewardError()
		c.logger.Warn(ctx, "metadata unavailable for reward",
			logger.String("title_id", titleID),
			logger.Duration("elapsed", time.Since(start)),
			logger.Error(err),
		)
		return Award{}, fmt.Errorf("metadata for %s: %w", titleID, err)
	}

	metrics.RecordRewardComputed(model.ReasonNonMonthly)
	return Award{Points: PointsFor(meta), Reason: model.ReasonNonMonthly}, nil
}

// PointsFor derives the non-monthly award from metadata: play time when
// known, then the length class, then MinPoints.
func PointsFor(meta model.MetadataEntry) int {
	if meta.LengthMinutes != nil && *meta.LengthMinutes > 0 {
		return LengthPoints(*meta.LengthMinutes)
	}
	if meta.LengthClass != nil {
		return *meta.LengthClass
	}
	return MinPoints
}

// LengthPoints converts play time in minutes to points.
func LengthPoints(minutes int) int {
	return max(MinPoints, minutes/MinutesPerPoint)
}
