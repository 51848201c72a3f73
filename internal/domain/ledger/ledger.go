// Package ledger records completion events and answers point queries over
// them.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/vnclub/internal/domain/dedupe"
	"github.com/okian/vnclub/internal/domain/model"
	"github.com/okian/vnclub/pkg/logger"
	"github.com/okian/vnclub/pkg/metrics"
)

// Store persists completion events.
type Store interface {
	// InsertCompletion stores e and returns its id. Returns
	// model.ErrDuplicateCompletion when the (user, title) pair already exists.
	InsertCompletion(ctx context.Context, e model.CompletionEvent) (int64, error)
	// GetCompletion returns model.ErrNotFound when absent.
	GetCompletion(ctx context.Context, id int64) (model.CompletionEvent, error)
	// DeleteCompletion removes and returns the event, or model.ErrNotFound.
	DeleteCompletion(ctx context.Context, id int64) (model.CompletionEvent, error)
	// UpdateReview applies the non-nil patch fields, or returns model.ErrNotFound.
	UpdateReview(ctx context.Context, id int64, patch model.ReviewPatch) (model.CompletionEvent, error)
	// HasCompletion reports whether the user already completed the title.
	HasCompletion(ctx context.Context, userID, titleID string) (bool, error)
	// SumPoints totals the user's points matching f. Zero when there are no rows.
	SumPoints(ctx context.Context, userID string, f model.Filter) (int, error)
	// ListByUser returns the user's events newest period first, ties newest id first.
	ListByUser(ctx context.Context, userID string) ([]model.CompletionEvent, error)
	// Scan returns every event matching f in id order.
	Scan(ctx context.Context, f model.Filter) ([]model.CompletionEvent, error)
}

// RecordInput is a completion to be written.
type RecordInput struct {
	UserID      string
	TitleID     string
	Rating      *int
	Reason      string
	Period      model.Period
	Points      int
	Comment     string
	CommunityID string
}

// Option applies a configuration option to the Ledger.
type Option func(*Ledger)

// WithDeduper replaces the in-flight guard.
func WithDeduper(d dedupe.Deduper) Option {
	return func(l *Ledger) {
		if d != nil {
			l.inFlight = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(lg logger.Logger) Option {
	return func(l *Ledger) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// Ledger is the append-only completion log.
type Ledger struct {
	store    Store
	inFlight dedupe.Deduper
	now      func() time.Time
	logger   logger.Logger
}

// New creates a ledger with configuration options.
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		inFlight: dedupe.NewInFlight(),
		now:      time.Now,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record validates and appends a completion, returning its ledger id.
// A second completion of the same title by the same user fails with
// model.ErrDuplicateCompletion, including when both race each other.
func (l *Ledger) Record(ctx context.Context, in RecordInput) (int64, error) {
	start := time.Now()
	defer func() {
		metrics.RecordLedgerLatency("record", float64(time.Since(start).Milliseconds()))
	}()

	if err := validate(in); err != nil {
		return 0, err
	}
	titleID := ""
	if in.TitleID != "" {
		id, err := model.ParseTitleID(in.TitleID)
		if err != nil {
			return 0, err
		}
		titleID = id
	}

	if titleID != "" {
		key := dedupe.Key(in.UserID, titleID)
		if !l.inFlight.Acquire(ctx, key) {
			metrics.RecordDuplicateCompletion()
			return 0, fmt.Errorf("user %s title %s: %w", in.UserID, titleID, model.ErrDuplicateCompletion)
		}
		defer l.inFlight.Release(ctx, key)
	}

	e := model.CompletionEvent{
		UserID:      in.UserID,
		TitleID:     model.StringPtr(titleID),
		Rating:      in.Rating,
		Reason:      in.Reason,
		Period:      in.Period,
		Points:      in.Points,
		Comment:     in.Comment,
		CommunityID: model.StringPtr(in.CommunityID),
		CreatedAt:   l.now().UTC(),
	}
	id, err := l.store.InsertCompletion(ctx, e)
	if err != nil {
		if errors.Is(err, model.ErrDuplicateCompletion) {
			metrics.RecordDuplicateCompletion()
		}
		return 0, fmt.Errorf("record completion for %s: %w", in.UserID, err)
	}

	metrics.RecordCompletion(in.Reason)
	l.logger.Info(ctx, "completion recorded",
		logger.Int64("id", id),
		logger.String("user_id", in.UserID),
		logger.String("title_id", titleID),
		logger.String("reason", in.Reason),
		logger.Int("points", in.Points),
		logger.String("period", in.Period.String()),
	)
	return id, nil
}

// Get returns one event by id.
func (l *Ledger) Get(ctx context.Context, id int64) (model.CompletionEvent, error) {
	e, err := l.store.GetCompletion(ctx, id)
	if err != nil {
		return model.CompletionEvent{}, fmt.Errorf("completion %d: %w", id, err)
	}
	return e, nil
}

// Delete removes an event and returns it. The user's totals drop by its points.
func (l *Ledger) Delete(ctx context.Context, id int64) (model.CompletionEvent, error) {
	e, err := l.store.DeleteCompletion(ctx, id)
	if err != nil {
		return model.CompletionEvent{}, fmt.Errorf("delete completion %d: %w", id, err)
	}
	metrics.RecordCompletionDeleted()
	l.logger.Info(ctx, "completion deleted",
		logger.Int64("id", id),
		logger.String("user_id", e.UserID),
		logger.Int("points", e.Points),
	)
	return e, nil
}

// Review corrects the rating or comment of an existing event. Fields absent
// from patch keep their stored values.
func (l *Ledger) Review(ctx context.Context, id int64, patch model.ReviewPatch) (model.CompletionEvent, error) {
	if err := patch.Validate(); err != nil {
		return model.CompletionEvent{}, err
	}
	e, err := l.store.UpdateReview(ctx, id, patch)
	if err != nil {
		return model.CompletionEvent{}, fmt.Errorf("review completion %d: %w", id, err)
	}
	metrics.RecordCompletionReviewed()
	return e, nil
}

// HasCompleted reports whether the user has a completion for the title.
func (l *Ledger) HasCompleted(ctx context.Context, userID, titleID string) (bool, error) {
	return l.store.HasCompletion(ctx, userID, model.NormalizeTitleID(titleID))
}

// TotalForUser sums the user's points under f.
func (l *Ledger) TotalForUser(ctx context.Context, userID string, f model.Filter) (int, error) {
	start := time.Now()
	defer func() {
		metrics.RecordLedgerLatency("total", float64(time.Since(start).Milliseconds()))
	}()
	return l.store.SumPoints(ctx, userID, f)
}

// EventsForUser returns the user's events, newest period first.
func (l *Ledger) EventsForUser(ctx context.Context, userID string) ([]model.CompletionEvent, error) {
	return l.store.ListByUser(ctx, userID)
}

// Scan returns every event matching f.
func (l *Ledger) Scan(ctx context.Context, f model.Filter) ([]model.CompletionEvent, error) {
	return l.store.Scan(ctx, f)
}

func validate(in RecordInput) error {
	if err := model.ValidateUserID(in.UserID); err != nil {
		return err
	}
	if _, err := model.ParsePeriod(string(in.Period)); err != nil {
		return err
	}
	if err := model.ValidateRating(in.Rating); err != nil {
		return err
	}
	if err := model.ValidateComment(in.Comment); err != nil {
		return err
	}
	if strings.TrimSpace(in.Reason) == "" {
		return fmt.Errorf("%w: reason is required", model.ErrValidation)
	}
	return nil
}
