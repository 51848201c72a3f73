// Package service composes the reward and ranking components into the
// facade used by the HTTP API and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/okian/vnclub/internal/adapters/membership"
	"github.com/okian/vnclub/internal/adapters/repository"
	"github.com/okian/vnclub/internal/adapters/vndb"
	"github.com/okian/vnclub/internal/adapters/worker"
	"github.com/okian/vnclub/internal/domain/catalog"
	"github.com/okian/vnclub/internal/domain/dedupe"
	"github.com/okian/vnclub/internal/domain/ledger"
	"github.com/okian/vnclub/internal/domain/metadata"
	"github.com/okian/vnclub/internal/domain/model"
	"github.com/okian/vnclub/internal/domain/ranking"
	"github.com/okian/vnclub/internal/domain/reconcile"
	"github.com/okian/vnclub/internal/domain/reward"
	"github.com/okian/vnclub/internal/domain/tier"
	"github.com/okian/vnclub/internal/domain/types"
	"github.com/okian/vnclub/pkg/logger"
)

// Default service configuration.
const (
	defaultCatalogTTL      = 5 * time.Minute
	defaultInterval        = 5 * time.Minute
	defaultInitialDelay    = 30 * time.Second
	defaultJitter          = 30 * time.Second
	defaultMaxLimit        = 100
	defaultShutdownTimeout = 10 * time.Second
)

// FinishInput is a member reporting a finished title.
type FinishInput struct {
	UserID      string
	TitleID     string
	Rating      *int
	Comment     string
	CommunityID string
}

// GrantInput is an administrator awarding points directly.
type GrantInput struct {
	UserID      string
	Points      int
	Reason      string
	Comment     string
	CommunityID string
}

// TitleDetails is a catalog entry with whatever metadata is available.
type TitleDetails struct {
	Entry    *model.TitleEntry
	Metadata *model.MetadataEntry
}

// Service implements the API dependencies for the club engine.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	store   repository.Store
	fetcher metadata.Fetcher
	members reconcile.Membership
	tiers   map[string]tier.Rules

	// Core components
	deduper    dedupe.Deduper
	catalog    *catalog.Catalog
	metadata   *metadata.Cache
	calculator reward.Calculator
	ledger     *ledger.Ledger
	ranking    *ranking.Aggregator
	reconciler *reconcile.Reconciler
	worker     *worker.Periodic

	// Configuration
	metadataTTL       time.Duration
	fetchTimeout      time.Duration
	catalogTTL        time.Duration
	reconcileEnabled  bool
	reconcileInterval time.Duration
	reconcileDelay    time.Duration
	reconcileJitter   time.Duration
	dryRun            bool
	maxLimit          int
	shutdownTimeout   time.Duration
	now               func() time.Time

	// State
	started    bool
	lastReport *reconcile.TickReport

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		tiers:             map[string]tier.Rules{},
		catalogTTL:        defaultCatalogTTL,
		reconcileInterval: defaultInterval,
		reconcileDelay:    defaultInitialDelay,
		reconcileJitter:   defaultJitter,
		maxLimit:          defaultMaxLimit,
		shutdownTimeout:   defaultShutdownTimeout,
		now:               time.Now,
		logger:            nil, // replaced in Start
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start wires the components and, when enabled, launches the reconciler.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting club service...")

	if s.store == nil {
		s.store = repository.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory store")
	}
	if s.fetcher == nil {
		s.fetcher = vndb.New()
	}
	if s.members == nil {
		s.members = membership.NewMemory()
	}
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("store unavailable: %w", err)
	}

	s.deduper = dedupe.NewInFlight()
	s.catalog = catalog.New(s.store,
		catalog.WithTTL(s.catalogTTL),
		catalog.WithClock(s.now),
		catalog.WithLogger(s.logger.Named("catalog")),
	)
	s.metadata = metadata.New(s.store, s.fetcher,
		metadata.WithTTL(s.metadataTTL),
		metadata.WithFetchTimeout(s.fetchTimeout),
		metadata.WithClock(s.now),
		metadata.WithLogger(s.logger.Named("metadata")),
	)
	s.calculator = reward.NewCalculator(s.catalog, s.metadata,
		reward.WithLogger(s.logger.Named("reward")),
	)
	s.ledger = ledger.New(s.store,
		ledger.WithDeduper(s.deduper),
		ledger.WithClock(s.now),
		ledger.WithLogger(s.logger.Named("ledger")),
	)
	s.ranking = ranking.New(s.ledger)
	s.reconciler = reconcile.New(s.ranking, s.members, s.tiers,
		reconcile.WithDryRun(s.dryRun),
		reconcile.WithLogger(s.logger.Named("reconciler")),
	)

	if s.reconcileEnabled {
		s.worker = worker.NewPeriodic(worker.JobFunc(s.reconcileTick),
			worker.WithName("reconciler"),
			worker.WithLogger(s.logger),
			worker.WithInterval(s.reconcileInterval),
			worker.WithInitialDelay(s.reconcileDelay),
			worker.WithJitter(s.reconcileJitter),
		)
		go s.worker.Run(context.WithoutCancel(ctx))
	}

	s.started = true
	s.logger.Info(ctx, "club service started",
		logger.Bool("reconcile", s.reconcileEnabled),
		logger.Bool("dry_run", s.dryRun),
		logger.Int("communities", len(s.tiers)),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	w := s.worker
	s.worker = nil
	s.started = false
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping club service...")

	// The reconciler takes the read lock, so it is stopped outside the lock.
	if w != nil {
		if err := w.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "reconciler did not stop cleanly", logger.Error(err))
		}
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "store close failed", logger.Error(err))
	}

	s.logger.Info(ctx, "club service stopped")
}

// ready returns ErrNotStarted until Start has run.
func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// CurrentPeriod returns the period completions are recorded under right now.
func (s *Service) CurrentPeriod() model.Period {
	return model.PeriodOf(s.now())
}

// FinishTitle computes the reward for a finished title and records it in
// the current period.
func (s *Service) FinishTitle(ctx context.Context, in FinishInput) (model.CompletionEvent, error) {
	if err := s.ready(); err != nil {
		return model.CompletionEvent{}, err
	}
	if err := model.ValidateUserID(in.UserID); err != nil {
		return model.CompletionEvent{}, err
	}
	titleID, err := model.ParseTitleID(in.TitleID)
	if err != nil {
		return model.CompletionEvent{}, err
	}

	// Cheap check first so a repeat does not cost an upstream lookup.
	done, err := s.ledger.HasCompleted(ctx, in.UserID, titleID)
	if err != nil {
		return model.CompletionEvent{}, err
	}
	if done {
		return model.CompletionEvent{}, fmt.Errorf("user %s title %s: %w", in.UserID, titleID, model.ErrDuplicateCompletion)
	}

	period := s.CurrentPeriod()
	award, err := s.calculator.Compute(ctx, titleID, period)
	if err != nil {
		return model.CompletionEvent{}, err
	}

	id, err := s.ledger.Record(ctx, ledger.RecordInput{
		UserID:      in.UserID,
		TitleID:     titleID,
		Rating:      in.Rating,
		Reason:      award.Reason,
		Period:      period,
		Points:      award.Points,
		Comment:     in.Comment,
		CommunityID: in.CommunityID,
	})
	if err != nil {
		return model.CompletionEvent{}, err
	}
	return s.ledger.Get(ctx, id)
}

// Grant records a manual award with no title. Points may be negative.
func (s *Service) Grant(ctx context.Context, in GrantInput) (model.CompletionEvent, error) {
	if err := s.ready(); err != nil {
		return model.CompletionEvent{}, err
	}
	if in.Points == 0 {
		return model.CompletionEvent{}, fmt.Errorf("%w: points must not be zero", model.ErrValidation)
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = model.ReasonManual
	}

	id, err := s.ledger.Record(ctx, ledger.RecordInput{
		UserID:      in.UserID,
		Reason:      reason,
		Period:      s.CurrentPeriod(),
		Points:      in.Points,
		Comment:     in.Comment,
		CommunityID: in.CommunityID,
	})
	if err != nil {
		return model.CompletionEvent{}, err
	}
	return s.ledger.Get(ctx, id)
}

// PreviewReward returns what finishing titleID would award right now.
func (s *Service) PreviewReward(ctx context.Context, titleID string) (reward.Award, error) {
	if err := s.ready(); err != nil {
		return reward.Award{}, err
	}
	id, err := model.ParseTitleID(titleID)
	if err != nil {
		return reward.Award{}, err
	}
	return s.calculator.Compute(ctx, id, s.CurrentPeriod())
}

// Completion returns one ledger entry.
func (s *Service) Completion(ctx context.Context, id int64) (model.CompletionEvent, error) {
	if err := s.ready(); err != nil {
		return model.CompletionEvent{}, err
	}
	return s.ledger.Get(ctx, id)
}

// DeleteCompletion removes a ledger entry and returns it.
func (s *Service) DeleteCompletion(ctx context.Context, id int64) (model.CompletionEvent, error) {
	if err := s.ready(); err != nil {
		return model.CompletionEvent{}, err
	}
	return s.ledger.Delete(ctx, id)
}

// ReviewCompletion changes the rating or comment of a ledger entry.
func (s *Service) ReviewCompletion(ctx context.Context, id int64, patch model.ReviewPatch) (model.CompletionEvent, error) {
	if err := s.ready(); err != nil {
		return model.CompletionEvent{}, err
	}
	return s.ledger.Review(ctx, id, patch)
}

// UserTotal returns the user's points matching f.
func (s *Service) UserTotal(ctx context.Context, userID string, f model.Filter) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	return s.ledger.TotalForUser(ctx, userID, f)
}

// UserCompletions returns the user's history, newest first.
func (s *Service) UserCompletions(ctx context.Context, userID string) ([]model.CompletionEvent, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.ledger.EventsForUser(ctx, userID)
}

// Profile summarises a member's history.
func (s *Service) Profile(ctx context.Context, userID string) (types.Profile, error) {
	if err := s.ready(); err != nil {
		return types.Profile{}, err
	}
	return s.ranking.Profile(ctx, userID)
}

// Leaderboard returns up to limit standings matching f. A limit of zero or
// above the configured cap is clamped to the cap.
func (s *Service) Leaderboard(ctx context.Context, f model.Filter, limit int) ([]types.Standing, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if f.Period != "" {
		if _, err := model.ParsePeriod(string(f.Period)); err != nil {
			return nil, err
		}
	}
	rows, err := s.ranking.Leaderboard(ctx, f)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.maxLimit {
		limit = s.maxLimit
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// CommunityLeaderboards returns every community's board.
func (s *Service) CommunityLeaderboards(ctx context.Context) ([]types.CommunityBoard, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.ranking.ByCommunity(ctx)
}

// AddTitle promotes a title. Points default to model.DefaultTitlePoints.
func (s *Service) AddTitle(ctx context.Context, entry model.TitleEntry) (model.TitleEntry, error) {
	if err := s.ready(); err != nil {
		return model.TitleEntry{}, err
	}
	return s.catalog.Add(ctx, entry)
}

// RemoveTitle removes a promoted title and returns it.
func (s *Service) RemoveTitle(ctx context.Context, id string) (model.TitleEntry, error) {
	if err := s.ready(); err != nil {
		return model.TitleEntry{}, err
	}
	return s.catalog.Remove(ctx, id)
}

// Titles lists the catalog, newest window first.
func (s *Service) Titles(ctx context.Context) ([]model.TitleEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.catalog.List(ctx)
}

// CurrentTitles lists titles promoted in the current period.
func (s *Service) CurrentTitles(ctx context.Context) ([]model.TitleEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.catalog.Current(ctx, s.CurrentPeriod())
}

// Title returns what is known about a title. Either part may be missing;
// ErrNotFound is returned only when both are.
func (s *Service) Title(ctx context.Context, id string) (TitleDetails, error) {
	if err := s.ready(); err != nil {
		return TitleDetails{}, err
	}
	id = model.NormalizeTitleID(id)
	var out TitleDetails

	entry, err := s.catalog.Get(ctx, id)
	switch {
	case err == nil:
		out.Entry = &entry
	case !errors.Is(err, model.ErrNotFound):
		return TitleDetails{}, err
	}

	meta, err := s.metadata.GetOrFetch(ctx, id)
	switch {
	case err == nil:
		out.Metadata = &meta
	case out.Entry == nil:
		return TitleDetails{}, err
	default:
		s.logger.Warn(ctx, "title metadata unavailable", logger.String("title_id", id), logger.Error(err))
	}
	return out, nil
}

// TitleRatings lists every rating of a title.
func (s *Service) TitleRatings(ctx context.Context, id string) (types.TitleRatings, error) {
	if err := s.ready(); err != nil {
		return types.TitleRatings{}, err
	}
	return s.ranking.Ratings(ctx, model.NormalizeTitleID(id))
}

// Periods lists every period with ledger activity, newest first.
func (s *Service) Periods(ctx context.Context) ([]model.Period, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.ranking.Periods(ctx)
}

// Communities lists every community with ledger activity.
func (s *Service) Communities(ctx context.Context) ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.ranking.Communities(ctx)
}

// Reconcile runs one reconciliation pass immediately. A service configured
// with WithDryRun never applies changes, whatever dryRun says.
func (s *Service) Reconcile(ctx context.Context, dryRun bool) (reconcile.TickReport, error) {
	if err := s.ready(); err != nil {
		return reconcile.TickReport{}, err
	}
	report, err := s.reconciler.Run(ctx, dryRun || s.dryRun)
	s.mu.Lock()
	s.lastReport = &report
	s.mu.Unlock()
	return report, err
}

func (s *Service) reconcileTick(ctx context.Context) error {
	_, err := s.Reconcile(ctx, false)
	return err
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.store.Ping(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":          s.started,
		"reconcileEnabled": s.reconcileEnabled,
		"dryRun":           s.dryRun,
		"communities":      len(s.tiers),
		"period":           string(model.PeriodOf(s.now())),
	}

	if s.started {
		stats["inFlight"] = s.deduper.Size()
	}
	if s.lastReport != nil {
		stats["lastReconcile"] = *s.lastReport
	}

	return stats
}
