// Package api exposes the club engine over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/okian/vnclub/internal/adapters/http/swagger"
	service "github.com/okian/vnclub/internal/app"
	"github.com/okian/vnclub/internal/domain/model"
	"github.com/okian/vnclub/internal/domain/reconcile"
	"github.com/okian/vnclub/internal/domain/reward"
	"github.com/okian/vnclub/internal/domain/types"
	"github.com/okian/vnclub/pkg/logger"
)

const requestTimeout = 30 * time.Second

// Dependencies required by HTTP handlers. *service.Service implements it.
type Dependencies interface {
	CurrentPeriod() model.Period
	Ping(ctx context.Context) error
	GetStats() map[string]interface{}

	FinishTitle(ctx context.Context, in service.FinishInput) (model.CompletionEvent, error)
	Grant(ctx context.Context, in service.GrantInput) (model.CompletionEvent, error)
	PreviewReward(ctx context.Context, titleID string) (reward.Award, error)
	Completion(ctx context.Context, id int64) (model.CompletionEvent, error)
	DeleteCompletion(ctx context.Context, id int64) (model.CompletionEvent, error)
	ReviewCompletion(ctx context.Context, id int64, patch model.ReviewPatch) (model.CompletionEvent, error)

	UserTotal(ctx context.Context, userID string, f model.Filter) (int, error)
	UserCompletions(ctx context.Context, userID string) ([]model.CompletionEvent, error)
	Profile(ctx context.Context, userID string) (types.Profile, error)
	Leaderboard(ctx context.Context, f model.Filter, limit int) ([]types.Standing, error)
	CommunityLeaderboards(ctx context.Context) ([]types.CommunityBoard, error)
	Periods(ctx context.Context) ([]model.Period, error)
	Communities(ctx context.Context) ([]string, error)

	AddTitle(ctx context.Context, entry model.TitleEntry) (model.TitleEntry, error)
	RemoveTitle(ctx context.Context, id string) (model.TitleEntry, error)
	Titles(ctx context.Context) ([]model.TitleEntry, error)
	CurrentTitles(ctx context.Context) ([]model.TitleEntry, error)
	Title(ctx context.Context, id string) (service.TitleDetails, error)
	TitleRatings(ctx context.Context, id string) (types.TitleRatings, error)

	Reconcile(ctx context.Context, dryRun bool) (reconcile.TickReport, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps   Dependencies
	logger logger.Logger
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, l logger.Logger) *Server {
	if l == nil {
		l = logger.Nop()
	}
	return &Server{deps: deps, logger: l}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(LoggingMiddleware(s.logger))
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Handle("/metrics", metricsHandler())
	swagger.Register(r)

	r.Route("/completions", func(r chi.Router) {
		r.Post("/", s.handleFinish)
		r.Get("/{id}", s.handleGetCompletion)
		r.Delete("/{id}", s.handleDeleteCompletion)
		r.Patch("/{id}", s.handleReviewCompletion)
	})
	r.Post("/grants", s.handleGrant)
	r.Get("/rewards/{titleID}", s.handlePreviewReward)

	r.Route("/users/{id}", func(r chi.Router) {
		r.Get("/total", s.handleUserTotal)
		r.Get("/completions", s.handleUserCompletions)
		r.Get("/profile", s.handleProfile)
	})

	r.Get("/leaderboard", s.handleLeaderboard)
	r.Get("/leaderboard/communities", s.handleCommunityLeaderboards)
	r.Get("/periods", s.handlePeriods)
	r.Get("/communities", s.handleCommunities)

	r.Route("/titles", func(r chi.Router) {
		r.Get("/", s.handleListTitles)
		r.Post("/", s.handleAddTitle)
		r.Get("/current", s.handleCurrentTitles)
		r.Get("/{id}", s.handleGetTitle)
		r.Delete("/{id}", s.handleRemoveTitle)
		r.Get("/{id}/ratings", s.handleTitleRatings)
	})

	r.Post("/reconcile", s.handleReconcile)

	return r
}
