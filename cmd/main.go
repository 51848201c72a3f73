package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/okian/vnclub/internal/adapters/http/api"
	"github.com/okian/vnclub/internal/adapters/membership"
	"github.com/okian/vnclub/internal/adapters/repository"
	"github.com/okian/vnclub/internal/adapters/vndb"
	app "github.com/okian/vnclub/internal/app"
	"github.com/okian/vnclub/internal/config"
	"github.com/okian/vnclub/internal/domain/reconcile"
	"github.com/okian/vnclub/pkg/logger"
	"github.com/okian/vnclub/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 35 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		// Use fmt for initialization errors since logger isn't available yet
		fmt.Fprintln(os.Stderr, "failed to initialize logging:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vnclub",
		Short:         "VN club reward and ranking engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newReconcileCmd(), newLoadgenCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the tier reconciler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

// loadConfig loads configuration (defaults -> optional file -> env) and
// applies the configured log level.
func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}

// buildService wires every adapter named by cfg into a service. The caller
// starts it.
func buildService(ctx context.Context, cfg *config.Config, withWorker bool) (*app.Service, error) {
	log := logger.Get()

	tiers, err := cfg.Tiers()
	if err != nil {
		return nil, err
	}

	store, err := repository.OpenStore(ctx, cfg.Storage, cfg.DBPath,
		repository.WithLogger(log.Named("repository")),
	)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	var members reconcile.Membership
	switch cfg.Membership {
	case config.MembershipDiscord:
		d, err := membership.NewDiscord(cfg.DiscordToken, membership.WithDiscordURL(cfg.DiscordAPIURL))
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		members = d
	default:
		members = membership.NewMemory()
	}

	opts := []app.Option{
		app.WithLogger(log),
		app.WithStore(store),
		app.WithFetcher(vndb.New(
			vndb.WithBaseURL(cfg.VNDBURL),
			vndb.WithTimeout(cfg.VNDBTimeout()),
		)),
		app.WithMembership(members),
		app.WithTiers(tiers),
		app.WithMetadataTTL(cfg.MetadataTTL()),
		app.WithFetchTimeout(cfg.VNDBTimeout()),
		app.WithCatalogTTL(cfg.CatalogTTL()),
		app.WithDryRun(cfg.ReconcileDryRun),
		app.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
		app.WithShutdownTimeout(cfg.ShutdownTimeout()),
	}
	if withWorker && cfg.ReconcileEnabled {
		opts = append(opts, app.WithReconciler(
			cfg.ReconcileInterval(),
			cfg.ReconcileInitialDelay(),
			cfg.ReconcileJitter(),
		))
	}
	return app.New(opts...), nil
}

func serve(ctx context.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	log := logger.Get()

	svc, err := buildService(ctx, cfg, true)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	// Start system metrics updater
	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewServer(svc, log.Named("http")).Handler(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or a listener failure
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		// Calculate average GC pause time
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
