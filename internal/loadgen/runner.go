package loadgen

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/vnclub/pkg/logger"
)

// Generate builds cfg.Grants grants over cfg.Users users. The output depends
// only on the config, so a run can be replayed.
func Generate(cfg Config) []Grant {
	cfg.defaults()
	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // test data
	grants := make([]Grant, cfg.Grants)
	for i := range grants {
		g := Grant{
			UserID: fmt.Sprintf("%s-%04d", cfg.Prefix, rng.Intn(cfg.Users)),
			Points: rng.Intn(maxGrantPoints) + 1,
			Reason: grantReason,
		}
		if len(cfg.Communities) > 0 {
			g.CommunityID = cfg.Communities[rng.Intn(len(cfg.Communities))]
		}
		grants[i] = g
	}
	return grants
}

// Expected sums the points per user.
func Expected(grants []Grant) map[string]int {
	out := make(map[string]int)
	for _, g := range grants {
		out[g.UserID] += g.Points
	}
	return out
}

// Run submits generated grants and verifies the server's view. It returns
// ErrMismatch when any total disagrees.
func Run(ctx context.Context, cfg Config, log logger.Logger) (Stats, error) {
	cfg.defaults()
	start := time.Now()
	c := newClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting load run",
		logger.String("base_url", cfg.BaseURL),
		logger.Int("grants", cfg.Grants),
		logger.Int("users", cfg.Users),
		logger.Int("workers", cfg.Workers),
	)

	if err := c.health(ctx); err != nil {
		return Stats{}, err
	}

	grants := Generate(cfg)
	stats := Stats{GrantsGenerated: len(grants)}

	// Baselines let the run verify deltas against a server with prior data.
	expected := Expected(grants)
	baseline, err := totals(ctx, c, expected, cfg.Workers)
	if err != nil {
		return stats, err
	}

	accepted, failed := submit(ctx, c, grants, cfg.Workers, log)
	stats.GrantsAccepted, stats.GrantsFailed = accepted, failed

	after, err := totals(ctx, c, expected, cfg.Workers)
	if err != nil {
		return stats, err
	}
	for user, want := range expected {
		stats.UsersVerified++
		if got := after[user] - baseline[user]; got != want {
			stats.Mismatches++
			log.Warn(ctx, "total mismatch",
				logger.String("user_id", user),
				logger.Int("want", want),
				logger.Int("got", got),
			)
		}
	}

	board, err := c.leaderboard(ctx, cfg.Users)
	if err != nil {
		return stats, err
	}
	if err := verifyOrder(board); err != nil {
		stats.Mismatches++
		log.Warn(ctx, "leaderboard order", logger.Error(err))
	}

	stats.Duration = time.Since(start)
	log.Info(ctx, "load run finished",
		logger.Int("accepted", stats.GrantsAccepted),
		logger.Int("failed", stats.GrantsFailed),
		logger.Int("mismatches", stats.Mismatches),
		logger.Duration("elapsed", stats.Duration),
	)
	if stats.Mismatches > 0 || stats.GrantsFailed > 0 {
		return stats, fmt.Errorf("%w: %d mismatches, %d failed grants", ErrMismatch, stats.Mismatches, stats.GrantsFailed)
	}
	return stats, nil
}

func submit(ctx context.Context, c *client, grants []Grant, workers int, log logger.Logger) (int, int) {
	var accepted, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, grant := range grants {
		g.Go(func() error {
			if err := c.grant(gctx, grant); err != nil {
				failed.Add(1)
				log.Debug(gctx, "grant failed", logger.String("user_id", grant.UserID), logger.Error(err))
				return nil
			}
			accepted.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(accepted.Load()), int(failed.Load())
}

func totals(ctx context.Context, c *client, users map[string]int, workers int) (map[string]int, error) {
	type result struct {
		user  string
		total int
	}
	results := make(chan result, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for user := range users {
		g.Go(func() error {
			t, err := c.total(gctx, user)
			if err != nil {
				return err
			}
			results <- result{user: user, total: t}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(results)

	out := make(map[string]int, len(users))
	for r := range results {
		out[r.user] = r.total
	}
	return out, nil
}

// verifyOrder checks that the leaderboard is sorted and ranked densely.
func verifyOrder(board []Standing) error {
	for i := range board {
		if board[i].Rank != i+1 {
			return fmt.Errorf("entry %d has rank %d", i, board[i].Rank)
		}
		if i > 0 && board[i].Points > board[i-1].Points {
			return fmt.Errorf("entry %d has more points than entry %d", i, i-1)
		}
	}
	return nil
}
