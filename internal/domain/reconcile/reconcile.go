// Package reconcile aligns members' tier roles with their point totals.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/okian/vnclub/internal/domain/model"
	"github.com/okian/vnclub/internal/domain/tier"
	"github.com/okian/vnclub/internal/domain/types"
	"github.com/okian/vnclub/pkg/logger"
	"github.com/okian/vnclub/pkg/metrics"
)

// Standings provides point totals.
type Standings interface {
	Leaderboard(ctx context.Context, f model.Filter) ([]types.Standing, error)
}

// Membership reads and changes a member's roles in a community.
type Membership interface {
	Roles(ctx context.Context, communityID, memberID string) ([]string, error)
	Grant(ctx context.Context, communityID, memberID, roleID string) error
	Revoke(ctx context.Context, communityID, memberID, roleID string) error
}

// TickReport summarises one reconciliation pass. In a dry run Granted and
// Revoked count the planned changes, none of which were applied.
type TickReport struct {
	ID       string        `json:"id"`
	Started  time.Time     `json:"started"`
	DryRun   bool          `json:"dry_run"`
	Members  int           `json:"members"`
	Granted  int           `json:"granted"`
	Revoked  int           `json:"revoked"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// Option applies a configuration option to the Reconciler.
type Option func(*Reconciler)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithDryRun logs planned changes without applying them.
func WithDryRun(dry bool) Option {
	return func(r *Reconciler) {
		r.dryRun = dry
	}
}

// Reconciler computes and applies tier role changes.
type Reconciler struct {
	standings Standings
	members   Membership
	tiers     map[string]tier.Rules
	dryRun    bool
	logger    logger.Logger
}

// New creates a reconciler for the given per-community tier ladders.
func New(standings Standings, members Membership, tiers map[string]tier.Rules, opts ...Option) *Reconciler {
	r := &Reconciler{
		standings: standings,
		members:   members,
		tiers:     tiers,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOnce runs one pass in the mode configured with WithDryRun.
func (r *Reconciler) RunOnce(ctx context.Context) (TickReport, error) {
	return r.Run(ctx, r.dryRun)
}

// Run reconciles every member with ledger activity in every configured
// community. Failures for one member are logged and counted, and the pass
// continues. The returned error covers only failures to read totals.
func (r *Reconciler) Run(ctx context.Context, dryRun bool) (TickReport, error) {
	start := time.Now()
	report := TickReport{ID: uuid.NewString(), Started: start, DryRun: dryRun}
	log := r.logger.Named("tick")

	everyone, err := r.standings.Leaderboard(ctx, model.Filter{})
	if err != nil {
		return report, fmt.Errorf("reconcile %s: %w", report.ID, err)
	}

	communities := make([]string, 0, len(r.tiers))
	for id := range r.tiers {
		communities = append(communities, id)
	}
	sort.Strings(communities)

	var errs []error
	for _, communityID := range communities {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		board, err := r.standings.Leaderboard(ctx, model.Filter{CommunityID: communityID})
		if err != nil {
			errs = append(errs, fmt.Errorf("community %s: %w", communityID, err))
			continue
		}
		totals := make(map[string]int, len(board))
		for _, s := range board {
			totals[s.UserID] = s.Points
		}

		rules := r.tiers[communityID]
		for _, s := range everyone {
			report.Members++
			r.reconcileMember(ctx, log, &report, rules, communityID, s.UserID, totals[s.UserID])
		}
	}

	report.Duration = time.Since(start)
	metrics.RecordReconcileTick(report.Members, report.Duration)
	log.Info(ctx, "reconciliation finished",
		logger.String("tick_id", report.ID),
		logger.Bool("dry_run", report.DryRun),
		logger.Int("members", report.Members),
		logger.Int("granted", report.Granted),
		logger.Int("revoked", report.Revoked),
		logger.Int("failed", report.Failed),
		logger.Int("skipped", report.Skipped),
		logger.Duration("duration", report.Duration),
	)
	return report, errors.Join(errs...)
}

func (r *Reconciler) reconcileMember(ctx context.Context, log logger.Logger, report *TickReport, rules tier.Rules, communityID, memberID string, total int) {
	fields := []logger.Field{
		logger.String("tick_id", report.ID),
		logger.String("community_id", communityID),
		logger.String("member_id", memberID),
		logger.Int("total", total),
	}

	held, err := r.members.Roles(ctx, communityID, memberID)
	if errors.Is(err, model.ErrMemberNotFound) {
		report.Skipped++
		return
	}
	if err != nil {
		r.fail(ctx, log, report, "read_roles", err, fields)
		return
	}

	plan := rules.Diff(total, held)
	if plan.Empty() {
		return
	}
	if report.DryRun {
		report.Revoked += len(plan.Revoke)
		if plan.Grant != "" {
			report.Granted++
		}
		log.Info(ctx, "planned tier change", append(fields,
			logger.String("grant", plan.Grant),
			logger.Any("revoke", plan.Revoke),
		)...)
		return
	}

	for _, role := range plan.Revoke {
		if err := r.members.Revoke(ctx, communityID, memberID, role); err != nil {
			r.fail(ctx, log, report, "revoke", err, append(fields, logger.String("role", role)))
			return
		}
		report.Revoked++
		metrics.RecordRoleRevoked()
	}
	if plan.Grant != "" {
		if err := r.members.Grant(ctx, communityID, memberID, plan.Grant); err != nil {
			r.fail(ctx, log, report, "grant", err, append(fields, logger.String("role", plan.Grant)))
			return
		}
		report.Granted++
		metrics.RecordRoleGranted()
		log.Info(ctx, "tier role granted", append(fields, logger.String("role", plan.Grant))...)
	}
}

func (r *Reconciler) fail(ctx context.Context, log logger.Logger, report *TickReport, op string, err error, fields []logger.Field) {
	report.Failed++
	metrics.RecordReconcileMemberFailure()
	metrics.RecordErrorByComponent("reconciler", op)
	log.Error(ctx, "member reconciliation failed", append(fields, logger.String("op", op), logger.Error(err))...)
}
