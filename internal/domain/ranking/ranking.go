// Package ranking aggregates ledger events into leaderboards, profiles and
// rating summaries. Totals are derived from the ledger on every query.
package ranking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/okian/vnclub/internal/domain/model"
	"github.com/okian/vnclub/internal/domain/types"
	"github.com/okian/vnclub/pkg/metrics"
)

// recentPeriods is how many periods a profile's activity section covers.
const recentPeriods = 6

// Source reads ledger events.
type Source interface {
	Scan(ctx context.Context, f model.Filter) ([]model.CompletionEvent, error)
	EventsForUser(ctx context.Context, userID string) ([]model.CompletionEvent, error)
}

// Aggregator computes rankings from a Source.
type Aggregator struct {
	source Source
}

// New creates an aggregator.
func New(source Source) *Aggregator {
	return &Aggregator{source: source}
}

// Leaderboard ranks users by their summed points under f, highest first.
// Ties are ordered by user id.
func (a *Aggregator) Leaderboard(ctx context.Context, f model.Filter) ([]types.Standing, error) {
	start := time.Now()
	defer func() {
		metrics.RecordLeaderboardQuery("users", float64(time.Since(start).Milliseconds()))
	}()

	events, err := a.source.Scan(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	return standings(events), nil
}

// ByCommunity returns one leaderboard per community, ordered by the
// community's grand total. Events without a community are ignored.
func (a *Aggregator) ByCommunity(ctx context.Context) ([]types.CommunityBoard, error) {
	start := time.Now()
	defer func() {
		metrics.RecordLeaderboardQuery("communities", float64(time.Since(start).Milliseconds()))
	}()

	events, err := a.source.Scan(ctx, model.Filter{})
	if err != nil {
		return nil, fmt.Errorf("community leaderboard: %w", err)
	}

	grouped := make(map[string][]model.CompletionEvent)
	for _, e := range events {
		if e.CommunityID == nil || *e.CommunityID == "" {
			continue
		}
		grouped[*e.CommunityID] = append(grouped[*e.CommunityID], e)
	}

	boards := make([]types.CommunityBoard, 0, len(grouped))
	for id, evs := range grouped {
		board := types.CommunityBoard{CommunityID: id, Standings: standings(evs)}
		for _, s := range board.Standings {
			board.Total += s.Points
		}
		boards = append(boards, board)
	}
	sort.Slice(boards, func(i, j int) bool {
		if boards[i].Total != boards[j].Total {
			return boards[i].Total > boards[j].Total
		}
		return boards[i].CommunityID < boards[j].CommunityID
	})
	for i := range boards {
		boards[i].Rank = i + 1
	}
	return boards, nil
}

// Profile summarises one user's history. A user with no events gets a
// zero profile, not an error.
func (a *Aggregator) Profile(ctx context.Context, userID string) (types.Profile, error) {
	events, err := a.source.EventsForUser(ctx, userID)
	if err != nil {
		return types.Profile{}, fmt.Errorf("profile %s: %w", userID, err)
	}

	p := types.Profile{UserID: userID, RecentActivity: []types.PeriodActivity{}}
	ratingSum := 0
	perCommunity := make(map[string]int)
	perPeriod := make(map[model.Period]int)
	for _, e := range events {
		p.TotalEntries++
		p.TotalPoints += e.Points
		if e.Reason == model.ReasonMonthly {
			p.MonthlyEntries++
		}
		if e.HasTitle() {
			p.TitleEntries++
		}
		if e.Rating != nil {
			p.RatedEntries++
			ratingSum += *e.Rating
		}
		if c := model.Deref(e.CommunityID); c != "" {
			perCommunity[c]++
		}
		perPeriod[e.Period]++
	}
	if p.RatedEntries > 0 {
		p.AverageRating = float64(ratingSum) / float64(p.RatedEntries)
	}

	for c, n := range perCommunity {
		if n > p.MostActiveCount || (n == p.MostActiveCount && c < p.MostActiveCommunity) {
			p.MostActiveCommunity, p.MostActiveCount = c, n
		}
	}

	periods := make([]model.Period, 0, len(perPeriod))
	for period := range perPeriod {
		periods = append(periods, period)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i] > periods[j] })
	if len(periods) > recentPeriods {
		periods = periods[:recentPeriods]
	}
	for _, period := range periods {
		p.RecentActivity = append(p.RecentActivity, types.PeriodActivity{Period: period.String(), Count: perPeriod[period]})
	}
	return p, nil
}

// Ratings lists every rating of a title, highest first, with the average.
func (a *Aggregator) Ratings(ctx context.Context, titleID string) (types.TitleRatings, error) {
	titleID = model.NormalizeTitleID(titleID)
	events, err := a.source.Scan(ctx, model.Filter{})
	if err != nil {
		return types.TitleRatings{}, fmt.Errorf("ratings %s: %w", titleID, err)
	}

	out := types.TitleRatings{TitleID: titleID, Ratings: []types.Rating{}}
	sum := 0
	for _, e := range events {
		if model.Deref(e.TitleID) != titleID || e.Rating == nil {
			continue
		}
		out.Ratings = append(out.Ratings, types.Rating{UserID: e.UserID, Rating: *e.Rating, Comment: e.Comment})
		sum += *e.Rating
	}
	sort.Slice(out.Ratings, func(i, j int) bool {
		if out.Ratings[i].Rating != out.Ratings[j].Rating {
			return out.Ratings[i].Rating > out.Ratings[j].Rating
		}
		return out.Ratings[i].UserID < out.Ratings[j].UserID
	})
	out.Count = len(out.Ratings)
	if out.Count > 0 {
		out.Average = float64(sum) / float64(out.Count)
	}
	return out, nil
}

// Periods returns every period with at least one event, newest first.
func (a *Aggregator) Periods(ctx context.Context) ([]model.Period, error) {
	events, err := a.source.Scan(ctx, model.Filter{})
	if err != nil {
		return nil, fmt.Errorf("periods: %w", err)
	}
	seen := make(map[model.Period]struct{})
	out := make([]model.Period, 0)
	for _, e := range events {
		if _, ok := seen[e.Period]; ok {
			continue
		}
		seen[e.Period] = struct{}{}
		out = append(out, e.Period)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] > out[j] })
	return out, nil
}

// Communities returns every community with at least one event, sorted.
func (a *Aggregator) Communities(ctx context.Context) ([]string, error) {
	events, err := a.source.Scan(ctx, model.Filter{})
	if err != nil {
		return nil, fmt.Errorf("communities: %w", err)
	}
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, e := range events {
		c := model.Deref(e.CommunityID)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

func standings(events []model.CompletionEvent) []types.Standing {
	totals := make(map[string]int)
	for _, e := range events {
		totals[e.UserID] += e.Points
	}

	out := make([]types.Standing, 0, len(totals))
	for user, pts := range totals {
		out = append(out, types.Standing{UserID: user, Points: pts})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].UserID < out[j].UserID
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
