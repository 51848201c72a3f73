// Package types contains read-side shapes returned by the ranking queries
// and serialized by the HTTP layer.
package types

// Standing is one leaderboard row.
type Standing struct {
	Rank   int    `json:"rank"`
	UserID string `json:"user_id"`
	Points int    `json:"points"`
}

// CommunityBoard is the leaderboard of a single community plus its grand total.
type CommunityBoard struct {
	Rank        int        `json:"rank"`
	CommunityID string     `json:"community_id"`
	Total       int        `json:"total"`
	Standings   []Standing `json:"standings"`
}

// PeriodActivity counts completions recorded during one period.
type PeriodActivity struct {
	Period string `json:"period"`
	Count  int    `json:"count"`
}

// Profile summarises a member's ledger history.
type Profile struct {
	UserID              string           `json:"user_id"`
	TotalEntries        int              `json:"total_entries"`
	TotalPoints         int              `json:"total_points"`
	MonthlyEntries      int              `json:"monthly_entries"`
	TitleEntries        int              `json:"title_entries"`
	RatedEntries        int              `json:"rated_entries"`
	AverageRating       float64          `json:"average_rating"`
	MostActiveCommunity string           `json:"most_active_community,omitempty"`
	MostActiveCount     int              `json:"most_active_count,omitempty"`
	RecentActivity      []PeriodActivity `json:"recent_activity"`
}

// Rating is a single member's rating of a title.
type Rating struct {
	UserID  string `json:"user_id"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

// TitleRatings lists every rating of a title with the average.
type TitleRatings struct {
	TitleID string   `json:"title_id"`
	Average float64  `json:"average"`
	Count   int      `json:"count"`
	Ratings []Rating `json:"ratings"`
}
