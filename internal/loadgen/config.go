// Package loadgen drives a running server with generated point grants and
// checks that totals and leaderboards agree with what was submitted.
package loadgen

import (
	"errors"
	"time"
)

// Default configuration constants.
const (
	DefaultBaseURL = "http://localhost:9080"
	DefaultUsers   = 50
	DefaultGrants  = 1000
	DefaultWorkers = 8
	DefaultTimeout = 30 * time.Second
	maxGrantPoints = 20
	grantReason    = "loadgen"
)

// ErrMismatch reports that the server disagrees with the submitted grants.
var ErrMismatch = errors.New("server totals do not match submitted grants")

// Config holds configuration for a load run.
type Config struct {
	BaseURL     string        // Base URL of the service
	Users       int           // Distinct user ids to spread grants over
	Grants      int           // Number of grants to submit
	Communities []string      // Communities grants are tagged with; empty means none
	Workers     int           // Number of concurrent submitters
	Timeout     time.Duration // HTTP request timeout
	Seed        int64         // RNG seed; the same seed yields the same grants
	Prefix      string        // User id prefix, so runs do not collide
}

// Grant is one submitted award.
type Grant struct {
	UserID      string `json:"user_id"`
	Points      int    `json:"points"`
	Reason      string `json:"reason"`
	CommunityID string `json:"community_id,omitempty"`
}

// Standing mirrors a leaderboard row.
type Standing struct {
	Rank   int    `json:"rank"`
	UserID string `json:"user_id"`
	Points int    `json:"points"`
}

// Stats holds run statistics.
type Stats struct {
	GrantsGenerated int           `json:"grants_generated"`
	GrantsAccepted  int           `json:"grants_accepted"`
	GrantsFailed    int           `json:"grants_failed"`
	UsersVerified   int           `json:"users_verified"`
	Mismatches      int           `json:"mismatches"`
	Duration        time.Duration `json:"duration"`
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Users <= 0 {
		c.Users = DefaultUsers
	}
	if c.Grants <= 0 {
		c.Grants = DefaultGrants
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Prefix == "" {
		c.Prefix = "load"
	}
}
