// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Durations are plain integers with a unit suffix in the key (_sec, _ms).
// - Provide New(ctx) to build a Config with defaults.
// - Load layers defaults, an optional YAML file and VNCLUB_ env vars.
package config

import (
	"context"
	"time"

	"github.com/okian/vnclub/internal/domain/tier"
)

// Membership backends.
const (
	MembershipDiscord = "discord"
	MembershipMemory  = "memory"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Storage selects the persistence backend: sqlite or memory.
	Storage string `koanf:"storage"`

	// DBPath is the SQLite database file.
	DBPath string `koanf:"db_path"`

	// VNDBURL is the root of the VNDB Kana API.
	VNDBURL string `koanf:"vndb_url"`

	// VNDBTimeoutMS bounds each VNDB request.
	VNDBTimeoutMS int `koanf:"vndb_timeout_ms"`

	// MetadataTTLSec is how long cached metadata stays fresh. 0 never expires.
	MetadataTTLSec int `koanf:"metadata_ttl_sec"`

	// CatalogTTLSec is how long the catalog snapshot is served before reloading.
	CatalogTTLSec int `koanf:"catalog_ttl_sec"`

	// ReconcileEnabled starts the tier reconciler with the server.
	ReconcileEnabled bool `koanf:"reconcile_enabled"`

	// ReconcileDryRun logs planned role changes without applying them.
	ReconcileDryRun bool `koanf:"reconcile_dry_run"`

	// ReconcileIntervalSec is the pause between reconciliation ticks.
	ReconcileIntervalSec int `koanf:"reconcile_interval_sec"`

	// ReconcileInitialDelaySec and ReconcileJitterSec shape the first tick.
	ReconcileInitialDelaySec int `koanf:"reconcile_initial_delay_sec"`
	ReconcileJitterSec       int `koanf:"reconcile_jitter_sec"`

	// Membership selects the role backend: discord or memory.
	Membership string `koanf:"membership"`

	// DiscordAPIURL and DiscordToken configure the Discord backend.
	DiscordAPIURL string `koanf:"discord_api_url"`
	DiscordToken  string `koanf:"discord_token"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// ShutdownTimeoutSec bounds graceful shutdown.
	ShutdownTimeoutSec int `koanf:"shutdown_timeout_sec"`

	// TierRules maps a community ID to its tier ladder.
	TierRules map[string][]tier.Rule `koanf:"tier_rules"`
}

// New creates a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                 "info",
		Addr:                     ":9080",
		Storage:                  "sqlite",
		DBPath:                   "vnclub.db",
		VNDBURL:                  "https://api.vndb.org/kana",
		VNDBTimeoutMS:            5000,
		MetadataTTLSec:           0,
		CatalogTTLSec:            300,
		ReconcileEnabled:         true,
		ReconcileIntervalSec:     300,
		ReconcileInitialDelaySec: 30,
		ReconcileJitterSec:       30,
		Membership:               MembershipMemory,
		DiscordAPIURL:            "https://discord.com/api/v10",
		MaxLeaderboardLimit:      100,
		ShutdownTimeoutSec:       10,
		TierRules:                DefaultTierRules(),
	}
}

// DefaultTierRules returns the built-in ladders of the two club servers.
func DefaultTierRules() map[string][]tier.Rule {
	return map[string][]tier.Rule{
		"617136488840429598": {
			{Threshold: 1, RoleID: "1380222930138566676"},
			{Threshold: 50, RoleID: "1380223458751021167"},
			{Threshold: 100, RoleID: "1380223684517695558"},
		},
		"1094146371650601022": {
			{Threshold: 1, RoleID: "1094205642258010194"},
			{Threshold: 20, RoleID: "1094205647559598141"},
		},
	}
}

// Tiers validates TierRules and returns them keyed by community.
func (c *Config) Tiers() (map[string]tier.Rules, error) {
	out := make(map[string]tier.Rules, len(c.TierRules))
	for community, rules := range c.TierRules {
		rs, err := tier.NewRules(rules)
		if err != nil {
			return nil, wrapInvalid("tier_rules."+community, err)
		}
		out[community] = rs
	}
	return out, nil
}

// VNDBTimeout returns VNDBTimeoutMS as a duration.
func (c *Config) VNDBTimeout() time.Duration {
	return time.Duration(c.VNDBTimeoutMS) * time.Millisecond
}

// MetadataTTL returns MetadataTTLSec as a duration.
func (c *Config) MetadataTTL() time.Duration { return seconds(c.MetadataTTLSec) }

// CatalogTTL returns CatalogTTLSec as a duration.
func (c *Config) CatalogTTL() time.Duration { return seconds(c.CatalogTTLSec) }

// ReconcileInterval returns ReconcileIntervalSec as a duration.
func (c *Config) ReconcileInterval() time.Duration { return seconds(c.ReconcileIntervalSec) }

// ReconcileInitialDelay returns ReconcileInitialDelaySec as a duration.
func (c *Config) ReconcileInitialDelay() time.Duration { return seconds(c.ReconcileInitialDelaySec) }

// ReconcileJitter returns ReconcileJitterSec as a duration.
func (c *Config) ReconcileJitter() time.Duration { return seconds(c.ReconcileJitterSec) }

// ShutdownTimeout returns ShutdownTimeoutSec as a duration.
func (c *Config) ShutdownTimeout() time.Duration { return seconds(c.ShutdownTimeoutSec) }

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
