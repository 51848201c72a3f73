package config

import (
	"context"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables read by Load.
const (
	EnvPrefix = "VNCLUB_"
	EnvFile   = "VNCLUB_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if VNCLUB_CONFIG is set
//  3. env (prefix VNCLUB_)
func Load(ctx context.Context) (*Config, error) {
	// Start with defaults
	base := New(ctx)

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv(EnvFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, wrapLoad(err)
		}
	}

	// Environment variables: VNCLUB_ADDR, VNCLUB_DB_PATH, ...
	// Map env keys like VNCLUB_DB_PATH -> db_path (flat keys)
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, strings.ToLower(EnvPrefix))
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, wrapLoad(err)
	}
	// VNCLUB_CONFIG itself is not a config key.
	k.Delete("config")

	// Unmarshal into a copy
	cfg := *base
	if k.Exists("tier_rules") {
		// A supplied ladder replaces the defaults instead of merging with them.
		cfg.TierRules = nil
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, wrapLoad(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return invalid("addr must not be empty")
	}
	switch c.Storage {
	case "sqlite":
		if strings.TrimSpace(c.DBPath) == "" {
			return invalid("db_path must not be empty")
		}
	case "memory":
	default:
		return invalid("unknown storage %q", c.Storage)
	}
	if c.VNDBTimeoutMS <= 0 {
		return invalid("vndb_timeout_ms must be positive")
	}
	if c.MetadataTTLSec < 0 || c.CatalogTTLSec < 0 {
		return invalid("ttl values must not be negative")
	}
	if c.ReconcileIntervalSec <= 0 {
		return invalid("reconcile_interval_sec must be positive")
	}
	if c.ReconcileInitialDelaySec < 0 || c.ReconcileJitterSec < 0 {
		return invalid("reconcile delays must not be negative")
	}
	switch c.Membership {
	case MembershipDiscord:
		if c.DiscordToken == "" {
			return invalid("discord_token is required for the discord membership backend")
		}
	case MembershipMemory:
	default:
		return invalid("unknown membership backend %q", c.Membership)
	}
	if c.MaxLeaderboardLimit <= 0 {
		return invalid("max_leaderboard_limit must be positive")
	}
	if _, err := c.Tiers(); err != nil {
		return err
	}
	return nil
}
