package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/vnclub/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.DBPath, convey.ShouldEqual, "vnclub.db")
				convey.So(cfg.ReconcileIntervalSec, convey.ShouldEqual, 300)
				convey.So(len(cfg.TierRules), convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("VNCLUB_ADDR", ":8080")
			_ = os.Setenv("VNCLUB_DB_PATH", "/data/club.db")
			_ = os.Setenv("VNCLUB_METADATA_TTL_SEC", "86400")
			_ = os.Setenv("VNCLUB_RECONCILE_ENABLED", "false")
			_ = os.Setenv("VNCLUB_LOG_LEVEL", "debug")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.DBPath, convey.ShouldEqual, "/data/club.db")
				convey.So(cfg.MetadataTTLSec, convey.ShouldEqual, 86400)
				convey.So(cfg.ReconcileEnabled, convey.ShouldBeFalse)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
storage: memory
catalog_ttl_sec: 60
tier_rules:
  "g1":
    - threshold: 0
      role: ""
    - threshold: 10
      role: "reader"
`
			tmpFile := createTempConfigFile(t, yamlContent)
			_ = os.Setenv("VNCLUB_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.Storage, convey.ShouldEqual, "memory")
				convey.So(cfg.CatalogTTLSec, convey.ShouldEqual, 60)
			})

			convey.Convey("Then the file ladder replaces the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(cfg.TierRules), convey.ShouldEqual, 1)
				convey.So(len(cfg.TierRules["g1"]), convey.ShouldEqual, 2)
				convey.So(cfg.TierRules["g1"][1].RoleID, convey.ShouldEqual, "reader")
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
reconcile_interval_sec: 600
`
			tmpFile := createTempConfigFile(t, yamlContent)
			_ = os.Setenv("VNCLUB_CONFIG", tmpFile)
			_ = os.Setenv("VNCLUB_ADDR", ":8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.ReconcileIntervalSec, convey.ShouldEqual, 600)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(t, `invalid: yaml: content: [`)
			_ = os.Setenv("VNCLUB_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("VNCLUB_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("VNCLUB_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When discord is selected without a token", func() {
			_ = os.Setenv("VNCLUB_MEMBERSHIP", "discord")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("VNCLUB_RECONCILE_INTERVAL_SEC", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// clearConfigEnvVars unsets every VNCLUB_ variable.
func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, config.EnvPrefix) {
			_ = os.Unsetenv(strings.SplitN(kv, "=", 2)[0])
		}
	}
}

// createTempConfigFile writes content to a YAML file under the test's temp dir.
func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
