package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/vnclub/internal/config"
	"github.com/okian/vnclub/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.InitWithWriter(&bytes.Buffer{}); err != nil {
		panic(err)
	}
}

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestRootCommand(t *testing.T) {
	convey.Convey("Given the root command", t, func() {
		root := newRootCmd()

		convey.Convey("Then every subcommand is registered", func() {
			names := map[string]bool{}
			for _, c := range root.Commands() {
				names[c.Name()] = true
			}
			convey.So(names["serve"], convey.ShouldBeTrue)
			convey.So(names["migrate"], convey.ShouldBeTrue)
			convey.So(names["reconcile"], convey.ShouldBeTrue)
			convey.So(names["loadgen"], convey.ShouldBeTrue)
		})
	})
}

func TestMigrateCommand(t *testing.T) {
	convey.Convey("Given a fresh database path", t, func() {
		path := filepath.Join(t.TempDir(), "club.db")
		root := newRootCmd()
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetArgs([]string{"migrate", "--db", path})

		convey.Convey("When migrating", func() {
			err := root.ExecuteContext(context.Background())

			convey.Convey("Then the schema version is printed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out.String(), convey.ShouldContainSubstring, "schema version 1")
				_, statErr := os.Stat(path)
				convey.So(statErr, convey.ShouldBeNil)
			})
		})
	})
}

func TestReconcileCommand(t *testing.T) {
	convey.Convey("Given an in-memory configuration", t, func() {
		setEnv(t, map[string]string{
			"VNCLUB_STORAGE":    "memory",
			"VNCLUB_MEMBERSHIP": "memory",
		})
		root := newRootCmd()
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetArgs([]string{"reconcile", "--dry-run"})

		convey.Convey("When reconciling once", func() {
			err := root.ExecuteContext(context.Background())

			convey.Convey("Then an empty report is printed", func() {
				convey.So(err, convey.ShouldBeNil)
				var report map[string]any
				convey.So(json.Unmarshal(out.Bytes(), &report), convey.ShouldBeNil)
				convey.So(report["members"], convey.ShouldEqual, float64(0))
				convey.So(report["id"], convey.ShouldNotBeEmpty)
				convey.So(report["dry_run"], convey.ShouldEqual, true)
			})
		})
	})
}

func TestBuildService(t *testing.T) {
	convey.Convey("Given a loaded configuration", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)
		cfg.Storage = "sqlite"
		cfg.DBPath = filepath.Join(t.TempDir(), "club.db")

		convey.Convey("When building and starting the service", func() {
			svc, err := buildService(ctx, cfg, true)
			convey.So(err, convey.ShouldBeNil)
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer svc.Stop()

			convey.Convey("Then it is healthy and runs the reconciler", func() {
				convey.So(svc.Ping(ctx), convey.ShouldBeNil)
				stats := svc.GetStats()
				convey.So(stats["reconcileEnabled"], convey.ShouldEqual, true)
				convey.So(stats["communities"], convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When discord is selected without a token", func() {
			cfg.Membership = config.MembershipDiscord
			_, err := buildService(ctx, cfg, false)

			convey.Convey("Then building fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When the config is invalid", func() {
			setEnv(t, map[string]string{"VNCLUB_ADDR": ""})
			_, err := loadConfig(ctx)

			convey.Convey("Then loading fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestSystemMetrics(t *testing.T) {
	convey.Convey("Given the system metrics updater", t, func() {
		convey.Convey("Then it should update metrics without panicking", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})

		convey.Convey("Then it returns when the context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
		})
	})
}
