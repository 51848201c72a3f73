package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okian/vnclub/internal/adapters/repository"
	"github.com/okian/vnclub/internal/loadgen"
	"github.com/okian/vnclub/pkg/logger"
)

func newMigrateCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if dbPath == "" {
				cfg, err := loadConfig(ctx)
				if err != nil {
					return err
				}
				dbPath = cfg.DBPath
			}

			db, err := repository.Open(dbPath)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := repository.RunMigrations(ctx, db); err != nil {
				return err
			}
			version, err := repository.MigrationVersion(ctx, db)
			if err != nil {
				return err
			}
			logger.Get().Info(ctx, "migrations applied", logger.String("db_path", dbPath), logger.Int64("version", version))
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database file (defaults to db_path from config)")
	return cmd
}

func newReconcileCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one tier reconciliation pass and print the report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			svc, err := buildService(ctx, cfg, false)
			if err != nil {
				return err
			}
			if err := svc.Start(ctx); err != nil {
				return err
			}
			defer svc.Stop()

			report, err := svc.Reconcile(ctx, dryRun)
			if perr := printJSON(cmd.OutOrStdout(), report); perr != nil {
				return perr
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Count planned role changes without applying them")
	return cmd
}

func newLoadgenCmd() *cobra.Command {
	var (
		cfg         loadgen.Config
		communities string
	)
	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Submit generated grants to a running server and verify totals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if communities != "" {
				cfg.Communities = strings.Split(communities, ",")
			}
			stats, err := loadgen.Run(cmd.Context(), cfg, logger.Get().Named("loadgen"))
			if perr := printJSON(cmd.OutOrStdout(), stats); perr != nil {
				return perr
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", loadgen.DefaultBaseURL, "Base URL of the service")
	f.IntVar(&cfg.Users, "users", loadgen.DefaultUsers, "Number of distinct users")
	f.IntVar(&cfg.Grants, "grants", loadgen.DefaultGrants, "Number of grants to submit")
	f.IntVar(&cfg.Workers, "workers", loadgen.DefaultWorkers, "Number of concurrent submitters")
	f.DurationVar(&cfg.Timeout, "timeout", loadgen.DefaultTimeout, "HTTP request timeout")
	f.Int64Var(&cfg.Seed, "seed", 1, "Random seed")
	f.StringVar(&cfg.Prefix, "prefix", "load", "User id prefix")
	f.StringVar(&communities, "communities", "", "Comma-separated community ids")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
