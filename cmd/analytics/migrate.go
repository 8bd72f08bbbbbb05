package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"inventory-analytics/internal/config"
	"inventory-analytics/internal/storage/migrations"
	pgstore "inventory-analytics/internal/storage/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply SQL schema migrations",
	Long: `Creates the analytics tables in Postgres (POSTGRES_DSN) and the daily
increment table in ClickHouse (CLICKHOUSE_DSN). Each backend is migrated only
when its DSN is set. The mongo backend needs no migration; indexes are
created on startup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if cfg.PostgresDSN == "" && cfg.ClickhouseDSN == "" {
			if cfg.Backend == config.BackendMongo {
				fmt.Fprintln(out, "nothing to migrate for the mongo backend")
				return nil
			}
			return fmt.Errorf("set POSTGRES_DSN or CLICKHOUSE_DSN")
		}

		if cfg.PostgresDSN != "" {
			pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := migrations.RunPostgresMigrations(ctx, pool)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(out, "postgres: up to date")
			} else {
				fmt.Fprintf(out, "postgres: applied %s\n", strings.Join(applied, ", "))
			}
		}

		if cfg.ClickhouseDSN != "" {
			conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
			if err != nil {
				return err
			}
			_ = conn.Close()
			fmt.Fprintln(out, "clickhouse: schema applied")
		}
		return nil
	},
}
