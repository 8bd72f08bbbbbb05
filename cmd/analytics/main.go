package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"inventory-analytics/internal/config"
	"inventory-analytics/internal/logging"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Inventory analytics engine",
	Long: `Consumes order events from the operational store, keeps per-day
sales facts for every SKU, and serves demand forecasts over HTTP.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"analytics version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("env-file", ".env", "KEY=VALUE file loaded before the environment is parsed")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(backfillCmd)
	rootCmd.AddCommand(forecastCmd)
	rootCmd.AddCommand(migrateCmd)
}

// loadConfig reads configuration and initializes logging.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		config.LoadEnvFile(envFile)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		JSONOutput: cfg.LogJSON,
	})
	return cfg, nil
}
