package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"inventory-analytics/internal/domain"
	"inventory-analytics/internal/ingestion"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Replay historical orders into the daily sales facts",
	Long: `Reads every order created at or after --since from the orders
collection and applies it through the ingestor. Orders already applied are
skipped, so a backfill can run alongside the live service.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetString("since")
		since, err := parseSince(raw)
		if err != nil {
			return err
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		s, err := openStores(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		backfiller := ingestion.NewBackfiller(ingestion.BackfillOptions{
			Source: s.Source,
			Processor: ingestion.NewIngestor(ingestion.IngestorOptions{
				Products:           s.Products,
				RawSales:           s.RawSales,
				Facts:              s.Facts,
				AggregationVersion: cfg.AggregationVersion,
			}),
		})

		result, err := backfiller.BackfillSince(ctx, since)
		if result != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "orders=%d applied=%d duplicates=%d failures=%d duration=%s\n",
				result.Orders, result.Applied, result.Duplicates, result.Failures, result.Duration.Round(time.Millisecond))
		}
		return err
	},
}

func init() {
	backfillCmd.Flags().String("since", "", "Earliest order time, RFC3339 or YYYY-MM-DD (default: all orders)")
}

// parseSince accepts RFC3339 or a calendar day. Empty means the beginning of time.
func parseSince(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(domain.DateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: want RFC3339 or YYYY-MM-DD", raw)
	}
	return t, nil
}
