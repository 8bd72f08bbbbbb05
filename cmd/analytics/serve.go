package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"inventory-analytics/internal/api"
	"inventory-analytics/internal/config"
	"inventory-analytics/internal/forecast"
	"inventory-analytics/internal/ingestion"
	"inventory-analytics/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the order ingestor and the forecast API",
	Long: `Subscribes to new orders and applies them to the daily sales facts,
while serving forecasts, health and metrics over HTTP. Stops cleanly on
SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTPAddr = addr
		}
		noIngest, _ := cmd.Flags().GetBool("no-ingest")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg, !noIngest)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "HTTP listen address (overrides HTTP_ADDR)")
	serveCmd.Flags().Bool("no-ingest", false, "Serve forecasts without consuming the order feed")
}

func serve(ctx context.Context, cfg *config.Config, ingest bool) error {
	logger := logging.WithComponent("serve")

	s, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	hub := api.NewHub(nil, nil)
	orchestrator := forecast.New(forecast.Options{
		Facts:          s.Facts,
		Forecasts:      s.Forecasts,
		Notifier:       hub,
		ModelVersion:   cfg.ModelVersion,
		MinHistoryDays: cfg.MinHistoryDays,
		MaxHorizon:     cfg.MaxForecastDays,
	})
	service := forecast.NewService(forecast.ServiceOptions{
		Forecasts: s.Forecasts,
		Gate:      forecast.NewGate(s.Facts),
		Generator: orchestrator,
	})
	server := api.NewServer(api.Options{
		Forecasts:   service,
		Database:    s.Database,
		Hub:         hub,
		DefaultDays: cfg.DefaultForecastDays,
		MaxDays:     cfg.MaxForecastDays,
	})

	g, gctx := errgroup.WithContext(ctx)

	if ingest {
		ingestor := ingestion.NewIngestor(ingestion.IngestorOptions{
			Products:           s.Products,
			RawSales:           s.RawSales,
			Facts:              s.Facts,
			AggregationVersion: cfg.AggregationVersion,
		})
		runner := ingestion.NewRunner(ingestion.RunnerOptions{
			Feed:         s.Feed,
			Processor:    ingestor,
			RetryInitial: cfg.FeedRetryInitial,
			RetryMax:     cfg.FeedRetryMax,
		})
		g.Go(func() error {
			return runner.Run(gctx)
		})
	} else {
		logger.Info().Msg("order ingestion disabled")
	}

	g.Go(func() error {
		return server.ListenAndServe(gctx, cfg.HTTPAddr)
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("service stopped with error")
		return err
	}
	logger.Info().Msg("service stopped")
	return nil
}
