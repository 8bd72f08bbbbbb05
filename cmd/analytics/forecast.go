package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"inventory-analytics/internal/api"
	"inventory-analytics/internal/domain"
	"inventory-analytics/internal/forecast"
)

var forecastCmd = &cobra.Command{
	Use:   "forecast SKU",
	Short: "Generate and store a forecast for one SKU",
	Long: `Fits the demand model on the SKU's daily facts, stores the forecast
and prints it as JSON. Unlike the API, this always regenerates.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		days, _ := cmd.Flags().GetInt("days")
		if days == 0 {
			days = cfg.DefaultForecastDays
		}

		ctx := cmd.Context()
		s, err := openStores(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		orchestrator := forecast.New(forecast.Options{
			Facts:          s.Facts,
			Forecasts:      s.Forecasts,
			ModelVersion:   cfg.ModelVersion,
			MinHistoryDays: cfg.MinHistoryDays,
			MaxHorizon:     cfg.MaxForecastDays,
		})

		f, err := orchestrator.Generate(ctx, args[0], days)
		if err != nil {
			if errors.Is(err, domain.ErrNoHistory) || errors.Is(err, domain.ErrInsufficientHistory) {
				return fmt.Errorf("cannot forecast %s: %w", args[0], err)
			}
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(api.NewForecastResponse(f, f.Points, f.Horizon))
	},
}

func init() {
	forecastCmd.Flags().Int("days", 0, "Forecast horizon in days (default: DEFAULT_FORECAST_DAYS)")
}
