package forecast

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"inventory-analytics/internal/domain"
	"inventory-analytics/internal/logging"
	"inventory-analytics/internal/observability"
	"inventory-analytics/internal/storage"
)

// View is a forecast sliced to the requested number of days.
type View struct {
	Forecast    *domain.Forecast
	Points      []domain.ForecastPoint // first Days points of Forecast
	Days        int
	Regenerated bool
	Reason      Reason
}

// Service serves cached forecasts and regenerates stale ones.
type Service struct {
	forecasts storage.ForecastStore
	gate      *Gate
	generator Generator
	group     singleflight.Group
	logger    zerolog.Logger
}

// ServiceOptions contains configuration for creating a Service.
type ServiceOptions struct {
	Forecasts storage.ForecastStore
	Gate      *Gate
	Generator Generator
	Logger    *zerolog.Logger
}

// NewService creates a new forecast read service.
func NewService(opts ServiceOptions) *Service {
	logger := logging.WithComponent("forecast-service")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Service{
		forecasts: opts.Forecasts,
		gate:      opts.Gate,
		generator: opts.Generator,
		logger:    logger,
	}
}

// Get returns the forecast for sku covering days, regenerating it when the
// cache is missing, too short, or older than the newest daily fact.
//
// Concurrent regenerations of the same (sku, days) in this process share one
// generation. Across processes the last upsert wins.
func (s *Service) Get(ctx context.Context, sku string, days int) (*View, error) {
	if days < 1 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidHorizon, days)
	}

	cached, err := s.forecasts.Get(ctx, sku)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("load cached forecast: %w", err)
		}
		cached = nil
	}

	regenerate, reason, err := s.gate.NeedsRegeneration(ctx, sku, cached, days)
	if err != nil {
		return nil, err
	}
	observability.RecordCacheDecision(string(reason))

	f := cached
	if regenerate {
		s.logger.Debug().Str("sku", sku).Int("days", days).Str("reason", string(reason)).Msg("regenerating forecast")

		key := sku + "|" + strconv.Itoa(days)
		v, err, _ := s.group.Do(key, func() (any, error) {
			return s.generator.Generate(context.WithoutCancel(ctx), sku, days)
		})
		if err != nil {
			return nil, err
		}
		f = v.(*domain.Forecast)
	}

	return &View{
		Forecast:    f,
		Points:      f.Slice(days),
		Days:        days,
		Regenerated: regenerate,
		Reason:      reason,
	}, nil
}

// IsNotFound reports whether err means no forecast can be produced for the SKU.
func IsNotFound(err error) bool {
	return isHistoryError(err)
}

func isHistoryError(err error) bool {
	return errors.Is(err, domain.ErrNoHistory) || errors.Is(err, domain.ErrInsufficientHistory)
}
