// Package forecast generates, caches and serves per-SKU demand forecasts.
// Flow: daily facts → features → linear model → recursive projection → forecast store
package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"inventory-analytics/internal/domain"
	"inventory-analytics/internal/features"
	"inventory-analytics/internal/logging"
	"inventory-analytics/internal/model"
	"inventory-analytics/internal/observability"
	"inventory-analytics/internal/storage"
)

// Defaults for Options.
const (
	DefaultMinHistoryDays = features.Warmup + 1
	DefaultMaxHorizon     = 30
)

// Notifier is told about every persisted forecast.
type Notifier interface {
	ForecastUpdated(f *domain.Forecast)
}

// Generator produces and persists a fresh forecast.
type Generator interface {
	Generate(ctx context.Context, sku string, horizon int) (*domain.Forecast, error)
}

// Orchestrator fits a fresh model per call and replaces the cached forecast.
type Orchestrator struct {
	facts        storage.DailyFactStore
	forecasts    storage.ForecastStore
	notifier     Notifier
	modelVersion string
	minHistory   int
	maxHorizon   int
	now          func() time.Time
	logger       zerolog.Logger
}

// Options for creating Orchestrator.
type Options struct {
	// Required stores
	Facts     storage.DailyFactStore
	Forecasts storage.ForecastStore

	// Optional
	Notifier       Notifier
	ModelVersion   string // Default: "v1.0_linear"
	MinHistoryDays int    // Default: 15 (14 warm-up days + 1 trainable row)
	MaxHorizon     int    // Default: 30
	Now            func() time.Time
	Logger         *zerolog.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		facts:        opts.Facts,
		forecasts:    opts.Forecasts,
		notifier:     opts.Notifier,
		modelVersion: opts.ModelVersion,
		minHistory:   opts.MinHistoryDays,
		maxHorizon:   opts.MaxHorizon,
		now:          opts.Now,
		logger:       logging.WithComponent("forecast"),
	}
	if o.modelVersion == "" {
		o.modelVersion = domain.DefaultModelVersion
	}
	if o.minHistory < DefaultMinHistoryDays {
		o.minHistory = DefaultMinHistoryDays
	}
	if o.maxHorizon <= 0 {
		o.maxHorizon = DefaultMaxHorizon
	}
	if o.now == nil {
		o.now = time.Now
	}
	if opts.Logger != nil {
		o.logger = *opts.Logger
	}
	return o
}

// MaxHorizon returns the largest accepted horizon.
func (o *Orchestrator) MaxHorizon() int {
	return o.maxHorizon
}

// Generate builds a forecast for sku covering horizon days after the last
// observed day and upserts it. Nothing is written on failure.
//
// Phases:
//  1. Load daily facts (ErrNoHistory if none)
//  2. Check minimum history (ErrInsufficientHistory)
//  3. Build features and fit the model
//  4. Seed recursion with the last 14 raw values
//  5. Project, attach bounds, persist
func (o *Orchestrator) Generate(ctx context.Context, sku string, horizon int) (*domain.Forecast, error) {
	start := time.Now()
	f, err := o.generate(ctx, sku, horizon)
	observability.RecordForecast(statusOf(err), time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	if o.notifier != nil {
		o.notifier.ForecastUpdated(f)
	}

	o.logger.Info().
		Str("sku", sku).
		Int("horizon", horizon).
		Float64("r2", f.ConfidenceScoreR2).
		Dur("took", time.Since(start)).
		Msg("generated forecast")

	return f, nil
}

func (o *Orchestrator) generate(ctx context.Context, sku string, horizon int) (*domain.Forecast, error) {
	if horizon < 1 || horizon > o.maxHorizon {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", domain.ErrInvalidHorizon, horizon, o.maxHorizon)
	}

	// Facts written after this instant are not guaranteed to be in the read
	// below, so the forecast must look stale to them.
	asOf := o.now().UTC().Truncate(time.Millisecond)

	// Phase 1: history
	facts, err := o.facts.GetBySKU(ctx, sku)
	if err != nil {
		return nil, fmt.Errorf("load daily facts: %w", err)
	}
	if len(facts) == 0 {
		return nil, fmt.Errorf("%w: sku %s", domain.ErrNoHistory, sku)
	}

	// Phase 2: minimum sample
	if len(facts) < o.minHistory {
		return nil, fmt.Errorf("%w: sku %s has %d days, need %d",
			domain.ErrInsufficientHistory, sku, len(facts), o.minHistory)
	}

	// Phase 3: features and fit
	obs := features.Sorted(features.FromFacts(facts))
	mx := features.Build(obs)
	if mx.Len() == 0 {
		return nil, fmt.Errorf("%w: sku %s has no trainable rows", domain.ErrInsufficientHistory, sku)
	}

	m, err := model.Fit(mx.Rows, mx.Target)
	if err != nil {
		return nil, fmt.Errorf("fit model: %w", err)
	}

	// Phase 4: recursion seed from the untrimmed series
	values := features.Values(obs)
	seed := values[len(values)-features.Warmup:]
	firstDay := domain.Day(obs[len(obs)-1].Date).AddDate(0, 0, 1)

	// Phase 5: project and persist
	preds, err := m.ForecastRecursive(seed, firstDay, horizon)
	if err != nil {
		return nil, fmt.Errorf("recursive forecast: %w", err)
	}

	f := o.document(sku, asOf, firstDay, preds, m.ClampedR2(), horizon)
	if err := o.forecasts.Upsert(ctx, f); err != nil {
		return nil, fmt.Errorf("store forecast: %w", err)
	}

	return f, nil
}

func (o *Orchestrator) document(sku string, asOf, firstDay time.Time, preds []float64, r2 float64, horizon int) *domain.Forecast {
	bounds := model.Bounds(preds, r2)

	points := make([]domain.ForecastPoint, len(preds))
	for i, v := range preds {
		points[i] = domain.ForecastPoint{
			Date:           domain.DateKey(firstDay.AddDate(0, 0, i)),
			PredictedUnits: model.Round(v, 2),
			UpperBound:     model.Round(bounds[i].Upper, 2),
			LowerBound:     model.Round(bounds[i].Lower, 2),
		}
	}

	return &domain.Forecast{
		ProductSKU:        sku,
		ModelVersion:      o.modelVersion,
		GeneratedAt:       asOf,
		Horizon:           horizon,
		ConfidenceScoreR2: model.Round(r2, 4),
		Points:            points,
	}
}

func statusOf(err error) string {
	if err == nil {
		return "ok"
	}
	switch {
	case isHistoryError(err):
		return "insufficient_history"
	default:
		return "error"
	}
}
