package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"inventory-analytics/internal/domain"
	"inventory-analytics/internal/storage"
)

// forecastPointJSON is the JSONB element of demand_forecasts.forecasts.
type forecastPointJSON struct {
	Date           string  `json:"date"`
	PredictedUnits float64 `json:"predicted_units"`
	UpperBound     float64 `json:"upper_bound"`
	LowerBound     float64 `json:"lower_bound"`
}

// ForecastStore implements storage.ForecastStore using PostgreSQL.
type ForecastStore struct {
	pool *Pool
}

// NewForecastStore creates a new ForecastStore.
func NewForecastStore(pool *Pool) *ForecastStore {
	return &ForecastStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ForecastStore = (*ForecastStore)(nil)

// Get retrieves the cached forecast for a SKU. Returns ErrNotFound if not exists.
func (s *ForecastStore) Get(ctx context.Context, sku string) (*domain.Forecast, error) {
	query := `
		SELECT product_sku, model_version, generated_at, forecast_horizon, confidence_score_r2, forecasts
		FROM demand_forecasts
		WHERE product_sku = $1
	`

	start := time.Now()
	var (
		f      domain.Forecast
		points []byte
	)
	err := s.pool.QueryRow(ctx, query, sku).Scan(
		&f.ProductSKU,
		&f.ModelVersion,
		&f.GeneratedAt,
		&f.Horizon,
		&f.ConfidenceScoreR2,
		&points,
	)
	observe("forecast_get", start, err)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get forecast: %w", err)
	}

	var decoded []forecastPointJSON
	if err := json.Unmarshal(points, &decoded); err != nil {
		return nil, fmt.Errorf("decode forecast points: %w", err)
	}
	f.Points = make([]domain.ForecastPoint, len(decoded))
	for i, p := range decoded {
		f.Points[i] = domain.ForecastPoint(p)
	}
	f.GeneratedAt = f.GeneratedAt.UTC()
	return &f, nil
}

// Upsert replaces the row for f.ProductSKU.
func (s *ForecastStore) Upsert(ctx context.Context, f *domain.Forecast) error {
	if f == nil || f.ProductSKU == "" {
		return storage.ErrInvalidInput
	}

	encoded := make([]forecastPointJSON, len(f.Points))
	for i, p := range f.Points {
		encoded[i] = forecastPointJSON(p)
	}
	points, err := json.Marshal(encoded)
	if err != nil {
		return fmt.Errorf("encode forecast points: %w", err)
	}

	query := `
		INSERT INTO demand_forecasts (
			product_sku, model_version, generated_at, forecast_horizon, confidence_score_r2, forecasts
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (product_sku) DO UPDATE SET
			model_version       = EXCLUDED.model_version,
			generated_at        = EXCLUDED.generated_at,
			forecast_horizon    = EXCLUDED.forecast_horizon,
			confidence_score_r2 = EXCLUDED.confidence_score_r2,
			forecasts           = EXCLUDED.forecasts
	`

	start := time.Now()
	_, err = s.pool.Exec(ctx, query,
		f.ProductSKU,
		f.ModelVersion,
		f.GeneratedAt.UTC(),
		f.Horizon,
		f.ConfidenceScoreR2,
		string(points),
	)
	observe("forecast_upsert", start, err)
	if err != nil {
		return fmt.Errorf("upsert forecast: %w", err)
	}
	return nil
}
