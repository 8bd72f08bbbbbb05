package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"inventory-analytics/internal/domain"
	"inventory-analytics/internal/storage"
)

type forecastPointDoc struct {
	Date           string  `bson:"date"`
	PredictedUnits float64 `bson:"predicted_units"`
	UpperBound     float64 `bson:"upper_bound"`
	LowerBound     float64 `bson:"lower_bound"`
}

type forecastDoc struct {
	ProductSKU        string             `bson:"product_sku"`
	ModelVersion      string             `bson:"model_version"`
	GeneratedAt       time.Time          `bson:"generated_at"`
	Horizon           int                `bson:"forecast_horizon"`
	ConfidenceScoreR2 float64            `bson:"confidence_score_r2"`
	Forecasts         []forecastPointDoc `bson:"forecasts"`
}

// ForecastStore implements storage.ForecastStore over demand_forecasts.
type ForecastStore struct {
	coll *mongo.Collection
}

// NewForecastStore creates a new ForecastStore.
func NewForecastStore(c *Client) *ForecastStore {
	return &ForecastStore{coll: c.collection(c.names.Forecasts)}
}

var _ storage.ForecastStore = (*ForecastStore)(nil)

// Get retrieves the cached forecast for a SKU. Returns ErrNotFound if not exists.
func (s *ForecastStore) Get(ctx context.Context, sku string) (*domain.Forecast, error) {
	start := time.Now()
	var doc forecastDoc
	err := s.coll.FindOne(ctx, bson.M{"product_sku": sku}).Decode(&doc)
	observe("forecast_get", start, err)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get forecast: %w", err)
	}

	f := &domain.Forecast{
		ProductSKU:        doc.ProductSKU,
		ModelVersion:      doc.ModelVersion,
		GeneratedAt:       doc.GeneratedAt.UTC(),
		Horizon:           doc.Horizon,
		ConfidenceScoreR2: doc.ConfidenceScoreR2,
		Points:            make([]domain.ForecastPoint, len(doc.Forecasts)),
	}
	for i, p := range doc.Forecasts {
		f.Points[i] = domain.ForecastPoint(p)
	}
	return f, nil
}

// Upsert replaces the whole document for f.ProductSKU.
func (s *ForecastStore) Upsert(ctx context.Context, f *domain.Forecast) error {
	if f == nil || f.ProductSKU == "" {
		return storage.ErrInvalidInput
	}

	doc := forecastDoc{
		ProductSKU:        f.ProductSKU,
		ModelVersion:      f.ModelVersion,
		GeneratedAt:       f.GeneratedAt.UTC(),
		Horizon:           f.Horizon,
		ConfidenceScoreR2: f.ConfidenceScoreR2,
		Forecasts:         make([]forecastPointDoc, len(f.Points)),
	}
	for i, p := range f.Points {
		doc.Forecasts[i] = forecastPointDoc(p)
	}

	start := time.Now()
	_, err := s.coll.ReplaceOne(ctx, bson.M{"product_sku": f.ProductSKU}, doc, options.Replace().SetUpsert(true))
	observe("forecast_upsert", start, err)
	if err != nil {
		return fmt.Errorf("upsert forecast: %w", err)
	}
	return nil
}
