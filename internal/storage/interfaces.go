package storage

import (
	"context"
	"time"

	"inventory-analytics/internal/domain"
)

// ProductStore provides read access to the operational products collection.
type ProductStore interface {
	// GetByID retrieves a product by its operational ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, productID string) (*domain.Product, error)
}

// RawSaleStore provides access to raw_sales_events storage.
// The record is the idempotency ledger for fact increments.
type RawSaleStore interface {
	// Upsert writes r if no record with r.EventID exists. An existing record is
	// never rewritten. Returns the stored record and whether this call created it.
	Upsert(ctx context.Context, r *domain.RawSaleRecord) (*domain.RawSaleRecord, bool, error)

	// GetByID retrieves a record by event ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, eventID string) (*domain.RawSaleRecord, error)

	// MarkAggregated flags the record as counted into its daily fact.
	// Returns ErrNotFound if not exists.
	MarkAggregated(ctx context.Context, eventID string) error
}

// DailyFactStore provides access to daily_sales_snapshots storage.
type DailyFactStore interface {
	// Increment atomically adds units and revenue to the (day, sku) fact,
	// creating it if absent, and sets generated_at and aggregation_version.
	Increment(ctx context.Context, inc *domain.FactIncrement) error

	// GetBySKU retrieves all facts for a SKU, ordered by date ASC.
	GetBySKU(ctx context.Context, sku string) ([]*domain.DailyFact, error)

	// GetByDateRange retrieves facts for a SKU with start <= date <= end, ordered by date ASC.
	GetByDateRange(ctx context.Context, sku string, start, end time.Time) ([]*domain.DailyFact, error)

	// HasNewerThan reports whether any fact for the SKU has generated_at strictly after t.
	HasNewerThan(ctx context.Context, sku string, t time.Time) (bool, error)
}

// ForecastStore provides access to demand_forecasts storage.
type ForecastStore interface {
	// Get retrieves the cached forecast for a SKU. Returns ErrNotFound if not exists.
	Get(ctx context.Context, sku string) (*domain.Forecast, error)

	// Upsert replaces the cached forecast for f.ProductSKU.
	Upsert(ctx context.Context, f *domain.Forecast) error
}

// Pinger reports backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}
