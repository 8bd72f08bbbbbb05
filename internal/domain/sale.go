package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-day format used for fact keys and forecast dates.
const DateLayout = "2006-01-02"

// DefaultAggregationVersion tags daily facts written by this ingestor.
const DefaultAggregationVersion = "v1.0"

// RawSaleRecord is the deduplicated per-(order, sku) sale line.
// Corresponds to raw_sales_events. Fields are immutable once written,
// except Aggregated which flips to true after the fact increment succeeds.
type RawSaleRecord struct {
	EventID    string    // order_id + "_" + sku
	OrderID    string    // source order identifier
	ProductSKU string    // resolved SKU
	Quantity   int64     // units sold
	UnitPrice  float64   // price at sale
	Timestamp  time.Time // order creation time (UTC)
	Aggregated bool      // true once counted into the daily fact
}

// DailyFact is the running per-day, per-SKU sales total.
// Corresponds to daily_sales_snapshots. Totals only ever grow.
type DailyFact struct {
	ID                 string // date_key + "_" + sku
	DateKey            string // YYYY-MM-DD
	ProductSKU         string
	Date               time.Time // midnight UTC of DateKey
	TotalUnitsSold     int64
	TotalRevenue       float64
	GeneratedAt        time.Time // last time an increment touched this record
	AggregationVersion string
}

// FactIncrement is one atomic add-to-fact request.
type FactIncrement struct {
	Date               time.Time // any instant of the day; truncated by the store
	ProductSKU         string
	Units              int64
	Revenue            float64
	At                 time.Time // processing time, stored as generated_at
	AggregationVersion string
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateKey formats the UTC calendar day of t.
func DateKey(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// LineRevenue returns price * qty, rounded to cents.
func LineRevenue(price float64, qty int64) float64 {
	v, _ := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(qty)).Round(2).Float64()
	return v
}
