package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"inventory-analytics/internal/domain"
	"inventory-analytics/internal/keys"
	"inventory-analytics/internal/observability"
	"inventory-analytics/internal/storage"
)

// DailyFactStore implements storage.DailyFactStore on an append-only
// increment table. Totals are summed per day at read time.
type DailyFactStore struct {
	conn *Conn
}

// NewDailyFactStore creates a new DailyFactStore.
func NewDailyFactStore(conn *Conn) *DailyFactStore {
	return &DailyFactStore{conn: conn}
}

// Compile-time interface check.
var _ storage.DailyFactStore = (*DailyFactStore)(nil)

const selectFacts = `
	SELECT
		product_sku,
		date_key,
		sum(units)                                      AS total_units_sold,
		sum(revenue)                                    AS total_revenue,
		max(generated_at)                               AS last_generated_at,
		toString(argMax(aggregation_version, generated_at)) AS version
	FROM daily_sales_increments
`

// Increment appends one increment row. A single-row insert is atomic.
func (s *DailyFactStore) Increment(ctx context.Context, inc *domain.FactIncrement) error {
	if inc == nil || inc.ProductSKU == "" || inc.Date.IsZero() {
		return storage.ErrInvalidInput
	}

	start := time.Now()
	err := s.insert(ctx, inc)
	observability.RecordDBQuery("clickhouse", "daily_fact_increment", time.Since(start).Seconds(), err)
	return err
}

func (s *DailyFactStore) insert(ctx context.Context, inc *domain.FactIncrement) error {
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO daily_sales_increments (
			product_sku, date_key, units, revenue, generated_at, aggregation_version
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		inc.ProductSKU,
		domain.Day(inc.Date),
		inc.Units,
		inc.Revenue,
		inc.At.UTC(),
		inc.AggregationVersion,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetBySKU retrieves all facts for a SKU, ordered by date ASC.
func (s *DailyFactStore) GetBySKU(ctx context.Context, sku string) ([]*domain.DailyFact, error) {
	query := selectFacts + `
		WHERE product_sku = ?
		GROUP BY product_sku, date_key
		ORDER BY date_key ASC
	`

	start := time.Now()
	rows, err := s.conn.Query(ctx, query, sku)
	if err != nil {
		observability.RecordDBQuery("clickhouse", "daily_fact_by_sku", time.Since(start).Seconds(), err)
		return nil, fmt.Errorf("query by sku: %w", err)
	}
	facts, err := scanDailyFacts(rows)
	observability.RecordDBQuery("clickhouse", "daily_fact_by_sku", time.Since(start).Seconds(), err)
	return facts, err
}

// GetByDateRange retrieves facts for a SKU within [start, end] by calendar day.
func (s *DailyFactStore) GetByDateRange(ctx context.Context, sku string, start, end time.Time) ([]*domain.DailyFact, error) {
	query := selectFacts + `
		WHERE product_sku = ? AND date_key >= toDate(?) AND date_key <= toDate(?)
		GROUP BY product_sku, date_key
		ORDER BY date_key ASC
	`

	began := time.Now()
	rows, err := s.conn.Query(ctx, query, sku, domain.DateKey(start), domain.DateKey(end))
	if err != nil {
		observability.RecordDBQuery("clickhouse", "daily_fact_by_range", time.Since(began).Seconds(), err)
		return nil, fmt.Errorf("query by date range: %w", err)
	}
	facts, err := scanDailyFacts(rows)
	observability.RecordDBQuery("clickhouse", "daily_fact_by_range", time.Since(began).Seconds(), err)
	return facts, err
}

// HasNewerThan reports whether any increment for the SKU was written after t,
// compared at millisecond precision.
func (s *DailyFactStore) HasNewerThan(ctx context.Context, sku string, t time.Time) (bool, error) {
	query := `
		SELECT count()
		FROM daily_sales_increments
		WHERE product_sku = ? AND toUnixTimestamp64Milli(generated_at) > ?
	`

	start := time.Now()
	var n uint64
	err := s.conn.QueryRow(ctx, query, sku, t.UnixMilli()).Scan(&n)
	observability.RecordDBQuery("clickhouse", "daily_fact_newer", time.Since(start).Seconds(), err)
	if err != nil {
		return false, fmt.Errorf("count newer increments: %w", err)
	}
	return n > 0, nil
}

func scanDailyFacts(rows driver.Rows) ([]*domain.DailyFact, error) {
	defer rows.Close()

	var out []*domain.DailyFact
	for rows.Next() {
		var f domain.DailyFact
		if err := rows.Scan(
			&f.ProductSKU,
			&f.Date,
			&f.TotalUnitsSold,
			&f.TotalRevenue,
			&f.GeneratedAt,
			&f.AggregationVersion,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		f.Date = domain.Day(f.Date)
		f.DateKey = domain.DateKey(f.Date)
		f.ID = keys.DailyFactID(f.Date, f.ProductSKU)
		f.GeneratedAt = f.GeneratedAt.UTC()
		out = append(out, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
