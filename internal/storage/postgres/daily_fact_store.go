package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"inventory-analytics/internal/domain"
	"inventory-analytics/internal/keys"
	"inventory-analytics/internal/storage"
)

// DailyFactStore implements storage.DailyFactStore using PostgreSQL.
type DailyFactStore struct {
	pool *Pool
}

// NewDailyFactStore creates a new DailyFactStore.
func NewDailyFactStore(pool *Pool) *DailyFactStore {
	return &DailyFactStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DailyFactStore = (*DailyFactStore)(nil)

// Increment adds to the (day, sku) row with INSERT ... ON CONFLICT DO UPDATE.
func (s *DailyFactStore) Increment(ctx context.Context, inc *domain.FactIncrement) error {
	if inc == nil || inc.ProductSKU == "" || inc.Date.IsZero() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO daily_sales_snapshots (
			id, date_key, product_sku, total_units_sold, total_revenue,
			generated_at, aggregation_version
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			total_units_sold    = daily_sales_snapshots.total_units_sold + EXCLUDED.total_units_sold,
			total_revenue       = daily_sales_snapshots.total_revenue + EXCLUDED.total_revenue,
			generated_at        = EXCLUDED.generated_at,
			aggregation_version = EXCLUDED.aggregation_version
	`

	start := time.Now()
	_, err := s.pool.Exec(ctx, query,
		keys.DailyFactID(inc.Date, inc.ProductSKU),
		domain.Day(inc.Date),
		inc.ProductSKU,
		inc.Units,
		inc.Revenue,
		inc.At.UTC(),
		inc.AggregationVersion,
	)
	observe("daily_fact_increment", start, err)
	if err != nil {
		return fmt.Errorf("increment daily fact: %w", err)
	}
	return nil
}

// GetBySKU retrieves all facts for a SKU, ordered by date ASC.
func (s *DailyFactStore) GetBySKU(ctx context.Context, sku string) ([]*domain.DailyFact, error) {
	query := `
		SELECT id, date_key, product_sku, total_units_sold, total_revenue, generated_at, aggregation_version
		FROM daily_sales_snapshots
		WHERE product_sku = $1
		ORDER BY date_key ASC
	`

	start := time.Now()
	rows, err := s.pool.Query(ctx, query, sku)
	if err != nil {
		observe("daily_fact_by_sku", start, err)
		return nil, fmt.Errorf("query daily facts by sku: %w", err)
	}
	facts, err := scanDailyFacts(rows)
	observe("daily_fact_by_sku", start, err)
	return facts, err
}

// GetByDateRange retrieves facts for a SKU within [start, end] by calendar day.
func (s *DailyFactStore) GetByDateRange(ctx context.Context, sku string, start, end time.Time) ([]*domain.DailyFact, error) {
	query := `
		SELECT id, date_key, product_sku, total_units_sold, total_revenue, generated_at, aggregation_version
		FROM daily_sales_snapshots
		WHERE product_sku = $1 AND date_key >= $2 AND date_key <= $3
		ORDER BY date_key ASC
	`

	began := time.Now()
	rows, err := s.pool.Query(ctx, query, sku, domain.Day(start), domain.Day(end))
	if err != nil {
		observe("daily_fact_by_range", began, err)
		return nil, fmt.Errorf("query daily facts by range: %w", err)
	}
	facts, err := scanDailyFacts(rows)
	observe("daily_fact_by_range", began, err)
	return facts, err
}

// HasNewerThan reports whether any fact for the SKU was touched after t.
func (s *DailyFactStore) HasNewerThan(ctx context.Context, sku string, t time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM daily_sales_snapshots
			WHERE product_sku = $1 AND generated_at > $2
		)
	`

	start := time.Now()
	var exists bool
	err := s.pool.QueryRow(ctx, query, sku, t.UTC()).Scan(&exists)
	observe("daily_fact_newer", start, err)
	if err != nil {
		return false, fmt.Errorf("check newer facts: %w", err)
	}
	return exists, nil
}

func scanDailyFacts(rows pgx.Rows) ([]*domain.DailyFact, error) {
	defer rows.Close()

	var out []*domain.DailyFact
	for rows.Next() {
		var f domain.DailyFact
		if err := rows.Scan(
			&f.ID,
			&f.Date,
			&f.ProductSKU,
			&f.TotalUnitsSold,
			&f.TotalRevenue,
			&f.GeneratedAt,
			&f.AggregationVersion,
		); err != nil {
			return nil, fmt.Errorf("scan daily fact: %w", err)
		}
		f.Date = domain.Day(f.Date)
		f.DateKey = domain.DateKey(f.Date)
		f.GeneratedAt = f.GeneratedAt.UTC()
		out = append(out, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily facts: %w", err)
	}
	return out, nil
}
