package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"inventory-analytics/internal/domain"
	"inventory-analytics/internal/storage"
)

// RawSaleStore implements storage.RawSaleStore using PostgreSQL.
type RawSaleStore struct {
	pool *Pool
}

// NewRawSaleStore creates a new RawSaleStore.
func NewRawSaleStore(pool *Pool) *RawSaleStore {
	return &RawSaleStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RawSaleStore = (*RawSaleStore)(nil)

// Upsert inserts r unless event_id exists, then returns the stored row.
func (s *RawSaleStore) Upsert(ctx context.Context, r *domain.RawSaleRecord) (*domain.RawSaleRecord, bool, error) {
	if r == nil || r.EventID == "" {
		return nil, false, storage.ErrInvalidInput
	}

	query := `
		INSERT INTO raw_sales_events (
			event_id, order_id, product_sku, quantity, unit_price, event_ts
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO NOTHING
		RETURNING event_id, order_id, product_sku, quantity, unit_price, event_ts, aggregated
	`

	start := time.Now()
	row := s.pool.QueryRow(ctx, query,
		r.EventID,
		r.OrderID,
		r.ProductSKU,
		r.Quantity,
		r.UnitPrice,
		r.Timestamp.UTC(),
	)
	created, err := scanRawSale(row)
	observe("raw_sale_upsert", start, err)
	if err == nil {
		return created, true, nil
	}
	if !isNotFoundError(err) {
		return nil, false, fmt.Errorf("upsert raw sale: %w", err)
	}

	// Conflict: nothing was returned, the existing row wins.
	existing, err := s.GetByID(ctx, r.EventID)
	if err != nil {
		return nil, false, fmt.Errorf("load existing raw sale: %w", err)
	}
	return existing, false, nil
}

// GetByID retrieves a record by event ID. Returns ErrNotFound if not exists.
func (s *RawSaleStore) GetByID(ctx context.Context, eventID string) (*domain.RawSaleRecord, error) {
	query := `
		SELECT event_id, order_id, product_sku, quantity, unit_price, event_ts, aggregated
		FROM raw_sales_events
		WHERE event_id = $1
	`

	start := time.Now()
	r, err := scanRawSale(s.pool.QueryRow(ctx, query, eventID))
	observe("raw_sale_get", start, err)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get raw sale by id: %w", err)
	}
	return r, nil
}

// MarkAggregated flags the record as counted. Returns ErrNotFound if not exists.
func (s *RawSaleStore) MarkAggregated(ctx context.Context, eventID string) error {
	start := time.Now()
	tag, err := s.pool.Exec(ctx, `UPDATE raw_sales_events SET aggregated = TRUE WHERE event_id = $1`, eventID)
	observe("raw_sale_mark", start, err)
	if err != nil {
		return fmt.Errorf("mark raw sale aggregated: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanRawSale(row pgx.Row) (*domain.RawSaleRecord, error) {
	var r domain.RawSaleRecord
	err := row.Scan(
		&r.EventID,
		&r.OrderID,
		&r.ProductSKU,
		&r.Quantity,
		&r.UnitPrice,
		&r.Timestamp,
		&r.Aggregated,
	)
	if err != nil {
		return nil, err
	}
	r.Timestamp = r.Timestamp.UTC()
	return &r, nil
}
