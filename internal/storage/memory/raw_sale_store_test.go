package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventory-analytics/internal/domain"
	"inventory-analytics/internal/storage"
)

func TestRawSaleStore_UpsertFirstWriteWins(t *testing.T) {
	store := NewRawSaleStore()
	ctx := context.Background()

	rec := &domain.RawSaleRecord{
		EventID:    "ORD-1_SKU-A",
		OrderID:    "ORD-1",
		ProductSKU: "SKU-A",
		Quantity:   2,
		UnitPrice:  9.5,
		Timestamp:  time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC),
	}

	stored, inserted, err := store.Upsert(ctx, rec)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, int64(2), stored.Quantity)

	changed := *rec
	changed.Quantity = 99
	stored, inserted, err = store.Upsert(ctx, &changed)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, int64(2), stored.Quantity, "existing record must not be rewritten")
	assert.Equal(t, 1, store.Len())
}

func TestRawSaleStore_MarkAggregated(t *testing.T) {
	store := NewRawSaleStore()
	ctx := context.Background()

	_, _, err := store.Upsert(ctx, &domain.RawSaleRecord{EventID: "ORD-1_SKU-A", Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, store.MarkAggregated(ctx, "ORD-1_SKU-A"))

	got, err := store.GetByID(ctx, "ORD-1_SKU-A")
	require.NoError(t, err)
	assert.True(t, got.Aggregated)

	// Re-upsert keeps the aggregated flag.
	stored, inserted, err := store.Upsert(ctx, &domain.RawSaleRecord{EventID: "ORD-1_SKU-A", Quantity: 1})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.True(t, stored.Aggregated)
}

func TestRawSaleStore_NotFound(t *testing.T) {
	store := NewRawSaleStore()
	ctx := context.Background()

	_, err := store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, store.MarkAggregated(ctx, "missing"), storage.ErrNotFound)

	_, _, err = store.Upsert(ctx, &domain.RawSaleRecord{})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
