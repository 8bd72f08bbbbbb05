package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"inventory-analytics/internal/domain"
	"inventory-analytics/internal/ingestion"
	"inventory-analytics/internal/storage"
)

func insertProduct(t *testing.T, c *Client, sku string) primitive.ObjectID {
	t.Helper()
	id := primitive.NewObjectID()
	_, err := c.collection(c.names.Products).InsertOne(context.Background(), bson.M{
		"_id":      id,
		"sku":      sku,
		"name":     "Product " + sku,
		"category": "General",
		"price":    int32(20),
	})
	require.NoError(t, err)
	return id
}

func TestProductStore_GetByID(t *testing.T) {
	client, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	id := insertProduct(t, client, "SKU-1")
	store := NewProductStore(client)

	p, err := store.GetByID(ctx, id.Hex())
	require.NoError(t, err)
	assert.Equal(t, "SKU-1", p.SKU)
	assert.Equal(t, 20.0, p.Price)

	_, err = store.GetByID(ctx, primitive.NewObjectID().Hex())
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.GetByID(ctx, "not-hex")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestRawSaleStore_FirstWriteWins(t *testing.T) {
	client, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRawSaleStore(client)
	ts := time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)

	rec := &domain.RawSaleRecord{
		EventID: "O1_SKU-1", OrderID: "O1", ProductSKU: "SKU-1",
		Quantity: 2, UnitPrice: 10, Timestamp: ts,
	}

	stored, created, err := store.Upsert(ctx, rec)
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, stored.Aggregated)

	changed := *rec
	changed.Quantity = 99
	stored, created, err = store.Upsert(ctx, &changed)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(2), stored.Quantity)

	require.NoError(t, store.MarkAggregated(ctx, rec.EventID))
	got, err := store.GetByID(ctx, rec.EventID)
	require.NoError(t, err)
	assert.True(t, got.Aggregated)
	assert.Equal(t, ts, got.Timestamp)

	assert.ErrorIs(t, store.MarkAggregated(ctx, "missing"), storage.ErrNotFound)
	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDailyFactStore_Increment(t *testing.T) {
	client, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewDailyFactStore(client)
	day := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	at := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Increment(ctx, &domain.FactIncrement{
			Date: day.Add(time.Duration(i) * time.Hour), ProductSKU: "SKU-1",
			Units: 2, Revenue: 19.98, At: at.Add(time.Duration(i) * time.Second),
			AggregationVersion: domain.DefaultAggregationVersion,
		}))
	}
	require.NoError(t, store.Increment(ctx, &domain.FactIncrement{
		Date: day.AddDate(0, 0, -1), ProductSKU: "SKU-1", Units: 1, Revenue: 5, At: at,
	}))

	facts, err := store.GetBySKU(ctx, "SKU-1")
	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, "2024-01-04", facts[0].DateKey)
	assert.Equal(t, "2024-01-05_SKU-1", facts[1].ID)
	assert.Equal(t, int64(6), facts[1].TotalUnitsSold)
	assert.InDelta(t, 59.94, facts[1].TotalRevenue, 1e-9)
	assert.Equal(t, day, facts[1].Date)
	assert.Equal(t, at.Add(2*time.Second), facts[1].GeneratedAt)

	ranged, err := store.GetByDateRange(ctx, "SKU-1", day, day)
	require.NoError(t, err)
	require.Len(t, ranged, 1)

	newer, err := store.HasNewerThan(ctx, "SKU-1", at.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, newer)

	newer, err = store.HasNewerThan(ctx, "SKU-1", at.Add(2*time.Second))
	require.NoError(t, err)
	assert.False(t, newer)
}

func TestForecastStore_UpsertReplaces(t *testing.T) {
	client, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewForecastStore(client)

	_, err := store.Get(ctx, "SKU-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	f := &domain.Forecast{
		ProductSKU: "SKU-1", ModelVersion: domain.DefaultModelVersion,
		GeneratedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Horizon: 2,
		ConfidenceScoreR2: 0.8123,
		Points: []domain.ForecastPoint{
			{Date: "2024-02-01", PredictedUnits: 10, UpperBound: 11.4, LowerBound: 8.6},
			{Date: "2024-02-02", PredictedUnits: 11, UpperBound: 12.54, LowerBound: 9.46},
		},
	}
	require.NoError(t, store.Upsert(ctx, f))

	got, err := store.Get(ctx, "SKU-1")
	require.NoError(t, err)
	assert.Equal(t, f, got)

	f.Horizon = 1
	f.Points = f.Points[:1]
	require.NoError(t, store.Upsert(ctx, f))

	got, err = store.Get(ctx, "SKU-1")
	require.NoError(t, err)
	assert.Len(t, got.Points, 1)

	n, err := client.collection(client.names.Forecasts).CountDocuments(ctx, bson.M{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCheckpointStore(t *testing.T) {
	client, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCheckpointStore(client)

	_, err := store.GetResumeToken(ctx, "s")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.SetResumeToken(ctx, "s", []byte{1, 2, 3}))
	require.NoError(t, store.SetResumeToken(ctx, "s", []byte{4}))
	token, err := store.GetResumeToken(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []byte{4}, token)
}

func insertOrder(t *testing.T, c *Client, orderID string, productID primitive.ObjectID, qty int32, created time.Time) {
	t.Helper()
	_, err := c.collection(c.names.Orders).InsertOne(context.Background(), bson.M{
		"order_id":  orderID,
		"createdAt": created,
		"items": bson.A{
			bson.M{"product_id": productID, "qty": qty, "price_at_sale": 2.5},
		},
	})
	require.NoError(t, err)
}

func TestOrderSource_ListSince(t *testing.T) {
	client, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	pid := insertProduct(t, client, "SKU-1")
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	insertOrder(t, client, "O3", pid, 1, base.Add(3*time.Hour))
	insertOrder(t, client, "O1", pid, 1, base.Add(-time.Hour))
	insertOrder(t, client, "O2", pid, 1, base)

	var ids []string
	err := NewOrderSource(client).ListSince(ctx, base, func(e *domain.OrderEvent) error {
		ids = append(ids, e.OrderID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"O2", "O3"}, ids)
}

func TestOrderFeed_DeliversAndResumes(t *testing.T) {
	client, cleanup := setupTestDB(t)
	defer cleanup()

	pid := insertProduct(t, client, "SKU-1")
	checkpoints := NewCheckpointStore(client)
	logger := zerolog.Nop()
	feed := NewOrderFeed(OrderFeedOptions{Client: client, Checkpoints: checkpoints, Logger: &logger})

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := feed.Subscribe(ctx)
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Millisecond)
	insertOrder(t, client, "O1", pid, 2, now)

	d := receive(t, ch)
	assert.Equal(t, "O1", d.Event.OrderID)
	assert.Equal(t, pid.Hex(), d.Event.Items[0].ProductID)
	assert.Equal(t, int64(2), d.Event.Items[0].Qty)
	assert.Equal(t, now, d.Event.CreatedAt)
	require.NoError(t, d.Ack(context.Background()))

	cancel()
	for range ch {
	}

	// Inserted while nobody is listening; the next subscription resumes after O1.
	insertOrder(t, client, "O2", pid, 1, now.Add(time.Second))

	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	ch2, err := feed.Subscribe(ctx2)
	require.NoError(t, err)

	d = receive(t, ch2)
	assert.Equal(t, "O2", d.Event.OrderID)
}

func TestIngestor_OverMongoIsIdempotent(t *testing.T) {
	client, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	pid := insertProduct(t, client, "SKU-1")
	facts := NewDailyFactStore(client)
	logger := zerolog.Nop()

	ing := ingestion.NewIngestor(ingestion.IngestorOptions{
		Products: NewProductStore(client),
		RawSales: NewRawSaleStore(client),
		Facts:    facts,
		Logger:   &logger,
	})

	e := &domain.OrderEvent{
		OrderID:   "O1",
		CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Items:     []domain.LineItem{{ProductID: pid.Hex(), Qty: 3, PriceAtSale: 2.5}},
	}

	for i := 0; i < 3; i++ {
		_, err := ing.ProcessEvent(ctx, e)
		require.NoError(t, err)
	}

	got, err := facts.GetBySKU(ctx, "SKU-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].TotalUnitsSold)
	assert.InDelta(t, 7.5, got[0].TotalRevenue, 1e-9)
}

func receive(t *testing.T, ch <-chan *storage.OrderDelivery) *storage.OrderDelivery {
	t.Helper()
	select {
	case d, ok := <-ch:
		require.True(t, ok, "feed closed")
		return d
	case <-time.After(30 * time.Second):
		t.Fatal("timed out waiting for order")
		return nil
	}
}
