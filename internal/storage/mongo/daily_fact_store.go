package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"inventory-analytics/internal/domain"
	"inventory-analytics/internal/keys"
	"inventory-analytics/internal/storage"
)

type dailyFactDoc struct {
	ID                 string    `bson:"_id"`
	DateKey            string    `bson:"date_key"`
	ProductSKU         string    `bson:"product_sku"`
	TotalUnitsSold     int64     `bson:"total_units_sold"`
	TotalRevenue       float64   `bson:"total_revenue"`
	GeneratedAt        time.Time `bson:"generated_at"`
	AggregationVersion string    `bson:"aggregation_version"`
}

// DailyFactStore implements storage.DailyFactStore over daily_sales_snapshots.
type DailyFactStore struct {
	coll *mongo.Collection
}

// NewDailyFactStore creates a new DailyFactStore.
func NewDailyFactStore(c *Client) *DailyFactStore {
	return &DailyFactStore{coll: c.collection(c.names.Snapshots)}
}

var _ storage.DailyFactStore = (*DailyFactStore)(nil)

// Increment applies $inc to the totals and $set to the metadata in one upsert.
func (s *DailyFactStore) Increment(ctx context.Context, inc *domain.FactIncrement) error {
	if inc == nil || inc.ProductSKU == "" || inc.Date.IsZero() {
		return storage.ErrInvalidInput
	}

	filter := bson.M{"_id": keys.DailyFactID(inc.Date, inc.ProductSKU)}
	update := bson.M{
		"$set": bson.M{
			"date_key":            domain.DateKey(inc.Date),
			"product_sku":         inc.ProductSKU,
			"generated_at":        inc.At.UTC(),
			"aggregation_version": inc.AggregationVersion,
		},
		"$inc": bson.M{
			"total_units_sold": inc.Units,
			"total_revenue":    inc.Revenue,
		},
	}
	opts := options.Update().SetUpsert(true)

	start := time.Now()
	_, err := s.coll.UpdateOne(ctx, filter, update, opts)
	if mongo.IsDuplicateKeyError(err) {
		// Two first-of-the-day upserts raced; the retry matches the winner.
		_, err = s.coll.UpdateOne(ctx, filter, update, opts)
	}
	observe("daily_fact_increment", start, err)
	if err != nil {
		return fmt.Errorf("increment daily fact: %w", err)
	}
	return nil
}

// GetBySKU retrieves all facts for a SKU, ordered by date ASC.
func (s *DailyFactStore) GetBySKU(ctx context.Context, sku string) ([]*domain.DailyFact, error) {
	return s.find(ctx, "daily_fact_by_sku", bson.M{"product_sku": sku})
}

// GetByDateRange retrieves facts for a SKU within [start, end] by calendar day.
func (s *DailyFactStore) GetByDateRange(ctx context.Context, sku string, start, end time.Time) ([]*domain.DailyFact, error) {
	filter := bson.M{
		"product_sku": sku,
		"date_key": bson.M{
			"$gte": domain.DateKey(start),
			"$lte": domain.DateKey(end),
		},
	}
	return s.find(ctx, "daily_fact_by_range", filter)
}

// HasNewerThan reports whether any fact for the SKU was touched after t.
func (s *DailyFactStore) HasNewerThan(ctx context.Context, sku string, t time.Time) (bool, error) {
	filter := bson.M{
		"product_sku":  sku,
		"generated_at": bson.M{"$gt": t.UTC()},
	}

	start := time.Now()
	n, err := s.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	observe("daily_fact_newer", start, err)
	if err != nil {
		return false, fmt.Errorf("count newer facts: %w", err)
	}
	return n > 0, nil
}

// find runs filter sorted by date_key, which orders lexically as YYYY-MM-DD.
func (s *DailyFactStore) find(ctx context.Context, op string, filter bson.M) ([]*domain.DailyFact, error) {
	start := time.Now()
	cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "date_key", Value: 1}}))
	if err != nil {
		observe(op, start, err)
		return nil, fmt.Errorf("find daily facts: %w", err)
	}
	defer cur.Close(ctx)

	var out []*domain.DailyFact
	for cur.Next(ctx) {
		var doc dailyFactDoc
		if err := cur.Decode(&doc); err != nil {
			observe(op, start, err)
			return nil, fmt.Errorf("decode daily fact: %w", err)
		}
		f, err := doc.fact()
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	err = cur.Err()
	observe(op, start, err)
	if err != nil {
		return nil, fmt.Errorf("iterate daily facts: %w", err)
	}
	return out, nil
}

func (d *dailyFactDoc) fact() (*domain.DailyFact, error) {
	date, err := time.Parse(domain.DateLayout, d.DateKey)
	if err != nil {
		return nil, fmt.Errorf("daily fact %s: bad date_key: %w", d.ID, err)
	}
	return &domain.DailyFact{
		ID:                 d.ID,
		DateKey:            d.DateKey,
		ProductSKU:         d.ProductSKU,
		Date:               date,
		TotalUnitsSold:     d.TotalUnitsSold,
		TotalRevenue:       d.TotalRevenue,
		GeneratedAt:        d.GeneratedAt.UTC(),
		AggregationVersion: d.AggregationVersion,
	}, nil
}
