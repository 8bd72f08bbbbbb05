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

// rawSaleDoc is a raw_sales_events document. _id duplicates event_id so the
// primary key enforces one record per (order, sku).
type rawSaleDoc struct {
	ID         string    `bson:"_id"`
	EventID    string    `bson:"event_id"`
	OrderID    string    `bson:"order_id"`
	ProductSKU string    `bson:"product_sku"`
	Quantity   int64     `bson:"quantity"`
	UnitPrice  float64   `bson:"unit_price"`
	Timestamp  time.Time `bson:"timestamp"`
	Aggregated bool      `bson:"aggregated"`
}

func (d *rawSaleDoc) record() *domain.RawSaleRecord {
	return &domain.RawSaleRecord{
		EventID:    d.EventID,
		OrderID:    d.OrderID,
		ProductSKU: d.ProductSKU,
		Quantity:   d.Quantity,
		UnitPrice:  d.UnitPrice,
		Timestamp:  d.Timestamp.UTC(),
		Aggregated: d.Aggregated,
	}
}

// RawSaleStore implements storage.RawSaleStore using MongoDB.
type RawSaleStore struct {
	coll *mongo.Collection
}

// NewRawSaleStore creates a new RawSaleStore.
func NewRawSaleStore(c *Client) *RawSaleStore {
	return &RawSaleStore{coll: c.collection(c.names.RawEvents)}
}

var _ storage.RawSaleStore = (*RawSaleStore)(nil)

// Upsert inserts r with $setOnInsert, leaving an existing record untouched.
func (s *RawSaleStore) Upsert(ctx context.Context, r *domain.RawSaleRecord) (*domain.RawSaleRecord, bool, error) {
	if r == nil || r.EventID == "" {
		return nil, false, storage.ErrInvalidInput
	}

	ts := r.Timestamp.UTC().Truncate(time.Millisecond)
	update := bson.M{"$setOnInsert": bson.M{
		"event_id":    r.EventID,
		"order_id":    r.OrderID,
		"product_sku": r.ProductSKU,
		"quantity":    r.Quantity,
		"unit_price":  r.UnitPrice,
		"timestamp":   ts,
		"aggregated":  false,
	}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.Before)

	start := time.Now()
	var prev rawSaleDoc
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": r.EventID}, update, opts).Decode(&prev)
	observe("raw_sale_upsert", start, err)

	switch {
	case err == nil:
		return prev.record(), false, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		created := *r
		created.Timestamp = ts
		created.Aggregated = false
		return &created, true, nil
	case mongo.IsDuplicateKeyError(err):
		// Lost a concurrent insert race; the winner's record is authoritative.
		existing, getErr := s.GetByID(ctx, r.EventID)
		if getErr != nil {
			return nil, false, fmt.Errorf("reload raw sale after duplicate: %w", getErr)
		}
		return existing, false, nil
	default:
		return nil, false, fmt.Errorf("upsert raw sale: %w", err)
	}
}

// GetByID retrieves a record by event ID. Returns ErrNotFound if not exists.
func (s *RawSaleStore) GetByID(ctx context.Context, eventID string) (*domain.RawSaleRecord, error) {
	start := time.Now()
	var doc rawSaleDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": eventID}).Decode(&doc)
	observe("raw_sale_get", start, err)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get raw sale: %w", err)
	}
	return doc.record(), nil
}

// MarkAggregated flags the record as counted. Returns ErrNotFound if not exists.
func (s *RawSaleStore) MarkAggregated(ctx context.Context, eventID string) error {
	start := time.Now()
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": eventID}, bson.M{"$set": bson.M{"aggregated": true}})
	observe("raw_sale_mark", start, err)
	if err != nil {
		return fmt.Errorf("mark raw sale aggregated: %w", err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}
