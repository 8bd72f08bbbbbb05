package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"inventory-analytics/internal/domain"
	"inventory-analytics/internal/storage"
)

// OrderSource implements storage.OrderSource over the operational orders collection.
type OrderSource struct {
	coll *mongo.Collection
}

// NewOrderSource creates a new OrderSource.
func NewOrderSource(c *Client) *OrderSource {
	return &OrderSource{coll: c.collection(c.names.Orders)}
}

var _ storage.OrderSource = (*OrderSource)(nil)

// ListSince streams orders with createdAt >= since in creation order.
func (s *OrderSource) ListSince(ctx context.Context, since time.Time, fn func(*domain.OrderEvent) error) error {
	filter := bson.M{"createdAt": bson.M{"$gte": since.UTC()}}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return fmt.Errorf("find orders: %w", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var doc orderDoc
		if err := cur.Decode(&doc); err != nil {
			return fmt.Errorf("decode order: %w", err)
		}
		if err := fn(doc.event()); err != nil {
			return err
		}
	}
	if err := cur.Err(); err != nil {
		return fmt.Errorf("iterate orders: %w", err)
	}
	return nil
}
