package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"inventory-analytics/internal/domain"
	"inventory-analytics/internal/storage"
)

type productDoc struct {
	ID       primitive.ObjectID `bson:"_id"`
	SKU      string             `bson:"sku"`
	Name     string             `bson:"name"`
	Category string             `bson:"category"`
	Price    float64            `bson:"price"`
}

// ProductStore implements storage.ProductStore over the operational products collection.
type ProductStore struct {
	coll *mongo.Collection
}

// NewProductStore creates a new ProductStore.
func NewProductStore(c *Client) *ProductStore {
	return &ProductStore{coll: c.collection(c.names.Products)}
}

var _ storage.ProductStore = (*ProductStore)(nil)

// GetByID retrieves a product by hex ObjectID.
// Returns ErrInvalidInput for a malformed ID and ErrNotFound if absent.
func (s *ProductStore) GetByID(ctx context.Context, productID string) (*domain.Product, error) {
	oid, err := primitive.ObjectIDFromHex(productID)
	if err != nil {
		return nil, fmt.Errorf("%w: product id %q", storage.ErrInvalidInput, productID)
	}

	start := time.Now()
	var doc productDoc
	err = s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	observe("product_get", start, err)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return &domain.Product{
		ID:       doc.ID.Hex(),
		SKU:      doc.SKU,
		Name:     doc.Name,
		Category: doc.Category,
		Price:    doc.Price,
	}, nil
}
