// Package mongo implements the storage interfaces on MongoDB.
//
// Orders and products are the operational service's collections and are only
// read. Raw sale events, daily snapshots, forecasts and feed checkpoints are
// owned by the analytics service.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"inventory-analytics/internal/observability"
)

// Names maps each logical collection to its Mongo collection name.
type Names struct {
	Orders      string
	Products    string
	RawEvents   string
	Snapshots   string
	Forecasts   string
	Checkpoints string
}

// DefaultNames returns the collection names shared with the operational service.
func DefaultNames() Names {
	return Names{
		Orders:      "orders",
		Products:    "products",
		RawEvents:   "raw_sales_events",
		Snapshots:   "daily_sales_snapshots",
		Forecasts:   "demand_forecasts",
		Checkpoints: "ingest_checkpoints",
	}
}

// Client wraps a connected mongo.Client bound to one database.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
	names  Names
}

// Connect opens a client, verifies it with a ping and binds it to dbName.
func Connect(ctx context.Context, uri, dbName string, names Names) (*Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database(dbName),
		names:  names,
	}, nil
}

// Ping checks connectivity to the primary.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// Database returns the bound database.
func (c *Client) Database() *mongo.Database {
	return c.db
}

// Names returns the configured collection names.
func (c *Client) Names() Names {
	return c.names
}

func (c *Client) collection(name string) *mongo.Collection {
	return c.db.Collection(name)
}

// EnsureIndexes creates the secondary indexes used by the analytics queries.
// Safe to call repeatedly.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	indexes := []struct {
		coll  string
		model mongo.IndexModel
	}{
		{c.names.Snapshots, mongo.IndexModel{
			Keys: bson.D{{Key: "product_sku", Value: 1}, {Key: "date_key", Value: 1}},
		}},
		{c.names.Snapshots, mongo.IndexModel{
			Keys: bson.D{{Key: "product_sku", Value: 1}, {Key: "generated_at", Value: -1}},
		}},
		{c.names.Forecasts, mongo.IndexModel{
			Keys:    bson.D{{Key: "product_sku", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{c.names.Orders, mongo.IndexModel{
			Keys: bson.D{{Key: "createdAt", Value: 1}},
		}},
	}

	for _, idx := range indexes {
		if _, err := c.collection(idx.coll).Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("create index on %s: %w", idx.coll, err)
		}
	}
	return nil
}

// observe records one query against the metrics registry.
func observe(operation string, start time.Time, err error) {
	if errors.Is(err, mongo.ErrNoDocuments) {
		err = nil
	}
	observability.RecordDBQuery("mongo", operation, time.Since(start).Seconds(), err)
}
