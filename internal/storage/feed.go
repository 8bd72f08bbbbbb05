package storage

import (
	"context"
	"time"

	"inventory-analytics/internal/domain"
)

// OrderDelivery is one order handed out by an OrderFeed.
// Ack persists the feed position past this order; unacknowledged
// deliveries are redelivered after a restart.
type OrderDelivery struct {
	Event *domain.OrderEvent
	Ack   func(ctx context.Context) error
}

// OrderFeed is a live feed of newly inserted orders.
type OrderFeed interface {
	// Subscribe starts delivering orders after the last acknowledged position.
	// The channel is closed when ctx is cancelled.
	Subscribe(ctx context.Context) (<-chan *OrderDelivery, error)
}

// OrderSource lists historical orders.
type OrderSource interface {
	// ListSince calls fn for every order created at or after since, oldest first.
	// Stops at the first error returned by fn.
	ListSince(ctx context.Context, since time.Time, fn func(*domain.OrderEvent) error) error
}
