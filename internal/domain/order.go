package domain

import "time"

// LineItem is a single product line of an order.
type LineItem struct {
	ProductID   string  // operational product identifier (hex ObjectID for Mongo)
	Qty         int64   // units sold
	PriceAtSale float64 // unit price charged at checkout
}

// OrderEvent is a newly created order as delivered by the order feed.
// It is transient: the ingestor derives raw sale records and fact increments from it.
type OrderEvent struct {
	OrderID   string
	Items     []LineItem
	CreatedAt time.Time
}
