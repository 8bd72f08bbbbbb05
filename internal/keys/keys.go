// Package keys builds the natural keys shared by every storage backend.
package keys

import (
	"time"

	"inventory-analytics/internal/domain"
)

// RawEventID returns the natural key of a raw sale record.
// Formula: order_id + "_" + sku
func RawEventID(orderID, sku string) string {
	return orderID + "_" + sku
}

// DailyFactID returns the natural key of a daily fact.
// Formula: YYYY-MM-DD (UTC day of t) + "_" + sku
func DailyFactID(t time.Time, sku string) string {
	return domain.DateKey(t) + "_" + sku
}
