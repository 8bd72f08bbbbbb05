package mongo

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"inventory-analytics/internal/domain"
)

// orderDoc is the operational order shape. Item fields are kept raw because
// the writer is a different service and numeric types vary.
type orderDoc struct {
	OrderID   string        `bson:"order_id"`
	Items     []itemDoc     `bson:"items"`
	CreatedAt bson.RawValue `bson:"createdAt"`
}

type itemDoc struct {
	ProductID   bson.RawValue `bson:"product_id"`
	Qty         bson.RawValue `bson:"qty"`
	PriceAtSale bson.RawValue `bson:"price_at_sale"`
}

// event converts the document to a domain order. Unusable item fields are
// mapped to values the ingestor rejects as malformed rather than failing the
// whole order.
func (d *orderDoc) event() *domain.OrderEvent {
	e := &domain.OrderEvent{
		OrderID:   d.OrderID,
		CreatedAt: rawTime(d.CreatedAt),
		Items:     make([]domain.LineItem, len(d.Items)),
	}
	for i, it := range d.Items {
		e.Items[i] = domain.LineItem{
			ProductID:   rawID(it.ProductID),
			Qty:         rawQty(it.Qty),
			PriceAtSale: rawPrice(it.PriceAtSale),
		}
	}
	return e
}

func rawID(v bson.RawValue) string {
	switch v.Type {
	case bsontype.ObjectID:
		return v.ObjectID().Hex()
	case bsontype.String:
		return v.StringValue()
	default:
		return ""
	}
}

// rawQty returns 0 for anything that is not a positive whole number.
func rawQty(v bson.RawValue) int64 {
	switch v.Type {
	case bsontype.Int32:
		return int64(v.Int32())
	case bsontype.Int64:
		return v.Int64()
	case bsontype.Double:
		f := v.Double()
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			return 0
		}
		return int64(f)
	default:
		return 0
	}
}

// rawPrice returns -1 when the price is missing or not numeric.
func rawPrice(v bson.RawValue) float64 {
	switch v.Type {
	case bsontype.Double:
		if f := v.Double(); !math.IsNaN(f) {
			return f
		}
		return -1
	case bsontype.Int32:
		return float64(v.Int32())
	case bsontype.Int64:
		return float64(v.Int64())
	case bsontype.Decimal128:
		f, err := parseDecimal128(v.Decimal128())
		if err != nil {
			return -1
		}
		return f
	default:
		return -1
	}
}

func parseDecimal128(d primitive.Decimal128) (float64, error) {
	v, err := decimal.NewFromString(d.String())
	if err != nil {
		return 0, err
	}
	return v.InexactFloat64(), nil
}

// rawTime accepts a BSON date or an RFC 3339 string; anything else is zero.
func rawTime(v bson.RawValue) time.Time {
	switch v.Type {
	case bsontype.DateTime:
		return v.Time().UTC()
	case bsontype.String:
		t, err := time.Parse(time.RFC3339Nano, v.StringValue())
		if err != nil {
			return time.Time{}
		}
		return t.UTC()
	default:
		return time.Time{}
	}
}
