package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"inventory-analytics/internal/domain"
	"inventory-analytics/internal/keys"
	"inventory-analytics/internal/logging"
	"inventory-analytics/internal/storage"
)

// EventProcessor applies one order event to the analytics stores.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, e *domain.OrderEvent) (*ProcessResult, error)
}

// ItemFailure describes a skipped line item.
type ItemFailure struct {
	ProductID string
	Err       error // wraps domain.ErrProductNotFound or domain.ErrMalformedItem
}

// ProcessResult summarises one ProcessEvent call.
type ProcessResult struct {
	OrderID    string
	Applied    int // items counted into a daily fact by this call
	Duplicates int // items already counted by an earlier delivery
	Failures   []ItemFailure
}

// Ingestor turns order events into raw sale records and daily fact increments.
//
// Per item: upsert the raw record (first write wins), skip if it is already
// marked aggregated, increment the daily fact, then mark the record aggregated.
// A crash between the increment and the mark re-applies that one increment on
// redelivery; every other redelivery is a no-op.
type Ingestor struct {
	products           storage.ProductStore
	raw                storage.RawSaleStore
	facts              storage.DailyFactStore
	aggregationVersion string
	now                func() time.Time
	logger             zerolog.Logger
}

// IngestorOptions contains configuration for creating an Ingestor.
type IngestorOptions struct {
	Products           storage.ProductStore
	RawSales           storage.RawSaleStore
	Facts              storage.DailyFactStore
	AggregationVersion string           // Default: "v1.0"
	Now                func() time.Time // Default: time.Now
	Logger             *zerolog.Logger
}

// NewIngestor creates a new event ingestor.
func NewIngestor(opts IngestorOptions) *Ingestor {
	version := opts.AggregationVersion
	if version == "" {
		version = domain.DefaultAggregationVersion
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	logger := logging.WithComponent("ingestor")
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Ingestor{
		products:           opts.Products,
		raw:                opts.RawSales,
		facts:              opts.Facts,
		aggregationVersion: version,
		now:                now,
		logger:             logger,
	}
}

// ProcessEvent applies every line item of e.
//
// Lookup misses and malformed items are recorded in the result and skipped.
// A store error aborts the event and is returned; the event is safe to retry.
func (i *Ingestor) ProcessEvent(ctx context.Context, e *domain.OrderEvent) (*ProcessResult, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: nil order event", storage.ErrInvalidInput)
	}

	result := &ProcessResult{OrderID: e.OrderID}

	for _, item := range mergeItems(e.Items) {
		dup, err := i.processItem(ctx, e, item)
		switch {
		case err == nil && dup:
			result.Duplicates++
		case err == nil:
			result.Applied++
		case errors.Is(err, domain.ErrProductNotFound), errors.Is(err, domain.ErrMalformedItem):
			i.logger.Warn().
				Err(err).
				Str("order_id", e.OrderID).
				Str("product_id", item.ProductID).
				Msg("skipping line item")
			result.Failures = append(result.Failures, ItemFailure{ProductID: item.ProductID, Err: err})
		default:
			return result, fmt.Errorf("order %s item %s: %w", e.OrderID, item.ProductID, err)
		}
	}

	i.logger.Debug().
		Str("order_id", e.OrderID).
		Int("applied", result.Applied).
		Int("duplicates", result.Duplicates).
		Int("failures", len(result.Failures)).
		Msg("processed order")

	return result, nil
}

// processItem returns true when the item had already been aggregated.
func (i *Ingestor) processItem(ctx context.Context, e *domain.OrderEvent, item domain.LineItem) (bool, error) {
	if err := validateItem(e, item); err != nil {
		return false, err
	}

	product, err := i.products.GetByID(ctx, item.ProductID)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return false, fmt.Errorf("%w: %s", domain.ErrProductNotFound, item.ProductID)
		case errors.Is(err, storage.ErrInvalidInput):
			return false, fmt.Errorf("%w: product id %q", domain.ErrMalformedItem, item.ProductID)
		default:
			return false, fmt.Errorf("lookup product: %w", err)
		}
	}
	if product.SKU == "" {
		return false, fmt.Errorf("%w: product %s has no sku", domain.ErrProductNotFound, item.ProductID)
	}

	rec := &domain.RawSaleRecord{
		EventID:    keys.RawEventID(e.OrderID, product.SKU),
		OrderID:    e.OrderID,
		ProductSKU: product.SKU,
		Quantity:   item.Qty,
		UnitPrice:  item.PriceAtSale,
		Timestamp:  e.CreatedAt.UTC(),
	}

	stored, _, err := i.raw.Upsert(ctx, rec)
	if err != nil {
		return false, fmt.Errorf("upsert raw sale: %w", err)
	}
	if stored.Aggregated {
		return true, nil
	}

	// Increment from the stored record so a redelivery with different
	// payload still counts the first-written values.
	inc := &domain.FactIncrement{
		Date:               stored.Timestamp,
		ProductSKU:         stored.ProductSKU,
		Units:              stored.Quantity,
		Revenue:            domain.LineRevenue(stored.UnitPrice, stored.Quantity),
		At:                 i.now().UTC(),
		AggregationVersion: i.aggregationVersion,
	}
	if err := i.facts.Increment(ctx, inc); err != nil {
		return false, fmt.Errorf("increment daily fact: %w", err)
	}

	if err := i.raw.MarkAggregated(ctx, stored.EventID); err != nil {
		return false, fmt.Errorf("mark aggregated: %w", err)
	}

	return false, nil
}

func validateItem(e *domain.OrderEvent, item domain.LineItem) error {
	switch {
	case e.OrderID == "":
		return fmt.Errorf("%w: missing order id", domain.ErrMalformedItem)
	case e.CreatedAt.IsZero():
		return fmt.Errorf("%w: missing order timestamp", domain.ErrMalformedItem)
	case item.ProductID == "":
		return fmt.Errorf("%w: missing product id", domain.ErrMalformedItem)
	case item.Qty <= 0:
		return fmt.Errorf("%w: quantity %d", domain.ErrMalformedItem, item.Qty)
	case item.PriceAtSale < 0:
		return fmt.Errorf("%w: negative price %v", domain.ErrMalformedItem, item.PriceAtSale)
	}
	return nil
}

// mergeItems folds lines of the same product into one, since the raw record
// key is per (order, sku). The merged price is the quantity-weighted mean.
// Lines that fail validation are passed through untouched.
func mergeItems(items []domain.LineItem) []domain.LineItem {
	type acc struct {
		idx     int
		qty     int64
		revenue decimal.Decimal
	}

	var out []domain.LineItem
	byProduct := make(map[string]*acc)

	for _, it := range items {
		if it.ProductID == "" || it.Qty <= 0 || it.PriceAtSale < 0 {
			out = append(out, it)
			continue
		}
		rev := decimal.NewFromFloat(it.PriceAtSale).Mul(decimal.NewFromInt(it.Qty))
		if a, ok := byProduct[it.ProductID]; ok {
			a.qty += it.Qty
			a.revenue = a.revenue.Add(rev)
			continue
		}
		byProduct[it.ProductID] = &acc{idx: len(out), qty: it.Qty, revenue: rev}
		out = append(out, it)
	}

	for _, a := range byProduct {
		it := &out[a.idx]
		if a.qty != it.Qty {
			it.PriceAtSale = a.revenue.Div(decimal.NewFromInt(a.qty)).InexactFloat64()
			it.Qty = a.qty
		}
	}
	return out
}

var _ EventProcessor = (*Ingestor)(nil)
