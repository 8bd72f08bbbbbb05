package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"inventory-analytics/internal/domain"
	"inventory-analytics/internal/logging"
	"inventory-analytics/internal/storage"
)

// Backfiller replays historical orders through the ingestor.
// Processing is idempotent, so a backfill may overlap the live feed.
type Backfiller struct {
	source    storage.OrderSource
	processor EventProcessor
	logger    zerolog.Logger
}

// BackfillOptions contains configuration for creating a Backfiller.
type BackfillOptions struct {
	Source    storage.OrderSource
	Processor EventProcessor
	Logger    *zerolog.Logger
}

// NewBackfiller creates a new historical order backfiller.
func NewBackfiller(opts BackfillOptions) *Backfiller {
	logger := logging.WithComponent("backfill")
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Backfiller{
		source:    opts.Source,
		processor: opts.Processor,
		logger:    logger,
	}
}

// BackfillResult contains statistics from a backfill operation.
type BackfillResult struct {
	Orders     int
	Applied    int
	Duplicates int
	Failures   int
	Duration   time.Duration
}

// BackfillSince replays every order created at or after since.
// Stops at the first store error and returns the partial result.
func (b *Backfiller) BackfillSince(ctx context.Context, since time.Time) (*BackfillResult, error) {
	start := time.Now()
	result := &BackfillResult{}

	b.logger.Info().Time("since", since).Msg("starting backfill")

	err := b.source.ListSince(ctx, since, func(e *domain.OrderEvent) error {
		res, err := b.processor.ProcessEvent(ctx, e)
		if err != nil {
			return err
		}
		result.Orders++
		result.Applied += res.Applied
		result.Duplicates += res.Duplicates
		result.Failures += len(res.Failures)
		return nil
	})
	result.Duration = time.Since(start)

	if err != nil {
		return result, fmt.Errorf("backfill after %d orders: %w", result.Orders, err)
	}

	b.logger.Info().
		Int("orders", result.Orders).
		Int("applied", result.Applied).
		Int("duplicates", result.Duplicates).
		Int("failures", result.Failures).
		Dur("duration", result.Duration).
		Msg("backfill complete")

	return result, nil
}
