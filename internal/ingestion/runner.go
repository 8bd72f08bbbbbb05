package ingestion

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"inventory-analytics/internal/domain"
	"inventory-analytics/internal/logging"
	"inventory-analytics/internal/observability"
	"inventory-analytics/internal/storage"
)

// ErrFeedClosed is returned by Run when the feed stops without cancellation.
var ErrFeedClosed = errors.New("order feed closed")

// Runner consumes the live order feed, one event at a time.
type Runner struct {
	feed         storage.OrderFeed
	processor    EventProcessor
	retryInitial time.Duration
	retryMax     time.Duration
	logger       zerolog.Logger

	processed int
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Feed         storage.OrderFeed
	Processor    EventProcessor
	RetryInitial time.Duration // Default: 1s - first delay after a store error
	RetryMax     time.Duration // Default: 30s - cap on the retry delay
	Logger       *zerolog.Logger
}

// NewRunner creates a new ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	retryInitial := opts.RetryInitial
	if retryInitial == 0 {
		retryInitial = 1 * time.Second
	}

	retryMax := opts.RetryMax
	if retryMax == 0 {
		retryMax = 30 * time.Second
	}

	logger := logging.WithComponent("ingestion")
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Runner{
		feed:         opts.Feed,
		processor:    opts.Processor,
		retryInitial: retryInitial,
		retryMax:     retryMax,
		logger:       logger,
	}
}

// Run processes feed deliveries until ctx is cancelled.
//
// A delivery is acknowledged only after ProcessEvent succeeds. Store errors are
// retried with exponential backoff. On cancellation the in-flight delivery is
// left unacknowledged and will be redelivered after restart.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info().Msg("starting ingestion runner")

	deliveries, err := r.feed.Subscribe(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Int("processed", r.processed).Msg("ingestion runner stopping")
			return ctx.Err()

		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					r.logger.Info().Int("processed", r.processed).Msg("ingestion runner stopping")
					return ctx.Err()
				}
				r.logger.Error().Msg("order feed closed")
				return ErrFeedClosed
			}
			if err := r.handle(ctx, d); err != nil {
				return err
			}
		}
	}
}

// Processed returns the number of events processed and acknowledged.
func (r *Runner) Processed() int {
	return r.processed
}

func (r *Runner) handle(ctx context.Context, d *storage.OrderDelivery) error {
	start := time.Now()

	result, err := r.processWithRetry(ctx, d.Event)
	if err != nil {
		return err
	}

	if d.Ack != nil {
		if err := d.Ack(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Position not saved: the event may be redelivered, which is safe.
			r.logger.Warn().Err(err).Str("order_id", d.Event.OrderID).Msg("acknowledge delivery")
		}
	}

	r.processed++
	observability.RecordOrderProcessed(time.Since(start).Seconds(), time.Now().Unix())
	recordOutcomes(result)

	r.logger.Info().
		Str("order_id", d.Event.OrderID).
		Int("applied", result.Applied).
		Int("duplicates", result.Duplicates).
		Int("failures", len(result.Failures)).
		Msg("order ingested")

	return nil
}

func (r *Runner) processWithRetry(ctx context.Context, e *domain.OrderEvent) (*ProcessResult, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.retryInitial
	policy.MaxInterval = r.retryMax
	policy.MaxElapsedTime = 0 // retry until cancelled

	var result *ProcessResult
	op := func() error {
		res, err := r.processor.ProcessEvent(ctx, e)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		result = res
		return nil
	}

	notify := func(err error, wait time.Duration) {
		observability.RecordEventRetry()
		r.logger.Warn().
			Err(err).
			Str("order_id", e.OrderID).
			Dur("retry_in", wait).
			Msg("order processing failed, retrying")
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(policy, ctx), notify); err != nil {
		return nil, err
	}
	return result, nil
}

func recordOutcomes(result *ProcessResult) {
	observability.RecordItemOutcome("applied", result.Applied)
	observability.RecordItemOutcome("duplicate", result.Duplicates)

	var lookup, malformed int
	for _, f := range result.Failures {
		if errors.Is(f.Err, domain.ErrProductNotFound) {
			lookup++
		} else {
			malformed++
		}
	}
	observability.RecordItemOutcome("lookup_failure", lookup)
	observability.RecordItemOutcome("malformed", malformed)
}
