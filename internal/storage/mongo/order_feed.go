package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"inventory-analytics/internal/logging"
	"inventory-analytics/internal/observability"
	"inventory-analytics/internal/storage"
)

// DefaultFeedStream is the checkpoint key of the orders change stream.
const DefaultFeedStream = "orders_insert"

// changeStreamHistoryLost is returned when the resume token fell off the oplog.
const changeStreamHistoryLost = 286

// OrderFeed implements storage.OrderFeed with a change stream on the orders
// collection, filtered to inserts. Resume tokens are stored in the checkpoint
// store when a delivery is acknowledged.
type OrderFeed struct {
	coll         *mongo.Collection
	checkpoints  storage.CheckpointStore
	stream       string
	retryInitial time.Duration
	retryMax     time.Duration
	logger       zerolog.Logger
}

// OrderFeedOptions contains configuration for creating an OrderFeed.
type OrderFeedOptions struct {
	Client       *Client
	Checkpoints  storage.CheckpointStore
	Stream       string        // Default: DefaultFeedStream
	RetryInitial time.Duration // Default: 1s
	RetryMax     time.Duration // Default: 30s
	Logger       *zerolog.Logger
}

// NewOrderFeed creates a new change-stream order feed.
func NewOrderFeed(opts OrderFeedOptions) *OrderFeed {
	f := &OrderFeed{
		coll:         opts.Client.collection(opts.Client.names.Orders),
		checkpoints:  opts.Checkpoints,
		stream:       opts.Stream,
		retryInitial: opts.RetryInitial,
		retryMax:     opts.RetryMax,
		logger:       logging.WithComponent("order-feed"),
	}
	if f.stream == "" {
		f.stream = DefaultFeedStream
	}
	if f.retryInitial <= 0 {
		f.retryInitial = time.Second
	}
	if f.retryMax <= 0 {
		f.retryMax = 30 * time.Second
	}
	if opts.Logger != nil {
		f.logger = *opts.Logger
	}
	return f
}

var _ storage.OrderFeed = (*OrderFeed)(nil)

type insertEvent struct {
	FullDocument orderDoc `bson:"fullDocument"`
}

// Subscribe opens the change stream and delivers inserted orders until ctx
// is cancelled. A broken stream is reopened with exponential backoff from the
// last acknowledged token.
func (f *OrderFeed) Subscribe(ctx context.Context) (<-chan *storage.OrderDelivery, error) {
	cs, err := f.open(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan *storage.OrderDelivery)
	go func() {
		defer close(out)
		for {
			err := f.pump(ctx, cs, out)
			_ = cs.Close(context.Background())
			if ctx.Err() != nil {
				return
			}

			f.logger.Warn().Err(err).Msg("change stream interrupted, reopening")
			observability.RecordFeedReconnect()

			cs, err = f.reopen(ctx)
			if err != nil {
				// Only cancellation ends the retry loop.
				return
			}
		}
	}()

	return out, nil
}

// pump forwards events until the stream fails or ctx ends.
func (f *OrderFeed) pump(ctx context.Context, cs *mongo.ChangeStream, out chan<- *storage.OrderDelivery) error {
	for cs.Next(ctx) {
		token := append([]byte(nil), cs.ResumeToken()...)

		var ev insertEvent
		if err := cs.Decode(&ev); err != nil {
			f.logger.Error().Err(err).Msg("skipping undecodable order")
			continue
		}

		d := &storage.OrderDelivery{
			Event: ev.FullDocument.event(),
			Ack: func(ctx context.Context) error {
				return f.checkpoints.SetResumeToken(ctx, f.stream, token)
			},
		}

		select {
		case out <- d:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := cs.Err(); err != nil {
		return err
	}
	return errors.New("change stream closed")
}

func (f *OrderFeed) reopen(ctx context.Context) (*mongo.ChangeStream, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.retryInitial
	b.MaxInterval = f.retryMax
	b.MaxElapsedTime = 0

	var cs *mongo.ChangeStream
	err := backoff.RetryNotify(func() error {
		var err error
		cs, err = f.open(ctx)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		f.logger.Warn().Err(err).Dur("retry_in", wait).Msg("reopen change stream failed")
		observability.RecordFeedReconnect()
	})
	return cs, err
}

// open starts a change stream after the saved token, or at the current
// oplog position when none is saved or the saved one has expired.
func (f *OrderFeed) open(ctx context.Context) (*mongo.ChangeStream, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "operationType", Value: "insert"}}}},
	}

	token, err := f.checkpoints.GetResumeToken(ctx, f.stream)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load resume token: %w", err)
	}

	opts := options.ChangeStream()
	if len(token) > 0 {
		opts.SetStartAfter(bson.Raw(token))
	}

	cs, err := f.coll.Watch(ctx, pipeline, opts)
	if err != nil && len(token) > 0 && isHistoryLost(err) {
		f.logger.Error().Err(err).Msg("resume token expired, watching from now; run backfill to cover the gap")
		cs, err = f.coll.Watch(ctx, pipeline, options.ChangeStream())
	}
	if err != nil {
		return nil, fmt.Errorf("watch orders: %w", err)
	}
	return cs, nil
}

func isHistoryLost(err error) bool {
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		return ce.Code == changeStreamHistoryLost
	}
	return false
}
