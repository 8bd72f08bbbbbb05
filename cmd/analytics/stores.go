package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inventory-analytics/internal/config"
	"inventory-analytics/internal/logging"
	"inventory-analytics/internal/storage"
	chstore "inventory-analytics/internal/storage/clickhouse"
	"inventory-analytics/internal/storage/memory"
	"inventory-analytics/internal/storage/mongo"
	pgstore "inventory-analytics/internal/storage/postgres"
)

// stores bundles every store the commands need.
type stores struct {
	Products    storage.ProductStore
	RawSales    storage.RawSaleStore
	Facts       storage.DailyFactStore
	Forecasts   storage.ForecastStore
	Checkpoints storage.CheckpointStore
	Feed        storage.OrderFeed
	Source      storage.OrderSource
	Database    storage.Pinger

	closers []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// pingers reports healthy only when every backend answers.
type pingers []storage.Pinger

func (p pingers) Ping(ctx context.Context) error {
	var errs []error
	for _, pinger := range p {
		if err := pinger.Ping(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type memoryPinger struct{}

func (memoryPinger) Ping(context.Context) error { return nil }

func collectionNames(c config.Collections) mongo.Names {
	return mongo.Names{
		Orders:      c.Orders,
		Products:    c.Products,
		RawEvents:   c.RawEvents,
		Snapshots:   c.Snapshots,
		Forecasts:   c.Forecasts,
		Checkpoints: c.Checkpoints,
	}
}

// openStores connects the configured backend. Callers must Close the result.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	logger := logging.WithComponent("stores")

	if cfg.Backend == config.BackendMemory {
		logger.Warn().Msg("using in-memory storage, nothing is persisted")
		orders := memory.NewOrderLog()
		return &stores{
			Products:    memory.NewProductStore(),
			RawSales:    memory.NewRawSaleStore(),
			Facts:       memory.NewDailyFactStore(),
			Forecasts:   memory.NewForecastStore(),
			Checkpoints: memory.NewCheckpointStore(),
			Feed:        orders,
			Source:      orders,
			Database:    memoryPinger{},
		}, nil
	}

	s := &stores{}
	client, err := mongo.Connect(ctx, cfg.MongoURI, cfg.DBName, collectionNames(cfg.Collections))
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Close(closeCtx)
	})
	if err := client.EnsureIndexes(ctx); err != nil {
		s.Close()
		return nil, err
	}

	s.Products = mongo.NewProductStore(client)
	s.Source = mongo.NewOrderSource(client)

	switch cfg.Backend {
	case config.BackendMongo:
		s.RawSales = mongo.NewRawSaleStore(client)
		s.Facts = mongo.NewDailyFactStore(client)
		s.Forecasts = mongo.NewForecastStore(client)
		s.Checkpoints = mongo.NewCheckpointStore(client)
		s.Database = client

	case config.BackendPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)

		s.RawSales = pgstore.NewRawSaleStore(pool)
		s.Facts = pgstore.NewDailyFactStore(pool)
		s.Forecasts = pgstore.NewForecastStore(pool)
		s.Checkpoints = pgstore.NewCheckpointStore(pool)
		s.Database = pingers{client, pool}

		if cfg.ClickhouseDSN != "" {
			conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
			if err != nil {
				s.Close()
				return nil, err
			}
			s.closers = append(s.closers, func() { _ = conn.Close() })
			s.Facts = chstore.NewDailyFactStore(conn)
			s.Database = pingers{client, pool, conn}
			logger.Info().Msg("daily facts stored in clickhouse")
		}

	default:
		s.Close()
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	s.Feed = mongo.NewOrderFeed(mongo.OrderFeedOptions{
		Client:       client,
		Checkpoints:  s.Checkpoints,
		RetryInitial: cfg.FeedRetryInitial,
		RetryMax:     cfg.FeedRetryMax,
	})

	logger.Info().Str("backend", cfg.Backend).Str("db", cfg.DBName).Msg("storage ready")
	return s, nil
}
