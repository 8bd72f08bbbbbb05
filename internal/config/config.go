// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage backends for the analytics collections.
const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Collections names the Mongo collections used by the service.
type Collections struct {
	Orders      string `env:"COLLECTION_ORDERS" envDefault:"orders"`
	Products    string `env:"COLLECTION_PRODUCTS" envDefault:"products"`
	RawEvents   string `env:"COLLECTION_RAW_EVENTS" envDefault:"raw_sales_events"`
	Snapshots   string `env:"COLLECTION_DAILY_SNAPSHOTS" envDefault:"daily_sales_snapshots"`
	Forecasts   string `env:"COLLECTION_FORECASTS" envDefault:"demand_forecasts"`
	Checkpoints string `env:"COLLECTION_CHECKPOINTS" envDefault:"ingest_checkpoints"`
}

// Config is the full service configuration.
type Config struct {
	MongoURI string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017/?replicaSet=rs0"`
	DBName   string `env:"DB_NAME" envDefault:"inventory_analytics"`

	Collections Collections

	// Backend selects where raw events, daily facts and forecasts live.
	// Orders and products are always read from Mongo unless Backend is memory.
	Backend       string `env:"ANALYTICS_BACKEND" envDefault:"mongo"`
	PostgresDSN   string `env:"POSTGRES_DSN"`
	ClickhouseDSN string `env:"CLICKHOUSE_DSN"`

	ModelVersion        string `env:"MODEL_VERSION" envDefault:"v1.0_linear"`
	AggregationVersion  string `env:"AGGREGATION_VERSION" envDefault:"v1.0"`
	MinHistoryDays      int    `env:"MIN_HISTORY_DAYS" envDefault:"15"`
	MaxForecastDays     int    `env:"MAX_FORECAST_DAYS" envDefault:"30"`
	DefaultForecastDays int    `env:"DEFAULT_FORECAST_DAYS" envDefault:"7"`

	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8001"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogJSON  bool   `env:"LOG_JSON" envDefault:"false"`

	FeedRetryInitial time.Duration `env:"FEED_RETRY_INITIAL" envDefault:"1s"`
	FeedRetryMax     time.Duration `env:"FEED_RETRY_MAX" envDefault:"30s"`
}

// Load reads the optional .env file, then parses the environment.
func Load() (*Config, error) {
	LoadEnvFile(".env")

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects inconsistent settings.
func (c *Config) Validate() error {
	var errs []error

	switch c.Backend {
	case BackendMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo backend"))
		}
	case BackendPostgres:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required to read orders and products"))
		}
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for the postgres backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown ANALYTICS_BACKEND %q", c.Backend))
	}

	if c.MinHistoryDays < 15 {
		errs = append(errs, fmt.Errorf("MIN_HISTORY_DAYS must be at least 15, got %d", c.MinHistoryDays))
	}
	if c.MaxForecastDays < 1 {
		errs = append(errs, fmt.Errorf("MAX_FORECAST_DAYS must be positive, got %d", c.MaxForecastDays))
	}
	if c.DefaultForecastDays < 1 || c.DefaultForecastDays > c.MaxForecastDays {
		errs = append(errs, fmt.Errorf("DEFAULT_FORECAST_DAYS must be in [1, %d], got %d", c.MaxForecastDays, c.DefaultForecastDays))
	}
	if c.FeedRetryInitial <= 0 || c.FeedRetryMax < c.FeedRetryInitial {
		errs = append(errs, errors.New("FEED_RETRY_INITIAL must be positive and not exceed FEED_RETRY_MAX"))
	}

	return errors.Join(errs...)
}
