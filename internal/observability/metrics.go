// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	OrdersProcessed        prometheus.Counter
	ItemOutcomes           *prometheus.CounterVec
	EventRetries           prometheus.Counter
	FeedReconnects         prometheus.Counter
	EventProcessingLatency prometheus.Histogram

	// Forecast metrics
	ForecastGenerations *prometheus.CounterVec
	ForecastDuration    prometheus.Histogram
	CacheDecisions      *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulIngestion prometheus.Gauge
	WebsocketClients        prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg uses the default Prometheus registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "inventory_analytics"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Ingestion metrics
		OrdersProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "orders_processed_total",
			Help:      "Total number of order events processed",
		}),
		ItemOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "line_items_total",
			Help:      "Total number of line items by outcome",
		}, []string{"outcome"}),
		EventRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "event_retries_total",
			Help:      "Total number of order event retries after store errors",
		}),
		FeedReconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "feed_reconnects_total",
			Help:      "Total number of change stream reopen attempts",
		}),
		EventProcessingLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "event_processing_latency_seconds",
			Help:      "Order event processing latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Forecast metrics
		ForecastGenerations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forecast",
			Name:      "generations_total",
			Help:      "Total number of forecast generations by status",
		}, []string{"status"}),
		ForecastDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "forecast",
			Name:      "generation_duration_seconds",
			Help:      "Forecast generation duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		CacheDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forecast",
			Name:      "cache_decisions_total",
			Help:      "Total number of freshness gate decisions by reason",
		}, []string{"reason"}),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulIngestion: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingestion_timestamp",
			Help:      "Unix timestamp of last successfully processed order",
		}),
		WebsocketClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "websocket_clients",
			Help:      "Number of connected forecast websocket clients",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordOrderProcessed records a processed order and its latency.
func RecordOrderProcessed(seconds float64, unixTime int64) {
	DefaultMetrics.OrdersProcessed.Inc()
	DefaultMetrics.EventProcessingLatency.Observe(seconds)
	DefaultMetrics.LastSuccessfulIngestion.Set(float64(unixTime))
}

// RecordItemOutcome counts a line item by outcome (applied, duplicate, lookup_failure, malformed).
func RecordItemOutcome(outcome string, n int) {
	if n <= 0 {
		return
	}
	DefaultMetrics.ItemOutcomes.WithLabelValues(outcome).Add(float64(n))
}

// RecordEventRetry counts a retried order event.
func RecordEventRetry() {
	DefaultMetrics.EventRetries.Inc()
}

// RecordFeedReconnect counts a change stream reopen.
func RecordFeedReconnect() {
	DefaultMetrics.FeedReconnects.Inc()
}

// RecordForecast records a forecast generation.
func RecordForecast(status string, durationSeconds float64) {
	DefaultMetrics.ForecastGenerations.WithLabelValues(status).Inc()
	DefaultMetrics.ForecastDuration.Observe(durationSeconds)
}

// RecordCacheDecision records a freshness gate decision.
func RecordCacheDecision(reason string) {
	DefaultMetrics.CacheDecisions.WithLabelValues(reason).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// SetWebsocketClients sets the connected websocket client gauge.
func SetWebsocketClients(n int) {
	DefaultMetrics.WebsocketClients.Set(float64(n))
}
