// Package api exposes forecasts over HTTP and pushes regeneration events
// over a websocket.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"inventory-analytics/internal/domain"
	"inventory-analytics/internal/forecast"
	"inventory-analytics/internal/logging"
	"inventory-analytics/internal/observability"
	"inventory-analytics/internal/storage"
)

const (
	serviceName       = "analytics-engine"
	detailNoHistory   = "Insufficient historical data to generate forecast"
	defaultMaxDays    = 30
	defaultDays       = 7
	healthPingTimeout = 2 * time.Second
)

// ForecastReader serves forecasts for the HTTP layer.
type ForecastReader interface {
	Get(ctx context.Context, sku string, days int) (*forecast.View, error)
}

// Options for creating Server.
type Options struct {
	Forecasts ForecastReader
	Database  storage.Pinger // nil reports "disconnected"
	Hub       *Hub           // nil disables /ws/forecasts

	DefaultDays int // Default: 7
	MaxDays     int // Default: 30
	Logger      *zerolog.Logger
}

// Server is the analytics HTTP API.
type Server struct {
	forecasts   ForecastReader
	database    storage.Pinger
	hub         *Hub
	defaultDays int
	maxDays     int
	logger      zerolog.Logger
	mux         *http.ServeMux
}

// NewServer creates the server and registers its routes.
func NewServer(opts Options) *Server {
	s := &Server{
		forecasts:   opts.Forecasts,
		database:    opts.Database,
		hub:         opts.Hub,
		defaultDays: opts.DefaultDays,
		maxDays:     opts.MaxDays,
		logger:      logging.WithComponent("api"),
		mux:         http.NewServeMux(),
	}
	if s.maxDays <= 0 {
		s.maxDays = defaultMaxDays
	}
	if s.defaultDays <= 0 || s.defaultDays > s.maxDays {
		s.defaultDays = min(defaultDays, s.maxDays)
	}
	if opts.Logger != nil {
		s.logger = *opts.Logger
	}

	s.mux.HandleFunc("GET /api/forecast/predict/{sku}", s.handlePredict)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", observability.Handler())
	if s.hub != nil {
		s.mux.Handle("GET /ws/forecasts", s.hub)
	}

	return s
}

// Handler returns the root handler with request logging.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second, // forecast regeneration runs inline
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	if s.hub != nil {
		s.hub.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// ForecastPoint is one day of forecast_data.
type ForecastPoint struct {
	Date            string  `json:"date"`
	PredictedDemand float64 `json:"predicted_demand"`
	UpperBound      float64 `json:"upper_bound"`
	LowerBound      float64 `json:"lower_bound"`
}

// ForecastResponse is the body of a successful predict call.
type ForecastResponse struct {
	ProductSKU          string          `json:"product_sku"`
	ModelVersion        string          `json:"model_version"`
	ForecastHorizonDays int             `json:"forecast_horizon_days"`
	ConfidenceScore     float64         `json:"confidence_score"`
	GeneratedAt         time.Time       `json:"generated_at"`
	ForecastData        []ForecastPoint `json:"forecast_data"`
}

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Service  string `json:"service"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	sku := r.PathValue("sku")

	days := s.defaultDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > s.maxDays {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
				Detail: fmt.Sprintf("days must be an integer in [1, %d]", s.maxDays),
			})
			return
		}
		days = n
	}

	view, err := s.forecasts.Get(r.Context(), sku, days)
	if err != nil {
		switch {
		case forecast.IsNotFound(err):
			writeJSON(w, http.StatusNotFound, errorResponse{Detail: detailNoHistory})
		case errors.Is(err, domain.ErrInvalidHorizon):
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: err.Error()})
		default:
			s.logger.Error().Err(err).Str("sku", sku).Int("days", days).Msg("forecast failed")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "Internal server error"})
		}
		return
	}

	resp := NewForecastResponse(view.Forecast, view.Points, days)
	writeJSON(w, http.StatusOK, resp)
}

// NewForecastResponse renders points of f as the predict response body.
func NewForecastResponse(f *domain.Forecast, points []domain.ForecastPoint, days int) ForecastResponse {
	resp := ForecastResponse{
		ProductSKU:          f.ProductSKU,
		ModelVersion:        f.ModelVersion,
		ForecastHorizonDays: days,
		ConfidenceScore:     f.ConfidenceScoreR2,
		GeneratedAt:         f.GeneratedAt,
		ForecastData:        make([]ForecastPoint, len(points)),
	}
	for i, p := range points {
		resp.ForecastData[i] = ForecastPoint{
			Date:            p.Date,
			PredictedDemand: p.PredictedUnits,
			UpperBound:      p.UpperBound,
			LowerBound:      p.LowerBound,
		}
	}
	return resp
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "disconnected"
	if s.database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		if err := s.database.Ping(ctx); err == nil {
			status = "connected"
		} else {
			s.logger.Warn().Err(err).Msg("health ping failed")
		}
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Database: status,
		Service:  serviceName,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusRecorder captures the response code for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("http request")
	})
}
