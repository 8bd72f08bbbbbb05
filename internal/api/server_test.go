package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventory-analytics/internal/domain"
	"inventory-analytics/internal/forecast"
	"inventory-analytics/internal/storage/memory"
)

var nopLogger = zerolog.Nop()

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeReader struct {
	view *forecast.View
	err  error
	days int
}

func (f *fakeReader) Get(_ context.Context, _ string, days int) (*forecast.View, error) {
	f.days = days
	return f.view, f.err
}

// newLiveServer wires the real service over memory stores seeded with 20 days for "X".
func newLiveServer(t *testing.T, hub *Hub) (*Server, *memory.ForecastStore) {
	t.Helper()

	facts := memory.NewDailyFactStore()
	forecasts := memory.NewForecastStore()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	values := []int64{10, 12, 11, 13, 15, 14, 16, 11, 12, 13, 14, 15, 16, 15, 17, 18, 16, 19, 20, 18}
	for i, v := range values {
		require.NoError(t, facts.Increment(context.Background(), &domain.FactIncrement{
			Date: start.AddDate(0, 0, i), ProductSKU: "X", Units: v, Revenue: float64(v),
			At: start, AggregationVersion: domain.DefaultAggregationVersion,
		}))
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, facts.Increment(context.Background(), &domain.FactIncrement{
			Date: start.AddDate(0, 0, i), ProductSKU: "SHORT", Units: 1, Revenue: 1, At: start,
		}))
	}

	var notifier forecast.Notifier
	if hub != nil {
		notifier = hub
	}
	orch := forecast.New(forecast.Options{
		Facts:     facts,
		Forecasts: forecasts,
		Notifier:  notifier,
		Now:       func() time.Time { return time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC) },
		Logger:    &nopLogger,
	})
	svc := forecast.NewService(forecast.ServiceOptions{
		Forecasts: forecasts,
		Gate:      forecast.NewGate(facts),
		Generator: orch,
		Logger:    &nopLogger,
	})

	return NewServer(Options{
		Forecasts: svc,
		Database:  fakePinger{},
		Hub:       hub,
		Logger:    &nopLogger,
	}), forecasts
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestPredict_GeneratesAndServes(t *testing.T) {
	srv, store := newLiveServer(t, nil)

	rec := get(t, srv.Handler(), "/api/forecast/predict/X")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ForecastResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "X", resp.ProductSKU)
	assert.Equal(t, domain.DefaultModelVersion, resp.ModelVersion)
	assert.Equal(t, 7, resp.ForecastHorizonDays)
	require.Len(t, resp.ForecastData, 7)
	assert.Equal(t, "2024-03-21", resp.ForecastData[0].Date)
	for _, p := range resp.ForecastData {
		assert.Greater(t, p.PredictedDemand, 0.0)
		assert.LessOrEqual(t, p.LowerBound, p.PredictedDemand)
		assert.GreaterOrEqual(t, p.UpperBound, p.PredictedDemand)
	}

	cached, err := store.Get(context.Background(), "X")
	require.NoError(t, err)
	assert.Equal(t, 7, cached.Horizon)
}

func TestPredict_SlicesCachedHorizon(t *testing.T) {
	srv, _ := newLiveServer(t, nil)
	h := srv.Handler()

	require.Equal(t, http.StatusOK, get(t, h, "/api/forecast/predict/X?days=10").Code)

	rec := get(t, h, "/api/forecast/predict/X?days=3")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ForecastResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.ForecastHorizonDays)
	assert.Len(t, resp.ForecastData, 3)
}

func TestPredict_InsufficientHistoryIs404(t *testing.T) {
	srv, _ := newLiveServer(t, nil)

	for _, sku := range []string{"SHORT", "UNKNOWN"} {
		rec := get(t, srv.Handler(), "/api/forecast/predict/"+sku)
		assert.Equal(t, http.StatusNotFound, rec.Code, sku)
		assert.JSONEq(t, `{"detail":"Insufficient historical data to generate forecast"}`, rec.Body.String())
	}
}

func TestPredict_InvalidDaysIs422(t *testing.T) {
	reader := &fakeReader{}
	srv := NewServer(Options{Forecasts: reader, Logger: &nopLogger})

	for _, q := range []string{"0", "-3", "31", "abc", "1.5"} {
		rec := get(t, srv.Handler(), "/api/forecast/predict/X?days="+q)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, q)
	}
	assert.Zero(t, reader.days, "service must not be called")
}

func TestPredict_DefaultAndMaxDays(t *testing.T) {
	reader := &fakeReader{view: &forecast.View{Forecast: &domain.Forecast{ProductSKU: "X"}}}
	srv := NewServer(Options{Forecasts: reader, DefaultDays: 5, MaxDays: 10, Logger: &nopLogger})

	require.Equal(t, http.StatusOK, get(t, srv.Handler(), "/api/forecast/predict/X").Code)
	assert.Equal(t, 5, reader.days)

	require.Equal(t, http.StatusOK, get(t, srv.Handler(), "/api/forecast/predict/X?days=10").Code)
	assert.Equal(t, 10, reader.days)

	assert.Equal(t, http.StatusUnprocessableEntity, get(t, srv.Handler(), "/api/forecast/predict/X?days=11").Code)
}

func TestPredict_StoreFailureIs500(t *testing.T) {
	reader := &fakeReader{err: fmt.Errorf("load cached forecast: %w", errors.New("connection reset"))}
	srv := NewServer(Options{Forecasts: reader, Logger: &nopLogger})

	rec := get(t, srv.Handler(), "/api/forecast/predict/X")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestPredict_MethodNotAllowed(t *testing.T) {
	srv := NewServer(Options{Forecasts: &fakeReader{}, Logger: &nopLogger})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/forecast/predict/X", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name string
		db   *fakePinger
		want string
	}{
		{"connected", &fakePinger{}, "connected"},
		{"ping fails", &fakePinger{err: errors.New("down")}, "disconnected"},
		{"no database", nil, "disconnected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Options{Forecasts: &fakeReader{}, Logger: &nopLogger}
			if tt.db != nil {
				opts.Database = *tt.db
			}
			rec := get(t, NewServer(opts).Handler(), "/health")
			require.Equal(t, http.StatusOK, rec.Code)

			var resp HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, HealthResponse{Status: "ok", Database: tt.want, Service: "analytics-engine"}, resp)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := NewServer(Options{Forecasts: &fakeReader{}, Logger: &nopLogger})
	rec := get(t, srv.Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
