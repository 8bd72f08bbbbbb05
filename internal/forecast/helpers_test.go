package forecast

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"inventory-analytics/internal/domain"
	"inventory-analytics/internal/storage/memory"
)

var (
	nopLogger = zerolog.Nop()
	day0      = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	genTime   = time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
)

func fixedNow() time.Time { return genTime }

type testEnv struct {
	facts     *memory.DailyFactStore
	forecasts *memory.ForecastStore
	orch      *Orchestrator
	notifier  *recordingNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		facts:     memory.NewDailyFactStore(),
		forecasts: memory.NewForecastStore(),
		notifier:  &recordingNotifier{},
	}
	env.orch = New(Options{
		Facts:     env.facts,
		Forecasts: env.forecasts,
		Notifier:  env.notifier,
		Now:       fixedNow,
		Logger:    &nopLogger,
	})
	return env
}

// seed writes one fact per value on consecutive days starting at day0.
func (e *testEnv) seed(t *testing.T, sku string, values []int64, at time.Time) {
	t.Helper()
	for i, v := range values {
		require.NoError(t, e.facts.Increment(context.Background(), &domain.FactIncrement{
			Date:               day0.AddDate(0, 0, i),
			ProductSKU:         sku,
			Units:              v,
			Revenue:            float64(v) * 2.5,
			At:                 at,
			AggregationVersion: domain.DefaultAggregationVersion,
		}))
	}
}

func series20() []int64 {
	return []int64{10, 12, 11, 13, 15, 14, 16, 11, 12, 13, 14, 15, 16, 15, 17, 18, 16, 19, 20, 18}
}

func constant(n int, v int64) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

type recordingNotifier struct {
	mu   sync.Mutex
	seen []*domain.Forecast
}

func (n *recordingNotifier) ForecastUpdated(f *domain.Forecast) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seen = append(n.seen, f)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.seen)
}

// countingGenerator wraps a Generator and counts calls.
type countingGenerator struct {
	inner Generator
	calls atomic.Int32
	delay time.Duration
}

func (g *countingGenerator) Generate(ctx context.Context, sku string, horizon int) (*domain.Forecast, error) {
	g.calls.Add(1)
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	return g.inner.Generate(ctx, sku, horizon)
}
