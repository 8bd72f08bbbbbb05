package ingestion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"inventory-analytics/internal/domain"
	"inventory-analytics/internal/storage"
	"inventory-analytics/internal/storage/memory"
)

var errStoreDown = errors.New("store unavailable")

var nopLogger = zerolog.Nop()

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	products *memory.ProductStore
	raw      *memory.RawSaleStore
	facts    *memory.DailyFactStore
	ingestor *Ingestor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		products: memory.NewProductStore(),
		raw:      memory.NewRawSaleStore(),
		facts:    memory.NewDailyFactStore(),
	}
	require.NoError(t, env.products.Put(&domain.Product{ID: "p1", SKU: "SKU-A", Price: 10}))
	require.NoError(t, env.products.Put(&domain.Product{ID: "p2", SKU: "SKU-B", Price: 2.5}))

	env.ingestor = NewIngestor(IngestorOptions{
		Products: env.products,
		RawSales: env.raw,
		Facts:    env.facts,
		Now:      func() time.Time { return fixedNow },
		Logger:   &nopLogger,
	})
	return env
}

func (e *testEnv) fact(t *testing.T, sku string) *domain.DailyFact {
	t.Helper()
	facts, err := e.facts.GetBySKU(context.Background(), sku)
	require.NoError(t, err)
	if len(facts) == 0 {
		return nil
	}
	require.Len(t, facts, 1)
	return facts[0]
}

func order(id string, at time.Time, items ...domain.LineItem) *domain.OrderEvent {
	return &domain.OrderEvent{OrderID: id, CreatedAt: at, Items: items}
}

// flakyFacts fails the first n increments.
type flakyFacts struct {
	storage.DailyFactStore
	mu       sync.Mutex
	failures int
}

func (f *flakyFacts) Increment(ctx context.Context, inc *domain.FactIncrement) error {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return errStoreDown
	}
	f.mu.Unlock()
	return f.DailyFactStore.Increment(ctx, inc)
}

// flakyProcessor fails the first n calls, then delegates.
type flakyProcessor struct {
	next     EventProcessor
	mu       sync.Mutex
	failures int
	calls    int
}

func (p *flakyProcessor) ProcessEvent(ctx context.Context, e *domain.OrderEvent) (*ProcessResult, error) {
	p.mu.Lock()
	p.calls++
	if p.failures > 0 {
		p.failures--
		p.mu.Unlock()
		return nil, errStoreDown
	}
	p.mu.Unlock()
	return p.next.ProcessEvent(ctx, e)
}

// closedFeed returns an already closed channel.
type closedFeed struct{}

func (closedFeed) Subscribe(context.Context) (<-chan *storage.OrderDelivery, error) {
	ch := make(chan *storage.OrderDelivery)
	close(ch)
	return ch, nil
}
