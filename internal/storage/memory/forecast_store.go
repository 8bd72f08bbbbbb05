package memory

import (
	"context"
	"sync"

	"inventory-analytics/internal/domain"
	"inventory-analytics/internal/storage"
)

// ForecastStore is an in-memory implementation of storage.ForecastStore.
type ForecastStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Forecast // keyed by product_sku
}

// NewForecastStore creates a new in-memory forecast store.
func NewForecastStore() *ForecastStore {
	return &ForecastStore{
		data: make(map[string]*domain.Forecast),
	}
}

// Get retrieves the cached forecast. Returns ErrNotFound if not exists.
func (s *ForecastStore) Get(_ context.Context, sku string) (*domain.Forecast, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, exists := s.data[sku]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyForecast(f), nil
}

// Upsert replaces the cached forecast for the SKU.
func (s *ForecastStore) Upsert(_ context.Context, f *domain.Forecast) error {
	if f == nil || f.ProductSKU == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[f.ProductSKU] = copyForecast(f)
	return nil
}

func copyForecast(f *domain.Forecast) *domain.Forecast {
	out := *f
	out.Points = make([]domain.ForecastPoint, len(f.Points))
	copy(out.Points, f.Points)
	return &out
}

var _ storage.ForecastStore = (*ForecastStore)(nil)
