package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"inventory-analytics/internal/domain"
	"inventory-analytics/internal/keys"
	"inventory-analytics/internal/storage"
)

// DailyFactStore is an in-memory implementation of storage.DailyFactStore.
type DailyFactStore struct {
	mu   sync.RWMutex
	data map[string]*domain.DailyFact // keyed by date_key + "_" + sku
}

// NewDailyFactStore creates a new in-memory daily fact store.
func NewDailyFactStore() *DailyFactStore {
	return &DailyFactStore{
		data: make(map[string]*domain.DailyFact),
	}
}

// Increment adds units and revenue to the (day, sku) fact, creating it if absent.
func (s *DailyFactStore) Increment(_ context.Context, inc *domain.FactIncrement) error {
	if inc == nil || inc.ProductSKU == "" || inc.Date.IsZero() {
		return storage.ErrInvalidInput
	}

	id := keys.DailyFactID(inc.Date, inc.ProductSKU)

	s.mu.Lock()
	defer s.mu.Unlock()

	f, exists := s.data[id]
	if !exists {
		f = &domain.DailyFact{
			ID:         id,
			DateKey:    domain.DateKey(inc.Date),
			ProductSKU: inc.ProductSKU,
			Date:       domain.Day(inc.Date),
		}
		s.data[id] = f
	}

	f.TotalUnitsSold += inc.Units
	f.TotalRevenue += inc.Revenue
	f.GeneratedAt = inc.At.UTC()
	f.AggregationVersion = inc.AggregationVersion
	return nil
}

// GetBySKU retrieves all facts for a SKU, ordered by date ASC.
func (s *DailyFactStore) GetBySKU(_ context.Context, sku string) ([]*domain.DailyFact, error) {
	return s.collect(func(f *domain.DailyFact) bool {
		return f.ProductSKU == sku
	}), nil
}

// GetByDateRange retrieves facts for a SKU within [start, end] (inclusive), ordered by date ASC.
func (s *DailyFactStore) GetByDateRange(_ context.Context, sku string, start, end time.Time) ([]*domain.DailyFact, error) {
	from, to := domain.Day(start), domain.Day(end)
	return s.collect(func(f *domain.DailyFact) bool {
		return f.ProductSKU == sku && !f.Date.Before(from) && !f.Date.After(to)
	}), nil
}

// HasNewerThan reports whether any fact for the SKU was touched after t.
func (s *DailyFactStore) HasNewerThan(_ context.Context, sku string, t time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, f := range s.data {
		if f.ProductSKU == sku && f.GeneratedAt.After(t) {
			return true, nil
		}
	}
	return false, nil
}

func (s *DailyFactStore) collect(match func(*domain.DailyFact) bool) []*domain.DailyFact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DailyFact
	for _, f := range s.data {
		if match(f) {
			factCopy := *f
			result = append(result, &factCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result
}

var _ storage.DailyFactStore = (*DailyFactStore)(nil)
