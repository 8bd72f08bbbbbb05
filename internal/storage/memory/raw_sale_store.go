package memory

import (
	"context"
	"sync"

	"inventory-analytics/internal/domain"
	"inventory-analytics/internal/storage"
)

// RawSaleStore is an in-memory implementation of storage.RawSaleStore.
type RawSaleStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RawSaleRecord // keyed by event_id
}

// NewRawSaleStore creates a new in-memory raw sale store.
func NewRawSaleStore() *RawSaleStore {
	return &RawSaleStore{
		data: make(map[string]*domain.RawSaleRecord),
	}
}

// Upsert writes r if event_id is new. First write wins.
func (s *RawSaleStore) Upsert(_ context.Context, r *domain.RawSaleRecord) (*domain.RawSaleRecord, bool, error) {
	if r == nil || r.EventID == "" {
		return nil, false, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, exists := s.data[r.EventID]; exists {
		recordCopy := *existing
		return &recordCopy, false, nil
	}

	stored := *r
	stored.Aggregated = false
	stored.Timestamp = stored.Timestamp.UTC()
	s.data[r.EventID] = &stored

	recordCopy := stored
	return &recordCopy, true, nil
}

// GetByID retrieves a record by event ID. Returns ErrNotFound if not exists.
func (s *RawSaleStore) GetByID(_ context.Context, eventID string) (*domain.RawSaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[eventID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	recordCopy := *r
	return &recordCopy, nil
}

// MarkAggregated flags the record as counted. Returns ErrNotFound if not exists.
func (s *RawSaleStore) MarkAggregated(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, exists := s.data[eventID]
	if !exists {
		return storage.ErrNotFound
	}

	r.Aggregated = true
	return nil
}

// Len returns the number of stored records.
func (s *RawSaleStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

var _ storage.RawSaleStore = (*RawSaleStore)(nil)
