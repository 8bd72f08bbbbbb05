package memory

import (
	"context"
	"sync"

	"inventory-analytics/internal/domain"
	"inventory-analytics/internal/storage"
)

// ProductStore is an in-memory implementation of storage.ProductStore.
type ProductStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Product // keyed by product ID
}

// NewProductStore creates a new in-memory product store.
func NewProductStore() *ProductStore {
	return &ProductStore{
		data: make(map[string]*domain.Product),
	}
}

// Put adds or replaces a product.
func (s *ProductStore) Put(p *domain.Product) error {
	if p == nil || p.ID == "" || p.SKU == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	productCopy := *p
	s.data[p.ID] = &productCopy
	return nil
}

// GetByID retrieves a product by ID. Returns ErrNotFound if not exists.
func (s *ProductStore) GetByID(_ context.Context, productID string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[productID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	productCopy := *p
	return &productCopy, nil
}

var _ storage.ProductStore = (*ProductStore)(nil)
