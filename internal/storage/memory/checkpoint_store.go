package memory

import (
	"context"
	"sync"

	"inventory-analytics/internal/storage"
)

// CheckpointStore is an in-memory implementation of storage.CheckpointStore.
type CheckpointStore struct {
	mu     sync.RWMutex
	tokens map[string][]byte
}

// NewCheckpointStore creates a new in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{
		tokens: make(map[string][]byte),
	}
}

// GetResumeToken returns the last saved token for a stream.
func (s *CheckpointStore) GetResumeToken(_ context.Context, stream string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, exists := s.tokens[stream]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), token...), nil
}

// SetResumeToken saves the token for a stream.
func (s *CheckpointStore) SetResumeToken(_ context.Context, stream string, token []byte) error {
	if stream == "" || len(token) == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[stream] = append([]byte(nil), token...)
	return nil
}

var _ storage.CheckpointStore = (*CheckpointStore)(nil)
