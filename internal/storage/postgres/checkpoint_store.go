package postgres

import (
	"context"
	"fmt"

	"inventory-analytics/internal/storage"
)

// CheckpointStore implements storage.CheckpointStore using PostgreSQL.
type CheckpointStore struct {
	pool *Pool
}

// NewCheckpointStore creates a new CheckpointStore.
func NewCheckpointStore(pool *Pool) *CheckpointStore {
	return &CheckpointStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CheckpointStore = (*CheckpointStore)(nil)

// GetResumeToken returns the last saved token for a stream.
func (s *CheckpointStore) GetResumeToken(ctx context.Context, stream string) ([]byte, error) {
	var token []byte
	err := s.pool.QueryRow(ctx,
		`SELECT resume_token FROM ingest_checkpoints WHERE stream = $1`, stream,
	).Scan(&token)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get resume token: %w", err)
	}
	return token, nil
}

// SetResumeToken saves the token for a stream.
func (s *CheckpointStore) SetResumeToken(ctx context.Context, stream string, token []byte) error {
	if stream == "" || len(token) == 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO ingest_checkpoints (stream, resume_token, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (stream) DO UPDATE SET
			resume_token = EXCLUDED.resume_token,
			updated_at   = EXCLUDED.updated_at
	`

	if _, err := s.pool.Exec(ctx, query, stream, token); err != nil {
		return fmt.Errorf("set resume token: %w", err)
	}
	return nil
}
