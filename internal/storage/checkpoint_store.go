package storage

import "context"

// CheckpointStore persists feed resume positions.
// This enables resumption after restarts without skipping orders.
type CheckpointStore interface {
	// GetResumeToken returns the last saved token for a stream.
	// Returns ErrNotFound if no token has been saved yet.
	GetResumeToken(ctx context.Context, stream string) ([]byte, error)

	// SetResumeToken saves the token for a stream.
	SetResumeToken(ctx context.Context, stream string, token []byte) error
}
