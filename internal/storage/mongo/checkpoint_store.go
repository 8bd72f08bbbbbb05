package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"inventory-analytics/internal/storage"
)

type checkpointDoc struct {
	Stream    string    `bson:"_id"`
	Token     []byte    `bson:"resume_token"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// CheckpointStore implements storage.CheckpointStore using MongoDB.
type CheckpointStore struct {
	coll *mongo.Collection
}

// NewCheckpointStore creates a new CheckpointStore.
func NewCheckpointStore(c *Client) *CheckpointStore {
	return &CheckpointStore{coll: c.collection(c.names.Checkpoints)}
}

var _ storage.CheckpointStore = (*CheckpointStore)(nil)

// GetResumeToken returns the last saved token for a stream.
func (s *CheckpointStore) GetResumeToken(ctx context.Context, stream string) ([]byte, error) {
	var doc checkpointDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": stream}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get resume token: %w", err)
	}
	return doc.Token, nil
}

// SetResumeToken saves the token for a stream.
func (s *CheckpointStore) SetResumeToken(ctx context.Context, stream string, token []byte) error {
	if stream == "" || len(token) == 0 {
		return storage.ErrInvalidInput
	}

	doc := checkpointDoc{Stream: stream, Token: token, UpdatedAt: time.Now().UTC()}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": stream}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("set resume token: %w", err)
	}
	return nil
}
