package broker

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// JobStore is the payload index: one hash mapping job id to encoded payload.
// Entries are written before an id reaches any queue and removed only on
// completion, so every id in flight can always be resolved to its payload.
type JobStore struct {
	rdb *redis.Client
	key string
}

func NewJobStore(rdb *redis.Client, key string) *JobStore {
	return &JobStore{rdb: rdb, key: key}
}

func (s *JobStore) Put(ctx context.Context, id string, payload []byte) error {
	return s.rdb.HSet(ctx, s.key, id, payload).Err()
}

// Get returns the payload for id, or ok=false if the id was never written or
// has been deleted.
func (s *JobStore) Get(ctx context.Context, id string) ([]byte, bool, error) {
	data, err := s.rdb.HGet(ctx, s.key, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Delete removes the payload. Deleting an absent id is a no-op.
func (s *JobStore) Delete(ctx context.Context, id string) error {
	return s.rdb.HDel(ctx, s.key, id).Err()
}

func (s *JobStore) Size(ctx context.Context) (int64, error) {
	return s.rdb.HLen(ctx, s.key).Result()
}
