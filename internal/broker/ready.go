package broker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// fetchBlock bounds each BRPOPLPUSH call so a cancelled context is observed
// between blocks.
const fetchBlock = time.Second

// submitReadyScript writes the payload and enqueues the id in one atomic
// step, so no reader ever sees an id on the queue without its payload.
var submitReadyScript = redis.NewScript(`
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('LPUSH', KEYS[2], ARGV[1])
return 1
`)

// ReadyQueue holds ids eligible to run right now. New ids are pushed at the
// left end and consumers pop from the right, so pops are FIFO among submits.
type ReadyQueue struct {
	rdb  *redis.Client
	key  string
	jobs *JobStore
}

func NewReadyQueue(rdb *redis.Client, key string, jobs *JobStore) *ReadyQueue {
	return &ReadyQueue{rdb: rdb, key: key, jobs: jobs}
}

func (q *ReadyQueue) Key() string { return q.key }

// Submit stores payload under a fresh id and enqueues it atomically,
// returning the id.
func (q *ReadyQueue) Submit(ctx context.Context, payload []byte) (string, error) {
	id := uuid.NewString()
	if err := submitReadyScript.Run(ctx, q.rdb, []string{q.jobs.key, q.key}, id, payload).Err(); err != nil {
		return "", err
	}
	return id, nil
}

// FetchInto blocks until an id can be moved from the oldest end of the queue
// onto pendingKey, and returns it. It returns ctx.Err() once the context is
// cancelled.
func (q *ReadyQueue) FetchInto(ctx context.Context, pendingKey string) (string, error) {
	for {
		id, err := q.rdb.BRPopLPush(ctx, q.key, pendingKey, fetchBlock).Result()
		if errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", err
		}
		return id, nil
	}
}

// PushFront re-enqueues an id at the same end as new submissions, the end
// the retry script and recovery drain also push to, so the id lines up
// behind newer jobs.
func (q *ReadyQueue) PushFront(ctx context.Context, id string) error {
	return q.rdb.LPush(ctx, q.key, id).Err()
}

func (q *ReadyQueue) Size(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}
