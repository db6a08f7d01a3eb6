package broker

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/851-labs/async-job-processor-redis/internal/codec"
	"github.com/851-labs/async-job-processor-redis/internal/metrics"
)

const scanBatch = 100

// completeScript finalizes a job: one occurrence off the pending list, the
// payload out of the job store. Both LREM and HDEL are no-ops when the id is
// already gone, so a double complete is safe.
var completeScript = redis.NewScript(`
redis.call('LREM', KEYS[1], 1, ARGV[1])
redis.call('HDEL', KEYS[2], ARGV[1])
return 1
`)

// retryScript moves a job from the pending list back onto the ready queue.
// The payload stays in the job store.
var retryScript = redis.NewScript(`
redis.call('LREM', KEYS[1], 1, ARGV[1])
redis.call('LPUSH', KEYS[2], ARGV[1])
return 1
`)

// ProcessingList is this worker's in-flight buffer. It owns the pending list
// and liveness key derived from the worker id, and it runs the heartbeat
// cycle that reclaims pending lists left behind by dead workers.
type ProcessingList struct {
	rdb      *redis.Client
	base     string
	workerID string
	ready    *ReadyQueue
	jobs     *JobStore
	codec    codec.Codec
	log      zerolog.Logger

	completed atomic.Int64
}

func NewProcessingList(rdb *redis.Client, base, workerID string, ready *ReadyQueue, jobs *JobStore, c codec.Codec, logger zerolog.Logger) *ProcessingList {
	return &ProcessingList{
		rdb:      rdb,
		base:     base,
		workerID: workerID,
		ready:    ready,
		jobs:     jobs,
		codec:    c,
		log:      logger,
	}
}

// PendingKey is the list of ids this worker has fetched but not finalized.
func (p *ProcessingList) PendingKey() string {
	return p.base + ":" + p.workerID + ":pending"
}

func (p *ProcessingList) heartbeatKey() string {
	return p.base + ":" + p.workerID
}

func (p *ProcessingList) Size(ctx context.Context) (int64, error) {
	return p.rdb.LLen(ctx, p.PendingKey()).Result()
}

// Completed reports how many jobs this worker has finished.
func (p *ProcessingList) Completed() int64 {
	return p.completed.Load()
}

// Fetch blocks until a job id moves from the ready queue onto this worker's
// pending list.
func (p *ProcessingList) Fetch(ctx context.Context) (string, error) {
	return p.ready.FetchInto(ctx, p.PendingKey())
}

// Complete finalizes id: removes it from the pending list and deletes its
// payload, atomically.
func (p *ProcessingList) Complete(ctx context.Context, id string) error {
	err := completeScript.Run(ctx, p.rdb, []string{p.PendingKey(), p.jobs.key}, id).Err()
	if err != nil {
		return err
	}
	p.completed.Add(1)
	metrics.JobsCompleted.Inc()
	return nil
}

// Drop discards id without re-enqueueing it, used when its payload has gone
// missing and a retry could never succeed.
func (p *ProcessingList) Drop(ctx context.Context, id string) error {
	err := completeScript.Run(ctx, p.rdb, []string{p.PendingKey(), p.jobs.key}, id).Err()
	if err != nil {
		return err
	}
	metrics.JobsDropped.Inc()
	return nil
}

// Retry moves id from the pending list back to the ready queue. Calling it
// with an id no longer on the pending list still pushes the id.
func (p *ProcessingList) Retry(ctx context.Context, id string) error {
	err := retryScript.Run(ctx, p.rdb, []string{p.PendingKey(), p.ready.key}, id).Err()
	if err != nil {
		return err
	}
	p.log.Warn().Msgf("Retrying job: %s", id)
	metrics.JobsRetried.Inc()
	return nil
}

// Requeue refreshes this worker's liveness key, then scans the processing
// namespace for pending lists whose owner's liveness key has expired and
// drains each one back onto the ready queue. Returns the number of ids
// recovered.
func (p *ProcessingList) Requeue(ctx context.Context, start time.Time, delay time.Duration, factor int) (int, error) {
	uptime := time.Since(start).Seconds()
	hb, err := p.codec.Dump(map[string]any{"uptime": uptime})
	if err != nil {
		return 0, err
	}
	ttl := time.Duration(math.Ceil(delay.Seconds()*float64(factor))) * time.Second
	if err := p.rdb.Set(ctx, p.heartbeatKey(), hb, ttl).Err(); err != nil {
		return 0, err
	}

	recovered := 0
	var cursor uint64
	pattern := p.base + ":*:pending"
	for {
		keys, next, err := p.rdb.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return recovered, err
		}
		for _, pendingKey := range keys {
			if pendingKey == p.PendingKey() {
				continue
			}
			ownerKey := strings.TrimSuffix(pendingKey, ":pending")
			alive, err := p.rdb.Exists(ctx, ownerKey).Result()
			if err != nil {
				return recovered, err
			}
			if alive > 0 {
				continue
			}
			n, err := p.drain(ctx, pendingKey)
			recovered += n
			if err != nil {
				return recovered, err
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if recovered > 0 {
		metrics.JobsRecovered.Add(float64(recovered))
	}
	return recovered, nil
}

// drain moves every entry of pendingKey onto the ready queue, one atomic
// RPOPLPUSH at a time, then removes the emptied list.
func (p *ProcessingList) drain(ctx context.Context, pendingKey string) (int, error) {
	moved := 0
	for {
		_, err := p.rdb.RPopLPush(ctx, pendingKey, p.ready.key).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return moved, err
		}
		moved++
	}
	if err := p.rdb.Del(ctx, pendingKey).Err(); err != nil {
		return moved, err
	}
	return moved, nil
}

// RunHeartbeat calls Requeue every delay until ctx is cancelled. Failed
// cycles are logged and retried on the next beat.
func (p *ProcessingList) RunHeartbeat(ctx context.Context, start time.Time, delay time.Duration, factor int) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		n, err := p.Requeue(ctx, start, delay, factor)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Error().Err(err).Msg("heartbeat cycle")
		}
		if n > 0 {
			p.log.Warn().Int("count", n).Msg("requeued abandoned jobs")
		}
		timer.Reset(delay)
	}
}
