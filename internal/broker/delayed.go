package broker

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/851-labs/async-job-processor-redis/internal/metrics"
)

// submitDelayedScript writes the payload and records the target timestamp in
// one atomic step.
var submitDelayedScript = redis.NewScript(`
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('ZADD', KEYS[2], ARGV[3], ARGV[1])
return 1
`)

// promoteScript moves every due id to the ready queue in a single atomic
// batch. Ids are pushed one at a time in ascending score order so the
// earliest target time pops first.
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], 0, ARGV[1])
if #due == 0 then
  return 0
end
redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, ARGV[1])
for i = 1, #due do
  redis.call('LPUSH', KEYS[2], due[i])
end
return #due
`)

// DelayedSet holds jobs waiting for their scheduled start, sorted by target
// timestamp (fractional unix seconds).
type DelayedSet struct {
	rdb  *redis.Client
	key  string
	jobs *JobStore
	log  zerolog.Logger
}

func NewDelayedSet(rdb *redis.Client, key string, jobs *JobStore, logger zerolog.Logger) *DelayedSet {
	return &DelayedSet{rdb: rdb, key: key, jobs: jobs, log: logger}
}

// Submit stores payload under a fresh id and schedules it for targetTS.
func (s *DelayedSet) Submit(ctx context.Context, payload []byte, targetTS float64) (string, error) {
	id := uuid.NewString()
	score := strconv.FormatFloat(targetTS, 'f', -1, 64)
	if err := submitDelayedScript.Run(ctx, s.rdb, []string{s.jobs.key, s.key}, id, payload, score).Err(); err != nil {
		return "", err
	}
	return id, nil
}

// PromoteDue moves every id with a target timestamp <= now onto readyKey and
// returns how many were moved.
func (s *DelayedSet) PromoteDue(ctx context.Context, readyKey string, now float64) (int64, error) {
	cutoff := strconv.FormatFloat(now, 'f', -1, 64)
	n, err := promoteScript.Run(ctx, s.rdb, []string{s.key, readyKey}, cutoff).Int64()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// RunSweeper promotes due jobs every resolution period until ctx is
// cancelled. A failed cycle is logged and retried on the next tick.
func (s *DelayedSet) RunSweeper(ctx context.Context, ready *ReadyQueue, resolution time.Duration) {
	ticker := time.NewTicker(resolution)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := float64(time.Now().UnixNano()) / float64(time.Second)
			n, err := s.PromoteDue(ctx, ready.Key(), now)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.log.Error().Err(err).Msg("promote due jobs")
				continue
			}
			if n > 0 {
				metrics.JobsPromoted.Add(float64(n))
				s.log.Debug().Int64("count", n).Msg("promoted delayed jobs")
			}
		}
	}
}

func (s *DelayedSet) Size(ctx context.Context) (int64, error) {
	return s.rdb.ZCard(ctx, s.key).Result()
}
