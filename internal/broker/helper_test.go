package broker

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/851-labs/async-job-processor-redis/internal/codec"
)

const testPrefix = "async-job"

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	m := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return m, rdb
}

type fixture struct {
	mini       *miniredis.Miniredis
	rdb        *redis.Client
	jobs       *JobStore
	ready      *ReadyQueue
	delayed    *DelayedSet
	processing *ProcessingList
}

func newFixture(t *testing.T, workerID string) *fixture {
	t.Helper()
	m, rdb := newTestRedis(t)
	jobs := NewJobStore(rdb, testPrefix+":jobs")
	ready := NewReadyQueue(rdb, testPrefix+":ready", jobs)
	delayed := NewDelayedSet(rdb, testPrefix+":delayed", jobs, zerolog.Nop())
	processing := NewProcessingList(rdb, testPrefix+":processing", workerID, ready, jobs, codec.JSON{}, zerolog.Nop())
	return &fixture{mini: m, rdb: rdb, jobs: jobs, ready: ready, delayed: delayed, processing: processing}
}
