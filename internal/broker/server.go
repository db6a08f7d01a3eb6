package broker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/851-labs/async-job-processor-redis/internal/codec"
	"github.com/851-labs/async-job-processor-redis/internal/metrics"
)

// finalizeTimeout bounds the detached store calls used to finalize a job
// whose surrounding context has already been cancelled.
const finalizeTimeout = 5 * time.Second

// Delegate executes one job. A nil error completes the job; any error sends
// it back to the ready queue. Delegates must be idempotent: delivery is
// at-least-once.
type Delegate interface {
	Call(ctx context.Context, job any) error
}

// DelegateFunc adapts a function to the Delegate interface.
type DelegateFunc func(ctx context.Context, job any) error

func (f DelegateFunc) Call(ctx context.Context, job any) error { return f(ctx, job) }

// Options configures a Server. Zero values fall back to the defaults below.
type Options struct {
	Prefix      string        // key namespace root, default "async-job"
	Resolution  time.Duration // delayed-sweeper period, default 10s
	Delay       time.Duration // heartbeat interval, default 5s
	Factor      int           // liveness TTL multiplier, default 2
	MaxInFlight int           // concurrent handlers, default 8
	Codec       codec.Codec   // payload codec, default codec.JSON
	Logger      zerolog.Logger
}

// Server wires the job store, ready queue, delayed set and processing list
// together under a fresh worker id, and runs the dispatcher, sweeper and
// heartbeat loops.
type Server struct {
	workerID string
	delegate Delegate
	codec    codec.Codec
	log      zerolog.Logger

	jobs       *JobStore
	ready      *ReadyQueue
	delayed    *DelayedSet
	processing *ProcessingList

	resolution  time.Duration
	delay       time.Duration
	factor      int
	maxInFlight int
	started     time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	sem     chan struct{}
}

func NewServer(delegate Delegate, rdb *redis.Client, opts Options) *Server {
	if opts.Prefix == "" {
		opts.Prefix = "async-job"
	}
	if opts.Resolution <= 0 {
		opts.Resolution = 10 * time.Second
	}
	if opts.Delay <= 0 {
		opts.Delay = 5 * time.Second
	}
	if opts.Factor < 2 {
		opts.Factor = 2
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = 8
	}
	if opts.Codec == nil {
		opts.Codec = codec.JSON{}
	}

	workerID := uuid.NewString()
	logger := opts.Logger.With().Str("worker", workerID).Logger()

	jobs := NewJobStore(rdb, opts.Prefix+":jobs")
	ready := NewReadyQueue(rdb, opts.Prefix+":ready", jobs)
	delayed := NewDelayedSet(rdb, opts.Prefix+":delayed", jobs, logger)
	processing := NewProcessingList(rdb, opts.Prefix+":processing", workerID, ready, jobs, opts.Codec, logger)

	return &Server{
		workerID:    workerID,
		delegate:    delegate,
		codec:       opts.Codec,
		log:         logger,
		jobs:        jobs,
		ready:       ready,
		delayed:     delayed,
		processing:  processing,
		resolution:  opts.Resolution,
		delay:       opts.Delay,
		factor:      opts.Factor,
		maxInFlight: opts.MaxInFlight,
	}
}

func (s *Server) WorkerID() string { return s.workerID }

// Processing exposes the worker's processing list for inspection.
func (s *Server) Processing() *ProcessingList { return s.processing }

// Submit encodes job and routes it to the delayed set when the codec reports
// a scheduled start time, or to the ready queue otherwise. Returns the job id.
func (s *Server) Submit(ctx context.Context, job any) (string, error) {
	ts, scheduled := s.codec.ScheduledAt(job)
	payload, err := s.codec.Dump(job)
	if err != nil {
		return "", err
	}
	if scheduled {
		id, err := s.delayed.Submit(ctx, payload, ts)
		if err != nil {
			return "", err
		}
		metrics.JobsScheduled.Inc()
		return id, nil
	}
	id, err := s.ready.Submit(ctx, payload)
	if err != nil {
		return "", err
	}
	metrics.JobsEnqueued.Inc()
	return id, nil
}

// Start launches the sweeper, heartbeat and dispatcher loops. A second call
// while running is a no-op.
func (s *Server) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.started = time.Now()
	s.sem = make(chan struct{}, s.maxInFlight)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(3)
	go func() {
		defer s.wg.Done()
		s.delayed.RunSweeper(ctx, s.ready, s.resolution)
	}()
	go func() {
		defer s.wg.Done()
		s.processing.RunHeartbeat(ctx, s.started, s.delay, s.factor)
	}()
	go func() {
		defer s.wg.Done()
		s.dispatch(ctx)
	}()
	s.log.Info().Msg("broker server started")
}

// Stop cancels every loop and waits for in-flight handlers to finalize.
// Pending jobs are not drained; a live worker recovers them once this
// worker's liveness key expires.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.log.Info().Msg("broker server stopped")
}

// dispatch is the consumer loop: fetch an id into the pending list, then hand
// it to a handler goroutine. Once the handler is spawned, ownership of the id
// transfers to it; if cancellation lands in the gap between fetch and spawn,
// the id is retried here so it is not stranded on the pending list.
func (s *Server) dispatch(ctx context.Context) {
	for {
		id, err := s.processing.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Error().Err(err).Msg("fetch job")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			s.retryDetached(id)
			return
		}

		s.wg.Add(1)
		go s.handle(ctx, id)
	}
}

// handle runs one job: read payload, decode, call the delegate, finalize.
// Finalization uses a detached context so a handler cancelled mid-delegate
// still lands its retry.
func (s *Server) handle(ctx context.Context, id string) {
	defer s.wg.Done()
	defer func() { <-s.sem }()

	metrics.JobsInFlight.Inc()
	defer metrics.JobsInFlight.Dec()

	payload, found, err := s.jobs.Get(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			s.retryDetached(id)
			return
		}
		// Store fault; the id stays on the pending list and is picked up
		// by abandoned-job recovery if this worker never gets back to it.
		s.log.Error().Err(err).Str("id", id).Msg("read payload")
		return
	}
	if !found {
		s.log.Error().Str("id", id).Msg("payload missing, dropping job")
		fctx, fcancel := context.WithTimeout(context.Background(), finalizeTimeout)
		defer fcancel()
		if err := s.processing.Drop(fctx, id); err != nil {
			s.log.Error().Err(err).Str("id", id).Msg("drop job")
		}
		return
	}

	job, err := s.codec.Load(payload)
	if err == nil {
		err = s.delegate.Call(ctx, job)
	}

	fctx, fcancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer fcancel()

	if err != nil {
		s.log.Error().Err(err).Str("id", id).Msg("job failed")
		if rerr := s.processing.Retry(fctx, id); rerr != nil {
			s.log.Error().Err(rerr).Str("id", id).Msg("retry job")
		}
		return
	}
	if err := s.processing.Complete(fctx, id); err != nil {
		s.log.Error().Err(err).Str("id", id).Msg("complete job")
	}
}

func (s *Server) retryDetached(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()
	if err := s.processing.Retry(ctx, id); err != nil {
		s.log.Error().Err(err).Str("id", id).Msg("retry fetched job on shutdown")
	}
}
