// Package periodic submits jobs on cron schedules. It sits beside the broker
// server in the worker process and is not part of the broker protocol: every
// firing is an ordinary submission.
package periodic

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const submitTimeout = 10 * time.Second

// Submitter is the slice of the broker server the scheduler needs.
type Submitter interface {
	Submit(ctx context.Context, job any) (string, error)
}

type Scheduler struct {
	c      *cron.Cron
	submit Submitter
	log    zerolog.Logger
}

func New(submit Submitter, logger zerolog.Logger) *Scheduler {
	return &Scheduler{c: cron.New(), submit: submit, log: logger}
}

// Add registers a schedule. job is called on every firing so each submission
// gets a fresh job value. spec uses the standard five-field cron syntax.
func (s *Scheduler) Add(name, spec string, job func() any) error {
	_, err := s.c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		defer cancel()
		id, err := s.submit.Submit(ctx, job())
		if err != nil {
			s.log.Error().Err(err).Str("schedule", name).Msg("submit scheduled job")
			return
		}
		s.log.Info().Str("schedule", name).Str("id", id).Msg("submitted scheduled job")
	})
	return err
}

func (s *Scheduler) Start() { s.c.Start() }

// Stop halts the cron runner; firings already in flight finish on their own.
func (s *Scheduler) Stop() { s.c.Stop() }
