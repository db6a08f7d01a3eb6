// Package handlers holds the delegate implementations used by the worker
// binary. Jobs are JSON objects dispatched on their "type" field.
package handlers

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// HandlerFunc processes one decoded job object.
type HandlerFunc func(ctx context.Context, job map[string]any) error

// Mux routes jobs to the handler registered for their "type" field. An
// unregistered or missing type is an error, which sends the job down the
// retry path.
type Mux struct {
	handlers map[string]HandlerFunc
}

func NewMux() *Mux {
	return &Mux{handlers: make(map[string]HandlerFunc)}
}

func (m *Mux) Handle(jobType string, fn HandlerFunc) {
	m.handlers[jobType] = fn
}

func (m *Mux) Call(ctx context.Context, job any) error {
	obj, ok := job.(map[string]any)
	if !ok {
		return fmt.Errorf("job is not an object: %T", job)
	}
	jobType, _ := obj["type"].(string)
	fn, ok := m.handlers[jobType]
	if !ok {
		return fmt.Errorf("unknown job type: %q", jobType)
	}
	return fn(ctx, obj)
}

// Echo logs the job and succeeds. Useful as a smoke-test handler.
func Echo(logger zerolog.Logger) HandlerFunc {
	return func(ctx context.Context, job map[string]any) error {
		logger.Info().Interface("job", job).Msg("echo")
		return nil
	}
}
