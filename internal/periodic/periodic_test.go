package periodic

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeSubmitter struct {
	mu   sync.Mutex
	jobs []any
}

func (f *fakeSubmitter) Submit(ctx context.Context, job any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return "id-1", nil
}

func TestAddRejectsBadSpec(t *testing.T) {
	s := New(&fakeSubmitter{}, zerolog.Nop())
	err := s.Add("bad", "not a cron spec", func() any { return nil })
	require.Error(t, err)
}

func TestAddAcceptsStandardSpec(t *testing.T) {
	s := New(&fakeSubmitter{}, zerolog.Nop())
	err := s.Add("nightly", "0 3 * * *", func() any {
		return map[string]any{"type": "report"}
	})
	require.NoError(t, err)
}
