package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONRoundTrip(t *testing.T) {
	c := JSON{}

	data, err := c.Dump(map[string]any{"data": "x", "n": 3})
	require.NoError(t, err)

	v, err := c.Load(data)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"data": "x", "n": float64(3)}, v)
}

func TestJSONLoadRejectsGarbage(t *testing.T) {
	c := JSON{}
	_, err := c.Load([]byte("{not json"))
	require.Error(t, err)
}

func TestScheduledAt(t *testing.T) {
	c := JSON{}

	ts, ok := c.ScheduledAt(map[string]any{"data": "x", "scheduled_at": 1700000000.5})
	require.True(t, ok)
	require.Equal(t, 1700000000.5, ts)

	_, ok = c.ScheduledAt(map[string]any{"data": "x"})
	require.False(t, ok)

	// Non-object jobs are always immediate.
	_, ok = c.ScheduledAt("just a string")
	require.False(t, ok)

	// A non-numeric scheduled_at is ignored.
	_, ok = c.ScheduledAt(map[string]any{"scheduled_at": "tomorrow"})
	require.False(t, ok)
}
