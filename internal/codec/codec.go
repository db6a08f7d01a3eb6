package codec

import (
	"encoding/json"
	"fmt"
)

// Codec turns job values into payload bytes and back. The broker never
// inspects payloads except to ask for the scheduled start time before
// encoding.
type Codec interface {
	Dump(v any) ([]byte, error)
	Load(data []byte) (any, error)

	// ScheduledAt reports the job's scheduled start time as fractional
	// unix seconds, or ok=false for an immediate job.
	ScheduledAt(v any) (ts float64, ok bool)
}

// JSON is the default codec. Job values round-trip through encoding/json;
// ScheduledAt looks for a top-level "scheduled_at" number.
type JSON struct{}

func (JSON) Dump(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode job: %w", err)
	}
	return data, nil
}

func (JSON) Load(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return v, nil
}

func (JSON) ScheduledAt(v any) (float64, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return 0, false
	}
	switch ts := m["scheduled_at"].(type) {
	case float64:
		return ts, true
	case int64:
		return float64(ts), true
	case int:
		return float64(ts), true
	case json.Number:
		f, err := ts.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
