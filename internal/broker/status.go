package broker

import (
	"context"
	"fmt"
)

// StatusString renders the queue sizes and this worker's completion count for
// operator inspection. It never fails; sizes that cannot be read render as 0.
func (s *Server) StatusString(ctx context.Context) string {
	ready, _ := s.ready.Size(ctx)
	delayed, _ := s.delayed.Size(ctx)
	pending, _ := s.processing.Size(ctx)
	complete := s.processing.Completed()
	return fmt.Sprintf("ready=%s delayed=%s pending=%s complete=%s",
		formatCount(ready), formatCount(delayed), formatCount(pending), formatCount(complete))
}

// formatCount shortens large counts: 1234 -> "1.23K", 12345678 -> "12.35M".
func formatCount(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.2fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.2fK", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}
