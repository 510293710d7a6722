package resilience

import (
	"context"
	"time"
)

// Retry runs fn up to attempts times, sleeping delay between tries.
// It returns nil on the first success, the last error once attempts are
// exhausted, or the context error if ctx is canceled while waiting.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 && delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if err = fn(); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}
