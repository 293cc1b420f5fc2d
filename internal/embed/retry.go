package embed

import (
	"context"
	"time"
)

// withRetry runs fn up to maxAttempts times with exponential backoff
// (100ms * 2^attempt), stopping early if ctx is done. Grounded on the
// retry/backoff shape used for transient store and network failures
// throughout this codebase.
func withRetry(ctx context.Context, maxAttempts int, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if attempt > 0 {
			backoff := time.Duration(100<<uint(attempt)) * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return lastErr
}
