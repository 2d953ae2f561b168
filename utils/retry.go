package utils

import (
	"context"
	"fmt"
	"time"
)

// RetryWithBackoff runs fn up to maxAttempts times, doubling the delay after
// each failure (baseDelay, 2*baseDelay, 4*baseDelay, ...). There is no sleep
// after the final attempt. Used for upstream-service calls only; state
// transitions and the serial reservation are never retried.
func RetryWithBackoff(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	if maxAttempts < 1 {
		return NewValidationError("maxAttempts must be at least 1")
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt < maxAttempts-1 {
			delay := baseDelay * (1 << attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", maxAttempts, lastErr)
}
