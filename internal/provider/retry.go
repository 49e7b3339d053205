package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskpilot/internal/logging"
)

const (
	maxAttempts    = 3
	initialBackoff = 2 * time.Second
)

// sleepFunc is swapped for a recorder in tests.
type sleepFunc func(time.Duration)

// retryable reports whether an error is worth another attempt.
// Rate limits, overload and server errors are; auth and client errors
// are not. Transport errors (no APIError) count as connection failures
// and are retried.
func retryable(err error) bool {
	if errors.Is(err, ErrAuth) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 503, 529:
			return true
		}
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// withRetry runs fn up to maxAttempts times with exponential backoff
// between retryable failures.
func withRetry(ctx context.Context, vendor string, sleep sleepFunc, fn func() error) error {
	if sleep == nil {
		sleep = time.Sleep
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := initialBackoff << uint(attempt-1)
			logging.ProviderWarn("[%s] attempt %d/%d failed, retrying in %v: %v",
				vendor, attempt, maxAttempts, delay, lastErr)
			sleep(delay)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
