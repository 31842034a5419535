package jpverify

import (
	"context"
	"time"
)

// RetryPolicy is a pure description of how many times to attempt a fallible
// operation and how long to wait between attempts.
type RetryPolicy struct {
	// MaxAttempts is the total attempt count (first call included).
	MaxAttempts int
	// Backoff returns the wait before retrying after attemptIndex (0-based).
	Backoff func(attemptIndex int) time.Duration
}

// doWithRetry runs op up to policy.MaxAttempts times. An error is retried only
// when retryable(err) is true; the last error is returned once attempts are
// exhausted. Context cancellation aborts the backoff wait.
func doWithRetry[T any](ctx context.Context, policy RetryPolicy, retryable func(error) bool, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !retryable(err) || i == attempts-1 {
			break
		}

		var wait time.Duration
		if policy.Backoff != nil {
			wait = policy.Backoff(i)
		}
		if wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}
	}
	return zero, lastErr
}
