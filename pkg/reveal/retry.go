package reveal

import (
	"context"
	"fmt"
	"time"
)

// BackoffFn returns how long to wait after a failed attempt (1-based).
type BackoffFn func(attempt int) time.Duration

// FixedBackoff waits the same delay between every attempt.
func FixedBackoff(delay time.Duration) BackoffFn {
	return func(int) time.Duration {
		return delay
	}
}

// ExponentialBackoff doubles the delay per attempt, capped at max.
func ExponentialBackoff(base, max time.Duration) BackoffFn {
	return func(attempt int) time.Duration {
		d := base
		for i := 1; i < attempt; i++ {
			d *= 2
			if d >= max {
				return max
			}
		}
		if d > max {
			return max
		}
		return d
	}
}

// RetryPolicy bounds the decrypt retry loop: a hard attempt ceiling and a
// backoff between attempts. Retries exist because the attested decryption
// service is asynchronous relative to ledger finality and may not yet have
// observed an access grant.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     BackoffFn
}

// DefaultRetryPolicy retries up to 5 times with exponential backoff from
// 200ms capped at 3s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		Backoff:     ExponentialBackoff(200*time.Millisecond, 3*time.Second),
	}
}

// resolveWithRetry runs op up to the policy's attempt ceiling, sleeping the
// backoff delay between attempts. After the ceiling the last error is
// wrapped in ErrDecryptExhausted; the failure is never retried indefinitely.
func resolveWithRetry(ctx context.Context, policy RetryPolicy, op func(ctx context.Context) error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		var delay time.Duration
		if policy.Backoff != nil {
			delay = policy.Backoff(attempt)
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrDecryptExhausted, attempts, lastErr)
}
