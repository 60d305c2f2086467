package client

import (
	"context"
	"time"
)

// withRetry runs op, re-attempting on retryable failures with bounded
// exponential backoff. Fatal failures propagate immediately without consuming
// a retry slot. Exceeding the retry budget wraps the last failure in a
// RetryExhaustedError.
//
// Operations that sign requests draw a fresh nonce on every attempt, so
// re-running an operation is also the remedy for a stale-nonce rejection.
//
// The backoff sleep is a cancellable suspension point: it returns early with
// ctx.Err() if the context is done, and it uses the client's clock so tests
// can control backoff timing without real elapsed time.
func withRetry[T any](ctx context.Context, c *Client, label string, op func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	delay := c.retry.InitialDelay
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			c.log.Debug().
				Str("op", label).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("backing off before retry")

			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-c.clock.After(delay):
			}

			delay = time.Duration(float64(delay) * c.retry.Factor)
			if delay > c.retry.MaxDelay {
				delay = c.retry.MaxDelay
			}
		}

		result, err := op()
		if err == nil {
			return result, nil
		}
		if !retryable(err) {
			return zero, err
		}
		c.log.Debug().Str("op", label).Err(err).Msg("retryable failure")
		lastErr = err
	}

	return zero, &RetryExhaustedError{
		Op:       label,
		Attempts: c.retry.MaxRetries + 1,
		Err:      lastErr,
	}
}
