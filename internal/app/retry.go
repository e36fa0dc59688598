package app

import (
	"context"
	"errors"
	"time"
)

var errInvalidRetryAttempts = errors.New("retry policy needs at least one attempt")

// RetryPolicy retries an operation with exponential backoff: BaseDelay
// after the first failure, doubling per attempt, never exceeding MaxDelay.
// It wraps only the generation call, not the surrounding pipeline, so
// non-idempotent side effects are never replayed.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Do runs op up to MaxAttempts times. retryable decides whether a failure
// is worth another attempt; a non-retryable error returns immediately.
// The error from the last attempt is returned when all attempts fail.
func (p RetryPolicy) Do(ctx context.Context, op func() error, retryable func(error) bool) error {
	if p.MaxAttempts <= 0 {
		return errInvalidRetryAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}

		delay := p.BaseDelay
		for i := 1; i < attempt; i++ {
			delay *= 2
		}
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}
