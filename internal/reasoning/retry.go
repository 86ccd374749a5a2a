package reasoning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"plannerd/internal/logging"
)

// ErrTransient marks failures worth retrying: timeouts, rate limits,
// and malformed structured responses the model may get right on the
// next attempt. Schema-invalid-after-parse responses are terminal.
var ErrTransient = errors.New("transient reasoning failure")

// Transient wraps err so IsTransient reports true.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// IsTransient reports whether err should be retried. Context deadline
// expiry counts: the per-call timeout races the network round trip and
// expiry is treated as a retryable failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded)
}

// RetryConfig bounds the retry loop.
type RetryConfig struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	CallTimeout time.Duration
}

// DefaultRetryConfig matches the documented budget: 3 attempts,
// 1s base backoff capped at 10s, 25s per call.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BackoffBase: time.Second,
		BackoffMax:  10 * time.Second,
		CallTimeout: 25 * time.Second,
	}
}

// Do runs fn under the per-call timeout, retrying transient failures
// with exponential backoff until the attempt budget is exhausted.
// From the caller's perspective the call either eventually succeeds or
// returns a terminal error.
func Do(ctx context.Context, cfg RetryConfig, op string, fn func(ctx context.Context) error) error {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := backoff(cfg, attempt-1)
			logging.API("%s: attempt %d/%d after %v (last error: %v)", op, attempt, attempts, delay, lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if cfg.CallTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, cfg.CallTimeout)
		}
		err := fn(callCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return nil
		}

		lastErr = err
		if !IsTransient(err) {
			return err
		}
		// The parent context expiring is not retryable.
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return fmt.Errorf("%s: retry budget exhausted after %d attempts: %w", op, attempts, lastErr)
}

func backoff(cfg RetryConfig, n int) time.Duration {
	base := cfg.BackoffBase
	if base <= 0 {
		base = time.Second
	}
	d := base << uint(n-1)
	if cfg.BackoffMax > 0 && d > cfg.BackoffMax {
		d = cfg.BackoffMax
	}
	return d
}
