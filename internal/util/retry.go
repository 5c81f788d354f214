package util

import (
	"context"
	"math/rand/v2"
	"time"
)

// Retry runs fn up to maxAttempts times. Failed attempts are separated by an
// exponentially growing delay with jitter, so parallel workers hitting the
// same flaky endpoint don't retry in lockstep. Returns nil on the first
// success, the context error if cancelled while waiting, or the last fn
// error once attempts are exhausted.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoffDelay(baseDelay, attempt)):
		}
	}
	return err
}

// backoffDelay doubles the base delay per completed attempt and adds up to
// 25% jitter.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	if d <= 0 {
		return 0
	}
	return d + rand.N(d/4+1)
}
