package common

import (
	"context"
	"time"
)

// RetryWithResult calls fn up to attempts times, sleeping delay*attempt
// between tries, and returns the first successful result. It stops early when
// ctx is done or when retryable reports the error as permanent. A nil
// retryable retries every error.
func RetryWithResult[T any](ctx context.Context, attempts int, delay time.Duration, retryable func(error) bool, fn func() (T, error)) (T, error) {
	var zero T
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		res, err := fn()
		if err == nil {
			return res, nil
		}
		lastErr = err

		if retryable != nil && !retryable(err) {
			return zero, err
		}
		if i == attempts {
			break
		}

		t := time.NewTimer(delay * time.Duration(i))
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, ctx.Err()
		case <-t.C:
		}
	}
	return zero, lastErr
}
