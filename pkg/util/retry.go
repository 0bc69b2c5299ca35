// Package util holds small helpers shared across the engine.
package util

import (
	"context"
	"time"
)

// Retry executes fn up to attempts times, waiting backoff*n before the
// n-th retry. It stops early when fn succeeds, when shouldRetry rejects
// the error, or when ctx is cancelled.
func Retry(ctx context.Context, attempts int, backoff time.Duration, shouldRetry func(error) bool, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(time.Duration(i) * backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err = fn(); err == nil {
			return nil
		}
		if shouldRetry != nil && !shouldRetry(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}
