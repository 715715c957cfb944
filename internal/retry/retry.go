// Package retry wraps cenkalti/backoff with the bounded-attempt,
// constant-wait policy used for flaky external lookups.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Do runs op up to attempts times, waiting wait between failed tries.
// It returns the last error when every attempt fails, or ctx's error if
// the context ends first.
func Do(ctx context.Context, attempts int, wait time.Duration, op func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(wait), uint64(attempts-1)),
		ctx,
	)
	return backoff.Retry(op, b)
}

// DoValue is Do for value-producing operations, with a fallback: when all
// attempts fail it returns (fallback, false) instead of an error, which
// is the silent-give-up contract the location humanizer needs.
func DoValue[T any](ctx context.Context, attempts int, wait time.Duration, op func() (T, error), fallback T) (T, bool) {
	var out T
	err := Do(ctx, attempts, wait, func() error {
		v, err := op()
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		return fallback, false
	}
	return out, true
}
