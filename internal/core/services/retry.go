package services

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/custodia-labs/oasis-cli/internal/core/domain"
	"github.com/custodia-labs/oasis-cli/internal/core/ports/driven"
	"github.com/custodia-labs/oasis-cli/internal/logger"
)

// maxRetries caps retries regardless of configuration.
const maxRetries = 1

// callWithRetry runs fn under the call policy: every attempt gets its own
// timeout and a failed attempt is retried at most once after a backoff.
// Cancellation of the parent context and provider rejections are never
// retried.
func callWithRetry[T any](ctx context.Context, policy domain.CallPolicy, stage string, fn func(context.Context) (T, error)) (T, error) {
	var result T

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.Backoff
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0

	retries := policy.Retries
	if retries > maxRetries {
		retries = maxRetries
	}
	if retries < 0 {
		retries = 0
	}

	attempt := 0
	op := func() error {
		attempt++
		callCtx, cancel := withTimeout(ctx, policy.Timeout)
		defer cancel()

		v, err := fn(callCtx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, driven.ErrRejected) {
				return backoff.Permanent(err)
			}
			logger.Debug("%s attempt %d failed: %v", stage, attempt, err)
			return err
		}
		result = v
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx))
	return result, err
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
