package fn

import (
	"context"
	"math/rand"
	"time"
)

// RetryOpts controls backoff behavior for Retry.
type RetryOpts struct {
	Attempts int
	BaseWait time.Duration
	MaxWait  time.Duration
	// Retryable reports whether an error is worth another attempt.
	// A nil Retryable retries every error.
	Retryable func(error) bool
}

// DefaultRetry retries three times with jittered exponential backoff.
func DefaultRetry() RetryOpts {
	return RetryOpts{
		Attempts: 3,
		BaseWait: 250 * time.Millisecond,
		MaxWait:  5 * time.Second,
	}
}

// Retry runs f until it succeeds, attempts are exhausted, or the
// context is canceled. The last error is returned on failure.
func Retry[T any](ctx context.Context, opts RetryOpts, f func(context.Context) (T, error)) (T, error) {
	var zero T
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	wait := opts.BaseWait
	var lastErr error
	for attempt := 0; attempt < opts.Attempts; attempt++ {
		if attempt > 0 {
			jittered := wait/2 + time.Duration(rand.Int63n(int64(wait/2)+1))
			select {
			case <-time.After(jittered):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
			wait *= 2
			if opts.MaxWait > 0 && wait > opts.MaxWait {
				wait = opts.MaxWait
			}
		}
		v, err := f(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if opts.Retryable != nil && !opts.Retryable(err) {
			return zero, err
		}
	}
	return zero, lastErr
}

// RetryStage wraps a stage so failed attempts are retried per opts.
func RetryStage[In, Out any](opts RetryOpts, stage Stage[In, Out]) Stage[In, Out] {
	return func(ctx context.Context, in In) Result[Out] {
		v, err := Retry(ctx, opts, func(ctx context.Context) (Out, error) {
			return stage(ctx, in).Unwrap()
		})
		if err != nil {
			return Err[Out](err)
		}
		return Ok(v)
	}
}
