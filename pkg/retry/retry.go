package retry

import (
	"context"
	"errors"
	"time"

	"github.com/rosterhq/teamkit/pkg/backoff"
)

// ErrNilFunc is returned when a nil function is passed to Do or Run.
var ErrNilFunc = errors.New("retry: function cannot be nil")

// Option is a functional option for a single Do or Run call.
type Option func(*options)

type options struct {
	maxAttempts int
	strategy    backoff.Strategy
}

// WithMaxAttempts sets the total number of attempts, including the first one.
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithDelay sets a fixed delay between attempts.
func WithDelay(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.strategy = backoff.Fixed{Interval: d}
		}
	}
}

// WithStrategy sets a custom backoff strategy for the delays between attempts.
func WithStrategy(s backoff.Strategy) Option {
	return func(o *options) {
		if s != nil {
			o.strategy = s
		}
	}
}

// Do invokes fn up to the configured number of attempts (default 3, with a
// fixed one second delay between them) and returns the first successful
// result. When every attempt fails, the error from the final attempt is
// returned unchanged so callers can match it with errors.Is.
//
// The delay honors context cancellation: if ctx is done while waiting, Do
// stops early and returns ctx.Err().
func Do[T any](ctx context.Context, fn func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	var zero T
	if fn == nil {
		return zero, ErrNilFunc
	}

	o := &options{
		maxAttempts: 3,
		strategy:    backoff.Fixed{Interval: time.Second},
	}
	for _, opt := range opts {
		opt(o)
	}

	var lastErr error
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(o.strategy.NextInterval(attempt - 1)):
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}

	return zero, lastErr
}

// Run is Do for functions that produce no result.
func Run(ctx context.Context, fn func(ctx context.Context) error, opts ...Option) error {
	if fn == nil {
		return ErrNilFunc
	}
	_, err := Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, opts...)
	return err
}
