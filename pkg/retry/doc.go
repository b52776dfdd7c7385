// Package retry provides a small bounded-retry helper for one-off persistence
// calls that do not need the priority scheduling of the operation queue.
//
// Do re-invokes the supplied function until it succeeds or the attempt budget
// is exhausted, waiting between attempts. Unlike the queue, which retries
// internally and reports terminal failures through a ticket, Do propagates
// the final attempt's error directly to the caller:
//
//	record, err := retry.Do(ctx, func(ctx context.Context) ([]byte, error) {
//	    return store.Get(ctx, "roster:42")
//	}, retry.WithMaxAttempts(3), retry.WithDelay(time.Second))
//
// The default delay is fixed; use WithStrategy to plug in an exponential
// curve from the backoff package.
package retry
