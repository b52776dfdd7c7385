// Package opqueue provides a priority-scheduled operation queue that
// arbitrates access to a persistence backend: critical data loads run before
// user-triggered saves, which run before background and auto-save work.
//
// The queue is organised around three guarantees:
//
//   - Strict priority order across levels (critical, high, medium, low)
//     and FIFO order within a level.
//   - A concurrency cap (default 2) on simultaneously in-flight operations,
//     enforced with a counting semaphore. This is backpressure on
//     outstanding store I/O, not a CPU parallelism control.
//   - Bounded retry with exponential backoff and jitter; a retried operation
//     re-enters at the front of its own priority list so it is serviced
//     before later arrivals of the same level.
//
// Arrival of a critical operation discards everything still queued at lower
// priorities; running operations are never interrupted. No anti-starvation
// guarantee exists for low-priority work under sustained higher-priority
// load.
//
// # Usage
//
//	q := opqueue.New(opqueue.WithMaxConcurrent(2))
//	if err := q.Start(ctx); err != nil {
//	    return err
//	}
//	defer q.Stop()
//
//	op := opqueue.NewOperation("save-roster", opqueue.PriorityHigh,
//	    func(ctx context.Context) (any, error) {
//	        return nil, store.Set(ctx, "roster:42", data)
//	    },
//	    opqueue.WithTimeout(10*time.Second),
//	)
//
//	ticket, err := q.Add(op)
//	if err != nil {
//	    return err
//	}
//
//	// Fire-and-forget: drop the ticket. Or wait for the terminal outcome:
//	outcome := <-ticket.Done()
//
// # Failure semantics
//
// A failed attempt is retried after a backoff delay until the operation's
// MaxRetries budget is spent, then abandoned; the ticket's Outcome carries
// ErrRetriesExhausted wrapping the final error. A timeout counts as a
// failure for retry accounting but is logged distinctly, since a run of
// timeouts usually points at an unreachable store. The timed-out execute is
// not forcibly killed: it keeps running detached with a cancelled context,
// and only cooperative implementations stop early.
package opqueue
