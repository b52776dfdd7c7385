package opqueue_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosterhq/teamkit/pkg/backoff"
	"github.com/rosterhq/teamkit/pkg/opqueue"
)

func newTestQueue(t *testing.T, opts ...opqueue.Option) *opqueue.Queue {
	t.Helper()

	opts = append([]opqueue.Option{
		opqueue.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		opqueue.WithBackoff(backoff.Fixed{Interval: 5 * time.Millisecond}),
	}, opts...)

	return opqueue.New(opts...)
}

func startQueue(t *testing.T, q *opqueue.Queue) {
	t.Helper()
	require.NoError(t, q.Start(context.Background()))
	t.Cleanup(func() { _ = q.Stop() })
}

func succeedOp(name string, priority opqueue.Priority) opqueue.Operation {
	return opqueue.NewOperation(name, priority, func(ctx context.Context) (any, error) {
		return name, nil
	})
}

func TestQueue_Add_Validation(t *testing.T) {
	t.Parallel()

	t.Run("nil execute", func(t *testing.T) {
		t.Parallel()

		q := newTestQueue(t)
		_, err := q.Add(opqueue.Operation{Name: "broken", Priority: opqueue.PriorityLow})
		assert.ErrorIs(t, err, opqueue.ErrNilExecute)
	})

	t.Run("invalid priority", func(t *testing.T) {
		t.Parallel()

		q := newTestQueue(t)
		op := succeedOp("bad", opqueue.Priority(42))
		_, err := q.Add(op)
		assert.ErrorIs(t, err, opqueue.ErrInvalidPriority)
	})

	t.Run("duplicate id", func(t *testing.T) {
		t.Parallel()

		q := newTestQueue(t)

		op := opqueue.NewOperation("first", opqueue.PriorityMedium,
			func(ctx context.Context) (any, error) { return nil, nil },
			opqueue.WithID("op-1"))
		_, err := q.Add(op)
		require.NoError(t, err)

		dup := opqueue.NewOperation("second", opqueue.PriorityMedium,
			func(ctx context.Context) (any, error) { return nil, nil },
			opqueue.WithID("op-1"))
		_, err = q.Add(dup)
		assert.ErrorIs(t, err, opqueue.ErrDuplicateID)
	})

	t.Run("closed queue", func(t *testing.T) {
		t.Parallel()

		q := newTestQueue(t)
		require.NoError(t, q.Start(context.Background()))
		require.NoError(t, q.Stop())

		_, err := q.Add(succeedOp("late", opqueue.PriorityLow))
		assert.ErrorIs(t, err, opqueue.ErrQueueClosed)
	})
}

func TestQueue_Lifecycle(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t)

	require.Error(t, q.Stop(), "stop before start must fail")
	require.NoError(t, q.Start(context.Background()))
	require.Error(t, q.Start(context.Background()), "double start must fail")
	require.NoError(t, q.Stop())
}

func TestQueue_ExecutesAndDeliversOutcome(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t)
	startQueue(t, q)

	ticket, err := q.Add(succeedOp("load-roster", opqueue.PriorityCritical))
	require.NoError(t, err)

	outcome, err := ticket.Wait(context.Background())
	require.NoError(t, err)
	require.NoError(t, outcome.Err)
	assert.Equal(t, "load-roster", outcome.Result)
	assert.Equal(t, 1, outcome.Attempts)
	assert.Equal(t, ticket.ID(), outcome.OperationID)
}

func TestQueue_ConcurrencyCap(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, opqueue.WithMaxConcurrent(2))
	startQueue(t, q)

	var inFlight, maxInFlight atomic.Int32
	started := make(chan string, 3)
	release := make(chan struct{})

	var tickets []*opqueue.Ticket
	for _, name := range []string{"a", "b", "c"} {
		op := opqueue.NewOperation(name, opqueue.PriorityMedium, func(ctx context.Context) (any, error) {
			n := inFlight.Add(1)
			for {
				max := maxInFlight.Load()
				if n <= max || maxInFlight.CompareAndSwap(max, n) {
					break
				}
			}
			started <- name
			<-release
			inFlight.Add(-1)
			return nil, nil
		})
		ticket, err := q.Add(op)
		require.NoError(t, err)
		tickets = append(tickets, ticket)
	}

	// Exactly two start; the third waits for a free slot.
	<-started
	<-started
	select {
	case <-started:
		t.Fatal("third operation started with both slots busy")
	case <-time.After(50 * time.Millisecond):
	}

	stats := q.Stats()
	assert.Equal(t, 2, stats.Running)
	assert.Equal(t, 1, stats.Queued[opqueue.PriorityMedium])

	close(release)
	<-started

	for _, ticket := range tickets {
		outcome, err := ticket.Wait(context.Background())
		require.NoError(t, err)
		assert.NoError(t, outcome.Err)
	}

	assert.LessOrEqual(t, maxInFlight.Load(), int32(2),
		"in-flight operations must never exceed the cap")
}

func TestQueue_PriorityOrder(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, opqueue.WithMaxConcurrent(1))
	startQueue(t, q)

	// Occupy the only slot so later additions pile up in the lists.
	gateRelease := make(chan struct{})
	gateStarted := make(chan struct{})
	gate := opqueue.NewOperation("gate", opqueue.PriorityCritical, func(ctx context.Context) (any, error) {
		close(gateStarted)
		<-gateRelease
		return nil, nil
	})
	_, err := q.Add(gate)
	require.NoError(t, err)
	<-gateStarted

	var mu sync.Mutex
	var order []string
	record := func(name string) opqueue.Operation {
		return opqueue.NewOperation(name, map[string]opqueue.Priority{
			"low": opqueue.PriorityLow, "medium": opqueue.PriorityMedium, "high": opqueue.PriorityHigh,
		}[name], func(ctx context.Context) (any, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil, nil
		})
	}

	t1, err := q.Add(record("low"))
	require.NoError(t, err)
	t2, err := q.Add(record("medium"))
	require.NoError(t, err)
	t3, err := q.Add(record("high"))
	require.NoError(t, err)

	close(gateRelease)

	for _, ticket := range []*opqueue.Ticket{t1, t2, t3} {
		_, err := ticket.Wait(context.Background())
		require.NoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"high", "medium", "low"}, order)
}

func TestQueue_CriticalPreemptsQueuedWork(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, opqueue.WithMaxConcurrent(1))
	startQueue(t, q)

	gateRelease := make(chan struct{})
	gateStarted := make(chan struct{})
	gate := opqueue.NewOperation("gate", opqueue.PriorityCritical, func(ctx context.Context) (any, error) {
		close(gateStarted)
		<-gateRelease
		return "gate-done", nil
	})
	gateTicket, err := q.Add(gate)
	require.NoError(t, err)
	<-gateStarted

	var lowRan atomic.Bool
	lowTicket, err := q.Add(opqueue.NewOperation("auto-save", opqueue.PriorityLow, func(ctx context.Context) (any, error) {
		lowRan.Store(true)
		return nil, nil
	}))
	require.NoError(t, err)

	var mediumRan atomic.Bool
	mediumTicket, err := q.Add(opqueue.NewOperation("backup", opqueue.PriorityMedium, func(ctx context.Context) (any, error) {
		mediumRan.Store(true)
		return nil, nil
	}))
	require.NoError(t, err)

	criticalTicket, err := q.Add(succeedOp("load-season", opqueue.PriorityCritical))
	require.NoError(t, err)

	// Queued lower-priority operations are discarded immediately.
	lowOutcome, err := lowTicket.Wait(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, lowOutcome.Err, opqueue.ErrPreempted)

	mediumOutcome, err := mediumTicket.Wait(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, mediumOutcome.Err, opqueue.ErrPreempted)

	stats := q.Stats()
	assert.Equal(t, 1, stats.Queued[opqueue.PriorityCritical])
	assert.Equal(t, 0, stats.Queued[opqueue.PriorityLow])
	assert.Equal(t, 0, stats.Queued[opqueue.PriorityMedium])

	// The running operation is never interrupted.
	close(gateRelease)
	gateOutcome, err := gateTicket.Wait(context.Background())
	require.NoError(t, err)
	require.NoError(t, gateOutcome.Err)
	assert.Equal(t, "gate-done", gateOutcome.Result)

	criticalOutcome, err := criticalTicket.Wait(context.Background())
	require.NoError(t, err)
	assert.NoError(t, criticalOutcome.Err)

	assert.False(t, lowRan.Load())
	assert.False(t, mediumRan.Load())
}

func TestQueue_RetryUntilSuccess(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t)
	startQueue(t, q)

	var calls atomic.Int32
	op := opqueue.NewOperation("flaky-save", opqueue.PriorityHigh, func(ctx context.Context) (any, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("transient store error")
		}
		return "saved", nil
	}, opqueue.WithMaxRetries(3))

	ticket, err := q.Add(op)
	require.NoError(t, err)

	outcome, err := ticket.Wait(context.Background())
	require.NoError(t, err)
	require.NoError(t, outcome.Err)
	assert.Equal(t, "saved", outcome.Result)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Equal(t, int32(3), calls.Load())
}

func TestQueue_RetryExhaustion(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t)
	startQueue(t, q)

	finalErr := errors.New("store rejected write")
	var calls atomic.Int32
	op := opqueue.NewOperation("doomed-save", opqueue.PriorityMedium, func(ctx context.Context) (any, error) {
		calls.Add(1)
		return nil, finalErr
	}, opqueue.WithMaxRetries(2))

	ticket, err := q.Add(op)
	require.NoError(t, err)

	outcome, err := ticket.Wait(context.Background())
	require.NoError(t, err)
	require.Error(t, outcome.Err)
	assert.ErrorIs(t, outcome.Err, opqueue.ErrRetriesExhausted)
	assert.ErrorIs(t, outcome.Err, finalErr)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Equal(t, int32(3), calls.Load())

	// Terminally failed operations never re-enter the queue.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
	assert.Zero(t, q.Stats().TotalQueued)
}

func TestQueue_RetryJumpsAheadOfSamePriority(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, opqueue.WithMaxConcurrent(1),
		opqueue.WithBackoff(backoff.Fixed{Interval: 10 * time.Millisecond}))
	startQueue(t, q)

	var mu sync.Mutex
	var order []string

	var aCalls atomic.Int32
	a := opqueue.NewOperation("a", opqueue.PriorityMedium, func(ctx context.Context) (any, error) {
		mu.Lock()
		order = append(order, "a")
		mu.Unlock()
		if aCalls.Add(1) == 1 {
			return nil, errors.New("first attempt fails")
		}
		return nil, nil
	}, opqueue.WithMaxRetries(1))

	// b runs long enough for a's retry to land back in the queue before
	// the slot frees up again; c arrived after a, so a's retry must go
	// ahead of it.
	b := opqueue.NewOperation("b", opqueue.PriorityMedium, func(ctx context.Context) (any, error) {
		mu.Lock()
		order = append(order, "b")
		mu.Unlock()
		time.Sleep(100 * time.Millisecond)
		return nil, nil
	})
	c := opqueue.NewOperation("c", opqueue.PriorityMedium, func(ctx context.Context) (any, error) {
		mu.Lock()
		order = append(order, "c")
		mu.Unlock()
		return nil, nil
	})

	ta, err := q.Add(a)
	require.NoError(t, err)
	tb, err := q.Add(b)
	require.NoError(t, err)
	tc, err := q.Add(c)
	require.NoError(t, err)

	for _, ticket := range []*opqueue.Ticket{ta, tb, tc} {
		outcome, err := ticket.Wait(context.Background())
		require.NoError(t, err)
		require.NoError(t, outcome.Err)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "a", "c"}, order)
}

func TestQueue_TimeoutCountsAsFailure(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t)
	startQueue(t, q)

	var calls atomic.Int32
	op := opqueue.NewOperation("slow-load", opqueue.PriorityHigh, func(ctx context.Context) (any, error) {
		calls.Add(1)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			return "too late", nil
		}
	}, opqueue.WithTimeout(20*time.Millisecond), opqueue.WithMaxRetries(1))

	ticket, err := q.Add(op)
	require.NoError(t, err)

	outcome, err := ticket.Wait(context.Background())
	require.NoError(t, err)
	require.Error(t, outcome.Err)
	assert.ErrorIs(t, outcome.Err, opqueue.ErrRetriesExhausted)
	assert.ErrorIs(t, outcome.Err, opqueue.ErrOperationTimeout)
	assert.Equal(t, int32(2), calls.Load(), "timeout consumes a retry like any failure")
}

func TestQueue_TimeoutReleasesSlot(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, opqueue.WithMaxConcurrent(1))
	startQueue(t, q)

	// A non-cooperative execute that ignores its context entirely.
	hung := opqueue.NewOperation("hung", opqueue.PriorityMedium, func(ctx context.Context) (any, error) {
		time.Sleep(500 * time.Millisecond)
		return nil, nil
	}, opqueue.WithTimeout(20*time.Millisecond), opqueue.WithMaxRetries(0))

	hungTicket, err := q.Add(hung)
	require.NoError(t, err)

	outcome, err := hungTicket.Wait(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, outcome.Err, opqueue.ErrOperationTimeout)

	// The slot freed by the timeout lets the next operation through even
	// though the hung execute is still sleeping in the background.
	next, err := q.Add(succeedOp("next", opqueue.PriorityMedium))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	nextOutcome, err := next.Wait(ctx)
	require.NoError(t, err, "slot must be released at timeout, not when the detached execute returns")
	assert.NoError(t, nextOutcome.Err)
}

func TestQueue_StatsAndClear(t *testing.T) {
	t.Parallel()

	// Not started: operations accumulate in the lists.
	q := newTestQueue(t)

	for i, priority := range []opqueue.Priority{
		opqueue.PriorityLow, opqueue.PriorityLow, opqueue.PriorityMedium, opqueue.PriorityHigh,
	} {
		_, err := q.Add(opqueue.NewOperation("op", priority,
			func(ctx context.Context) (any, error) { return nil, nil },
			opqueue.WithID(string(rune('a'+i)))))
		require.NoError(t, err)
	}

	stats := q.Stats()
	assert.Equal(t, 2, stats.Queued[opqueue.PriorityLow])
	assert.Equal(t, 1, stats.Queued[opqueue.PriorityMedium])
	assert.Equal(t, 1, stats.Queued[opqueue.PriorityHigh])
	assert.Equal(t, 0, stats.Queued[opqueue.PriorityCritical])
	assert.Equal(t, 4, stats.TotalQueued)
	assert.Equal(t, 0, stats.Running)

	q.Clear()
	assert.Zero(t, q.Stats().TotalQueued)
}

func TestQueue_ClearResolvesTickets(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t)

	ticket, err := q.Add(succeedOp("doomed", opqueue.PriorityLow))
	require.NoError(t, err)

	q.Clear()

	outcome, err := ticket.Wait(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, outcome.Err, opqueue.ErrCleared)
}

func TestQueue_StopResolvesQueuedOperations(t *testing.T) {
	t.Parallel()

	q := newTestQueue(t, opqueue.WithMaxConcurrent(1))
	require.NoError(t, q.Start(context.Background()))

	gateRelease := make(chan struct{})
	gateStarted := make(chan struct{})
	_, err := q.Add(opqueue.NewOperation("gate", opqueue.PriorityHigh, func(ctx context.Context) (any, error) {
		close(gateStarted)
		<-gateRelease
		return nil, nil
	}))
	require.NoError(t, err)
	<-gateStarted

	queued, err := q.Add(succeedOp("never-runs", opqueue.PriorityLow))
	require.NoError(t, err)

	stopDone := make(chan struct{})
	go func() {
		_ = q.Stop()
		close(stopDone)
	}()

	// Give Stop a moment to flip the stopping flag, then let the running
	// operation finish.
	time.Sleep(20 * time.Millisecond)
	close(gateRelease)
	<-stopDone

	outcome, err := queued.Wait(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, outcome.Err, opqueue.ErrQueueClosed)
}

func TestQueue_AddRacingStopNeverStrandsTickets(t *testing.T) {
	t.Parallel()

	// Adds racing Stop must either be rejected with ErrQueueClosed or hand
	// back a ticket that resolves; a ticket that never delivers an outcome
	// means an operation was stranded in the lists past the shutdown drain.
	for iter := 0; iter < 25; iter++ {
		q := newTestQueue(t, opqueue.WithMaxConcurrent(1))
		require.NoError(t, q.Start(context.Background()))

		var mu sync.Mutex
		var tickets []*opqueue.Ticket

		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for n := 0; n < 5; n++ {
					ticket, err := q.Add(succeedOp("racing", opqueue.PriorityMedium))
					if err != nil {
						assert.ErrorIs(t, err, opqueue.ErrQueueClosed)
						return
					}
					mu.Lock()
					tickets = append(tickets, ticket)
					mu.Unlock()
				}
			}()
		}

		require.NoError(t, q.Stop())
		wg.Wait()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		for _, ticket := range tickets {
			_, err := ticket.Wait(ctx)
			require.NoError(t, err, "accepted operation must resolve after Stop")
		}
		cancel()
	}
}

func TestPriority_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "critical", opqueue.PriorityCritical.String())
	assert.Equal(t, "high", opqueue.PriorityHigh.String())
	assert.Equal(t, "medium", opqueue.PriorityMedium.String())
	assert.Equal(t, "low", opqueue.PriorityLow.String())
	assert.Equal(t, "unknown", opqueue.Priority(9).String())

	assert.True(t, opqueue.PriorityCritical.Valid())
	assert.False(t, opqueue.Priority(-1).Valid())
}
