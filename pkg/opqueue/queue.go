package opqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rosterhq/teamkit/pkg/backoff"
	"github.com/rosterhq/teamkit/pkg/logger"
)

// pending is one queued attempt together with the ticket that tracks the
// operation across retries.
type pending struct {
	op     Operation
	ticket *Ticket
}

// Queue schedules persistence operations by strict priority with a bounded
// number of concurrently in-flight executions. Queues are independent
// instances; create one per store you want to arbitrate.
type Queue struct {
	mu      sync.Mutex
	lists   [numPriorities][]*pending
	running map[string]struct{}
	known   map[string]struct{}

	sem  chan struct{}
	wake chan struct{}

	strategy backoff.Strategy
	logger   *slog.Logger

	// State management
	lifecycle sync.Mutex
	stopMu    sync.Mutex // Protects stopping state and WaitGroup operations
	stopping  atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New creates an operation queue. The queue does not execute anything until
// Start is called; operations added before that wait in their priority lists.
func New(opts ...Option) *Queue {
	options := &queueOptions{
		maxConcurrent: defaultMaxConcurrent,
		strategy:      backoff.Default(),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Queue{
		running:  make(map[string]struct{}),
		known:    make(map[string]struct{}),
		sem:      make(chan struct{}, options.maxConcurrent),
		wake:     make(chan struct{}, 1),
		strategy: options.strategy,
		logger:   options.logger,
	}
}

// Start begins dispatching operations in the background.
func (q *Queue) Start(ctx context.Context) error {
	q.lifecycle.Lock()
	defer q.lifecycle.Unlock()

	if q.cancel != nil {
		return fmt.Errorf("operation queue already started")
	}

	q.ctx, q.cancel = context.WithCancel(ctx)
	q.stopping.Store(false)

	go q.run()

	q.logger.Info("operation queue started",
		slog.Int("max_concurrent", cap(q.sem)))

	return nil
}

// Stop gracefully shuts down the queue: running operations finish (or time
// out), pending retries are abandoned, and every still-queued operation's
// ticket resolves with ErrQueueClosed.
func (q *Queue) Stop() error {
	q.lifecycle.Lock()
	if q.cancel == nil {
		q.lifecycle.Unlock()
		return fmt.Errorf("operation queue not started")
	}

	q.stopMu.Lock()
	q.stopping.Store(true)
	q.stopMu.Unlock()

	cancel := q.cancel
	q.cancel = nil
	q.lifecycle.Unlock()

	cancel()

	q.logger.Info("operation queue stopping, waiting for running operations")
	q.wg.Wait()

	// Drain whatever never got scheduled.
	q.discardQueued(ErrQueueClosed)

	q.logger.Info("operation queue stopped")
	return nil
}

// Run starts the queue and returns a function suitable for errgroup.
func (q *Queue) Run(ctx context.Context) func() error {
	return func() error {
		if err := q.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return q.Stop()
	}
}

// Add submits an operation and returns a Ticket that delivers its terminal
// outcome. Add never blocks on execution; dropping the ticket gives the
// source's fire-and-forget behavior.
//
// A critical operation discards every operation still queued (not running)
// at lower priorities; their tickets resolve with ErrPreempted.
func (q *Queue) Add(op Operation) (*Ticket, error) {
	if op.Execute == nil {
		return nil, ErrNilExecute
	}
	if !op.Priority.Valid() {
		return nil, ErrInvalidPriority
	}
	if q.stopping.Load() {
		return nil, ErrQueueClosed
	}

	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now()
	}

	q.mu.Lock()
	// Re-check under q.mu: Stop drains the lists holding this lock, so an
	// insert racing the shutdown either lands before the drain (and is
	// resolved by it) or observes stopping here and is rejected.
	if q.stopping.Load() {
		q.mu.Unlock()
		return nil, ErrQueueClosed
	}
	if _, exists := q.known[op.ID]; exists {
		q.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, op.ID)
	}
	q.known[op.ID] = struct{}{}

	var preempted []*pending
	if op.Priority == PriorityCritical {
		for lvl := PriorityHigh; lvl <= PriorityLow; lvl++ {
			preempted = append(preempted, q.lists[lvl]...)
			q.lists[lvl] = nil
		}
		for _, d := range preempted {
			delete(q.known, d.op.ID)
		}
	}

	ticket := newTicket(op.ID)
	q.lists[op.Priority] = append(q.lists[op.Priority], &pending{op: op, ticket: ticket})
	q.mu.Unlock()

	for _, d := range preempted {
		d.ticket.resolve(Outcome{
			OperationID: d.op.ID,
			Name:        d.op.Name,
			Err:         ErrPreempted,
			Attempts:    d.op.RetryCount,
		})
	}
	if len(preempted) > 0 {
		q.logger.Warn("critical operation preempted queued work",
			logger.Operation(op.Name),
			slog.Int("discarded", len(preempted)))
	}

	q.logger.Debug("operation queued",
		logger.OperationID(op.ID),
		logger.Operation(op.Name),
		logger.Priority(op.Priority.String()),
		logger.RetryCount(op.RetryCount))

	q.signalWake()
	return ticket, nil
}

// Clear empties every priority list; already-running operations are not
// affected. Discarded tickets resolve with ErrCleared.
func (q *Queue) Clear() {
	n := q.discardQueued(ErrCleared)
	if n > 0 {
		q.logger.Info("operation queue cleared", slog.Int("discarded", n))
	}
}

// Stats returns a snapshot of queued and running operation counts.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := Stats{Queued: make(map[Priority]int, numPriorities)}
	for lvl := PriorityCritical; lvl <= PriorityLow; lvl++ {
		n := len(q.lists[lvl])
		stats.Queued[lvl] = n
		stats.TotalQueued += n
	}
	stats.Running = len(q.running)
	return stats
}

// run is the dispatcher loop: it fills free slots with the highest-priority
// queued operations, then sleeps until woken by an enqueue or a slot release.
func (q *Queue) run() {
	for {
		q.dispatch()

		select {
		case <-q.ctx.Done():
			return
		case <-q.wake:
		}
	}
}

// dispatch starts queued operations until either the slots or the lists are
// exhausted.
func (q *Queue) dispatch() {
	for {
		select {
		case q.sem <- struct{}{}:
		default:
			return // all slots busy
		}

		p := q.next()
		if p == nil {
			<-q.sem
			return
		}

		q.stopMu.Lock()
		if q.stopping.Load() {
			q.stopMu.Unlock()
			<-q.sem
			// Pushing the operation back would strand it if Stop's drain
			// already ran; resolve it with the same outcome the drain gives.
			q.finish(p.op.ID)
			p.ticket.resolve(Outcome{
				OperationID: p.op.ID,
				Name:        p.op.Name,
				Err:         ErrQueueClosed,
				Attempts:    p.op.RetryCount,
			})
			return
		}
		q.wg.Add(1)
		q.stopMu.Unlock()

		go q.execute(p)
	}
}

// next pops the head of the first non-empty priority list and marks it
// running.
func (q *Queue) next() *pending {
	q.mu.Lock()
	defer q.mu.Unlock()

	for lvl := PriorityCritical; lvl <= PriorityLow; lvl++ {
		if len(q.lists[lvl]) == 0 {
			continue
		}
		p := q.lists[lvl][0]
		q.lists[lvl] = q.lists[lvl][1:]
		q.running[p.op.ID] = struct{}{}
		return p
	}
	return nil
}

// execute runs one attempt of an operation in its own goroutine.
func (q *Queue) execute(p *pending) {
	defer q.wg.Done()
	defer func() {
		<-q.sem
		q.signalWake()
	}()

	op := p.op
	start := time.Now()

	q.logger.Debug("operation started",
		logger.OperationID(op.ID),
		logger.Operation(op.Name),
		logger.Priority(op.Priority.String()),
		logger.RetryCount(op.RetryCount))

	execCtx := q.ctx
	if op.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeoutCause(q.ctx, op.Timeout, ErrOperationTimeout)
		defer cancel()
	}

	type execResult struct {
		result any
		err    error
	}
	done := make(chan execResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- execResult{err: fmt.Errorf("panic in operation %q: %v", op.Name, r)}
			}
		}()
		result, err := op.Execute(execCtx)
		done <- execResult{result: result, err: err}
	}()

	var res execResult
	timedOut := false
	if op.Timeout > 0 {
		// Race the attempt against its timeout. A timed-out execute keeps
		// running detached with a cancelled context; the slot it held is
		// released here regardless.
		timer := time.NewTimer(op.Timeout)
		defer timer.Stop()
		select {
		case res = <-done:
		case <-timer.C:
			timedOut = true
			res.err = fmt.Errorf("%w after %s", ErrOperationTimeout, op.Timeout)
		}
	} else {
		res = <-done
	}

	// A cooperative execute that returns its context's deadline error is the
	// same timeout, whichever side of the race delivered it first.
	if !timedOut && op.Timeout > 0 && errors.Is(res.err, context.DeadlineExceeded) {
		timedOut = true
		res.err = fmt.Errorf("%w after %s", ErrOperationTimeout, op.Timeout)
	}

	duration := time.Since(start)

	if res.err != nil {
		q.handleFailure(p, res.err, timedOut, duration)
		return
	}

	q.finish(op.ID)
	p.ticket.resolve(Outcome{
		OperationID: op.ID,
		Name:        op.Name,
		Result:      res.result,
		Attempts:    op.RetryCount + 1,
	})

	q.logger.Info("operation completed",
		logger.OperationID(op.ID),
		logger.Operation(op.Name),
		logger.Priority(op.Priority.String()),
		logger.Duration(duration))
}

// handleFailure either schedules a retry after a backoff delay or abandons
// the operation once its budget is spent.
func (q *Queue) handleFailure(p *pending, execErr error, timedOut bool, duration time.Duration) {
	op := p.op

	if op.RetryCount < op.MaxRetries {
		attempt := op.RetryCount + 1
		delay := q.strategy.NextInterval(attempt)

		q.logger.Warn("operation failed, retry scheduled",
			logger.OperationID(op.ID),
			logger.Operation(op.Name),
			logger.RetryCount(attempt),
			logger.MaxRetries(op.MaxRetries),
			slog.Duration("backoff", delay),
			logger.Duration(duration),
			logger.Error(execErr))

		q.mu.Lock()
		delete(q.running, op.ID) // the ID stays reserved until the retry resolves
		q.mu.Unlock()

		retryOp := op
		retryOp.RetryCount = attempt
		retryOp.CreatedAt = time.Now()

		q.stopMu.Lock()
		if q.stopping.Load() {
			q.stopMu.Unlock()
			q.finish(op.ID)
			p.ticket.resolve(Outcome{
				OperationID: op.ID,
				Name:        op.Name,
				Err:         ErrQueueClosed,
				Attempts:    attempt,
			})
			return
		}
		q.wg.Add(1)
		q.stopMu.Unlock()

		go func() {
			defer q.wg.Done()

			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-q.ctx.Done():
				q.finish(op.ID)
				p.ticket.resolve(Outcome{
					OperationID: op.ID,
					Name:        op.Name,
					Err:         ErrQueueClosed,
					Attempts:    attempt,
				})
			case <-timer.C:
				// A retried operation goes to the front of its own
				// priority list, ahead of same-priority work that
				// arrived later.
				q.pushFront(&pending{op: retryOp, ticket: p.ticket})
				q.signalWake()
			}
		}()
		return
	}

	attempts := op.RetryCount + 1
	q.finish(op.ID)

	// A run of timeouts usually means the backing store is unreachable
	// rather than the operation itself being broken.
	if timedOut {
		q.logger.Error("operation abandoned after repeated timeouts",
			logger.OperationID(op.ID),
			logger.Operation(op.Name),
			logger.MaxRetries(op.MaxRetries),
			logger.Duration(duration),
			logger.Error(execErr))
	} else {
		q.logger.Error("operation failed permanently",
			logger.OperationID(op.ID),
			logger.Operation(op.Name),
			logger.MaxRetries(op.MaxRetries),
			logger.Duration(duration),
			logger.Error(execErr))
	}

	p.ticket.resolve(Outcome{
		OperationID: op.ID,
		Name:        op.Name,
		Err:         fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, execErr),
		Attempts:    attempts,
	})
}

// finish releases an operation's running slot and its ID reservation.
func (q *Queue) finish(id string) {
	q.mu.Lock()
	delete(q.running, id)
	delete(q.known, id)
	q.mu.Unlock()
}

// pushFront re-inserts an attempt at the head of its priority list.
func (q *Queue) pushFront(p *pending) {
	q.mu.Lock()
	defer q.mu.Unlock()

	lvl := p.op.Priority
	q.lists[lvl] = append([]*pending{p}, q.lists[lvl]...)
	delete(q.running, p.op.ID)
}

// discardQueued empties every priority list, resolving the discarded tickets
// with cause. Returns how many operations were dropped.
func (q *Queue) discardQueued(cause error) int {
	q.mu.Lock()
	var dropped []*pending
	for lvl := PriorityCritical; lvl <= PriorityLow; lvl++ {
		for _, p := range q.lists[lvl] {
			dropped = append(dropped, p)
			delete(q.known, p.op.ID)
		}
		q.lists[lvl] = nil
	}
	q.mu.Unlock()

	for _, p := range dropped {
		p.ticket.resolve(Outcome{
			OperationID: p.op.ID,
			Name:        p.op.Name,
			Err:         cause,
			Attempts:    p.op.RetryCount,
		})
	}
	return len(dropped)
}

// signalWake nudges the dispatcher without blocking; a single pending wakeup
// is enough since the dispatcher drains all free slots per pass.
func (q *Queue) signalWake() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
