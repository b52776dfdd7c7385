package opqueue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Priority orders operations in the queue. Critical has strictly highest
// precedence; within one priority level operations run in FIFO order.
type Priority int8

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityMedium
	PriorityLow

	numPriorities = 4
)

// Valid checks if the priority is one of the defined levels.
func (p Priority) Valid() bool {
	return p >= PriorityCritical && p < numPriorities
}

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// Operation is a unit of queued work: an asynchronous call into the
// persistence backend tagged with a scheduling priority and a retry budget.
type Operation struct {
	// ID uniquely identifies the operation within the queue.
	ID string

	// Name is the human-readable display name used in logs.
	Name string

	// Priority determines scheduling order and preemption.
	Priority Priority

	// Execute performs the work. It receives a context that is cancelled
	// on timeout and on queue shutdown.
	Execute func(ctx context.Context) (any, error)

	// Timeout bounds a single execution attempt. Zero means no timeout.
	Timeout time.Duration

	// CreatedAt is when this attempt entered the queue.
	CreatedAt time.Time

	// RetryCount is the number of failed attempts so far.
	RetryCount int

	// MaxRetries is how many times a failed operation is re-enqueued
	// before it is abandoned.
	MaxRetries int
}

// OperationOption is a functional option for NewOperation.
type OperationOption func(*Operation)

// WithID sets an explicit operation identifier instead of a generated UUID.
func WithID(id string) OperationOption {
	return func(op *Operation) {
		if id != "" {
			op.ID = id
		}
	}
}

// WithTimeout bounds each execution attempt of the operation.
func WithTimeout(d time.Duration) OperationOption {
	return func(op *Operation) {
		if d > 0 {
			op.Timeout = d
		}
	}
}

// WithMaxRetries sets the retry budget (default 3).
func WithMaxRetries(n int) OperationOption {
	return func(op *Operation) {
		if n >= 0 {
			op.MaxRetries = n
		}
	}
}

// NewOperation builds an Operation with a generated ID, the default retry
// budget, and a fresh creation timestamp.
func NewOperation(name string, priority Priority, execute func(ctx context.Context) (any, error), opts ...OperationOption) Operation {
	op := Operation{
		ID:         uuid.NewString(),
		Name:       name,
		Priority:   priority,
		Execute:    execute,
		CreatedAt:  time.Now(),
		MaxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(&op)
	}
	return op
}

// Outcome is the terminal result of an operation: delivered once, after the
// operation either succeeded or exhausted its retries (or was preempted,
// cleared, or lost to queue shutdown).
type Outcome struct {
	OperationID string
	Name        string

	// Result is the value returned by Execute. Nil unless Err is nil.
	Result any

	// Err is nil on success. Terminal failures wrap ErrRetriesExhausted;
	// discarded operations carry ErrPreempted, ErrCleared, or
	// ErrQueueClosed.
	Err error

	// Attempts counts how many times Execute ran.
	Attempts int
}

// Ticket tracks one submitted operation across its retries. Callers that
// want the source's fire-and-forget behavior simply drop it; callers that
// need the outcome receive from Done.
type Ticket struct {
	id   string
	done chan Outcome
	once sync.Once
}

func newTicket(id string) *Ticket {
	return &Ticket{
		id:   id,
		done: make(chan Outcome, 1),
	}
}

// ID returns the operation identifier the ticket tracks.
func (t *Ticket) ID() string {
	return t.id
}

// Done returns a channel that delivers the terminal Outcome and is then
// closed.
func (t *Ticket) Done() <-chan Outcome {
	return t.done
}

// Wait blocks until the outcome is available or ctx is done.
func (t *Ticket) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case out := <-t.done:
		return out, nil
	}
}

func (t *Ticket) resolve(out Outcome) {
	t.once.Do(func() {
		t.done <- out
		close(t.done)
	})
}

// Stats is a point-in-time snapshot of queue state, for observability only.
type Stats struct {
	// Queued is the number of waiting operations per priority.
	Queued map[Priority]int

	// Running is the number of operations currently executing.
	Running int

	// TotalQueued is the sum of Queued across all priorities.
	TotalQueued int
}
