package opqueue

import "errors"

// Common errors
var (
	// ErrNilExecute is returned when an operation has no execute function
	ErrNilExecute = errors.New("operation execute function cannot be nil")

	// ErrInvalidPriority is returned when an operation carries an undefined priority
	ErrInvalidPriority = errors.New("invalid operation priority")

	// ErrDuplicateID is returned when an operation with the same ID is already queued or running
	ErrDuplicateID = errors.New("operation with this ID is already queued or running")

	// ErrQueueClosed is returned when adding to, or resolving operations of, a stopped queue
	ErrQueueClosed = errors.New("operation queue is closed")

	// ErrOperationTimeout marks an execution attempt that exceeded the operation's timeout
	ErrOperationTimeout = errors.New("operation timed out")

	// ErrRetriesExhausted marks an operation abandoned after its last retry failed
	ErrRetriesExhausted = errors.New("operation retries exhausted")

	// ErrPreempted marks a queued operation discarded by the arrival of critical work
	ErrPreempted = errors.New("operation preempted by critical work")

	// ErrCleared marks a queued operation discarded by Clear
	ErrCleared = errors.New("operation cleared from queue")
)
