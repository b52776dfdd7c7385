package persist

import (
	"log/slog"

	"github.com/rosterhq/teamkit/pkg/opqueue"
)

// Option is a functional option for configuring a Store.
type Option func(*options)

type options struct {
	prefix string
	queue  *opqueue.Queue
	logger *slog.Logger
}

// WithKeyPrefix namespaces the store's records in the backing key/value
// store (for example "roster:").
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithQueue attaches an operation queue, enabling the QueueSave and
// QueueLoad helpers.
func WithQueue(q *opqueue.Queue) Option {
	return func(o *options) {
		if q != nil {
			o.queue = q
		}
	}
}

// WithLogger sets the logger for the store and its save coordinator.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
