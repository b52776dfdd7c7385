package opqueue

import (
	"log/slog"

	"github.com/rosterhq/teamkit/pkg/backoff"
)

const (
	defaultMaxConcurrent = 2
	defaultMaxRetries    = 3
)

// Option is a functional option for configuring a Queue.
type Option func(*queueOptions)

type queueOptions struct {
	maxConcurrent int
	strategy      backoff.Strategy
	logger        *slog.Logger
}

// WithMaxConcurrent caps how many operations may be in flight at once.
func WithMaxConcurrent(n int) Option {
	return func(o *queueOptions) {
		if n > 0 {
			o.maxConcurrent = n
		}
	}
}

// WithBackoff sets the retry delay strategy.
func WithBackoff(s backoff.Strategy) Option {
	return func(o *queueOptions) {
		if s != nil {
			o.strategy = s
		}
	}
}

// WithLogger sets the logger for the queue.
func WithLogger(logger *slog.Logger) Option {
	return func(o *queueOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithConfig applies an environment-derived Config.
func WithConfig(cfg Config) Option {
	return func(o *queueOptions) {
		if cfg.MaxConcurrent > 0 {
			o.maxConcurrent = cfg.MaxConcurrent
		}
		if cfg.BackoffInitial > 0 && cfg.BackoffMax > 0 {
			o.strategy = backoff.Exponential{
				Initial:      cfg.BackoffInitial,
				Max:          cfg.BackoffMax,
				Multiplier:   2,
				JitterFactor: cfg.BackoffJitter,
			}
		}
	}
}
