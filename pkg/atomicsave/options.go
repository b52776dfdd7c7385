package atomicsave

import "log/slog"

// Option is a functional option for configuring a Coordinator.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger for the coordinator.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// CallOption is a functional option for a single ExecuteAtomicSave call.
type CallOption func(*callOptions)

type callOptions struct {
	lockKeys []string
}

// WithLockKey serializes this save against every other save on the same
// coordinator that declares the same logical record key. Two concurrent
// saves of the same roster would otherwise race between the snapshot read
// and the write (lost update). May be repeated for saves spanning several
// records; the keys are acquired in sorted order to avoid deadlock.
func WithLockKey(keys ...string) CallOption {
	return func(o *callOptions) {
		for _, key := range keys {
			if key != "" {
				o.lockKeys = append(o.lockKeys, key)
			}
		}
	}
}
