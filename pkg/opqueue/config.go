package opqueue

import "time"

// Config holds the configuration for the operation queue
type Config struct {
	MaxConcurrent  int           `env:"OPQUEUE_MAX_CONCURRENT" envDefault:"2"`
	BackoffInitial time.Duration `env:"OPQUEUE_BACKOFF_INITIAL" envDefault:"2s"`
	BackoffMax     time.Duration `env:"OPQUEUE_BACKOFF_MAX" envDefault:"15s"`
	BackoffJitter  float64       `env:"OPQUEUE_BACKOFF_JITTER" envDefault:"0.2"`
}
