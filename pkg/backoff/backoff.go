package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Strategy calculates the delay before a retry attempt.
// Implementations must be safe for concurrent use.
type Strategy interface {
	// NextInterval returns the delay before the given attempt.
	// Attempt starts at 1 for the first retry.
	NextInterval(attempt int) time.Duration
}

// Exponential doubles (by default) the delay on every attempt and spreads
// retries with random jitter so that many failing operations do not hammer
// the store in lockstep.
type Exponential struct {
	Initial      time.Duration
	Max          time.Duration
	Multiplier   float64
	JitterFactor float64
}

// NextInterval returns min(Initial * Multiplier^(attempt-1), Max), scaled by
// a random factor in [1-JitterFactor, 1+JitterFactor].
func (e Exponential) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	initial := e.Initial
	if initial == 0 {
		initial = time.Second
	}

	max := e.Max
	if max == 0 {
		max = 30 * time.Second
	}

	multiplier := e.Multiplier
	if multiplier == 0 {
		multiplier = 2
	}

	interval := float64(initial) * math.Pow(multiplier, float64(attempt-1))
	if interval > float64(max) {
		interval = float64(max)
	}

	// Zero jitter is allowed for deterministic tests.
	if e.JitterFactor > 0 {
		interval *= 1 + (rand.Float64()*2-1)*e.JitterFactor
	}

	return time.Duration(interval)
}

// Fixed waits the same interval before every attempt.
type Fixed struct {
	Interval time.Duration
}

func (f Fixed) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return f.Interval
}

// Linear grows the delay proportionally to the attempt number, capped at Max.
type Linear struct {
	Interval time.Duration
	Max      time.Duration
}

func (l Linear) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	interval := l.Interval
	if interval == 0 {
		interval = time.Second
	}

	max := l.Max
	if max == 0 {
		max = 30 * time.Second
	}

	delay := interval * time.Duration(attempt)
	if delay > max {
		delay = max
	}

	return delay
}

// Func adapts a plain function to the Strategy interface for custom curves.
type Func func(attempt int) time.Duration

func (f Func) NextInterval(attempt int) time.Duration {
	return f(attempt)
}

// Default returns the retry curve used by the operation queue: start at 2s,
// double on every failure, cap at 15s, with up to 20% jitter.
func Default() Strategy {
	return Exponential{
		Initial:      2 * time.Second,
		Max:          15 * time.Second,
		Multiplier:   2,
		JitterFactor: 0.2,
	}
}
