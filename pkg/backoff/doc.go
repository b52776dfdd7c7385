// Package backoff provides pluggable retry-delay strategies shared by the
// operation queue and the retry helper.
//
// A Strategy maps an attempt number (starting at 1) to the delay that should
// precede that attempt. Three concrete strategies are provided (Exponential,
// Linear, and Fixed) plus a Func adapter for custom curves. All strategies
// are value types, safe for concurrent use, and require no construction:
//
//	delay := backoff.Exponential{
//	    Initial:      2 * time.Second,
//	    Max:          15 * time.Second,
//	    JitterFactor: 0.2,
//	}.NextInterval(attempt)
//
// Default returns the exponential curve the operation queue uses when no
// strategy is configured.
package backoff
