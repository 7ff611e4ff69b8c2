package fetchwire

import (
	"math"
	"math/rand"
	"time"
)

// -----------------------------------------------------------------------------
// Retry policy & backoff calculation
// -----------------------------------------------------------------------------

// BackoffStrategy identifies the algorithm used to compute delays between retries.
type BackoffStrategy string

const (
	BackoffConstant    BackoffStrategy = "constant"
	BackoffLinear      BackoffStrategy = "linear"
	BackoffExponential BackoffStrategy = "exponential"
	BackoffFibonacci   BackoffStrategy = "fibonacci"
)

// RetryPolicy decides whether a failed request is re-issued. Count is the
// remaining retry budget; it never goes below zero and a policy with Count 0
// never retries. A nil ShouldRetry falls back to the default rule: eligible
// when no status code is present or the status is >= 500.
//
// Delay is the base inter-attempt delay (zero means retry immediately).
// Backoff optionally grows the delay per attempt; MaxDelay caps the growth and
// Jitter randomizes the final value. An unset Backoff behaves as
// BackoffConstant.
//
// Policies are never mutated in place: each retry derives a fresh policy with
// the budget decremented.
type RetryPolicy struct {
	Count       int
	Delay       time.Duration
	MaxDelay    time.Duration
	Backoff     BackoffStrategy
	Factor      float64
	Jitter      bool
	ShouldRetry func(*RequestError) bool

	// attempt counts completed attempts; it drives the backoff growth and is
	// only ever set by next().
	attempt int
}

// eligible reports whether err qualifies for another attempt under p.
func (p *RetryPolicy) eligible(err *RequestError) bool {
	if p.ShouldRetry != nil {
		return p.ShouldRetry(err)
	}
	return err.StatusCode == 0 || err.StatusCode >= 500
}

// next derives the policy for the following attempt. The remaining count is
// clamped at zero.
func (p *RetryPolicy) next() *RetryPolicy {
	np := *p
	if np.Count > 0 {
		np.Count--
	}
	np.attempt++
	return &np
}

// nextDelay computes the wait before the upcoming attempt.
func (p *RetryPolicy) nextDelay() time.Duration {
	if p.Delay <= 0 {
		return 0
	}
	factor := p.Factor
	if factor <= 0 {
		factor = 2.0
	}
	var base float64
	switch p.Backoff {
	case BackoffLinear:
		base = float64(p.Delay) * float64(p.attempt+1)
	case BackoffExponential:
		base = float64(p.Delay) * math.Pow(factor, float64(p.attempt))
	case BackoffFibonacci:
		base = float64(p.Delay) * float64(fibonacciNumber(p.attempt+1))
	default: // BackoffConstant (also the zero value)
		base = float64(p.Delay)
	}
	if p.MaxDelay > 0 && base > float64(p.MaxDelay) {
		base = float64(p.MaxDelay)
	}
	if p.Jitter {
		base = rand.Float64() * base
	}
	return time.Duration(base)
}

func fibonacciNumber(n int) int {
	if n <= 1 {
		return 1
	}
	a, b := 1, 1
	for i := 2; i < n; i++ {
		a, b = b, a+b
	}
	return b
}
