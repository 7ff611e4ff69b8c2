package fetchwire

import (
	"errors"
	"sync"
	"time"
)

// -----------------------------------------------------------------------------
// Circuit breaker
// -----------------------------------------------------------------------------

// CircuitBreaker rejects requests early once a configured number of
// consecutive failures has been observed, and lets a probe request through
// after the reset timeout has elapsed.
type CircuitBreaker struct {
	mu                  sync.Mutex
	state               string
	failureThreshold    int
	resetTimeout        time.Duration
	consecutiveFailures int
	lastFailureTime     time.Time
}

const (
	stateClosed   = "closed"
	stateOpen     = "open"
	stateHalfOpen = "half-open"
)

// errCircuitOpen is returned by Allow while the circuit is open.
var errCircuitOpen = errors.New("circuit breaker: circuit open")

// NewCircuitBreaker creates a breaker that opens after failureThreshold
// consecutive failures and stays open for resetTimeout before transitioning
// to half-open.
func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:            stateClosed,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
	}
}

// Allow returns nil if a request may proceed, otherwise an error indicating
// the circuit is open.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case stateOpen:
		if time.Since(cb.lastFailureTime) > cb.resetTimeout {
			cb.state = stateHalfOpen
			return nil
		}
		return errCircuitOpen
	}
	return nil
}

// RecordSuccess resets the failure counter and closes the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveFailures = 0
	cb.state = stateClosed
}

// RecordFailure increments the failure counter and opens the circuit once the
// threshold is reached. A failure while half-open re-opens immediately.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures++
	cb.lastFailureTime = time.Now()

	if cb.consecutiveFailures >= cb.failureThreshold {
		cb.state = stateOpen
	} else if cb.state == stateHalfOpen {
		cb.state = stateOpen
	}
}
