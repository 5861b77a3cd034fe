// Package robustness guards the Model Client against a local Ollama server
// that has stopped responding: a circuit breaker stops hammering a dead
// server with requests that will only time out, giving it a cooldown window
// before the Client probes it again.
package robustness

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Execute while the breaker is open: the
// wrapped call was never attempted.
var ErrCircuitOpen = errors.New("model server circuit breaker is open")

// breakerState is the circuit's three-way state machine: Closed lets every
// call through, Open rejects calls until resetTimeout elapses, HalfOpen lets
// exactly one probe call through to decide whether to close again.
type breakerState int

const (
	closed breakerState = iota
	halfOpen
	open
)

// CircuitBreaker trips after consecutiveFailures in a row and stays open for
// resetTimeout before allowing a single probe call through.
type CircuitBreaker struct {
	mu                  sync.RWMutex
	state               breakerState
	consecutiveFailures int
	failureThreshold    int
	resetTimeout        time.Duration
	openedAt            time.Time
}

// NewCircuitBreaker builds a breaker that opens after failureThreshold
// consecutive failures and stays open for resetTimeout.
func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{failureThreshold: failureThreshold, resetTimeout: resetTimeout, state: closed}
}

// Execute runs fn if the breaker currently admits calls, and records its
// outcome. ErrCircuitOpen short-circuits fn entirely.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if !cb.admit() {
		return ErrCircuitOpen
	}

	if err := fn(); err != nil {
		cb.recordFailure()
		return err
	}

	cb.recordSuccess()
	return nil
}

// admit reports whether the current state lets a call through: always when
// closed, never when open until resetTimeout has passed (at which point the
// caller gets its probe call), always when half-open.
func (cb *CircuitBreaker) admit() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	if cb.state != open {
		return true
	}
	return time.Since(cb.openedAt) > cb.resetTimeout
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures++
	cb.openedAt = time.Now()

	if cb.state == halfOpen || cb.consecutiveFailures >= cb.failureThreshold {
		cb.state = open
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == halfOpen || cb.state == closed {
		cb.state = closed
		cb.consecutiveFailures = 0
	}
}
