package errors

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker refuses a request.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the observable circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var stateNames = [...]string{"closed", "open", "half-open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// CircuitBreaker fails fast once a dependency has failed repeatedly.
// GrantScout wraps the embedding service in one: with the circuit open,
// searches degrade to lexical-only immediately instead of stalling every
// request on a dead endpoint.
//
// Internally the breaker only ever records closed or open; half-open is
// a view of an open circuit whose reset timeout has elapsed. A success
// in that window closes the circuit, a failure re-arms the timeout.
type CircuitBreaker struct {
	name      string
	threshold int
	cooldown  time.Duration

	mu       sync.RWMutex
	open     bool
	failures int
	openedAt time.Time
}

const (
	defaultTripThreshold = 5
	defaultCooldown      = 30 * time.Second
)

// CircuitBreakerOption configures a CircuitBreaker.
type CircuitBreakerOption func(*CircuitBreaker)

// WithMaxFailures sets how many consecutive failures trip the circuit.
func WithMaxFailures(n int) CircuitBreakerOption {
	return func(cb *CircuitBreaker) { cb.threshold = n }
}

// WithResetTimeout sets how long the circuit stays open before probing.
func WithResetTimeout(d time.Duration) CircuitBreakerOption {
	return func(cb *CircuitBreaker) { cb.cooldown = d }
}

// NewCircuitBreaker builds a breaker tripping after 5 failures with a
// 30 second reset timeout unless options say otherwise.
func NewCircuitBreaker(name string, opts ...CircuitBreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{name: name, threshold: defaultTripThreshold, cooldown: defaultCooldown}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Name returns the breaker's name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// State reports the current state, surfacing half-open once an open
// circuit's reset timeout has elapsed.
func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.view()
}

// view computes the observable state. Callers hold at least a read lock.
func (cb *CircuitBreaker) view() State {
	switch {
	case !cb.open:
		return StateClosed
	case time.Since(cb.openedAt) > cb.cooldown:
		return StateHalfOpen
	default:
		return StateOpen
	}
}

// Failures returns the consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.failures
}

// Allow reports whether a request may proceed. Closed and half-open
// circuits admit requests; open circuits refuse them.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.view() != StateOpen
}

// RecordSuccess closes the circuit and clears the failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.open = false
}

// RecordFailure counts a failure, tripping the circuit at the threshold.
// A failure on an already-open circuit (a half-open probe that did not
// come back) re-arms the reset timeout.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures++
	if cb.failures >= cb.threshold {
		cb.open = true
		cb.openedAt = time.Now()
	}
}

// Execute runs fn through the breaker, returning ErrCircuitOpen without
// calling it when the circuit is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.Allow() {
		return ErrCircuitOpen
	}
	if err := fn(); err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}
