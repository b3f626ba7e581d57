// Package circuitbreaker stops calling a failing dependency for a while so
// canvas sessions fail fast instead of queueing behind a dead store.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/onnwee/nodelayout/internal/metrics"
)

// ErrCircuitOpen is returned without calling through while the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds circuit breaker configuration
type Config struct {
	Name             string
	FailureThreshold int           // consecutive failures before opening
	SuccessThreshold int           // successes needed to close from half-open
	Timeout          time.Duration // time open before a trial call

	// Ignore reports errors that are answers rather than failures, such as
	// a missing snapshot. Ignored errors count as successes.
	Ignore func(error) bool

	now func() time.Time
}

// CircuitBreaker guards calls to one backend.
type CircuitBreaker struct {
	cfg Config

	mu       sync.Mutex
	state    State
	failures int
	trials   int
	openedAt time.Time
}

// New creates a closed breaker.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	cb := &CircuitBreaker{cfg: cfg}
	cb.setState(StateClosed)
	return cb
}

// Call runs fn unless the breaker is open.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}
	err := fn()
	if err != nil && (cb.cfg.Ignore == nil || !cb.cfg.Ignore(err)) {
		cb.recordFailure()
		return err
	}
	cb.recordSuccess()
	return err
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.cfg.now().Sub(cb.openedAt) < cb.cfg.Timeout {
			return false
		}
		cb.trials = 0
		cb.setState(StateHalfOpen)
	}
	return true
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.trials = 0
	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.trip()
		}
	case StateHalfOpen:
		cb.trip()
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.trials++
		if cb.trials >= cb.cfg.SuccessThreshold {
			cb.failures = 0
			cb.setState(StateClosed)
		}
	}
}

// trip opens the breaker. Callers hold mu.
func (cb *CircuitBreaker) trip() {
	cb.failures = 0
	cb.openedAt = cb.cfg.now()
	cb.setState(StateOpen)
	metrics.StoreBreakerTrips.WithLabelValues(cb.cfg.Name).Inc()
}

func (cb *CircuitBreaker) setState(s State) {
	cb.state = s
	metrics.StoreBreakerState.WithLabelValues(cb.cfg.Name).Set(float64(s))
}
