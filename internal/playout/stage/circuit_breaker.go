package stage

import (
	"context"
	"errors"
	"sync"
	"time"
)

// CircuitState is the failure-streak circuit breaker's state.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// String renders the state name for logging and diagnostics responses.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen indicates the breaker is open and rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig tunes the per-channel failure-streak breaker. This
// does not change the per-tick recovery contract (spec.md §4.4 step 2
// still detaches the failing producer every time); it only changes what
// the Stage logs and reports over the diagnostics API when a channel is
// chronically unhealthy.
type CircuitBreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	OnStateChange    func(from, to CircuitState)
}

// DefaultCircuitBreakerConfig returns conservative failure/success/cooldown defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
	}
}

// CircuitBreaker tracks consecutive render failures for one channel.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu              sync.RWMutex
	state           CircuitState
	failures        int
	successes       int
	lastFailureTime time.Time
	lastStateChange time.Time
}

// NewCircuitBreaker creates a CircuitBreaker in the Closed state.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{config: config, lastStateChange: time.Now()}
}

// State returns the breaker's current state, auto-transitioning a
// displayed Open to HalfOpen once the configured Timeout has elapsed
// (the stored state only mutates inside RecordSuccess/RecordFailure/Allow).
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	if cb.state == CircuitOpen && time.Since(cb.lastStateChange) > cb.config.Timeout {
		return CircuitHalfOpen
	}
	return cb.state
}

// Allow reports whether a render attempt should proceed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen && time.Since(cb.lastStateChange) > cb.config.Timeout {
		cb.transitionTo(CircuitHalfOpen)
	}
	return cb.state != CircuitOpen
}

// Execute runs fn if the breaker allows it, recording the outcome.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if !cb.Allow() {
		return ErrCircuitOpen
	}
	if err := fn(ctx); err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}

// RecordSuccess records a successful render, closing a HalfOpen breaker
// once SuccessThreshold consecutive successes are observed.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.transitionTo(CircuitClosed)
		}
	case CircuitClosed:
		cb.failures = 0
	case CircuitOpen:
		// stale success after timeout elapsed; let Allow() promote to HalfOpen
	}
}

// RecordFailure records a failed render, opening the breaker once
// FailureThreshold consecutive failures are observed.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailureTime = time.Now()

	switch cb.state {
	case CircuitClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.transitionTo(CircuitOpen)
		}
	case CircuitHalfOpen:
		cb.transitionTo(CircuitOpen)
	case CircuitOpen:
		// already open
	}
}

// transitionTo moves the breaker to newState, resetting counters and
// firing OnStateChange asynchronously. Caller must hold cb.mu.
func (cb *CircuitBreaker) transitionTo(newState CircuitState) {
	from := cb.state
	cb.state = newState
	cb.failures = 0
	cb.successes = 0
	cb.lastStateChange = time.Now()

	if cb.config.OnStateChange != nil && from != newState {
		go cb.config.OnStateChange(from, newState)
	}
}

// Reset forces the breaker back to Closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionTo(CircuitClosed)
}

// CircuitStats is a snapshot of a breaker's counters, used by the
// diagnostics API.
type CircuitStats struct {
	State           CircuitState
	Failures        int
	Successes       int
	LastFailureTime time.Time
	LastStateChange time.Time
}

// Stats returns a snapshot of the breaker's current counters.
func (cb *CircuitBreaker) Stats() CircuitStats {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return CircuitStats{
		State:           cb.state,
		Failures:        cb.failures,
		Successes:       cb.successes,
		LastFailureTime: cb.lastFailureTime,
		LastStateChange: cb.lastStateChange,
	}
}

// CircuitBreakerRegistry holds one CircuitBreaker per channel ID.
type CircuitBreakerRegistry struct {
	config CircuitBreakerConfig
	mu     sync.Mutex
	cbs    map[string]*CircuitBreaker
}

// NewCircuitBreakerRegistry creates a registry using config for any breaker
// created on demand via Get.
func NewCircuitBreakerRegistry(config CircuitBreakerConfig) *CircuitBreakerRegistry {
	return &CircuitBreakerRegistry{config: config, cbs: make(map[string]*CircuitBreaker)}
}

// Get returns the breaker for channelID, creating it if necessary.
func (r *CircuitBreakerRegistry) Get(channelID string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.cbs[channelID]; ok {
		return cb
	}
	cb := NewCircuitBreaker(r.config)
	r.cbs[channelID] = cb
	return cb
}

// AllStats returns a snapshot of every channel's breaker state.
func (r *CircuitBreakerRegistry) AllStats() map[string]CircuitStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]CircuitStats, len(r.cbs))
	for id, cb := range r.cbs {
		out[id] = cb.Stats()
	}
	return out
}

// OpenCircuits returns the channel IDs whose breaker is currently Open.
func (r *CircuitBreakerRegistry) OpenCircuits() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var open []string
	for id, cb := range r.cbs {
		if cb.State() == CircuitOpen {
			open = append(open, id)
		}
	}
	return open
}
