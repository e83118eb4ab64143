// Package circuitbreaker implements a sliding-window circuit breaker with atomic state.
package circuitbreaker

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ibs-source/telemetry/forwarder/golang/internal/ports"
)

// State represents the state of the circuit breaker
type State int32

const (
	// StateClosed means the circuit breaker is allowing requests
	StateClosed State = iota
	// StateOpen means the circuit breaker is blocking requests
	StateOpen
	// StateHalfOpen means the circuit breaker is testing if the service has recovered
	StateHalfOpen
)

// String returns the string representation of the state
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

// ErrOpenState is returned when the circuit breaker is open
var ErrOpenState = errors.New("circuit breaker is open")

// Settings configures a circuit breaker.
type Settings struct {
	Name string
	// ErrorThreshold is the failure percentage (0..100) that opens the
	// circuit once VolumeThreshold requests have been seen.
	ErrorThreshold float64
	// SuccessThreshold is the number of consecutive half-open successes
	// required to close the circuit again.
	SuccessThreshold uint64
	// Timeout is how long the circuit stays open before probing.
	Timeout time.Duration
	// VolumeThreshold is the minimum window request count before the
	// error rate is considered meaningful.
	VolumeThreshold uint64
}

// CircuitBreaker guards an unreliable call with open/half-open/closed
// state driven by a sliding error-rate window.
type CircuitBreaker struct {
	settings Settings

	state         atomic.Int32
	lastStateTime atomic.Int64
	generation    atomic.Uint64

	counts *window
}

// New creates a new circuit breaker
func New(settings Settings) *CircuitBreaker {
	cb := &CircuitBreaker{
		settings: settings,
		counts:   newWindow(10, time.Minute),
	}
	cb.state.Store(int32(StateClosed))
	cb.lastStateTime.Store(time.Now().UnixNano())
	return cb
}

// Execute runs fn if the circuit allows it. A panic inside fn is recorded
// as a failure and re-surfaced as an error.
func (cb *CircuitBreaker) Execute(fn func() error) (err error) {
	if fn == nil {
		return errors.New("function cannot be nil")
	}

	generation, err := cb.beforeRequest()
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			cb.afterRequest(generation, err)
		}
	}()

	err = fn()
	cb.afterRequest(generation, err)
	return err
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() string {
	return State(cb.state.Load()).String()
}

// GetStats returns the current statistics
func (cb *CircuitBreaker) GetStats() ports.CircuitBreakerStats {
	counts := cb.counts.sum()
	return ports.CircuitBreakerStats{
		Requests:            counts.requests,
		TotalSuccess:        counts.successes,
		TotalFailure:        counts.failures,
		ConsecutiveFailures: counts.consecutiveFailures,
		State:               cb.GetState(),
	}
}

// beforeRequest admits or refuses the call and snapshots the generation.
func (cb *CircuitBreaker) beforeRequest() (uint64, error) {
	generation := cb.generation.Load()

	if State(cb.state.Load()) == StateOpen {
		elapsed := time.Now().UnixNano() - cb.lastStateTime.Load()
		if elapsed > cb.settings.Timeout.Nanoseconds() {
			if cb.state.CompareAndSwap(int32(StateOpen), int32(StateHalfOpen)) {
				cb.lastStateTime.Store(time.Now().UnixNano())
				cb.generation.Add(1)
				cb.counts.reset()
				generation = cb.generation.Load()
			}
		}
		if State(cb.state.Load()) == StateOpen {
			return 0, ErrOpenState
		}
	}

	return generation, nil
}

// afterRequest records the outcome unless the state generation moved on.
func (cb *CircuitBreaker) afterRequest(generation uint64, err error) {
	if generation != cb.generation.Load() {
		return
	}
	if err == nil {
		cb.onSuccess()
	} else {
		cb.onFailure()
	}
}

func (cb *CircuitBreaker) onSuccess() {
	cb.counts.success()

	if State(cb.state.Load()) == StateHalfOpen {
		counts := cb.counts.sum()
		if counts.consecutiveSuccesses >= cb.settings.SuccessThreshold {
			if cb.state.CompareAndSwap(int32(StateHalfOpen), int32(StateClosed)) {
				cb.lastStateTime.Store(time.Now().UnixNano())
				cb.generation.Add(1)
				cb.counts.reset()
			}
		}
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.counts.failure()

	switch State(cb.state.Load()) {
	case StateClosed:
		if cb.shouldOpen() {
			cb.open(StateClosed)
		}
	case StateHalfOpen:
		cb.open(StateHalfOpen)
	}
}

// shouldOpen checks the windowed error rate against the threshold.
func (cb *CircuitBreaker) shouldOpen() bool {
	counts := cb.counts.sum()
	if counts.requests < cb.settings.VolumeThreshold {
		return false
	}
	errorRate := float64(counts.failures) / float64(counts.requests) * 100
	return errorRate >= cb.settings.ErrorThreshold
}

func (cb *CircuitBreaker) open(from State) {
	if cb.state.CompareAndSwap(int32(from), int32(StateOpen)) {
		cb.lastStateTime.Store(time.Now().UnixNano())
		cb.generation.Add(1)
	}
}
