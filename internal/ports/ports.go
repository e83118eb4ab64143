// Package ports defines the service interfaces (ports) used by the forwarder to decouple implementations.
package ports

import (
	"context"
	"time"
)

// Uplink defines the interface for the remote telemetry endpoint.
// Implementations deliver opaque, already-encoded batch payloads.
type Uplink interface {
	// Connect establishes the uplink. Returns once the link is usable or
	// the context is done.
	Connect(ctx context.Context) error
	// Disconnect tears the uplink down, waiting at most timeout for
	// in-flight publishes.
	Disconnect(timeout time.Duration)
	IsConnected() bool
	// Publish delivers one encoded batch payload. May block up to the
	// context deadline.
	Publish(ctx context.Context, payload []byte) error
	// OnConnectionUp registers a callback fired every time the link
	// (re-)establishes. Must be called before Connect.
	OnConnectionUp(fn func())
}

// Logger defines the interface for logging
type Logger interface {
	Trace(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)
	WithFields(fields ...Field) Logger
}

// Field represents a logging field
type Field struct {
	Key   string
	Value interface{}
}

// CircuitBreaker defines the interface for circuit breaker pattern
type CircuitBreaker interface {
	Execute(fn func() error) error
	GetState() string
	GetStats() CircuitBreakerStats
}

// CircuitBreakerStats represents circuit breaker statistics
type CircuitBreakerStats struct {
	Requests            uint64
	TotalSuccess        uint64
	TotalFailure        uint64
	ConsecutiveFailures uint64
	State               string
}
