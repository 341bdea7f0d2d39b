package metrics

import (
	"time"
)

// Collector defines the interface for collecting ledger metrics.
// Implementations can export metrics to various backends (Prometheus, in-memory, etc.).
type Collector interface {
	// Account operations (deposit, withdraw, balance, history, restore)
	RecordOperation(op string, outcome string, duration time.Duration)
	RecordDurabilityGap(backend string)

	// Authentication
	RecordAuthAttempt(success bool)
	RecordAuthOutcome(outcome string)

	// Transaction log backends
	RecordLogAppend(backend string, success bool, duration time.Duration)
	RecordLogRead(backend string, success bool, duration time.Duration)
	RecordCircuitState(backend string, state CircuitState)

	// Asynchronous mirror
	RecordMirrorQueueDepth(backend string, depth int)
	RecordMirrorDropped(backend string)
	RecordMirrorWrite(backend string, success bool, duration time.Duration)
}

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed means the circuit breaker is allowing requests through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the circuit breaker is blocking requests.
	CircuitOpen
	// CircuitHalfOpen means the circuit breaker is testing if the backend has recovered.
	CircuitHalfOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// NoOpCollector is a no-op implementation of Collector.
// It's used as the default collector when metrics are not needed.
type NoOpCollector struct{}

// RecordOperation does nothing.
func (NoOpCollector) RecordOperation(op string, outcome string, duration time.Duration) {}

// RecordDurabilityGap does nothing.
func (NoOpCollector) RecordDurabilityGap(backend string) {}

// RecordAuthAttempt does nothing.
func (NoOpCollector) RecordAuthAttempt(success bool) {}

// RecordAuthOutcome does nothing.
func (NoOpCollector) RecordAuthOutcome(outcome string) {}

// RecordLogAppend does nothing.
func (NoOpCollector) RecordLogAppend(backend string, success bool, duration time.Duration) {}

// RecordLogRead does nothing.
func (NoOpCollector) RecordLogRead(backend string, success bool, duration time.Duration) {}

// RecordCircuitState does nothing.
func (NoOpCollector) RecordCircuitState(backend string, state CircuitState) {}

// RecordMirrorQueueDepth does nothing.
func (NoOpCollector) RecordMirrorQueueDepth(backend string, depth int) {}

// RecordMirrorDropped does nothing.
func (NoOpCollector) RecordMirrorDropped(backend string) {}

// RecordMirrorWrite does nothing.
func (NoOpCollector) RecordMirrorWrite(backend string, success bool, duration time.Duration) {}

// Fanout forwards every record to each of its collectors.
type Fanout []Collector

// NewFanout drops nil collectors and returns the rest as one Collector.
func NewFanout(collectors ...Collector) Fanout {
	out := make(Fanout, 0, len(collectors))
	for _, c := range collectors {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

// RecordOperation forwards to every collector.
func (f Fanout) RecordOperation(op string, outcome string, duration time.Duration) {
	for _, c := range f {
		c.RecordOperation(op, outcome, duration)
	}
}

// RecordDurabilityGap forwards to every collector.
func (f Fanout) RecordDurabilityGap(backend string) {
	for _, c := range f {
		c.RecordDurabilityGap(backend)
	}
}

// RecordAuthAttempt forwards to every collector.
func (f Fanout) RecordAuthAttempt(success bool) {
	for _, c := range f {
		c.RecordAuthAttempt(success)
	}
}

// RecordAuthOutcome forwards to every collector.
func (f Fanout) RecordAuthOutcome(outcome string) {
	for _, c := range f {
		c.RecordAuthOutcome(outcome)
	}
}

// RecordLogAppend forwards to every collector.
func (f Fanout) RecordLogAppend(backend string, success bool, duration time.Duration) {
	for _, c := range f {
		c.RecordLogAppend(backend, success, duration)
	}
}

// RecordLogRead forwards to every collector.
func (f Fanout) RecordLogRead(backend string, success bool, duration time.Duration) {
	for _, c := range f {
		c.RecordLogRead(backend, success, duration)
	}
}

// RecordCircuitState forwards to every collector.
func (f Fanout) RecordCircuitState(backend string, state CircuitState) {
	for _, c := range f {
		c.RecordCircuitState(backend, state)
	}
}

// RecordMirrorQueueDepth forwards to every collector.
func (f Fanout) RecordMirrorQueueDepth(backend string, depth int) {
	for _, c := range f {
		c.RecordMirrorQueueDepth(backend, depth)
	}
}

// RecordMirrorDropped forwards to every collector.
func (f Fanout) RecordMirrorDropped(backend string) {
	for _, c := range f {
		c.RecordMirrorDropped(backend)
	}
}

// RecordMirrorWrite forwards to every collector.
func (f Fanout) RecordMirrorWrite(backend string, success bool, duration time.Duration) {
	for _, c := range f {
		c.RecordMirrorWrite(backend, success, duration)
	}
}
