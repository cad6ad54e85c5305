package xevent

import (
	"time"
)

// DispatchMode selects what happens to the event when Send returns.
type DispatchMode uint8

const (
	// DispatchDefault leaves ownership with the caller.
	DispatchDefault DispatchMode = iota
	// DispatchRelease releases the event on every exit path of Send.
	DispatchRelease
)

// SignalType enumerates dispatcher lifecycle signals for the Observer pattern.
type SignalType string

const (
	SendStart   SignalType = "send_start"
	SendDone    SignalType = "send_done"
	Delivered   SignalType = "delivered"
	Intercepted SignalType = "intercepted"
	Unhandled   SignalType = "unhandled"
	Skipped     SignalType = "skipped"
	Error       SignalType = "error"
)

// Signal carries telemetry for observers. It holds values copied from the
// event, never the event itself, because observers run after the event may
// have been recycled.
type Signal struct {
	Type      SignalType
	EventID   uint64
	TypeID    TypeID
	EventName string
	Strategy  string
	Phase     PropagationPhase
	Duration  time.Duration
	Err       error

	// Internal: attached for async dispatch
	observers []Observer
}

// ObserverPoolStats returns telemetry about the observer pool.
type ObserverPoolStats struct {
	Dropped      uint64 // Signals dropped due to full buffer
	Processed    uint64 // Signals successfully processed
	ActiveEvents int    // Current queue depth
	Workers      int    // Number of dispatch goroutines
	BufferSize   int    // Channel capacity
}

// Metrics defines observable telemetry for the dispatcher.
type Metrics struct {
	Sent              uint64
	Delivered         uint64
	Intercepted       uint64
	Unhandled         uint64
	Skipped           uint64
	Errors            uint64
	SignalsDropped    uint64
	AvgDispatchTimeMs float64
}

// HealthStatus indicates dispatcher health for probes.
type HealthStatus struct {
	Status    string // "healthy", "degraded", "unhealthy"
	Metrics   Metrics
	Timestamp time.Time
	Message   string
}
