package xevent

import (
	"context"
)

// SendFunc delivers one event within a coordinator's domain.
type SendFunc func(ctx context.Context, evt Event, c Coordinator) error

// Middleware composes processing concerns around the strategy walk.
type Middleware func(next SendFunc) SendFunc

// Subscription represents an active callback registration that can be closed.
type Subscription interface {
	Close() error
}

// Coordinator is one independent event domain. Strategies receive it so they
// can route follow-up events through the same dispatcher.
type Coordinator interface {
	Dispatcher() *EventDispatcher
}

// DispatchStrategy is the Strategy interface deciding how an event reaches
// its target. The first strategy whose CanDispatchEvent returns true gets the
// event; no other strategy sees it during that Send.
type DispatchStrategy interface {
	CanDispatchEvent(evt Event) bool
	DispatchEvent(ctx context.Context, evt Event, c Coordinator) error
}

// EventHandler is a raw target capability: the target handles every event
// itself instead of keeping a CallbackRegistry.
type EventHandler interface {
	HandleEvent(ctx context.Context, evt Event) error
}

// DefaultActionTarget is implemented by targets with behavior that runs after
// all callbacks, unless a callback called PreventDefault.
type DefaultActionTarget interface {
	ExecuteDefaultActionAtTarget(ctx context.Context, evt Event) error
	ExecuteDefaultAction(ctx context.Context, evt Event) error
}

// Debugger observes or consumes events around normal dispatch. When
// InterceptEvent returns true the event is consumed and not dispatched.
// PostProcessEvent is called after normal dispatch. Neither may retain evt.
type Debugger interface {
	InterceptEvent(ctx context.Context, evt Event) bool
	PostProcessEvent(ctx context.Context, evt Event)
}

// Observer receives dispatcher telemetry. Implementations should be non-blocking.
type Observer interface {
	OnSignal(s Signal)
}

// HealthChecker provides health status for production monitoring.
type HealthChecker interface {
	Health(ctx context.Context) HealthStatus
}

// API represents the complete dispatcher surface for extensibility.
type API interface {
	Send(ctx context.Context, evt Event, c Coordinator, mode DispatchMode) error
	Strategies() []DispatchStrategy
	Close(ctx context.Context) error
	GetMetrics() Metrics
	Health(ctx context.Context) HealthStatus
	AddObserver(obs Observer)
	RemoveObserver(obs Observer)
}

var _ API = (*EventDispatcher)(nil)
