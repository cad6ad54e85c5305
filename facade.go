package xevent

import (
	"context"
	"fmt"
	"sync"
)

var (
	defaultCoordinator   *EventCoordinator
	defaultCoordinatorMu sync.Mutex
)

// Default returns the process-wide coordinator, building a dispatcher with
// the default strategies on first use.
func Default() *EventCoordinator {
	defaultCoordinatorMu.Lock()
	defer defaultCoordinatorMu.Unlock()

	if defaultCoordinator != nil {
		return defaultCoordinator
	}
	d, err := NewDispatcherBuilder().Build()
	if err != nil {
		panic(fmt.Sprintf("xevent: failed to initialize default dispatcher: %v", err))
	}
	defaultCoordinator = NewCoordinator(d)
	return defaultCoordinator
}

// SetDefault replaces the process-wide coordinator.
func SetDefault(c *EventCoordinator) {
	if c == nil {
		panic("xevent: SetDefault called with nil coordinator")
	}
	defaultCoordinatorMu.Lock()
	defaultCoordinator = c
	defaultCoordinatorMu.Unlock()
}

// Send dispatches evt through the default coordinator.
func Send(ctx context.Context, evt Event) error {
	return Default().Send(ctx, evt)
}

// SendAndRelease dispatches evt through the default coordinator and releases it.
func SendAndRelease(ctx context.Context, evt Event) error {
	return Default().SendAndRelease(ctx, evt)
}
