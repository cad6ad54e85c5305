package xevent

import (
	"context"
)

// EventCoordinator is the standard Coordinator: one dispatcher plus a base
// context that already carries the domain's coordinator, logger and clock.
type EventCoordinator struct {
	dispatcher *EventDispatcher
	ctx        context.Context
}

var _ Coordinator = (*EventCoordinator)(nil)

// NewCoordinator returns a coordinator for d.
func NewCoordinator(d *EventDispatcher) *EventCoordinator {
	c := &EventCoordinator{dispatcher: d}
	if d != nil {
		c.ctx = InjectAll(context.Background(), c, d.logger, d.clock)
	} else {
		c.ctx = context.Background()
	}
	return c
}

// Dispatcher returns the coordinator's dispatcher. It is safe on a nil
// coordinator.
func (c *EventCoordinator) Dispatcher() *EventDispatcher {
	if c == nil {
		return nil
	}
	return c.dispatcher
}

// Context returns a background context carrying this domain. Passing it to
// Send avoids per-send context allocations.
func (c *EventCoordinator) Context() context.Context {
	if c == nil || c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// Send dispatches evt in this domain. The caller keeps ownership.
func (c *EventCoordinator) Send(ctx context.Context, evt Event) error {
	d := c.Dispatcher()
	if d == nil {
		return ErrNilTarget
	}
	if ctx == nil {
		ctx = c.ctx
	}
	return d.Send(ctx, evt, c, DispatchDefault)
}

// SendAndRelease dispatches evt and releases it whatever the outcome.
func (c *EventCoordinator) SendAndRelease(ctx context.Context, evt Event) error {
	d := c.Dispatcher()
	if d == nil {
		if evt != nil {
			_ = evt.Base().Release()
		}
		return ErrNilTarget
	}
	if ctx == nil {
		ctx = c.ctx
	}
	return d.Send(ctx, evt, c, DispatchRelease)
}
