package xevent

import (
	"context"
	"fmt"
	"reflect"
)

// Namer is implemented by strategies that report a name in telemetry.
type Namer interface {
	Name() string
}

// CallbackStrategy delivers events to targets implementing CallbackTarget,
// then runs DefaultActionTarget hooks when the target has them.
type CallbackStrategy struct{}

var _ DispatchStrategy = CallbackStrategy{}

func (CallbackStrategy) Name() string { return "callback" }

func (CallbackStrategy) CanDispatchEvent(evt Event) bool {
	t, ok := evt.Base().target.(CallbackTarget)
	return ok && !isNilTarget(t)
}

func (CallbackStrategy) DispatchEvent(ctx context.Context, evt Event, c Coordinator) error {
	return dispatchAtTarget(ctx, evt, c, deliverCallbacks)
}

// HandlerStrategy delivers events to targets implementing EventHandler.
type HandlerStrategy struct{}

var _ DispatchStrategy = HandlerStrategy{}

func (HandlerStrategy) Name() string { return "handler" }

func (HandlerStrategy) CanDispatchEvent(evt Event) bool {
	h, ok := evt.Base().target.(EventHandler)
	return ok && !isNilTarget(h)
}

func (HandlerStrategy) DispatchEvent(ctx context.Context, evt Event, c Coordinator) error {
	return dispatchAtTarget(ctx, evt, c, deliverToHandler)
}

// dispatchAtTarget is the DispatchEvent contract shared by the built-in
// strategies. A stopped event or a nil coordinator skips delivery. Otherwise
// the Dispatch flag brackets deliver, and StopDispatch is set on every exit
// path including panics.
func dispatchAtTarget(ctx context.Context, evt Event, c Coordinator, deliver func(context.Context, Event) error) error {
	b := evt.Base()
	if b.propagationStopped || isNilCoordinator(c) {
		b.stopDispatch = true
		return nil
	}
	if b.dispatch {
		// Flags belong to the outer delivery still on the stack; leave them.
		rde := &RecursiveDispatchError{EventID: b.eventID, TypeName: TypeName(b.typeID)}
		if panicOnRecursiveDispatch {
			panic(rde)
		}
		return rde
	}

	b.beginDispatch()
	defer b.endDispatch()
	return deliver(ctx, evt)
}

func deliverCallbacks(ctx context.Context, evt Event) error {
	target, ok := evt.Base().target.(CallbackTarget)
	if !ok {
		return nil
	}
	if err := target.HandleEventAtTargetPhase(ctx, evt); err != nil {
		return err
	}
	return runDefaultActions(ctx, evt)
}

func deliverToHandler(ctx context.Context, evt Event) error {
	h, ok := evt.Base().target.(EventHandler)
	if !ok {
		return nil
	}
	evt.Base().phase = PhaseAtTarget
	if err := h.HandleEvent(ctx, evt); err != nil {
		b := evt.Base()
		return &CallbackError{EventID: b.eventID, TypeName: TypeName(b.typeID), Err: err}
	}
	return runDefaultActions(ctx, evt)
}

func runDefaultActions(ctx context.Context, evt Event) error {
	b := evt.Base()
	da, ok := b.target.(DefaultActionTarget)
	if !ok || b.defaultPrevented {
		return nil
	}
	b.phase = PhaseDefaultActionAtTarget
	if err := da.ExecuteDefaultActionAtTarget(ctx, evt); err != nil {
		return err
	}
	if b.defaultPrevented {
		return nil
	}
	b.phase = PhaseDefaultAction
	return da.ExecuteDefaultAction(ctx, evt)
}

// isNilTarget reports a typed nil behind a non-nil interface, such as a
// destroyed (*T)(nil) target.
func isNilTarget(t any) bool {
	v := reflect.ValueOf(t)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Interface, reflect.Slice, reflect.Chan:
		return v.IsNil()
	}
	return !v.IsValid()
}

func isNilCoordinator(c Coordinator) bool {
	return c == nil || c.Dispatcher() == nil
}

// strategyName returns the telemetry name of s.
func strategyName(s DispatchStrategy) string {
	if n, ok := s.(Namer); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", s)
}
