package xevent

import (
	"errors"
	"fmt"
)

var (
	ErrNilEvent                = errors.New("xevent: nil event")
	ErrNilCallback             = errors.New("xevent: nil callback")
	ErrNilTarget               = errors.New("xevent: nil callback owner")
	ErrEventReleased           = errors.New("xevent: event already released to its pool")
	ErrDoubleRelease           = errors.New("xevent: event released twice")
	ErrEventDispatching        = errors.New("xevent: event released while being dispatched")
	ErrDuplicateListener       = errors.New("xevent: listener already registered for this event type")
	ErrUncomparableListener    = errors.New("xevent: listener type is not comparable")
	ErrRecursiveDispatch       = errors.New("xevent: recursive dispatch of an event that is already dispatching")
	ErrDispatcherClosed        = errors.New("xevent: dispatcher is closed")
	ErrObserverPoolShutdown    = errors.New("xevent: observer pool shutdown timeout")
	ErrRecorderShutdownTimeout = errors.New("xevent: recorder shutdown timeout")
)

type ErrUnknownStrategy struct{ name string }

func (e ErrUnknownStrategy) Error() string { return fmt.Sprintf("unknown dispatch strategy: %s", e.name) }

// RecursiveDispatchError is the panic value raised when an event is sent again
// from inside its own delivery.
type RecursiveDispatchError struct {
	EventID  uint64
	TypeName string
}

func (e *RecursiveDispatchError) Error() string {
	return fmt.Sprintf("xevent: recursive dispatch of %s (event %d)", e.TypeName, e.EventID)
}

func (e *RecursiveDispatchError) Unwrap() error { return ErrRecursiveDispatch }

// CallbackError wraps the first error returned by a subscriber. Callbacks
// registered after the failing one were not invoked.
type CallbackError struct {
	EventID  uint64
	TypeName string
	Err      error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("xevent: callback for %s (event %d) failed: %v", e.TypeName, e.EventID, e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }
