package xevent

import (
	"sync/atomic"
	"time"
)

// PropagationPhase is the stage of delivery an event is currently in.
type PropagationPhase uint8

const (
	PhaseNone PropagationPhase = iota
	PhaseAtTarget
	PhaseDefaultActionAtTarget
	PhaseDefaultAction
)

func (p PropagationPhase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhaseAtTarget:
		return "at_target"
	case PhaseDefaultActionAtTarget:
		return "default_action_at_target"
	case PhaseDefaultAction:
		return "default_action"
	default:
		return "unknown"
	}
}

// Event is implemented by every concrete event through an embedded EventBase.
//
//	type Ping struct {
//	    xevent.EventBase
//	    Payload string
//	}
type Event interface {
	Base() *EventBase
}

// Resetter lets an event type clear its own payload when it returns to the
// pool instead of being zeroed wholesale, e.g. to keep slice capacity.
type Resetter interface {
	Reset()
}

// Sequence hands out event ids. All pools sharing a Sequence produce strictly
// increasing ids across their types.
type Sequence struct {
	n atomic.Uint64
}

// Next returns the next id.
func (s *Sequence) Next() uint64 { return s.n.Add(1) }

// DefaultSequence is used by pools not given their own Sequence.
var DefaultSequence = &Sequence{}

// eventReturner is the pool side of Release.
type eventReturner interface {
	put(evt Event)
}

// EventBase carries identity, timing, target and propagation state. Its
// fields are owned by the pool and the dispatcher; concrete types only read
// them through the accessors.
type EventBase struct {
	typeID    TypeID
	eventID   uint64
	timestamp int64
	target    any

	phase              PropagationPhase
	propagationStopped bool
	immediateStopped   bool
	defaultPrevented   bool
	dispatch           bool
	stopDispatch       bool

	refs     int32
	released bool
	owner    eventReturner
	self     Event
}

// Base returns the embedded EventBase; it is what makes a struct an Event.
func (e *EventBase) Base() *EventBase { return e }

func (e *EventBase) TypeID() TypeID { return e.typeID }

// TypeName returns the Go type name of the concrete event.
func (e *EventBase) TypeName() string { return TypeName(e.typeID) }

func (e *EventBase) EventID() uint64 { return e.eventID }

// Timestamp is the acquisition time in microseconds since the Unix epoch.
func (e *EventBase) Timestamp() int64 { return e.timestamp }

func (e *EventBase) Time() time.Time { return time.UnixMicro(e.timestamp) }

func (e *EventBase) Target() any { return e.target }

// SetTarget chooses the handler that receives the event. It panics on a
// released event: the instance may already belong to another producer.
func (e *EventBase) SetTarget(target any) {
	if e.released {
		panic(ErrEventReleased)
	}
	e.target = target
}

func (e *EventBase) Phase() PropagationPhase { return e.phase }

// StopPropagation prevents any strategy from delivering the event if called
// before Send; during delivery it has no effect on callbacks of the current
// target.
func (e *EventBase) StopPropagation() { e.propagationStopped = true }

func (e *EventBase) IsPropagationStopped() bool { return e.propagationStopped }

// StopImmediatePropagation also skips the callbacks that have not run yet.
func (e *EventBase) StopImmediatePropagation() {
	e.propagationStopped = true
	e.immediateStopped = true
}

func (e *EventBase) IsImmediatePropagationStopped() bool { return e.immediateStopped }

// PreventDefault skips the default-action hooks of the target.
func (e *EventBase) PreventDefault() { e.defaultPrevented = true }

func (e *EventBase) IsDefaultPrevented() bool { return e.defaultPrevented }

// IsDispatching reports whether a strategy is currently invoking handlers.
func (e *EventBase) IsDispatching() bool { return e.dispatch }

// IsDispatchStopped reports whether a strategy already finished with the event.
func (e *EventBase) IsDispatchStopped() bool { return e.stopDispatch }

// IsPooled reports whether Release returns the instance to a pool.
func (e *EventBase) IsPooled() bool { return e.owner != nil }

func (e *EventBase) IsReleased() bool { return e.released }

// RefCount is the number of holders that still have to call Release.
func (e *EventBase) RefCount() int32 { return e.refs }

// Retain registers one more holder. Each Retain must be matched by a Release.
func (e *EventBase) Retain() error {
	if e.released {
		return ErrEventReleased
	}
	e.refs++
	return nil
}

// Release drops one holder. The last Release returns a pooled event to its
// pool, after which every reference to it is dangling. Releasing an already
// released event returns ErrDoubleRelease and leaves the pool untouched.
// Handlers must not release the event they are handling: while a strategy is
// delivering it Release returns ErrEventDispatching.
//
// A zero-value event built without New or a pool holds no references; its
// first Release only marks it released.
func (e *EventBase) Release() error {
	if e.released {
		return ErrDoubleRelease
	}
	if e.dispatch {
		return ErrEventDispatching
	}
	if e.refs <= 0 {
		if e.owner != nil {
			return ErrDoubleRelease
		}
		e.released = true
		e.target = nil
		return nil
	}
	e.refs--
	if e.refs > 0 {
		return nil
	}
	e.released = true
	e.target = nil
	if e.owner != nil {
		e.owner.put(e.self)
	}
	return nil
}

// stamp prepares a freshly acquired instance. The base is cleared again here
// so nothing written after the instance went back to its pool survives.
func (e *EventBase) stamp(id TypeID, eventID uint64, now time.Time) {
	e.resetBase()
	e.typeID = id
	e.eventID = eventID
	e.timestamp = now.UnixMicro()
	e.refs = 1
	e.released = false
}

// resetBase clears all mutable state except the pool linkage.
func (e *EventBase) resetBase() {
	owner, self := e.owner, e.self
	*e = EventBase{}
	e.owner, e.self = owner, self
}

// beginDispatch and endDispatch bracket the synchronous delivery call.
func (e *EventBase) beginDispatch() { e.dispatch = true }

func (e *EventBase) endDispatch() {
	e.dispatch = false
	e.stopDispatch = true
}
