package xevent

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
)

// CallbackTarget is the capability the callback strategy looks for on an
// event's target.
type CallbackTarget interface {
	HandleEventAtTargetPhase(ctx context.Context, evt Event) error
}

// CallbackOwner exposes a target's registry. Embedding CallbackRegistry
// satisfies both CallbackOwner and CallbackTarget.
type CallbackOwner interface {
	Callbacks() *CallbackRegistry
}

// Listener is an identity-bearing subscriber. Unlike plain functions,
// listeners are comparable, so registering the same one twice is rejected.
type Listener[PT any] interface {
	HandleEvent(ctx context.Context, evt PT) error
}

// CallbackRegistry maps event types to ordered callback lists for one target.
// The zero value is ready to use.
//
// Lists are copy-on-write: callbacks may register or unregister while an
// event is being delivered, and the change applies from the next delivery.
type CallbackRegistry struct {
	mu     sync.RWMutex
	lists  map[TypeID][]*callbackEntry
	nextID uint64
}

type callbackEntry struct {
	id     uint64
	key    any // listener identity; nil for plain functions
	invoke func(ctx context.Context, evt Event) error
	once   bool
	fired  atomic.Bool
}

var _ CallbackTarget = (*CallbackRegistry)(nil)
var _ CallbackOwner = (*CallbackRegistry)(nil)

// Callbacks returns r.
func (r *CallbackRegistry) Callbacks() *CallbackRegistry { return r }

// RegisterCallback appends cb to the list for T. Every call is a distinct
// registration; close the returned Subscription to remove it.
func RegisterCallback[T any, PT EventPtr[T]](owner CallbackOwner, cb func(ctx context.Context, evt PT) error) (Subscription, error) {
	if cb == nil {
		return nil, ErrNilCallback
	}
	r, err := registryOf(owner)
	if err != nil {
		return nil, err
	}
	return r.add(TypeIDOf[T](), nil, typedInvoker(cb), false), nil
}

// RegisterOnce registers cb so that it runs for the first matching event only.
// It is removed after it returns, and never runs twice even when the same
// type is dispatched again from inside cb.
func RegisterOnce[T any, PT EventPtr[T]](owner CallbackOwner, cb func(ctx context.Context, evt PT) error) (Subscription, error) {
	if cb == nil {
		return nil, ErrNilCallback
	}
	r, err := registryOf(owner)
	if err != nil {
		return nil, err
	}
	return r.add(TypeIDOf[T](), nil, typedInvoker(cb), true), nil
}

// RegisterListener appends l to the list for T unless it is already there.
func RegisterListener[T any, PT EventPtr[T]](owner CallbackOwner, l Listener[PT]) (Subscription, error) {
	if l == nil {
		return nil, ErrNilCallback
	}
	if !reflect.TypeOf(l).Comparable() {
		return nil, ErrUncomparableListener
	}
	r, err := registryOf(owner)
	if err != nil {
		return nil, err
	}

	id := TypeIDOf[T]()
	r.mu.RLock()
	for _, e := range r.lists[id] {
		if e.key == any(l) {
			r.mu.RUnlock()
			return nil, ErrDuplicateListener
		}
	}
	r.mu.RUnlock()

	return r.add(id, l, typedInvoker(l.HandleEvent), false), nil
}

// UnregisterListener removes l from the list for T. It reports whether l
// was registered.
func UnregisterListener[T any, PT EventPtr[T]](owner CallbackOwner, l Listener[PT]) bool {
	if l == nil || owner == nil || !reflect.TypeOf(l).Comparable() {
		return false
	}
	r := owner.Callbacks()
	if r == nil {
		return false
	}
	id := TypeIDOf[T]()

	r.mu.RLock()
	var entryID uint64
	for _, e := range r.lists[id] {
		if e.key == any(l) {
			entryID = e.id
			break
		}
	}
	r.mu.RUnlock()

	if entryID == 0 {
		return false
	}
	return r.remove(id, entryID)
}

// HasCallbacks reports whether anything is registered for T.
func HasCallbacks[T any](owner CallbackOwner) bool {
	if owner == nil || owner.Callbacks() == nil {
		return false
	}
	return owner.Callbacks().Len(TypeIDOf[T]()) > 0
}

// Len returns the number of callbacks registered for the type id.
func (r *CallbackRegistry) Len(id TypeID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.lists[id])
}

// Clear drops every registration.
func (r *CallbackRegistry) Clear() {
	r.mu.Lock()
	r.lists = nil
	r.mu.Unlock()
}

// HandleEventAtTargetPhase delivers evt to the callbacks registered for its
// type, in registration order. The first failing callback stops delivery and
// its error is returned as a *CallbackError.
func (r *CallbackRegistry) HandleEventAtTargetPhase(ctx context.Context, evt Event) error {
	if r == nil || evt == nil {
		return nil
	}
	b := evt.Base()
	if b.typeID == 0 {
		b.typeID = typeIDOfEvent(evt)
	}
	b.phase = PhaseAtTarget

	r.mu.RLock()
	list := r.lists[b.typeID]
	r.mu.RUnlock()

	for _, e := range list {
		if b.immediateStopped {
			return nil
		}
		if e.once && !e.fired.CompareAndSwap(false, true) {
			continue
		}
		if err := r.invoke(ctx, b.typeID, e, evt); err != nil {
			return &CallbackError{EventID: b.eventID, TypeName: TypeName(b.typeID), Err: err}
		}
	}
	return nil
}

func (r *CallbackRegistry) invoke(ctx context.Context, id TypeID, e *callbackEntry, evt Event) error {
	if e.once {
		defer r.remove(id, e.id)
	}
	return e.invoke(ctx, evt)
}

func (r *CallbackRegistry) add(id TypeID, key any, invoke func(context.Context, Event) error, once bool) *subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	e := &callbackEntry{id: r.nextID, key: key, invoke: invoke, once: once}
	if r.lists == nil {
		r.lists = make(map[TypeID][]*callbackEntry)
	}
	list := r.lists[id]
	// full slice expression forces a copy; readers keep the old backing array
	r.lists[id] = append(list[:len(list):len(list)], e)
	return &subscription{registry: r, typeID: id, entryID: e.id}
}

func (r *CallbackRegistry) remove(id TypeID, entryID uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.lists[id]
	for i, e := range list {
		if e.id != entryID {
			continue
		}
		if len(list) == 1 {
			delete(r.lists, id)
			return true
		}
		next := make([]*callbackEntry, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		r.lists[id] = next
		return true
	}
	return false
}

func registryOf(owner CallbackOwner) (*CallbackRegistry, error) {
	if owner == nil {
		return nil, ErrNilTarget
	}
	r := owner.Callbacks()
	if r == nil {
		return nil, ErrNilTarget
	}
	return r, nil
}

func typedInvoker[PT Event](cb func(context.Context, PT) error) func(context.Context, Event) error {
	return func(ctx context.Context, evt Event) error {
		p, ok := evt.(PT)
		if !ok {
			return nil
		}
		return cb(ctx, p)
	}
}

// subscription removes one registry entry on Close.
type subscription struct {
	registry *CallbackRegistry
	typeID   TypeID
	entryID  uint64
}

func (s *subscription) Close() error {
	if s == nil || s.registry == nil {
		return nil
	}
	s.registry.remove(s.typeID, s.entryID)
	return nil
}
