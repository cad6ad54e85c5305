package xevent

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// TypeID identifies a concrete event type. Ids are handed out from a
// process-wide counter the first time a type is seen; 0 means unassigned.
type TypeID int32

var (
	typeIDs     sync.Map // reflect.Type -> TypeID
	typeCounter atomic.Int32

	typeNamesMu sync.RWMutex
	typeNames   = []string{"<unassigned>"}
)

// TypeIDOf returns the id of event type T, assigning one on first use.
func TypeIDOf[T any]() TypeID {
	return typeIDFor(reflect.TypeFor[T]())
}

// TypeName returns the Go type name recorded for id.
func TypeName(id TypeID) string {
	typeNamesMu.RLock()
	defer typeNamesMu.RUnlock()
	if id <= 0 || int(id) >= len(typeNames) {
		return typeNames[0]
	}
	return typeNames[id]
}

// typeIDOfEvent resolves the id of a concrete event value. The value is a
// pointer to the struct embedding EventBase, so the element type is the key.
func typeIDOfEvent(evt Event) TypeID {
	t := reflect.TypeOf(evt)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return typeIDFor(t)
}

func typeIDFor(t reflect.Type) TypeID {
	if v, ok := typeIDs.Load(t); ok {
		return v.(TypeID)
	}

	// Names are appended under the lock so that index == id holds.
	typeNamesMu.Lock()
	defer typeNamesMu.Unlock()
	if v, ok := typeIDs.Load(t); ok {
		return v.(TypeID)
	}
	id := TypeID(typeCounter.Add(1))
	typeNames = append(typeNames, t.String())
	typeIDs.Store(t, id)
	return id
}
