package xevent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// RecordStage says whether a record was captured before or after dispatch.
type RecordStage string

const (
	StageBefore RecordStage = "before"
	StageAfter  RecordStage = "after"
)

// Record is a value snapshot of an event taken by a Recorder. It never
// references the event, which may be recycled by the time a sink sees it.
type Record struct {
	Session  string
	Stage    RecordStage
	EventID  uint64
	TypeID   TypeID
	TypeName string
	Phase    PropagationPhase

	PropagationStopped bool
	ImmediateStopped   bool
	DefaultPrevented   bool
	DispatchStopped    bool

	// Codec names the codec that produced Payload.
	Codec   string
	Payload []byte

	// EventTime is the event's acquisition time; RecordedAt is capture time.
	EventTime  time.Time
	RecordedAt time.Time
}

// RecordSink stores batches of records. Write is called from a single
// recorder goroutine.
type RecordSink interface {
	Write(ctx context.Context, recs []Record) error
	Close(ctx context.Context) error
}

// SinkFactory constructs record sinks from a config blob.
type SinkFactory func(cfg map[string]any) (RecordSink, error)

var (
	sinkRegistryMu sync.RWMutex
	sinkRegistry   = map[string]SinkFactory{}
)

// RegisterSink registers a sink factory by name. Adapters call it from init.
func RegisterSink(name string, factory SinkFactory) error {
	if name == "" {
		return errors.New("sink name must not be empty")
	}
	if factory == nil {
		return errors.New("sink factory must not be nil")
	}
	sinkRegistryMu.Lock()
	sinkRegistry[name] = factory
	sinkRegistryMu.Unlock()
	return nil
}

// NewSink constructs a sink by name with config.
func NewSink(name string, cfg map[string]any) (RecordSink, error) {
	sinkRegistryMu.RLock()
	f, ok := sinkRegistry[name]
	sinkRegistryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("sink %q not registered", name)
	}
	return f(cfg)
}
