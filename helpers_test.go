package xevent

import (
	"context"
	"sync"
)

type Ping struct {
	EventBase
	Payload string
}

type Pong struct {
	EventBase
	Count int
}

// Batch keeps its buffer capacity across pool round trips.
type Batch struct {
	EventBase
	Items []int
	Label string
}

func (b *Batch) Reset() {
	b.Items = b.Items[:0]
	b.Label = ""
}

// node is a callback target bound to a coordinator.
type node struct {
	CallbackRegistry
	name string
}

// handlerTarget handles every event itself.
type handlerTarget struct {
	mu   sync.Mutex
	seen []uint64
	err  error
}

func (h *handlerTarget) HandleEvent(_ context.Context, evt Event) error {
	h.mu.Lock()
	h.seen = append(h.seen, evt.Base().EventID())
	h.mu.Unlock()
	return h.err
}

// defaultNode records default action phases.
type defaultNode struct {
	CallbackRegistry
	phases []PropagationPhase
}

func (d *defaultNode) ExecuteDefaultActionAtTarget(_ context.Context, evt Event) error {
	d.phases = append(d.phases, evt.Base().Phase())
	return nil
}

func (d *defaultNode) ExecuteDefaultAction(_ context.Context, evt Event) error {
	d.phases = append(d.phases, evt.Base().Phase())
	return nil
}

// pingListener is an identity-bearing subscriber.
type pingListener struct {
	calls int
}

func (l *pingListener) HandleEvent(_ context.Context, _ *Ping) error {
	l.calls++
	return nil
}

// newTestCoordinator builds a quiet dispatcher and closes it with the test.
func newTestCoordinator(t interface {
	Helper()
	Cleanup(func())
	Fatalf(string, ...any)
}, configure ...func(*DispatcherBuilder)) *EventCoordinator {
	t.Helper()
	b := NewDispatcherBuilder().WithoutLoggingObserver()
	for _, fn := range configure {
		fn(b)
	}
	d, err := b.Build()
	if err != nil {
		t.Fatalf("build dispatcher: %v", err)
	}
	t.Cleanup(func() { _ = d.Close(context.Background()) })
	return NewCoordinator(d)
}

// recordingDebugger counts hook calls and optionally consumes events.
type recordingDebugger struct {
	mu          sync.Mutex
	consume     bool
	intercepted []uint64
	post        []uint64
	closed      bool
}

func (r *recordingDebugger) InterceptEvent(_ context.Context, evt Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intercepted = append(r.intercepted, evt.Base().EventID())
	return r.consume
}

func (r *recordingDebugger) PostProcessEvent(_ context.Context, evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.post = append(r.post, evt.Base().EventID())
}

func (r *recordingDebugger) Close(context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

// memSink collects recorder output.
type memSink struct {
	mu     sync.Mutex
	recs   []Record
	closed bool
	err    error
}

func (s *memSink) Write(_ context.Context, recs []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.recs = append(s.recs, recs...)
	return nil
}

func (s *memSink) Close(context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *memSink) records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.recs))
	copy(out, s.recs)
	return out
}
