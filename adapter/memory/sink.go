package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/trickstertwo/xevent"
)

const SinkName = "memory"

func init() {
	if err := xevent.RegisterSink(SinkName, func(cfg map[string]any) (xevent.RecordSink, error) {
		return NewSink(ConfigFromMap(cfg)), nil
	}); err != nil {
		panic(fmt.Errorf("xevent/memory: failed to register sink: %w", err))
	}
}

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("memory sink is closed")

// Config controls memory sink behavior.
type Config struct {
	// Capacity is the number of records kept (default: 4096). Once full the
	// oldest records are dropped.
	Capacity int
}

func ConfigFromMap(cfg map[string]any) Config {
	getInt := func(k string, d int) int {
		switch v := cfg[k].(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		case float64:
			return int(v)
		default:
			return d
		}
	}
	return Config{
		Capacity: max(1, getInt("capacity", 4096)),
	}
}

func (c Config) toMap() map[string]any {
	return map[string]any{"capacity": c.Capacity}
}

// Sink keeps records in a ring buffer for tests, replay tools and local
// debugging.
type Sink struct {
	cfg Config

	mu    sync.RWMutex
	ring  []xevent.Record
	start int
	count int

	closed  atomic.Bool
	written atomic.Uint64
	evicted atomic.Uint64
}

var _ xevent.RecordSink = (*Sink)(nil)

// NewSink creates an empty sink.
func NewSink(cfg Config) *Sink {
	if cfg.Capacity < 1 {
		cfg.Capacity = 4096
	}
	return &Sink{cfg: cfg, ring: make([]xevent.Record, cfg.Capacity)}
}

// Write appends recs, evicting the oldest records when full.
func (s *Sink) Write(ctx context.Context, recs []xevent.Record) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range recs {
		idx := (s.start + s.count) % len(s.ring)
		s.ring[idx] = r
		if s.count < len(s.ring) {
			s.count++
		} else {
			s.start = (s.start + 1) % len(s.ring)
			s.evicted.Add(1)
		}
	}
	s.written.Add(uint64(len(recs)))
	return nil
}

// Records returns the stored records, oldest first.
func (s *Sink) Records() []xevent.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]xevent.Record, s.count)
	for i := 0; i < s.count; i++ {
		out[i] = s.ring[(s.start+i)%len(s.ring)]
	}
	return out
}

// Session returns the stored records of one recorder session, oldest first.
func (s *Sink) Session(id string) []xevent.Record {
	var out []xevent.Record
	for _, r := range s.Records() {
		if r.Session == id {
			out = append(out, r)
		}
	}
	return out
}

func (s *Sink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Reset drops every stored record.
func (s *Sink) Reset() {
	s.mu.Lock()
	clear(s.ring)
	s.start, s.count = 0, 0
	s.mu.Unlock()
}

// Close rejects further writes. Stored records stay readable.
func (s *Sink) Close(_ context.Context) error {
	s.closed.Store(true)
	return nil
}

// Stats returns sink telemetry.
type Stats struct {
	Written uint64
	Evicted uint64
	Stored  int
}

func (s *Sink) Stats() Stats {
	return Stats{
		Written: s.written.Load(),
		Evicted: s.evicted.Load(),
		Stored:  s.Len(),
	}
}
