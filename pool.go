package xevent

import (
	"reflect"
	"strconv"
	"sync"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// PoolStats returns telemetry about an object pool.
type PoolStats struct {
	Created     uint64 // Instances constructed because the free list was empty
	Reused      uint64 // Gets served from the free list
	Returned    uint64 // Puts accepted
	Outstanding int    // Instances currently handed out
	Idle        int    // Instances waiting in the free list
	HighWater   int    // Largest Outstanding value seen
}

// ObjectPool is an unbounded free-list pool. Nothing is ever evicted, unlike
// sync.Pool, so Stats reflect every instance the pool created.
type ObjectPool[T any] struct {
	mu    sync.Mutex
	free  []*T
	newFn func() *T
	reset func(*T)

	created     uint64
	reused      uint64
	returned    uint64
	outstanding int
	highWater   int

	// high-water diagnostic; fires when outstanding reaches warnAt, then doubles
	mark   int
	warnAt int
	onMark func(outstanding int)
}

// NewObjectPool creates a pool that constructs with newFn and clears returned
// instances with reset. Either function may be nil.
func NewObjectPool[T any](newFn func() *T, reset func(*T)) *ObjectPool[T] {
	if newFn == nil {
		newFn = func() *T { return new(T) }
	}
	return &ObjectPool[T]{newFn: newFn, reset: reset}
}

// SetHighWaterMark installs a leak diagnostic. fn runs (outside the pool
// lock) when Outstanding first reaches mark and again each time it doubles.
// It never caps the pool.
func (p *ObjectPool[T]) SetHighWaterMark(mark int, fn func(outstanding int)) {
	p.mu.Lock()
	p.mark = mark
	p.warnAt = mark
	p.onMark = fn
	p.mu.Unlock()
}

// Get returns an idle instance, or a new one if none is idle.
func (p *ObjectPool[T]) Get() *T {
	var v *T

	p.mu.Lock()
	if n := len(p.free); n > 0 {
		v = p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		p.reused++
	}
	p.outstanding++
	if p.outstanding > p.highWater {
		p.highWater = p.outstanding
	}
	var fire func(int)
	outstanding := p.outstanding
	if p.onMark != nil && p.mark > 0 && outstanding >= p.warnAt {
		fire = p.onMark
		p.warnAt *= 2
	}
	if v == nil {
		p.created++
	}
	p.mu.Unlock()

	if v == nil {
		v = p.newFn()
	}
	if fire != nil {
		fire(outstanding)
	}
	return v
}

// Put resets v and makes it available again.
func (p *ObjectPool[T]) Put(v *T) {
	if v == nil {
		return
	}
	if p.reset != nil {
		p.reset(v)
	}
	p.mu.Lock()
	p.free = append(p.free, v)
	p.returned++
	if p.outstanding > 0 {
		p.outstanding--
	}
	p.mu.Unlock()
}

// Stats returns current pool statistics.
func (p *ObjectPool[T]) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Created:     p.created,
		Reused:      p.reused,
		Returned:    p.returned,
		Outstanding: p.outstanding,
		Idle:        len(p.free),
		HighWater:   p.highWater,
	}
}

// EventPtr is satisfied by *T when T embeds EventBase.
type EventPtr[T any] interface {
	*T
	Event
}

// EventPool recycles instances of one concrete event type.
type EventPool[T any, PT EventPtr[T]] struct {
	objects *ObjectPool[T]
	typeID  TypeID
	seq     *Sequence
	clock   xclock.Clock
	logger  *xlog.Logger
}

// PoolOption configures an EventPool.
type PoolOption func(*poolConfig)

type poolConfig struct {
	clock     xclock.Clock
	seq       *Sequence
	logger    *xlog.Logger
	highWater int
}

// WithPoolClock sets the clock used to stamp events (default: xclock.Default()).
func WithPoolClock(c xclock.Clock) PoolOption {
	return func(cfg *poolConfig) { cfg.clock = c }
}

// WithPoolSequence sets the id generator (default: DefaultSequence).
func WithPoolSequence(s *Sequence) PoolOption {
	return func(cfg *poolConfig) { cfg.seq = s }
}

// WithPoolLogger sets the logger for pool diagnostics (default: xlog.Default()).
func WithPoolLogger(l *xlog.Logger) PoolOption {
	return func(cfg *poolConfig) { cfg.logger = l }
}

// WithHighWaterMark logs a warning when the number of unreleased events
// reaches n, and again each time it doubles. Zero disables it.
func WithHighWaterMark(n int) PoolOption {
	return func(cfg *poolConfig) { cfg.highWater = n }
}

// NewEventPool creates a pool for event type T.
func NewEventPool[T any, PT EventPtr[T]](opts ...PoolOption) *EventPool[T, PT] {
	cfg := poolConfig{}
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}
	if cfg.clock == nil {
		cfg.clock = xclock.Default()
	}
	if cfg.seq == nil {
		cfg.seq = DefaultSequence
	}
	if cfg.logger == nil {
		cfg.logger = xlog.Default()
	}

	ep := &EventPool[T, PT]{
		typeID: TypeIDOf[T](),
		seq:    cfg.seq,
		clock:  cfg.clock,
		logger: cfg.logger,
	}
	ep.objects = NewObjectPool(ep.construct, ep.reset)
	if cfg.highWater > 0 {
		ep.objects.SetHighWaterMark(cfg.highWater, ep.warnHighWater)
	}
	return ep
}

// Get returns a ready-to-populate event with a new id and timestamp.
func (ep *EventPool[T, PT]) Get() PT {
	p := PT(ep.objects.Get())
	p.Base().stamp(ep.typeID, ep.seq.Next(), ep.clock.Now())
	return p
}

// GetWith is Get followed by init, the type-specific factory.
func (ep *EventPool[T, PT]) GetWith(init func(PT)) PT {
	p := ep.Get()
	if init != nil {
		init(p)
	}
	return p
}

// TypeID returns the id of T.
func (ep *EventPool[T, PT]) TypeID() TypeID { return ep.typeID }

// Stats returns pool statistics.
func (ep *EventPool[T, PT]) Stats() PoolStats { return ep.objects.Stats() }

func (ep *EventPool[T, PT]) construct() *T {
	v := new(T)
	b := PT(v).Base()
	b.owner = ep
	b.self = PT(v)
	return v
}

// reset clears v for reuse: payload through its Resetter hook or by zeroing,
// base state always.
func (ep *EventPool[T, PT]) reset(v *T) {
	p := PT(v)
	if r, ok := any(p).(Resetter); ok {
		r.Reset()
	} else {
		var zero T
		*v = zero
	}
	b := p.Base()
	b.resetBase()
	b.owner = ep
	b.self = p
	b.released = true
}

func (ep *EventPool[T, PT]) put(evt Event) {
	if p, ok := evt.(PT); ok {
		ep.objects.Put((*T)(p))
	}
}

func (ep *EventPool[T, PT]) warnHighWater(outstanding int) {
	if ep.logger == nil {
		return
	}
	ep.logger.Warn().
		Str("event_type", TypeName(ep.typeID)).
		Str("outstanding", strconv.Itoa(outstanding)).
		Msg("xevent: pool high-water mark reached; events may be leaking")
}

var pools sync.Map // reflect.Type -> *EventPool[T, PT]

// PoolFor returns the process-wide pool for T, creating it on first use.
func PoolFor[T any, PT EventPtr[T]]() *EventPool[T, PT] {
	key := reflect.TypeFor[T]()
	if v, ok := pools.Load(key); ok {
		return v.(*EventPool[T, PT])
	}
	v, _ := pools.LoadOrStore(key, NewEventPool[T, PT]())
	return v.(*EventPool[T, PT])
}

// Acquire returns an event from the process-wide pool for T.
//
//	evt := xevent.Acquire[Ping]()
//	defer evt.Release()
func Acquire[T any, PT EventPtr[T]]() PT {
	return PoolFor[T, PT]().Get()
}

// AcquireWith is Acquire followed by init.
func AcquireWith[T any, PT EventPtr[T]](init func(PT)) PT {
	return PoolFor[T, PT]().GetWith(init)
}

// New constructs an event outside any pool. It is stamped like a pooled one;
// Release only marks it released.
func New[T any, PT EventPtr[T]]() PT {
	p := PT(new(T))
	b := p.Base()
	b.self = p
	b.stamp(TypeIDOf[T](), DefaultSequence.Next(), xclock.Default().Now())
	return p
}
