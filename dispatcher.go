package xevent

import (
	"context"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
	"go.uber.org/multierr"
)

// EventDispatcher routes each sent event to the first strategy that accepts
// it. Its strategy list is fixed at construction and safe to share across
// goroutines; individual events are not.
type EventDispatcher struct {
	strategies []DispatchStrategy
	names      []string
	send       SendFunc

	debugger Debugger
	clock    xclock.Clock
	logger   *xlog.Logger

	observerPool *ObserverPool
	observersMu  sync.Mutex
	observers    atomic.Pointer[[]Observer]

	sent            atomic.Uint64
	delivered       atomic.Uint64
	intercepted     atomic.Uint64
	unhandled       atomic.Uint64
	skipped         atomic.Uint64
	errors          atomic.Uint64
	totalDispatchNs atomic.Int64

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Send dispatches evt within coordinator c.
//
// Before anything else the debugger, when set, may consume the event. The
// strategies are then tried in order and the first whose CanDispatchEvent
// returns true delivers it. An event whose dispatch already completed is not
// delivered again. With DispatchRelease the caller's reference is released on
// every return path.
func (d *EventDispatcher) Send(ctx context.Context, evt Event, c Coordinator, mode DispatchMode) error {
	if evt == nil {
		return ErrNilEvent
	}
	b := evt.Base()
	if b.released {
		return ErrEventReleased
	}
	if mode == DispatchRelease {
		defer func() { _ = b.Release() }()
	}
	if d.closed.Load() {
		return ErrDispatcherClosed
	}
	if b.typeID == 0 {
		b.typeID = typeIDOfEvent(evt)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = d.withDomain(ctx, c)
	d.sent.Add(1)

	if d.debugger != nil && d.debugger.InterceptEvent(ctx, evt) {
		d.intercepted.Add(1)
		d.notifyAsync(d.signal(Intercepted, b))
		return nil
	}

	d.notifyAsync(d.signal(SendStart, b))
	start := d.clock.Now()
	err := d.send(ctx, evt, c)
	dur := d.clock.Since(start)
	d.totalDispatchNs.Add(int64(dur))

	if d.debugger != nil {
		d.debugger.PostProcessEvent(ctx, evt)
	}

	done := d.signal(SendDone, b)
	done.Duration = dur
	done.Err = err
	if err != nil {
		d.errors.Add(1)
		failed := d.signal(Error, b)
		failed.Err = err
		d.notifyAsync(failed)
	}
	d.notifyAsync(done)
	return err
}

// walk is the innermost SendFunc. Middlewares wrap it.
func (d *EventDispatcher) walk(ctx context.Context, evt Event, c Coordinator) error {
	b := evt.Base()
	for i, s := range d.strategies {
		if b.stopDispatch {
			break
		}
		if !s.CanDispatchEvent(evt) {
			continue
		}
		skip := b.propagationStopped || isNilCoordinator(c)
		err := s.DispatchEvent(ctx, evt, c)

		sig := d.signal(Delivered, b)
		sig.Strategy = d.names[i]
		if skip {
			sig.Type = Skipped
			d.skipped.Add(1)
		} else {
			d.delivered.Add(1)
		}
		d.notifyAsync(sig)
		return err
	}

	if b.stopDispatch {
		d.skipped.Add(1)
		d.notifyAsync(d.signal(Skipped, b))
		return nil
	}
	d.unhandled.Add(1)
	d.notifyAsync(d.signal(Unhandled, b))
	return nil
}

// withDomain attaches the coordinator, logger and clock to ctx unless ctx
// already carries them.
func (d *EventDispatcher) withDomain(ctx context.Context, c Coordinator) context.Context {
	if !isNilCoordinator(c) {
		if cur, ok := CoordinatorFromContext(ctx); !ok || cur.Dispatcher() != c.Dispatcher() {
			ctx = injectCoordinator(ctx, c)
		}
	}
	if _, ok := LoggerFromContext(ctx); !ok {
		ctx = injectLogger(ctx, d.logger)
	}
	if _, ok := ClockFromContext(ctx); !ok {
		ctx = injectClock(ctx, d.clock)
	}
	return ctx
}

func (d *EventDispatcher) signal(t SignalType, b *EventBase) Signal {
	return Signal{
		Type:      t,
		EventID:   b.eventID,
		TypeID:    b.typeID,
		EventName: TypeName(b.typeID),
		Phase:     b.phase,
	}
}

// Strategies returns a copy of the strategy list in dispatch order.
func (d *EventDispatcher) Strategies() []DispatchStrategy {
	out := make([]DispatchStrategy, len(d.strategies))
	copy(out, d.strategies)
	return out
}

// Debugger returns the configured debugger, or nil.
func (d *EventDispatcher) Debugger() Debugger { return d.debugger }

// Logger returns the dispatcher's logger.
func (d *EventDispatcher) Logger() *xlog.Logger { return d.logger }

// Clock returns the dispatcher's clock.
func (d *EventDispatcher) Clock() xclock.Clock { return d.clock }

// AddObserver registers an observer for dispatcher signals.
func (d *EventDispatcher) AddObserver(obs Observer) {
	if obs == nil {
		return
	}
	d.observersMu.Lock()
	defer d.observersMu.Unlock()

	var cur []Observer
	if p := d.observers.Load(); p != nil {
		cur = *p
	}
	next := make([]Observer, 0, len(cur)+1)
	next = append(next, cur...)
	next = append(next, obs)
	d.observers.Store(&next)
}

// RemoveObserver unregisters an observer. Uncomparable observers are only
// matched when they are the same pointer-shaped value; others are ignored.
func (d *EventDispatcher) RemoveObserver(obs Observer) {
	if obs == nil {
		return
	}
	d.observersMu.Lock()
	defer d.observersMu.Unlock()

	p := d.observers.Load()
	if p == nil {
		return
	}
	next := make([]Observer, 0, len(*p))
	for _, o := range *p {
		if sameObserver(o, obs) {
			continue
		}
		next = append(next, o)
	}
	d.observers.Store(&next)
}

func sameObserver(a, b Observer) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}

func (d *EventDispatcher) notifyAsync(s Signal) {
	p := d.observers.Load()
	if p == nil || len(*p) == 0 || d.observerPool == nil {
		return
	}
	d.observerPool.Notify(s, *p)
}

// GetMetrics returns a point-in-time snapshot of dispatcher counters.
func (d *EventDispatcher) GetMetrics() Metrics {
	m := Metrics{
		Sent:        d.sent.Load(),
		Delivered:   d.delivered.Load(),
		Intercepted: d.intercepted.Load(),
		Unhandled:   d.unhandled.Load(),
		Skipped:     d.skipped.Load(),
		Errors:      d.errors.Load(),
	}
	if d.observerPool != nil {
		m.SignalsDropped = d.observerPool.Stats().Dropped
	}
	if dispatched := m.Sent - m.Intercepted; dispatched > 0 {
		m.AvgDispatchTimeMs = float64(d.totalDispatchNs.Load()) / float64(dispatched) / float64(time.Millisecond)
	}
	return m
}

// ObserverStats returns the observer pool statistics.
func (d *EventDispatcher) ObserverStats() ObserverPoolStats {
	if d.observerPool == nil {
		return ObserverPoolStats{}
	}
	return d.observerPool.Stats()
}

// Health reports "unhealthy" once closed and "degraded" when more than five
// percent of sends failed.
func (d *EventDispatcher) Health(_ context.Context) HealthStatus {
	m := d.GetMetrics()
	hs := HealthStatus{Status: "healthy", Metrics: m, Timestamp: d.clock.Now()}

	switch {
	case d.closed.Load():
		hs.Status = "unhealthy"
		hs.Message = "dispatcher closed"
	case m.Sent > 0 && float64(m.Errors)/float64(m.Sent) > 0.05:
		hs.Status = "degraded"
		hs.Message = "error rate " + formatPercent(float64(m.Errors)/float64(m.Sent))
	}
	return hs
}

func formatPercent(f float64) string {
	p := int(math.Round(f * 100))
	if p < 0 {
		p = 0
	}
	return strconv.Itoa(p) + "%"
}

// Close rejects further sends, drains the observer pool and closes the
// debugger when it has a Close(context.Context) error method. Close is
// idempotent.
func (d *EventDispatcher) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		d.closed.Store(true)

		timeout := 5 * time.Second
		if ctx != nil {
			if dl, ok := ctx.Deadline(); ok {
				timeout = time.Until(dl)
			}
		} else {
			ctx = context.Background()
		}

		var err error
		if d.observerPool != nil {
			err = multierr.Append(err, d.observerPool.Close(timeout))
		}
		if cl, ok := d.debugger.(interface{ Close(context.Context) error }); ok {
			err = multierr.Append(err, cl.Close(ctx))
		}
		d.closeErr = err
		if err != nil {
			d.logger.Warn().Err(err).Msg("xevent dispatcher close")
		}
	})
	return d.closeErr
}
