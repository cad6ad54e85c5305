package xevent

import (
	"context"
	"fmt"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// DispatcherBuilder constructs EventDispatcher instances.
type DispatcherBuilder struct {
	strategies []strategyEntry

	middlewares []Middleware
	recovery    bool

	observers      []Observer
	noLogObserver  bool
	observerWorker int
	observerBuffer int

	logger   *xlog.Logger
	clock    xclock.Clock
	debugger Debugger
}

type strategyEntry struct {
	name string
	cfg  map[string]any
	inst DispatchStrategy
}

// NewDispatcherBuilder returns a builder with recovery enabled. Without any
// WithStrategy call Build installs the callback strategy followed by the
// handler strategy.
func NewDispatcherBuilder() *DispatcherBuilder {
	return &DispatcherBuilder{
		recovery:       true,
		observerWorker: 2,
		observerBuffer: 1024,
	}
}

// WithStrategy appends a strategy built by the named factory.
func (db *DispatcherBuilder) WithStrategy(name string, cfg map[string]any) *DispatcherBuilder {
	db.strategies = append(db.strategies, strategyEntry{name: name, cfg: cfg})
	return db
}

// WithStrategyInstance appends a ready strategy.
func (db *DispatcherBuilder) WithStrategyInstance(s DispatchStrategy) *DispatcherBuilder {
	if s != nil {
		db.strategies = append(db.strategies, strategyEntry{inst: s})
	}
	return db
}

// WithMiddleware appends middlewares around the strategy walk. The first one
// is outermost.
func (db *DispatcherBuilder) WithMiddleware(mw ...Middleware) *DispatcherBuilder {
	db.middlewares = append(db.middlewares, mw...)
	return db
}

// WithoutRecovery leaves panics from targets and callbacks unrecovered.
func (db *DispatcherBuilder) WithoutRecovery() *DispatcherBuilder {
	db.recovery = false
	return db
}

func (db *DispatcherBuilder) WithObserver(obs ...Observer) *DispatcherBuilder {
	for _, o := range obs {
		if o != nil {
			db.observers = append(db.observers, o)
		}
	}
	return db
}

// WithoutLoggingObserver skips the LoggingObserver Build attaches by default.
func (db *DispatcherBuilder) WithoutLoggingObserver() *DispatcherBuilder {
	db.noLogObserver = true
	return db
}

// WithObserverPool sizes the asynchronous observer pool.
func (db *DispatcherBuilder) WithObserverPool(workers, buffer int) *DispatcherBuilder {
	if workers > 0 {
		db.observerWorker = workers
	}
	if buffer > 0 {
		db.observerBuffer = buffer
	}
	return db
}

func (db *DispatcherBuilder) WithLogger(l *xlog.Logger) *DispatcherBuilder {
	db.logger = l
	return db
}

func (db *DispatcherBuilder) WithClock(c xclock.Clock) *DispatcherBuilder {
	db.clock = c
	return db
}

// WithDebugger installs a debugger that sees every event before and after
// dispatch.
func (db *DispatcherBuilder) WithDebugger(dbg Debugger) *DispatcherBuilder {
	db.debugger = dbg
	return db
}

func (db *DispatcherBuilder) Build() (*EventDispatcher, error) {
	entries := db.strategies
	if len(entries) == 0 {
		entries = []strategyEntry{{name: "callback"}, {name: "handler"}}
	}

	strategies := make([]DispatchStrategy, 0, len(entries))
	names := make([]string, 0, len(entries))
	for _, sp := range entries {
		s := sp.inst
		if s == nil {
			var err error
			s, err = NewStrategy(sp.name, sp.cfg)
			if err != nil {
				return nil, err
			}
			if s == nil {
				return nil, fmt.Errorf("xevent: strategy factory %q returned nil", sp.name)
			}
		}
		strategies = append(strategies, s)
		names = append(names, strategyName(s))
	}

	clk := db.clock
	if clk == nil {
		clk = xclock.Default()
	}
	lg := db.logger
	if lg == nil {
		lg = xlog.Default()
	}

	d := &EventDispatcher{
		strategies: strategies,
		names:      names,
		debugger:   db.debugger,
		clock:      clk,
		logger:     lg,
	}

	mws := db.middlewares
	if db.recovery {
		mws = append([]Middleware{RecoveryMiddleware()}, mws...)
	}
	d.send = Chain(d.walk, mws...)

	observers := db.observers
	if !db.noLogObserver {
		hasLogging := false
		for _, o := range observers {
			if _, ok := o.(LoggingObserver); ok {
				hasLogging = true
				break
			}
		}
		if !hasLogging {
			observers = append([]Observer{LoggingObserver{Logger: lg}}, observers...)
		}
	}
	if len(observers) > 0 {
		d.observerPool = NewObserverPool(context.Background(), db.observerWorker, db.observerBuffer, lg)
		for _, o := range observers {
			d.AddObserver(o)
		}
	}
	return d, nil
}

// NewDispatcher builds a dispatcher with the given strategies in order, or
// the default strategies when none are given.
func NewDispatcher(strategies ...DispatchStrategy) (*EventDispatcher, error) {
	b := NewDispatcherBuilder()
	for _, s := range strategies {
		b.WithStrategyInstance(s)
	}
	return b.Build()
}
