package memory

import (
	"fmt"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xevent"
	"github.com/trickstertwo/xlog"
)

// Use builds a dispatcher whose debugger records every event into a memory
// sink, installs its coordinator as the process default and returns it with
// the sink.
//
//	coord, sink := memory.Use(memory.Config{Capacity: 1024},
//	    memory.WithLogger(logger),
//	)
//	defer coord.Dispatcher().Close(ctx)
func Use(cfg Config, opts ...Option) (*xevent.EventCoordinator, *Sink) {
	o := options{builder: xevent.NewDispatcherBuilder()}
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}

	rs, err := xevent.NewSink(SinkName, cfg.toMap())
	if err != nil {
		panic(fmt.Errorf("memory.Use: %w", err))
	}
	sink := rs.(*Sink)

	rec, err := xevent.NewRecorder(sink, o.recorder...)
	if err != nil {
		panic(fmt.Errorf("memory.Use: %w", err))
	}
	d, err := o.builder.WithDebugger(rec).Build()
	if err != nil {
		panic(fmt.Errorf("memory.Use: %w", err))
	}

	coord := xevent.NewCoordinator(d)
	xevent.SetDefault(coord)
	return coord, sink
}

type options struct {
	builder  *xevent.DispatcherBuilder
	recorder []xevent.RecorderOption
}

// Option configures the dispatcher and recorder built by Use.
type Option func(*options)

// WithLogger injects a custom xlog logger into the dispatcher and recorder.
func WithLogger(l *xlog.Logger) Option {
	return func(o *options) {
		o.builder.WithLogger(l)
		o.recorder = append(o.recorder, xevent.WithRecorderLogger(l))
	}
}

// WithClock injects a custom xclock clock into the dispatcher and recorder.
func WithClock(c xclock.Clock) Option {
	return func(o *options) {
		o.builder.WithClock(c)
		o.recorder = append(o.recorder, xevent.WithRecorderClock(c))
	}
}

// WithCodec selects the payload codec by name (default: "json").
func WithCodec(name string) Option {
	return func(o *options) {
		c, err := xevent.NewCodec(name)
		if err != nil {
			panic(fmt.Errorf("memory.WithCodec: %w", err))
		}
		o.recorder = append(o.recorder, xevent.WithRecorderCodec(c))
	}
}

// WithIntercept lets the recorder consume events matching fn.
func WithIntercept(fn xevent.InterceptFunc) Option {
	return func(o *options) { o.recorder = append(o.recorder, xevent.WithInterceptFunc(fn)) }
}

// WithMiddleware adds send middlewares.
func WithMiddleware(mw ...xevent.Middleware) Option {
	return func(o *options) { o.builder.WithMiddleware(mw...) }
}

// WithObserver attaches observers for dispatcher signals.
func WithObserver(obs ...xevent.Observer) Option {
	return func(o *options) { o.builder.WithObserver(obs...) }
}

// WithoutLoggingObserver skips the default LoggingObserver.
func WithoutLoggingObserver() Option {
	return func(o *options) { o.builder.WithoutLoggingObserver() }
}

// WithObserverPool configures the async observer pool.
func WithObserverPool(workers, bufferSize int) Option {
	return func(o *options) { o.builder.WithObserverPool(workers, bufferSize) }
}
