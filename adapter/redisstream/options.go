package redisstream

import (
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xevent"
	"github.com/trickstertwo/xlog"
)

type options struct {
	builder  *xevent.DispatcherBuilder
	recorder []xevent.RecorderOption
}

// Option configures the dispatcher and recorder built by Use.
type Option func(*options)

// WithLogger injects a custom xlog logger.
func WithLogger(l *xlog.Logger) Option {
	return func(o *options) {
		o.builder.WithLogger(l)
		o.recorder = append(o.recorder, xevent.WithRecorderLogger(l))
	}
}

// WithClock injects a custom xclock clock.
func WithClock(c xclock.Clock) Option {
	return func(o *options) {
		o.builder.WithClock(c)
		o.recorder = append(o.recorder, xevent.WithRecorderClock(c))
	}
}

// WithCodec sets the payload codec instance.
func WithCodec(c xevent.Codec) Option {
	return func(o *options) { o.recorder = append(o.recorder, xevent.WithRecorderCodec(c)) }
}

// WithBatch sets how many records go into one pipeline and how long a
// partial batch may wait.
func WithBatch(size int, every time.Duration) Option {
	return func(o *options) { o.recorder = append(o.recorder, xevent.WithRecorderBatch(size, every)) }
}

// WithSession sets the session id stamped on every record.
func WithSession(id string) Option {
	return func(o *options) { o.recorder = append(o.recorder, xevent.WithRecorderSession(id)) }
}

// WithMiddleware adds send middlewares.
func WithMiddleware(mw ...xevent.Middleware) Option {
	return func(o *options) { o.builder.WithMiddleware(mw...) }
}

// WithObserver attaches observers for dispatcher signals.
func WithObserver(obs ...xevent.Observer) Option {
	return func(o *options) { o.builder.WithObserver(obs...) }
}
