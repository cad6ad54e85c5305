package xevent

import (
	"context"
	"errors"
	"fmt"

	"github.com/trickstertwo/xlog"
)

// RecoveryMiddleware converts panics raised by strategies, targets and
// callbacks into errors returned from Send. Recursive dispatch panics are
// programming errors and keep unwinding.
func RecoveryMiddleware() Middleware {
	return func(next SendFunc) SendFunc {
		return func(ctx context.Context, evt Event, c Coordinator) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if e, ok := r.(error); ok && errors.Is(e, ErrRecursiveDispatch) {
					panic(r)
				}
				err = fmt.Errorf("xevent: panic recovered: %v", r)
			}()
			return next(ctx, evt, c)
		}
	}
}

// LoggingMiddleware logs each send at debug level and failures at warn.
// A nil logger falls back to the one carried by ctx.
func LoggingMiddleware(logger *xlog.Logger) Middleware {
	return func(next SendFunc) SendFunc {
		return func(ctx context.Context, evt Event, c Coordinator) error {
			l := logger
			if l == nil {
				l, _ = LoggerFromContext(ctx)
			}
			err := next(ctx, evt, c)
			if l == nil {
				return err
			}
			b := evt.Base()
			if err != nil {
				l.Warn().
					Str("event_type", TypeName(b.typeID)).
					Err(err).
					Msg("xevent send failed")
				return err
			}
			l.Debug().
				Str("event_type", TypeName(b.typeID)).
				Str("phase", b.phase.String()).
				Msg("xevent sent")
			return nil
		}
	}
}

// Chain composes middlewares around send. The first middleware is outermost.
func Chain(send SendFunc, mws ...Middleware) SendFunc {
	wrapped := send
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		wrapped = mws[i](wrapped)
	}
	return wrapped
}
