package xevent

import (
	"context"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// ctxKey is the base for all context keys in xevent (prevents collisions).
type ctxKey string

const (
	coordinatorCtxKey ctxKey = "xevent:coordinator"
	loggerCtxKey      ctxKey = "xevent:logger"
	clockCtxKey       ctxKey = "xevent:clock"
)

func injectCoordinator(ctx context.Context, c Coordinator) context.Context {
	if c == nil {
		return ctx
	}
	return context.WithValue(ctx, coordinatorCtxKey, c)
}

// CoordinatorFromContext returns the coordinator of the Send that invoked the
// callback, so follow-up events stay in the same domain.
func CoordinatorFromContext(ctx context.Context) (Coordinator, bool) {
	if v := ctx.Value(coordinatorCtxKey); v != nil {
		if c, ok := v.(Coordinator); ok && c != nil {
			return c, true
		}
	}
	return nil, false
}

func injectLogger(ctx context.Context, l *xlog.Logger) context.Context {
	if l == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerCtxKey, l)
}

func LoggerFromContext(ctx context.Context) (*xlog.Logger, bool) {
	if v := ctx.Value(loggerCtxKey); v != nil {
		if l, ok := v.(*xlog.Logger); ok && l != nil {
			return l, true
		}
	}
	return nil, false
}

func injectClock(ctx context.Context, c xclock.Clock) context.Context {
	if c == nil {
		return ctx
	}
	return context.WithValue(ctx, clockCtxKey, c)
}

func ClockFromContext(ctx context.Context) (xclock.Clock, bool) {
	if v := ctx.Value(clockCtxKey); v != nil {
		if c, ok := v.(xclock.Clock); ok && c != nil {
			return c, true
		}
	}
	return nil, false
}

// InjectAll attaches the coordinator, logger and clock in one call.
func InjectAll(ctx context.Context, c Coordinator, logger *xlog.Logger, clock xclock.Clock) context.Context {
	ctx = injectCoordinator(ctx, c)
	ctx = injectLogger(ctx, logger)
	ctx = injectClock(ctx, clock)
	return ctx
}
