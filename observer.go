package xevent

import (
	"strconv"

	"github.com/trickstertwo/xlog"
)

// ObserverFunc lets a plain function satisfy Observer.
type ObserverFunc func(s Signal)

func (f ObserverFunc) OnSignal(s Signal) { f(s) }

// LoggingObserver writes every signal to an xlog logger. Errors and
// unhandled events log at warn, everything else at debug.
type LoggingObserver struct {
	Logger *xlog.Logger
}

func (o LoggingObserver) OnSignal(s Signal) {
	if o.Logger == nil {
		return
	}
	l := o.Logger.With(
		xlog.Str("signal", string(s.Type)),
		xlog.Str("event_type", s.EventName),
		xlog.Str("event_id", strconv.FormatUint(s.EventID, 10)),
	)
	if s.Strategy != "" {
		l = l.With(xlog.Str("strategy", s.Strategy))
	}
	switch s.Type {
	case Error:
		l.Warn().Err(s.Err).Msg("xevent dispatch failed")
	case Unhandled:
		l.Warn().Msg("xevent no strategy accepted event")
	default:
		if s.Duration > 0 {
			l = l.With(xlog.Dur("duration", s.Duration))
		}
		l.Debug().Str("phase", s.Phase.String()).Msg("xevent signal")
	}
}
