package redisstream

import (
	"fmt"

	"github.com/trickstertwo/xevent"
)

const SinkName = "redis-streams"

func init() {
	if err := xevent.RegisterSink(SinkName, func(cfg map[string]any) (xevent.RecordSink, error) {
		return NewSink(ConfigFromMap(cfg))
	}); err != nil {
		panic(fmt.Errorf("xevent: failed to register sink %q: %w", SinkName, err))
	}
}

// Use builds a dispatcher that records every event into Redis, installs its
// coordinator as the process default and returns it. It panics when Redis is
// unreachable or cfg is invalid.
func Use(cfg Config, opts ...Option) *xevent.EventCoordinator {
	o := options{builder: xevent.NewDispatcherBuilder()}
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}

	sink, err := xevent.NewSink(SinkName, cfg.toMap())
	if err != nil {
		panic(fmt.Errorf("redisstream.Use: %w", err))
	}
	rec, err := xevent.NewRecorder(sink, o.recorder...)
	if err != nil {
		panic(fmt.Errorf("redisstream.Use: %w", err))
	}
	d, err := o.builder.WithDebugger(rec).Build()
	if err != nil {
		panic(fmt.Errorf("redisstream.Use: %w", err))
	}

	coord := xevent.NewCoordinator(d)
	xevent.SetDefault(coord)
	return coord
}
