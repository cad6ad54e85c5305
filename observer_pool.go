package xevent

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trickstertwo/xlog"
)

// ObserverPool delivers signals to observers on background workers so a slow
// observer never stalls Send. When the buffer is full the signal is dropped.
type ObserverPool struct {
	signalCh  chan Signal
	workers   int
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closed    atomic.Bool
	dropped   atomic.Uint64
	processed atomic.Uint64
	logger    *xlog.Logger
}

// NewObserverPool starts workers goroutines reading from a buffer of
// bufferSize signals. Non-positive values fall back to 2 and 1024.
func NewObserverPool(ctx context.Context, workers, bufferSize int, logger *xlog.Logger) *ObserverPool {
	if workers < 1 {
		workers = 2
	}
	if bufferSize < 1 {
		bufferSize = 1024
	}
	if ctx == nil {
		ctx = context.Background()
	}

	poolCtx, cancel := context.WithCancel(ctx)
	op := &ObserverPool{
		signalCh: make(chan Signal, bufferSize),
		workers:  workers,
		ctx:      poolCtx,
		cancel:   cancel,
		logger:   logger,
	}
	for i := 0; i < workers; i++ {
		op.wg.Add(1)
		go op.worker()
	}
	return op
}

// Notify queues s for the given observers. It never blocks. The observers
// slice is retained, so callers must not mutate it afterwards.
func (op *ObserverPool) Notify(s Signal, observers []Observer) {
	if len(observers) == 0 || op.closed.Load() {
		return
	}
	s.observers = observers

	select {
	case op.signalCh <- s:
	default:
		op.dropped.Add(1)
	}
}

func (op *ObserverPool) worker() {
	defer op.wg.Done()
	for {
		select {
		case <-op.ctx.Done():
			// drain what is already queued
			for {
				select {
				case s := <-op.signalCh:
					op.deliver(s)
				default:
					return
				}
			}
		case s := <-op.signalCh:
			op.deliver(s)
		}
	}
}

func (op *ObserverPool) deliver(s Signal) {
	for _, obs := range s.observers {
		if obs == nil {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil && op.logger != nil {
					op.logger.Error().
						Str("signal", string(s.Type)).
						Str("panic", fmt.Sprint(r)).
						Msg("xevent observer panicked")
				}
			}()
			obs.OnSignal(s)
		}()
	}
	op.processed.Add(1)
}

// Close stops the workers after the queue drains, waiting at most timeout.
func (op *ObserverPool) Close(timeout time.Duration) error {
	if op.closed.Swap(true) {
		return nil
	}
	op.cancel()

	done := make(chan struct{})
	go func() {
		op.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrObserverPoolShutdown
	}
}

// Stats returns current pool statistics.
func (op *ObserverPool) Stats() ObserverPoolStats {
	return ObserverPoolStats{
		Dropped:      op.dropped.Load(),
		Processed:    op.processed.Load(),
		ActiveEvents: len(op.signalCh),
		Workers:      op.workers,
		BufferSize:   cap(op.signalCh),
	}
}
