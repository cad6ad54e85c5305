package xevent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
	"go.uber.org/multierr"
)

// InterceptFunc decides whether a Recorder consumes an event instead of
// letting it dispatch.
type InterceptFunc func(ctx context.Context, evt Event) bool

// Recorder is a Debugger that snapshots every event before and after
// dispatch and writes the records to a RecordSink on a background goroutine.
// Records are dropped when the buffer is full, so a slow sink never stalls
// Send.
type Recorder struct {
	sink      RecordSink
	codec     Codec
	clock     xclock.Clock
	logger    *xlog.Logger
	session   string
	intercept InterceptFunc

	recCh      chan Record
	batchSize  int
	flushEvery time.Duration

	done      chan struct{}
	wg        sync.WaitGroup
	enqueueMu sync.RWMutex // held for write while closing
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	captured atomic.Uint64
	written  atomic.Uint64
	dropped  atomic.Uint64
	failed   atomic.Uint64
}

var _ Debugger = (*Recorder)(nil)

// RecorderStats returns telemetry about a recorder.
type RecorderStats struct {
	Captured uint64 // Records taken from events
	Written  uint64 // Records accepted by the sink
	Dropped  uint64 // Records lost to a full buffer
	Failed   uint64 // Records in batches the sink rejected
}

type recorderConfig struct {
	codec      Codec
	clock      xclock.Clock
	logger     *xlog.Logger
	session    string
	intercept  InterceptFunc
	buffer     int
	batchSize  int
	flushEvery time.Duration
}

// RecorderOption configures a Recorder.
type RecorderOption func(*recorderConfig)

// WithRecorderCodec sets the payload codec (default JSON).
func WithRecorderCodec(c Codec) RecorderOption {
	return func(cfg *recorderConfig) { cfg.codec = c }
}

func WithRecorderClock(c xclock.Clock) RecorderOption {
	return func(cfg *recorderConfig) { cfg.clock = c }
}

func WithRecorderLogger(l *xlog.Logger) RecorderOption {
	return func(cfg *recorderConfig) { cfg.logger = l }
}

// WithRecorderSession overrides the generated session id.
func WithRecorderSession(id string) RecorderOption {
	return func(cfg *recorderConfig) { cfg.session = id }
}

// WithInterceptFunc lets the recorder consume events matching fn.
func WithInterceptFunc(fn InterceptFunc) RecorderOption {
	return func(cfg *recorderConfig) { cfg.intercept = fn }
}

// WithRecorderBuffer sets how many records may wait for the sink.
func WithRecorderBuffer(n int) RecorderOption {
	return func(cfg *recorderConfig) {
		if n > 0 {
			cfg.buffer = n
		}
	}
}

// WithRecorderBatch sets the batch size and the longest a partial batch waits.
func WithRecorderBatch(size int, every time.Duration) RecorderOption {
	return func(cfg *recorderConfig) {
		if size > 0 {
			cfg.batchSize = size
		}
		if every > 0 {
			cfg.flushEvery = every
		}
	}
}

// NewRecorder starts a recorder writing to sink.
func NewRecorder(sink RecordSink, opts ...RecorderOption) (*Recorder, error) {
	if sink == nil {
		return nil, errors.New("xevent: recorder sink must not be nil")
	}
	cfg := recorderConfig{
		buffer:     4096,
		batchSize:  64,
		flushEvery: 100 * time.Millisecond,
	}
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}
	if cfg.codec == nil {
		cfg.codec = JSONCodec{}
	}
	if cfg.clock == nil {
		cfg.clock = xclock.Default()
	}
	if cfg.logger == nil {
		cfg.logger = xlog.Default()
	}
	if cfg.session == "" {
		cfg.session = uuid.NewString()
	}

	r := &Recorder{
		sink:       sink,
		codec:      cfg.codec,
		clock:      cfg.clock,
		logger:     cfg.logger,
		session:    cfg.session,
		intercept:  cfg.intercept,
		recCh:      make(chan Record, cfg.buffer),
		batchSize:  cfg.batchSize,
		flushEvery: cfg.flushEvery,
		done:       make(chan struct{}),
	}
	r.wg.Add(1)
	go r.run()
	return r, nil
}

// Session returns the id stamped on every record of this recorder.
func (r *Recorder) Session() string { return r.session }

// InterceptEvent records the event and consumes it when the intercept
// function says so.
func (r *Recorder) InterceptEvent(ctx context.Context, evt Event) bool {
	r.capture(StageBefore, evt)
	return r.intercept != nil && r.intercept(ctx, evt)
}

// PostProcessEvent records the event as dispatch left it.
func (r *Recorder) PostProcessEvent(_ context.Context, evt Event) {
	r.capture(StageAfter, evt)
}

func (r *Recorder) capture(stage RecordStage, evt Event) {
	if r.closed.Load() || evt == nil {
		return
	}
	b := evt.Base()
	rec := Record{
		Session:            r.session,
		Stage:              stage,
		EventID:            b.eventID,
		TypeID:             b.typeID,
		TypeName:           TypeName(b.typeID),
		Phase:              b.phase,
		PropagationStopped: b.propagationStopped,
		ImmediateStopped:   b.immediateStopped,
		DefaultPrevented:   b.defaultPrevented,
		DispatchStopped:    b.stopDispatch,
		Codec:              r.codec.Name(),
		EventTime:          b.Time(),
		RecordedAt:         r.clock.Now(),
	}
	payload, err := r.codec.Marshal(evt)
	if err != nil {
		r.logger.Warn().
			Str("event_type", rec.TypeName).
			Err(err).
			Msg("xevent recorder: payload encode failed")
	} else {
		rec.Payload = payload
	}
	r.enqueueMu.RLock()
	defer r.enqueueMu.RUnlock()
	if r.closed.Load() {
		return
	}
	r.captured.Add(1)

	select {
	case r.recCh <- rec:
	default:
		r.dropped.Add(1)
	}
}

func (r *Recorder) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.flushEvery)
	defer ticker.Stop()

	batch := make([]Record, 0, r.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		r.write(batch)
		batch = make([]Record, 0, r.batchSize)
	}

	for {
		select {
		case rec := <-r.recCh:
			batch = append(batch, rec)
			if len(batch) >= r.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-r.done:
			for {
				select {
				case rec := <-r.recCh:
					batch = append(batch, rec)
					if len(batch) >= r.batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

func (r *Recorder) write(batch []Record) {
	if err := r.sink.Write(context.Background(), batch); err != nil {
		r.failed.Add(uint64(len(batch)))
		r.logger.Warn().
			Str("session", r.session).
			Err(err).
			Msg("xevent recorder: sink write failed")
		return
	}
	r.written.Add(uint64(len(batch)))
}

// Flush blocks until every record captured so far has reached the sink or
// ctx is done.
func (r *Recorder) Flush(ctx context.Context) error {
	for {
		s := r.Stats()
		if s.Written+s.Dropped+s.Failed >= s.Captured {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

// Stats returns current recorder statistics.
func (r *Recorder) Stats() RecorderStats {
	return RecorderStats{
		Captured: r.captured.Load(),
		Written:  r.written.Load(),
		Dropped:  r.dropped.Load(),
		Failed:   r.failed.Load(),
	}
}

// Close stops capturing, drains queued records into the sink and closes it.
func (r *Recorder) Close(ctx context.Context) error {
	r.closeOnce.Do(func() {
		r.enqueueMu.Lock()
		r.closed.Store(true)
		close(r.done)
		r.enqueueMu.Unlock()
		if ctx == nil {
			ctx = context.Background()
		}

		finished := make(chan struct{})
		go func() {
			r.wg.Wait()
			close(finished)
		}()

		var err error
		select {
		case <-finished:
		case <-ctx.Done():
			err = multierr.Append(err, ErrRecorderShutdownTimeout)
		}
		err = multierr.Append(err, r.sink.Close(ctx))
		r.closeErr = err
	})
	return r.closeErr
}
