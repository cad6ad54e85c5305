package redisstream

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trickstertwo/xevent"
)

// ErrClosed is returned by Write and Read after Close.
var ErrClosed = errors.New("redisstream sink is closed")

// Sink appends event records to a Redis stream.
type Sink struct {
	cfg    Config
	client *redis.Client

	closeOnce sync.Once
	closed    atomic.Bool

	metrics *sinkMetrics
}

type sinkMetrics struct {
	written     atomic.Uint64
	writeErrors atomic.Uint64
	batches     atomic.Uint64
}

var _ xevent.RecordSink = (*Sink)(nil)

// NewSink connects to Redis and, unless cfg.SkipPing is set, verifies the
// connection.
func NewSink(cfg Config) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Username:   cfg.Username,
		Password:   cfg.Password,
		DB:         cfg.DB,
		MaxRetries: 3,
		PoolSize:   cfg.PoolSize,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{
			MinVersion:    tls.VersionTLS12,
			ServerName:    cfg.TLSServerName,
			Renegotiation: tls.RenegotiateNever,
		}
	}

	client := redis.NewClient(opts)
	if !cfg.SkipPing {
		if err := ping(client); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	return &Sink{cfg: cfg, client: client, metrics: &sinkMetrics{}}, nil
}

// Stream returns the stream name records are written to.
func (s *Sink) Stream() string { return s.cfg.Stream }

// Write appends recs with one pipelined XADD per record.
func (s *Sink) Write(ctx context.Context, recs []xevent.Record) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if len(recs) == 0 {
		return nil
	}
	if s.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.WriteTimeout)
		defer cancel()
	}

	pipe := s.client.Pipeline()
	for i := range recs {
		pipe.XAdd(ctx, s.addArgs(&recs[i]))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.metrics.writeErrors.Add(uint64(len(recs)))
		return fmt.Errorf("redisstream: xadd %s: %w", s.cfg.Stream, err)
	}
	s.metrics.batches.Add(1)
	s.metrics.written.Add(uint64(len(recs)))
	return nil
}

func (s *Sink) addArgs(r *xevent.Record) *redis.XAddArgs {
	args := &redis.XAddArgs{
		Stream: s.cfg.Stream,
		ID:     "*",
		Values: encodeRecord(r),
	}
	if s.cfg.MaxLenApprox > 0 {
		args.MaxLen = s.cfg.MaxLenApprox
		args.Approx = true
	}
	return args
}

// Read returns up to count records with stream ids at or after start
// ("-" for the beginning), oldest first.
func (s *Sink) Read(ctx context.Context, start string, count int64) ([]xevent.Record, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if start == "" {
		start = "-"
	}
	msgs, err := s.client.XRangeN(ctx, s.cfg.Stream, start, "+", count).Result()
	if err != nil {
		return nil, err
	}
	out := make([]xevent.Record, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, decodeRecord(m.Values))
	}
	return out, nil
}

// Close closes the Redis client. It is idempotent.
func (s *Sink) Close(_ context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		err = s.client.Close()
	})
	return err
}

// Stats returns sink telemetry.
type Stats struct {
	Written     uint64
	WriteErrors uint64
	Batches     uint64
}

func (s *Sink) Stats() Stats {
	return Stats{
		Written:     s.metrics.written.Load(),
		WriteErrors: s.metrics.writeErrors.Load(),
		Batches:     s.metrics.batches.Load(),
	}
}

func encodeRecord(r *xevent.Record) map[string]any {
	vals := make(map[string]any, 11)
	vals[fieldSession] = r.Session
	vals[fieldStage] = string(r.Stage)
	vals[fieldEventID] = strconv.FormatUint(r.EventID, 10)
	vals[fieldTypeID] = strconv.FormatInt(int64(r.TypeID), 10)
	vals[fieldTypeName] = r.TypeName
	vals[fieldPhase] = strconv.Itoa(int(r.Phase))
	vals[fieldFlags] = strconv.Itoa(encodeFlags(r))
	vals[fieldCodec] = r.Codec
	vals[fieldPayload] = r.Payload
	vals[fieldEventTime] = strconv.FormatInt(r.EventTime.UnixMicro(), 10)
	vals[fieldRecordedAt] = strconv.FormatInt(r.RecordedAt.UnixNano(), 10)
	return vals
}

func decodeRecord(vals map[string]any) xevent.Record {
	r := xevent.Record{
		Session:  asString(vals[fieldSession]),
		Stage:    xevent.RecordStage(asString(vals[fieldStage])),
		TypeName: asString(vals[fieldTypeName]),
		Codec:    asString(vals[fieldCodec]),
	}
	if n, ok := toUint64(vals[fieldEventID]); ok {
		r.EventID = n
	}
	if n, ok := toInt64(vals[fieldTypeID]); ok {
		r.TypeID = xevent.TypeID(n)
	}
	if n, ok := toInt64(vals[fieldPhase]); ok {
		r.Phase = xevent.PropagationPhase(n)
	}
	if n, ok := toInt64(vals[fieldFlags]); ok {
		decodeFlags(&r, int(n))
	}
	switch p := vals[fieldPayload].(type) {
	case []byte:
		r.Payload = p
	case string:
		r.Payload = []byte(p)
	}
	if n, ok := toInt64(vals[fieldEventTime]); ok && n > 0 {
		r.EventTime = time.UnixMicro(n)
	}
	if n, ok := toInt64(vals[fieldRecordedAt]); ok && n > 0 {
		r.RecordedAt = time.Unix(0, n)
	}
	return r
}

func encodeFlags(r *xevent.Record) int {
	var f int
	if r.PropagationStopped {
		f |= flagPropagationStopped
	}
	if r.ImmediateStopped {
		f |= flagImmediateStopped
	}
	if r.DefaultPrevented {
		f |= flagDefaultPrevented
	}
	if r.DispatchStopped {
		f |= flagDispatchStopped
	}
	return f
}

func decodeFlags(r *xevent.Record, f int) {
	r.PropagationStopped = f&flagPropagationStopped != 0
	r.ImmediateStopped = f&flagImmediateStopped != 0
	r.DefaultPrevented = f&flagDefaultPrevented != 0
	r.DispatchStopped = f&flagDispatchStopped != 0
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprintf("%v", s)
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case string:
		if n == "" {
			return 0, false
		}
		if i, err := strconv.ParseInt(n, 10, 64); err == nil {
			return i, true
		}
	case []byte:
		return toInt64(string(n))
	}
	return 0, false
}

func toUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case string:
		if u, err := strconv.ParseUint(n, 10, 64); err == nil {
			return u, true
		}
	case []byte:
		return toUint64(string(n))
	default:
		if i, ok := toInt64(v); ok && i >= 0 {
			return uint64(i), true
		}
	}
	return 0, false
}

func ping(c *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := c.Ping(ctx).Result()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("redis ping timeout: %w", err)
		}
		return err
	}
	if strings.ToUpper(res) != "PONG" {
		return fmt.Errorf("unexpected redis ping result: %s", res)
	}
	return nil
}
