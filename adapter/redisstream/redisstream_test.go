package redisstream

import (
	"context"
	"fmt"
	"math"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trickstertwo/xevent"
)

// Move is a sample game event.
type Move struct {
	xevent.EventBase
	X, Y int
}

// testConfig returns a config for the live Redis tests, skipping when
// XEVENT_REDIS_ADDR is unset or the server does not answer.
func testConfig(t testing.TB, stream string) Config {
	t.Helper()
	if os.Getenv("XEVENT_REDIS_ADDR") == "" {
		t.Skip("XEVENT_REDIS_ADDR not set")
	}
	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	cfg.Stream = stream

	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Username: cfg.Username, Password: cfg.Password, DB: cfg.DB})
	defer client.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	_ = client.Del(ctx, stream).Err()
	return cfg
}

func cleanupStream(t testing.TB, cfg Config) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Username: cfg.Username, Password: cfg.Password, DB: cfg.DB})
	defer client.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = client.Del(ctx, cfg.Stream).Err()
}

func TestConfigFromMap_DefaultsAndOverrides(t *testing.T) {
	c := ConfigFromMap(nil)
	assert.Equal(t, Defaults(), c)

	c = ConfigFromMap(map[string]any{
		"addr":           "redis:6380",
		"stream":         "game:events",
		"db":             2,
		"pool_size":      4,
		"max_len_approx": 500,
		"write_timeout":  "750ms",
		"skip_ping":      true,
	})
	assert.Equal(t, "redis:6380", c.Addr)
	assert.Equal(t, "game:events", c.Stream)
	assert.Equal(t, 2, c.DB)
	assert.Equal(t, 4, c.PoolSize)
	assert.Equal(t, int64(500), c.MaxLenApprox)
	assert.Equal(t, 750*time.Millisecond, c.WriteTimeout)
	assert.True(t, c.SkipPing)
}

func TestConfigFromMap_IgnoresMistypedValues(t *testing.T) {
	c := ConfigFromMap(map[string]any{
		"addr":      42,
		"pool_size": "many",
		"stream":    "",
	})
	d := Defaults()
	assert.Equal(t, d.Addr, c.Addr)
	assert.Equal(t, d.PoolSize, c.PoolSize)
	assert.Equal(t, d.Stream, c.Stream)
}

func TestConfig_toMapRoundTrip(t *testing.T) {
	c := Defaults()
	c.Addr = "cache:6379"
	c.Stream = "s"
	c.DB = 3
	c.TLS = true
	c.TLSServerName = "cache.local"
	assert.Equal(t, c, ConfigFromMap(c.toMap()))
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, Defaults().Validate())

	cases := map[string]func(*Config){
		"addr":      func(c *Config) { c.Addr = "" },
		"stream":    func(c *Config) { c.Stream = "" },
		"db":        func(c *Config) { c.DB = -1 },
		"pool_size": func(c *Config) { c.PoolSize = 0 },
		"max_len":   func(c *Config) { c.MaxLenApprox = -1 },
		"timeout":   func(c *Config) { c.WriteTimeout = -time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Defaults()
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("XEVENT_REDIS_ADDR", "env-host:6390")
	t.Setenv("XEVENT_REDIS_STREAM", "env:stream")
	t.Setenv("XEVENT_REDIS_DB", "5")
	t.Setenv("XEVENT_REDIS_WRITE_TIMEOUT", "3s")
	t.Setenv("XEVENT_REDIS_POOL_SIZE", "7")

	c, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "env-host:6390", c.Addr)
	assert.Equal(t, "env:stream", c.Stream)
	assert.Equal(t, 5, c.DB)
	assert.Equal(t, 3*time.Second, c.WriteTimeout)
	assert.Equal(t, 7, c.PoolSize)
}

func TestConfigFromEnv_InvalidValue(t *testing.T) {
	t.Setenv("XEVENT_REDIS_DB", "not-a-number")
	_, err := ConfigFromEnv()
	assert.Error(t, err)
}

func TestEncodeDecodeRecord(t *testing.T) {
	now := time.UnixMicro(1_700_000_000_123_456)
	in := xevent.Record{
		Session:            "s-1",
		Stage:              xevent.StageAfter,
		EventID:            99,
		TypeID:             7,
		TypeName:           "redisstream.Move",
		Phase:              xevent.PhaseDefaultAction,
		PropagationStopped: true,
		DefaultPrevented:   true,
		DispatchStopped:    true,
		Codec:              "json",
		Payload:            []byte(`{"X":1,"Y":2}`),
		EventTime:          now,
		RecordedAt:         now.Add(time.Millisecond),
	}

	out := decodeRecord(encodeRecord(&in))
	assert.Equal(t, in.Session, out.Session)
	assert.Equal(t, in.Stage, out.Stage)
	assert.Equal(t, in.EventID, out.EventID)
	assert.Equal(t, in.TypeID, out.TypeID)
	assert.Equal(t, in.TypeName, out.TypeName)
	assert.Equal(t, in.Phase, out.Phase)
	assert.True(t, out.PropagationStopped)
	assert.False(t, out.ImmediateStopped)
	assert.True(t, out.DefaultPrevented)
	assert.True(t, out.DispatchStopped)
	assert.Equal(t, in.Payload, out.Payload)
	assert.True(t, in.EventTime.Equal(out.EventTime))
	assert.True(t, in.RecordedAt.Equal(out.RecordedAt))
}

func TestDecodeRecord_StringValues(t *testing.T) {
	// XRANGE replies carry every field as a string
	out := decodeRecord(map[string]any{
		fieldEventID: "12",
		fieldTypeID:  "3",
		fieldFlags:   "2",
		fieldPayload: `{"X":5}`,
	})
	assert.Equal(t, uint64(12), out.EventID)
	assert.Equal(t, xevent.TypeID(3), out.TypeID)
	assert.True(t, out.ImmediateStopped)
	assert.Equal(t, []byte(`{"X":5}`), out.Payload)
	assert.True(t, out.EventTime.IsZero())
}

func TestDecodeRecord_LargeEventID(t *testing.T) {
	in := xevent.Record{EventID: math.MaxUint64 - 1}
	out := decodeRecord(encodeRecord(&in))
	assert.Equal(t, uint64(math.MaxUint64-1), out.EventID)

	out = decodeRecord(map[string]any{fieldEventID: "18446744073709551615"})
	assert.Equal(t, uint64(math.MaxUint64), out.EventID)
}

func TestNewSink_InvalidConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Stream = ""
	_, err := NewSink(cfg)
	assert.Error(t, err)
}

func TestSink_ClosedRejectsWrites(t *testing.T) {
	cfg := Defaults()
	cfg.SkipPing = true
	s, err := NewSink(cfg)
	require.NoError(t, err)

	require.NoError(t, s.Close(context.Background()))
	require.NoError(t, s.Close(context.Background()))

	err = s.Write(context.Background(), []xevent.Record{{Session: "x"}})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Read(context.Background(), "-", 10)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSink_RegisteredFactory(t *testing.T) {
	cfg := Defaults()
	cfg.SkipPing = true
	rs, err := xevent.NewSink(SinkName, cfg.toMap())
	require.NoError(t, err)
	defer rs.Close(context.Background())
	assert.IsType(t, &Sink{}, rs)
}

func TestSink_WriteAndRead(t *testing.T) {
	cfg := testConfig(t, "xevent-test:write-read")
	defer cleanupStream(t, cfg)

	s, err := NewSink(cfg)
	require.NoError(t, err)
	defer s.Close(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	recs := make([]xevent.Record, 10)
	for i := range recs {
		recs[i] = xevent.Record{
			Session: "write-read",
			Stage:   xevent.StageBefore,
			EventID: uint64(i + 1),
			Codec:   "json",
			Payload: []byte(fmt.Sprintf(`{"X":%d}`, i)),
		}
	}
	require.NoError(t, s.Write(ctx, recs))

	got, err := s.Read(ctx, "-", 100)
	require.NoError(t, err)
	require.Len(t, got, 10)
	for i, r := range got {
		assert.Equal(t, uint64(i+1), r.EventID)
		assert.Equal(t, "write-read", r.Session)
	}
	assert.Equal(t, uint64(10), s.Stats().Written)
	assert.Equal(t, uint64(1), s.Stats().Batches)
}

func TestRecorder_RecordsThroughDispatcher(t *testing.T) {
	cfg := testConfig(t, "xevent-test:recorder")
	defer cleanupStream(t, cfg)

	s, err := NewSink(cfg)
	require.NoError(t, err)

	rec, err := xevent.NewRecorder(s, xevent.WithRecorderBatch(8, 10*time.Millisecond))
	require.NoError(t, err)
	d, err := xevent.NewDispatcherBuilder().WithDebugger(rec).WithoutLoggingObserver().Build()
	require.NoError(t, err)
	coord := xevent.NewCoordinator(d)

	var target xevent.CallbackRegistry
	_, err = xevent.RegisterCallback(&target, func(ctx context.Context, m *Move) error { return nil })
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 0; i < 5; i++ {
		m := xevent.Acquire[Move]()
		m.X, m.Y = i, -i
		m.SetTarget(&target)
		require.NoError(t, coord.SendAndRelease(ctx, m))
	}
	require.NoError(t, rec.Flush(ctx))
	require.NoError(t, d.Close(ctx))

	reader, err := NewSink(cfg)
	require.NoError(t, err)
	defer reader.Close(context.Background())

	got, err := reader.Read(ctx, "-", 100)
	require.NoError(t, err)
	require.Len(t, got, 10)

	after := got[1]
	assert.Equal(t, xevent.StageAfter, after.Stage)
	assert.True(t, after.DispatchStopped)
	mv, err := xevent.DecodeRecord[Move](&after)
	require.NoError(t, err)
	assert.Equal(t, 0, mv.X)

	last, err := xevent.DecodeRecord[Move](&got[9])
	require.NoError(t, err)
	assert.Equal(t, 4, last.X)
	assert.Equal(t, -4, last.Y)
}

func BenchmarkSink_Write(b *testing.B) {
	cfg := testConfig(b, "xevent-bench:write")
	defer cleanupStream(b, cfg)

	s, err := NewSink(cfg)
	require.NoError(b, err)
	defer s.Close(context.Background())

	batch := make([]xevent.Record, 64)
	for i := range batch {
		batch[i] = xevent.Record{Session: "bench", EventID: uint64(i), Payload: []byte(`{"X":1}`)}
	}
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.Write(ctx, batch)
	}
	b.ReportMetric(float64(len(batch)), "records/op")
}
