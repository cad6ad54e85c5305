// Package redisstream records xevent dispatch activity into a Redis stream.
//
// Sink name: "redis-streams"
//
// Config keys:
//   - addr: "host:port" (default "127.0.0.1:6379")
//   - stream: stream key (default "xevent:records")
//   - max_len_approx: approximate MAXLEN trim, 0 disables (default 100000)
//   - write_timeout: per-batch XADD timeout (default 2s)
//   - pool_size: connection pool size (default 10)
//
// Every key can also come from XEVENT_REDIS_* environment variables through
// ConfigFromEnv.
//
//	coord := redisstream.Use(redisstream.Defaults(), redisstream.WithLogger(logger))
//	defer coord.Dispatcher().Close(ctx)
package redisstream
