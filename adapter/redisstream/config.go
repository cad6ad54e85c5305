package redisstream

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config for the Redis Streams record sink.
type Config struct {
	// Connection
	Addr          string `env:"XEVENT_REDIS_ADDR"`
	Username      string `env:"XEVENT_REDIS_USERNAME"`
	Password      string `env:"XEVENT_REDIS_PASSWORD"`
	DB            int    `env:"XEVENT_REDIS_DB"`
	TLS           bool   `env:"XEVENT_REDIS_TLS"`
	TLSServerName string `env:"XEVENT_REDIS_TLS_SERVER_NAME"`
	PoolSize      int    `env:"XEVENT_REDIS_POOL_SIZE"`

	// Stream management
	Stream       string        `env:"XEVENT_REDIS_STREAM"`
	MaxLenApprox int64         `env:"XEVENT_REDIS_MAX_LEN_APPROX"`
	WriteTimeout time.Duration `env:"XEVENT_REDIS_WRITE_TIMEOUT"`

	// SkipPing disables the connectivity check in NewSink.
	SkipPing bool `env:"XEVENT_REDIS_SKIP_PING"`
}

// Defaults returns a Config with production-safe defaults.
func Defaults() Config {
	return Config{
		Addr:         "127.0.0.1:6379",
		PoolSize:     10,
		Stream:       "xevent:records",
		MaxLenApprox: 100_000,
		WriteTimeout: 2 * time.Second,
	}
}

// ConfigFromEnv overlays XEVENT_REDIS_* environment variables on Defaults.
func ConfigFromEnv() (Config, error) {
	c := Defaults()
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("redisstream: parse env: %w", err)
	}
	return c, c.Validate()
}

// Validate checks Config for production readiness.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("config: addr required")
	}
	if c.Stream == "" {
		return fmt.Errorf("config: stream required")
	}
	if c.DB < 0 {
		return fmt.Errorf("config: db must be >= 0, got %d", c.DB)
	}
	if c.PoolSize < 1 {
		return fmt.Errorf("config: pool_size must be >= 1, got %d", c.PoolSize)
	}
	if c.MaxLenApprox < 0 {
		return fmt.Errorf("config: max_len_approx must be >= 0, got %d", c.MaxLenApprox)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("config: write_timeout must be >= 0, got %v", c.WriteTimeout)
	}
	return nil
}

// toMap converts Config to the generic map expected by the sink factory.
func (c Config) toMap() map[string]any {
	return map[string]any{
		"addr":            c.Addr,
		"username":        c.Username,
		"password":        c.Password,
		"db":              c.DB,
		"tls":             c.TLS,
		"tls_server_name": c.TLSServerName,
		"pool_size":       c.PoolSize,
		"stream":          c.Stream,
		"max_len_approx":  c.MaxLenApprox,
		"write_timeout":   c.WriteTimeout,
		"skip_ping":       c.SkipPing,
	}
}

// ConfigFromMap converts a generic map to Config, keeping Defaults for
// missing or mistyped keys.
func ConfigFromMap(m map[string]any) Config {
	c := Defaults()

	if v, ok := m["addr"].(string); ok && v != "" {
		c.Addr = v
	}
	if v, ok := m["username"].(string); ok {
		c.Username = v
	}
	if v, ok := m["password"].(string); ok {
		c.Password = v
	}
	if v, ok := m["db"].(int); ok {
		c.DB = v
	}
	if v, ok := m["tls"].(bool); ok {
		c.TLS = v
	}
	if v, ok := m["tls_server_name"].(string); ok {
		c.TLSServerName = v
	}
	if v, ok := m["pool_size"].(int); ok && v > 0 {
		c.PoolSize = v
	}
	if v, ok := m["stream"].(string); ok && v != "" {
		c.Stream = v
	}
	if v, ok := toInt64(m["max_len_approx"]); ok && v >= 0 {
		c.MaxLenApprox = v
	}
	switch v := m["write_timeout"].(type) {
	case time.Duration:
		c.WriteTimeout = v
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			c.WriteTimeout = d
		}
	}
	if v, ok := m["skip_ping"].(bool); ok {
		c.SkipPing = v
	}
	return c
}
