// Package redis provides a traced Redis client for the shared key-set
// cache. It wraps go-redis and exposes only plain string-key commands.
//
//	cfg := redis.DefaultConfig()
//	cfg.Password = redis.Secret(os.Getenv("REDIS_PASSWORD"))
//	client, err := redis.NewClient(ctx, *cfg)
//
// Tests inject a mock [Cmdable] through [NewFromClient].
package redis

import (
	"fmt"
	"net/url"
	"time"
)

// maxStatementTruncateLen bounds statements recorded on spans.
const maxStatementTruncateLen = 100

// Defaults applied by [DefaultConfig] and [Config.Validate].
const (
	DefaultHost         = "localhost"
	DefaultPort         = 6379
	DefaultDB           = 0
	DefaultPoolSize     = 10
	DefaultMinIdleConns = 2
	DefaultMaxRetries   = 3
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second

	// DefaultHealthTimeout bounds [Client.Health] when the caller's
	// context has no deadline.
	DefaultHealthTimeout = 5 * time.Second
)

// Secret holds a password. Its string and text forms are redacted.
type Secret string

const redacted = "[REDACTED]"

func (s Secret) String() string   { return redacted }
func (s Secret) GoString() string { return redacted }

// Value returns the underlying secret.
func (s Secret) Value() string { return string(s) }

// MarshalText implements encoding.TextMarshaler.
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// Config is the Redis connection configuration. When URI is set it takes
// precedence over Host, Port, DB and Password.
type Config struct {
	// URI accepts redis:// and rediss:// (TLS).
	URI      string `json:"uri,omitempty" yaml:"uri,omitempty" env:"REDIS_URI"`
	Host     string `json:"host,omitempty" yaml:"host,omitempty" env:"REDIS_HOST"`
	Port     int    `json:"port,omitempty" yaml:"port,omitempty" env:"REDIS_PORT"`
	DB       int    `json:"db" yaml:"db" env:"REDIS_DB"`
	Password Secret `json:"-" yaml:"-" env:"REDIS_PASSWORD"`

	PoolSize     int `json:"pool_size,omitempty" yaml:"pool_size,omitempty" env:"REDIS_POOL_SIZE"`
	MinIdleConns int `json:"min_idle_conns,omitempty" yaml:"min_idle_conns,omitempty" env:"REDIS_MIN_IDLE_CONNS"`
	// MaxRetries of -1 disables retries.
	MaxRetries   int           `json:"max_retries,omitempty" yaml:"max_retries,omitempty" env:"REDIS_MAX_RETRIES"`
	DialTimeout  time.Duration `json:"dial_timeout,omitempty" yaml:"dial_timeout,omitempty" env:"REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `json:"read_timeout,omitempty" yaml:"read_timeout,omitempty" env:"REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout,omitempty" yaml:"write_timeout,omitempty" env:"REDIS_WRITE_TIMEOUT"`
	TLSEnabled   bool          `json:"tls_enabled,omitempty" yaml:"tls_enabled,omitempty" env:"REDIS_TLS_ENABLED"`
}

// DefaultConfig returns a Config for a local, unauthenticated Redis.
func DefaultConfig() *Config {
	return &Config{
		Host:         DefaultHost,
		Port:         DefaultPort,
		DB:           DefaultDB,
		PoolSize:     DefaultPoolSize,
		MinIdleConns: DefaultMinIdleConns,
		MaxRetries:   DefaultMaxRetries,
		DialTimeout:  DefaultDialTimeout,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}
}

// Validate fills zero fields with defaults and checks the rest.
func (c *Config) Validate() error {
	c.applyDefaults()

	if c.URI != "" {
		u, err := url.Parse(c.URI)
		if err != nil {
			return fmt.Errorf("redis: config URI is invalid: %w", err)
		}
		if u.Scheme != "redis" && u.Scheme != "rediss" {
			return fmt.Errorf("redis: config URI scheme must be redis:// or rediss://, got %q", u.Scheme)
		}
		return nil
	}

	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	switch {
	case c.Port < 1 || c.Port > 65535:
		return fmt.Errorf("redis: config port must be between 1 and 65535, got %d", c.Port)
	case c.DB < 0:
		return fmt.Errorf("redis: config db must be >= 0, got %d", c.DB)
	case c.PoolSize < 1:
		return fmt.Errorf("redis: config pool_size must be >= 1, got %d", c.PoolSize)
	case c.MinIdleConns < 0:
		return fmt.Errorf("redis: config min_idle_conns must be >= 0, got %d", c.MinIdleConns)
	case c.PoolSize < c.MinIdleConns:
		return fmt.Errorf("redis: config pool_size (%d) must be >= min_idle_conns (%d)", c.PoolSize, c.MinIdleConns)
	case c.DialTimeout < 0:
		return fmt.Errorf("redis: config dial_timeout must not be negative, got %v", c.DialTimeout)
	case c.ReadTimeout < 0:
		return fmt.Errorf("redis: config read_timeout must not be negative, got %v", c.ReadTimeout)
	case c.WriteTimeout < 0:
		return fmt.Errorf("redis: config write_timeout must not be negative, got %v", c.WriteTimeout)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.PoolSize == 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.MinIdleConns == 0 {
		c.MinIdleConns = DefaultMinIdleConns
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
}

// truncateStatement cuts s to maxStatementTruncateLen runes.
func truncateStatement(s string) string {
	runes := []rune(s)
	if len(runes) <= maxStatementTruncateLen {
		return s
	}
	return string(runes[:maxStatementTruncateLen]) + "..."
}
