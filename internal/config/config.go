// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New returns a Config populated with defaults.
// - Load layers an optional YAML file and SPMS_* environment variables on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Supported database drivers.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// Deployment environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// DevSigningKey is the built-in JWT key. Production refuses to start with it.
const DevSigningKey = "dev-signing-secret-change"

// Supported resolution queue backends.
const (
	QueueMemory = "memory"
	QueueRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// Env is development or production.
	Env string `koanf:"env"`

	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DatabaseDriver is pgx (PostgreSQL) or sqlite.
	DatabaseDriver string `koanf:"database_driver"`

	// DatabaseURL is the driver DSN; a file path for sqlite.
	DatabaseURL string `koanf:"database_url"`

	// QueueBackend selects where resolution jobs wait: memory or redis.
	QueueBackend string `koanf:"queue_backend"`

	// RedisAddr is used when QueueBackend is redis.
	RedisAddr string `koanf:"redis_addr"`

	// QueueKey names the Redis list holding resolution jobs.
	QueueKey string `koanf:"queue_key"`

	// QueueSize bounds the in-memory resolution queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of resolution workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds how many scheduled quarter ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// CloserIntervalMS is how often ended quarters are scanned; 0 disables the closer.
	CloserIntervalMS int `koanf:"closer_interval_ms"`

	// RandomSeed seeds winner and prize draws; 0 seeds from the clock.
	RandomSeed int64 `koanf:"random_seed"`

	// JWTSigningKey verifies HS256 bearer tokens issued by the login service.
	JWTSigningKey string `koanf:"jwt_signing_key"`

	// JWTIssuer is the expected iss claim; empty skips the check.
	JWTIssuer string `koanf:"jwt_issuer"`

	// MaxPageLimit caps limit on paged list endpoints.
	MaxPageLimit int `koanf:"max_page_limit"`
}

// New creates a Config with defaults suitable for local development.
func New() *Config {
	return &Config{
		Env:              EnvDevelopment,
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		DatabaseDriver:   DriverSQLite,
		DatabaseURL:      "spms.db",
		QueueBackend:     QueueMemory,
		RedisAddr:        "localhost:6379",
		QueueKey:         "spms:resolutions",
		QueueSize:        1_000,
		WorkerCount:      runtime.NumCPU(),
		DedupeSize:       10_000,
		CloserIntervalMS: 60_000,
		RandomSeed:       0,
		JWTSigningKey:    DevSigningKey,
		JWTIssuer:        "spms",
		MaxPageLimit:     100,
	}
}

// CloserInterval returns CloserIntervalMS as a duration.
func (c *Config) CloserInterval() time.Duration {
	return time.Duration(c.CloserIntervalMS) * time.Millisecond
}

// UsesDevSigningKey reports whether tokens are verified with the built-in key.
func (c *Config) UsesDevSigningKey() bool {
	return c.JWTSigningKey == DevSigningKey
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.DatabaseURL) == "":
		return fmt.Errorf("%w: database_url must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.JWTSigningKey) == "":
		return fmt.Errorf("%w: jwt_signing_key must not be empty", ErrInvalidConfig)
	case c.MaxPageLimit < 1:
		return fmt.Errorf("%w: max_page_limit must be positive", ErrInvalidConfig)
	case c.CloserIntervalMS < 0:
		return fmt.Errorf("%w: closer_interval_ms must not be negative", ErrInvalidConfig)
	}
	switch c.Env {
	case EnvDevelopment:
	case EnvProduction:
		if c.UsesDevSigningKey() {
			return fmt.Errorf("%w: jwt_signing_key must be set in production", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown env %q", ErrInvalidConfig, c.Env)
	}
	switch c.DatabaseDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("%w: unknown database_driver %q", ErrInvalidConfig, c.DatabaseDriver)
	}
	switch c.QueueBackend {
	case QueueMemory:
	case QueueRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return fmt.Errorf("%w: redis_addr must not be empty for the redis queue", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown queue_backend %q", ErrInvalidConfig, c.QueueBackend)
	}
	return nil
}
