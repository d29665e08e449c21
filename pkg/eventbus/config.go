package eventbus

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls broker connectivity and bus behavior.
type Config struct {
	// Connection
	Addr     string
	Username string
	Password string
	DB       int

	// Enabled switches the whole bus on/off. When false, Publish is a no-op
	// returning false and no broker connection is ever attempted.
	Enabled bool

	// DialTimeout bounds a single connection attempt.
	DialTimeout time.Duration

	// MaxConnectAttempts bounds retries after the initial failed attempt.
	// Before retry n the connector sleeps BackoffBase << (n-1), so the
	// defaults give 1s, 2s, 4s (~7s worst case) before giving up.
	MaxConnectAttempts int
	BackoffBase        time.Duration

	// CacheTTL is the lifetime of the per-type last-event cache entries.
	CacheTTL time.Duration
}

// Defaults returns a Config with production-safe defaults.
func Defaults() Config {
	return Config{
		Addr:               "127.0.0.1:6379",
		DB:                 0,
		Enabled:            true,
		DialTimeout:        5 * time.Second,
		MaxConnectAttempts: 3,
		BackoffBase:        time.Second,
		CacheTTL:           time.Hour,
	}
}

// FromEnv returns Defaults overridden by environment variables:
// REDIS_ADDR, REDIS_USERNAME, REDIS_PASSWORD, REDIS_DB, EVENT_BUS_ENABLED.
func FromEnv() Config {
	cfg := Defaults()
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("REDIS_USERNAME"); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.DB = db
		}
	}
	if v := os.Getenv("EVENT_BUS_ENABLED"); v != "" {
		cfg.Enabled = parseBool(v, cfg.Enabled)
	}
	return cfg
}

// Validate checks Config for readiness.
func (c Config) Validate() error {
	if c.Enabled && c.Addr == "" {
		return fmt.Errorf("eventbus config: addr required when enabled")
	}
	if c.MaxConnectAttempts < 1 {
		return fmt.Errorf("eventbus config: max_connect_attempts must be >= 1, got %d", c.MaxConnectAttempts)
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("eventbus config: dial_timeout must be > 0, got %v", c.DialTimeout)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("eventbus config: cache_ttl must be > 0, got %v", c.CacheTTL)
	}
	return nil
}

func parseBool(v string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}
