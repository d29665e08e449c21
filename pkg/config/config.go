package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/grupoatlas/erpbus/pkg/eventbus"
	"github.com/grupoatlas/erpbus/pkg/log"
)

// Config is the daemon configuration.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Bus      BusConfig      `yaml:"bus"`
	Database DatabaseConfig `yaml:"database"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// LogConfig selects level and output format.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// BusConfig mirrors eventbus.Config in YAML form.
type BusConfig struct {
	Addr               string        `yaml:"addr"`
	Username           string        `yaml:"username"`
	Password           string        `yaml:"password"`
	DB                 int           `yaml:"db"`
	Enabled            *bool         `yaml:"enabled"`
	DialTimeout        time.Duration `yaml:"dial_timeout"`
	MaxConnectAttempts int           `yaml:"max_connect_attempts"`
	CacheTTL           time.Duration `yaml:"cache_ttl"`
}

// DatabaseConfig points at the ERP read database. An empty DSN runs the
// daemon bus-only, without aggregation providers.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// MetricsConfig controls the /metrics + /healthz listener.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the zero-file configuration.
func Default() Config {
	return Config{
		Log:     LogConfig{Level: "info", JSON: true},
		Metrics: MetricsConfig{Addr: ":9090"},
	}
}

// Load reads the YAML file at path (optional; empty path skips the file),
// applies environment overrides, and returns the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	return cfg, nil
}

// BusConfig converts the YAML form into an eventbus.Config, starting from
// eventbus defaults plus bus-related environment variables.
func (c Config) BusConfig() eventbus.Config {
	bus := eventbus.FromEnv()

	if c.Bus.Addr != "" {
		bus.Addr = c.Bus.Addr
	}
	if c.Bus.Username != "" {
		bus.Username = c.Bus.Username
	}
	if c.Bus.Password != "" {
		bus.Password = c.Bus.Password
	}
	if c.Bus.DB != 0 {
		bus.DB = c.Bus.DB
	}
	if c.Bus.Enabled != nil && os.Getenv("EVENT_BUS_ENABLED") == "" {
		bus.Enabled = *c.Bus.Enabled
	}
	if c.Bus.DialTimeout > 0 {
		bus.DialTimeout = c.Bus.DialTimeout
	}
	if c.Bus.MaxConnectAttempts > 0 {
		bus.MaxConnectAttempts = c.Bus.MaxConnectAttempts
	}
	if c.Bus.CacheTTL > 0 {
		bus.CacheTTL = c.Bus.CacheTTL
	}
	return bus
}

// LogConfig converts the YAML form into a log.Config.
func (c Config) LogConfig() log.Config {
	return log.Config{
		Level:      log.Level(c.Log.Level),
		JSONOutput: c.Log.JSON,
	}
}
