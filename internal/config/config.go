// Package config reads process configuration for the jianghu binaries.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"jianghu-lite/internal/observability"
)

// Version is reported to the tracing backend.
const Version = "0.3.0"

// Store modes.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config is the process-level configuration shared by the terminal shell and
// the websocket server.
type Config struct {
	Store          string        `env:"JIANGHU_STORE"               envDefault:"memory"`
	SQLitePath     string        `env:"JIANGHU_SQLITE_PATH"`
	DatabaseDSN    string        `env:"JIANGHU_DATABASE_DSN"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	StoreTimeout   time.Duration `env:"JIANGHU_STORE_TIMEOUT"       envDefault:"3s"`
	Seed           int64         `env:"JIANGHU_SEED"`
	Autosave       bool          `env:"JIANGHU_AUTOSAVE"            envDefault:"true"`
	Addr           string        `env:"JIANGHU_ADDR"                envDefault:":18080"`
	LogLevel       string        `env:"JIANGHU_LOG_LEVEL"           envDefault:"info"`
	LogFile        string        `env:"JIANGHU_LOG_FILE"`
	TracingEnabled bool          `env:"JIANGHU_TRACING_ENABLED"`
	OTLPEndpoint   string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Profile        string        `env:"JIANGHU_PROFILE"`
}

// Load parses the environment and normalizes the result.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	mode, err := NormalizeStoreMode(cfg.Store)
	if err != nil {
		return Config{}, err
	}
	cfg.Store = mode
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 3 * time.Second
	}
	return cfg, nil
}

// NormalizeStoreMode maps accepted aliases onto a store mode.
func NormalizeStoreMode(raw string) (string, error) {
	mode := strings.ToLower(strings.TrimSpace(raw))
	switch mode {
	case "", StoreMemory, "mem":
		return StoreMemory, nil
	case StoreSQLite, "local":
		return StoreSQLite, nil
	case StorePostgres, "postgresql", "db":
		return StorePostgres, nil
	default:
		return mode, fmt.Errorf("invalid JIANGHU_STORE %q (supported: %s, %s, %s)", mode, StoreMemory, StoreSQLite, StorePostgres)
	}
}

// DSN returns the postgres connection string, preferring JIANGHU_DATABASE_DSN.
func (c Config) DSN() string {
	if v := strings.TrimSpace(c.DatabaseDSN); v != "" {
		return v
	}
	return strings.TrimSpace(c.DatabaseURL)
}

// SlogLevel parses LogLevel, falling back to info.
func (c Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Tracing returns the tracer settings for the named binary.
func (c Config) Tracing(service string) observability.Config {
	env := strings.TrimSpace(c.Profile)
	if env == "" {
		env = "local"
	}
	return observability.Config{
		ServiceName:    service,
		ServiceVersion: Version,
		Environment:    env,
		Enabled:        c.TracingEnabled,
		Endpoint:       strings.TrimSpace(c.OTLPEndpoint),
	}
}
