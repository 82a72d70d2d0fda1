// Package config handles configuration loading and validation for the
// flowsync server.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the complete server configuration.
type Config struct {
	// Server holds HTTP listener configuration.
	Server ServerConfig `toml:"server"`

	// Storage holds persistence configuration.
	Storage StorageConfig `toml:"storage"`

	// Auth holds token issuing configuration.
	Auth AuthConfig `toml:"auth"`

	// Sync holds batch sync configuration.
	Sync SyncConfig `toml:"sync"`

	// RateLimit holds request throttling configuration.
	RateLimit RateLimitConfig `toml:"rate_limit"`

	// Logging holds logging configuration.
	Logging LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP listener configuration.
type ServerConfig struct {
	// Addr is the listen address, host:port.
	Addr string `toml:"addr"`

	// ReadTimeoutSec is the maximum duration for reading a request.
	ReadTimeoutSec int `toml:"read_timeout_sec"`

	// WriteTimeoutSec is the maximum duration for writing a response.
	WriteTimeoutSec int `toml:"write_timeout_sec"`

	// ShutdownTimeoutSec bounds graceful shutdown.
	ShutdownTimeoutSec int `toml:"shutdown_timeout_sec"`
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	// Path is the path to the SQLite database file.
	Path string `toml:"path"`
}

// AuthConfig holds token issuing configuration.
type AuthConfig struct {
	// JWTSecret signs access tokens. Required; set via config file or
	// the FLOWSYNC_JWT_SECRET environment variable.
	JWTSecret string `toml:"jwt_secret"`

	// AccessTokenTTLMin is the access token lifetime in minutes.
	AccessTokenTTLMin int `toml:"access_token_ttl_min"`

	// RefreshTokenTTLHours is the refresh token lifetime in hours.
	RefreshTokenTTLHours int `toml:"refresh_token_ttl_hours"`
}

// SyncConfig holds batch sync configuration.
type SyncConfig struct {
	// MaxBatchSize is the maximum number of operations per batch request.
	MaxBatchSize int `toml:"max_batch_size"`

	// BatchTimeoutSec bounds how long one batch may hold its transaction.
	BatchTimeoutSec int `toml:"batch_timeout_sec"`
}

// RateLimitConfig holds request throttling configuration.
type RateLimitConfig struct {
	// Enabled turns rate limiting on.
	Enabled bool `toml:"enabled"`

	// Rate is the allowed number of requests per window per client.
	Rate int `toml:"rate"`

	// WindowSec is the throttling window in seconds.
	WindowSec int `toml:"window_sec"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:               ":8080",
			ReadTimeoutSec:     15,
			WriteTimeoutSec:    60,
			ShutdownTimeoutSec: 10,
		},
		Storage: StorageConfig{
			Path: "flowsync.db",
		},
		Auth: AuthConfig{
			AccessTokenTTLMin:    15,
			RefreshTokenTTLHours: 7 * 24,
		},
		Sync: SyncConfig{
			MaxBatchSize:    100,
			BatchTimeoutSec: 30,
		},
		RateLimit: RateLimitConfig{
			Enabled:   true,
			Rate:      120,
			WindowSec: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the given TOML file, applying defaults for
// missing keys and environment overrides on top. A missing file is not an
// error; defaults plus environment are used.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if _, err := toml.Decode(string(data), cfg); err != nil {
				return nil, fmt.Errorf("decode TOML: %w", err)
			}
		}
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnvOverrides applies FLOWSYNC_* environment variables on top of the
// loaded configuration. The secret is usually supplied this way so it never
// lands in a config file.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("FLOWSYNC_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("FLOWSYNC_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("FLOWSYNC_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("FLOWSYNC_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("FLOWSYNC_MAX_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Sync.MaxBatchSize = n
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path must not be empty")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required (set FLOWSYNC_JWT_SECRET)")
	}
	if c.Auth.AccessTokenTTLMin <= 0 {
		return fmt.Errorf("auth.access_token_ttl_min must be positive")
	}
	if c.Auth.RefreshTokenTTLHours <= 0 {
		return fmt.Errorf("auth.refresh_token_ttl_hours must be positive")
	}
	if c.Sync.MaxBatchSize <= 0 {
		return fmt.Errorf("sync.max_batch_size must be positive")
	}
	if c.Sync.BatchTimeoutSec <= 0 {
		return fmt.Errorf("sync.batch_timeout_sec must be positive")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Rate <= 0 || c.RateLimit.WindowSec <= 0 {
			return fmt.Errorf("rate_limit.rate and rate_limit.window_sec must be positive")
		}
	}
	return nil
}

// AccessTokenTTL returns the access token lifetime as a duration.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.Auth.AccessTokenTTLMin) * time.Minute
}

// RefreshTokenTTL returns the refresh token lifetime as a duration.
func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.Auth.RefreshTokenTTLHours) * time.Hour
}

// BatchTimeout returns the batch transaction deadline as a duration.
func (c *Config) BatchTimeout() time.Duration {
	return time.Duration(c.Sync.BatchTimeoutSec) * time.Second
}

// RateLimitWindow returns the throttling window as a duration.
func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowSec) * time.Second
}
