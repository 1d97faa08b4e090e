// Package config provides centralized configuration management for the park
// import server and CLI.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/pota/internal/core"
	"github.com/JonMunkholm/pota/internal/store"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Import   ImportConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 127.0.0.1)
	Host string `env:"SERVER_HOST" default:"127.0.0.1"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-streaming requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds park store settings.
type DatabaseConfig struct {
	// Driver selects the engine: sqlite or postgres (default: sqlite)
	Driver string `env:"DB_DRIVER" default:"sqlite"`

	// URL is the PostgreSQL connection string, required for the postgres driver.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// SQLitePath is the database file for the sqlite driver (default: pota.db)
	SQLitePath string `env:"SQLITE_PATH" default:"pota.db"`

	// MaxConns is the maximum number of pooled connections (default: 10)
	MaxConns int32 `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int32 `env:"DB_MIN_CONNS" default:"2"`
}

// DSN returns the connection target for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if strings.EqualFold(c.Driver, "postgres") {
		return c.URL
	}
	return c.SQLitePath
}

// ImportConfig holds park CSV import settings.
type ImportConfig struct {
	// BatchSize is the number of parks inserted per batch (default: 500)
	BatchSize int `env:"IMPORT_BATCH_SIZE" default:"500"`

	// ProgressInterval is the minimum time between parsing progress events (default: 500ms)
	ProgressInterval time.Duration `env:"IMPORT_PROGRESS_INTERVAL" default:"500ms"`

	// MaxRetainedErrors caps the row errors kept in a result (default: 100)
	MaxRetainedErrors int `env:"IMPORT_MAX_RETAINED_ERRORS" default:"100"`

	// Encoding is the input character set: utf-8, windows-1252, iso-8859-1 (default: utf-8)
	Encoding string `env:"IMPORT_ENCODING" default:"utf-8"`

	// MaxFileSize is the maximum upload size in bytes (default: 100MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"104857600"`

	// UploadDir is where uploaded files are spooled before import (default: uploads)
	UploadDir string `env:"IMPORT_UPLOAD_DIR" default:"uploads"`

	// Timeout is the maximum duration of a single import (default: 10m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"10m"`

	// MaxWaitTime is how long a synchronous import waits for the running one (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// ResultRetention is how long finished imports stay queryable by id (default: 5m)
	ResultRetention time.Duration `env:"IMPORT_RESULT_RETENTION" default:"5m"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ImportLimit is requests per minute for import endpoints (default: 10)
	ImportLimit int `env:"RATE_LIMIT_IMPORT" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey enables X-API-Key authentication on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// StoreConfig returns the settings store.Open needs.
func (c *Config) StoreConfig() store.Config {
	return store.Config{
		Driver:   c.Database.Driver,
		URL:      c.Database.DSN(),
		MaxConns: c.Database.MaxConns,
		MinConns: c.Database.MinConns,
	}
}

// ServiceConfig returns the import pipeline settings.
func (c *Config) ServiceConfig() core.ServiceConfig {
	return core.ServiceConfig{
		BatchSize:         c.Import.BatchSize,
		MaxRetainedErrors: c.Import.MaxRetainedErrors,
		ProgressInterval:  c.Import.ProgressInterval,
		Encoding:          c.Import.Encoding,
		ImportTimeout:     c.Import.Timeout,
		MaxWaitTime:       c.Import.MaxWaitTime,
		ResultRetention:   c.Import.ResultRetention,
	}
}
