// Package config loads application configuration from environment variables
// with defaults, and validates every setting on startup.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Import   ImportConfig
	Results  ResultsConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout covers reading the multipart upload body.
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"60s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig holds storage settings.
type DatabaseConfig struct {
	// Driver selects the store: postgres or sqlite (default: postgres)
	Driver string `env:"DB_DRIVER" default:"postgres"`

	// URL is the PostgreSQL connection string, required for the postgres driver.
	// Supports both DATABASE_URL and DB_URL env vars.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// SQLitePath is the database file for the sqlite driver.
	SQLitePath string `env:"SQLITE_PATH" default:"coach.db"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ImportConfig holds import pipeline settings.
type ImportConfig struct {
	// MaxFileSize is the maximum size of one document in bytes (default: 50MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"52428800"`

	// MaxConcurrent is the maximum number of parallel imports (default: 4)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long an import waits for a free slot (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds one import batch once it has started (default: 10m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"10m"`

	// NameCacheTTL is how long resolved swimmer names are cached (default: 5m)
	NameCacheTTL time.Duration `env:"IMPORT_NAME_CACHE_TTL" default:"5m"`
}

// ResultsConfig holds settings for fetching the remote results report.
type ResultsConfig struct {
	// URL is the report address; "{meet_id}" is replaced by the meet id.
	// Empty disables remote fetching.
	URL string `env:"RESULTS_URL"`

	FetchTimeout time.Duration `env:"RESULTS_FETCH_TIMEOUT" default:"30s"`
	UserAgent    string        `env:"RESULTS_USER_AGENT" default:"coach-importer/1.0"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	// Enabled exposes /metrics and records import collectors (default: true)
	Enabled bool `env:"METRICS_ENABLED" default:"true"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
