// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/JonMunkholm/seconvert/internal/core"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Logging  LoggingConfig
	Convert  ConvertConfig
	Schema   SchemaConfig
	Server   ServerConfig
	Database DatabaseConfig
	Limits   LimitsConfig
	Rate     RateLimitConfig
	Security SecurityConfig
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// ConvertConfig holds the defaults applied to every conversion.
type ConvertConfig struct {
	// RejectDuplicatePKs is the policy for repeated output keys: drop, keep or error (default: keep)
	RejectDuplicatePKs string `env:"CONVERT_REJECT_DUPLICATE_PKS" default:"keep"`

	// RejectInvalidPKs is the policy for null or empty output keys (default: keep)
	RejectInvalidPKs string `env:"CONVERT_REJECT_INVALID_PKS" default:"keep"`

	// InputDelimiter is the input field delimiter, one character (default: ,)
	InputDelimiter string `env:"CONVERT_INPUT_DELIMITER" default:","`

	// OutputDelimiter is the output field delimiter, one character (default: ,)
	OutputDelimiter string `env:"CONVERT_OUTPUT_DELIMITER" default:","`

	// LazyQuotes tolerates stray quotes in input fields (default: false)
	LazyQuotes bool `env:"CONVERT_LAZY_QUOTES" default:"false"`

	// MaxFileSize is the largest accepted HTTP request body in bytes (default: 100MB)
	MaxFileSize int64 `env:"CONVERT_MAX_FILE_SIZE" default:"104857600"`

	// Timeout bounds a single conversion served over HTTP (default: 10m)
	Timeout time.Duration `env:"CONVERT_TIMEOUT" default:"10m"`
}

// SchemaConfig holds where schema definitions and mapping files live.
type SchemaConfig struct {
	// Dir is the directory of .csv/.yaml schema definitions (default: schemas)
	Dir string `env:"SCHEMA_DIR" default:"schemas"`

	// Watch reloads the schema directory when it changes (default: false)
	Watch bool `env:"SCHEMA_WATCH" default:"false"`

	// MappingDir holds YAML mapping observers to register, optional
	MappingDir string `env:"MAPPING_DIR"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0, no limit)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds the settings of the optional Postgres table sink.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string; table loads are disabled without it
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// CopyBatchSize is the number of rows sent per COPY (default: 1000)
	CopyBatchSize int `env:"DB_COPY_BATCH_SIZE" default:"1000"`
}

// LimitsConfig bounds concurrent conversions in the HTTP server.
type LimitsConfig struct {
	// MaxConcurrent is the maximum number of parallel conversions (default: 4)
	MaxConcurrent int `env:"CONVERT_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a request waits for a conversion slot (default: 30s)
	MaxWaitTime time.Duration `env:"CONVERT_MAX_WAIT_TIME" default:"30s"`
}

// RateLimitConfig holds per-IP rate limiting for the HTTP server.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the rate limit per IP (default: 60)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"60"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey rejects API requests without a valid X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Enabled reports whether a database is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// ConverterOptions returns the converter options these settings describe.
// Schemas, observer and logger are left for the caller.
func (c *ConvertConfig) ConverterOptions() (core.Options, error) {
	dup, err := core.ParseRejectPolicy(c.RejectDuplicatePKs)
	if err != nil {
		return core.Options{}, err
	}
	bad, err := core.ParseRejectPolicy(c.RejectInvalidPKs)
	if err != nil {
		return core.Options{}, err
	}
	in, _ := delimiter(c.InputDelimiter)
	out, _ := delimiter(c.OutputDelimiter)

	return core.Options{
		Input: core.InputOptions{
			Comma:      in,
			LazyQuotes: c.LazyQuotes,
		},
		Output:             core.OutputOptions{Comma: out},
		RejectDuplicatePKs: dup,
		RejectInvalidPKs:   bad,
	}, nil
}

// delimiter returns the single rune in s. An empty s is the default ','.
func delimiter(s string) (rune, bool) {
	if s == "" {
		return ',', true
	}
	if s == `\t` {
		return '\t', true
	}
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
		return 0, false
	}
	return r, true
}
