package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/seconvert/internal/core"
)

// Load builds a Config from the environment, fills defaults and validates
// the result.
func Load() (*Config, error) {
	cfg := new(Config)
	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// loadStruct fills the tagged fields of the struct v, descending into
// nested structs. Tags:
//
//	env       variable name
//	envAlt    fallback variable read when env is unset
//	default   value used when neither is set
//	required  "true" fails the load when no value is found
func loadStruct(v reflect.Value) error {
	for i := range v.NumField() {
		field, sf := v.Field(i), v.Type().Field(i)
		if !field.CanSet() {
			continue
		}
		if sf.Type.Kind() == reflect.Struct {
			if err := loadStruct(field); err != nil {
				return err
			}
			continue
		}

		name := sf.Tag.Get("env")
		if name == "" {
			continue
		}
		raw, ok := lookupEnv(name, sf.Tag.Get("envAlt"))
		if !ok {
			if sf.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", name)
			}
			raw = sf.Tag.Get("default")
		}
		if raw == "" {
			continue
		}
		if err := parseInto(field, raw); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", name, raw, err)
		}
	}
	return nil
}

// lookupEnv returns the first non-empty value among the given variables.
func lookupEnv(names ...string) (string, bool) {
	for _, name := range names {
		if name == "" {
			continue
		}
		if v := os.Getenv(name); v != "" {
			return v, true
		}
	}
	return "", false
}

func parseInto(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice of %s", field.Type().Elem())
		}
		field.Set(reflect.ValueOf(splitList(raw)))
	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}

// splitList splits a comma-separated list, dropping empty items.
func splitList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// problems collects validation failures.
type problems []error

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Errorf(format, args...))
}

func (p *problems) check(ok bool, format string, args ...any) {
	if !ok {
		p.addf(format, args...)
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var p problems

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		p.addf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		p.addf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format)
	}

	if _, err := core.ParseRejectPolicy(c.Convert.RejectDuplicatePKs); err != nil {
		p.addf("CONVERT_REJECT_DUPLICATE_PKS: %v", err)
	}
	if _, err := core.ParseRejectPolicy(c.Convert.RejectInvalidPKs); err != nil {
		p.addf("CONVERT_REJECT_INVALID_PKS: %v", err)
	}
	_, ok := delimiter(c.Convert.InputDelimiter)
	p.check(ok, "CONVERT_INPUT_DELIMITER (%q) must be a single character", c.Convert.InputDelimiter)
	_, ok = delimiter(c.Convert.OutputDelimiter)
	p.check(ok, "CONVERT_OUTPUT_DELIMITER (%q) must be a single character", c.Convert.OutputDelimiter)
	p.check(c.Convert.MaxFileSize > 0, "CONVERT_MAX_FILE_SIZE must be positive")
	p.check(c.Convert.Timeout > 0, "CONVERT_TIMEOUT must be positive")
	p.check(c.Schema.Dir != "", "SCHEMA_DIR is required")

	p.check(c.Server.Port > 0 && c.Server.Port <= 65535, "SERVER_PORT (%d) must be 1-65535", c.Server.Port)
	p.check(c.Server.ReadTimeout >= 0, "SERVER_READ_TIMEOUT must be non-negative")
	p.check(c.Server.ShutdownTimeout > 0, "SERVER_SHUTDOWN_TIMEOUT must be positive")

	if db := c.Database; db.Enabled() {
		p.check(db.MaxConns > 0, "DB_MAX_CONNS must be positive")
		p.check(db.MinConns >= 0, "DB_MIN_CONNS must be non-negative")
		p.check(db.MaxConns >= db.MinConns, "DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", db.MaxConns, db.MinConns)
		p.check(db.CopyBatchSize > 0, "DB_COPY_BATCH_SIZE must be positive")
	}

	p.check(c.Limits.MaxConcurrent > 0, "CONVERT_MAX_CONCURRENT must be positive")
	p.check(c.Limits.MaxWaitTime > 0, "CONVERT_MAX_WAIT_TIME must be positive")
	p.check(!c.Rate.Enabled || c.Rate.RequestsPerMinute > 0,
		"RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	p.check(!c.Security.RequireAPIKey || len(c.Security.APIKeys) > 0,
		"REQUIRE_API_KEY is set but API_KEYS is empty")

	if len(p) == 0 {
		return nil
	}
	return errors.Join(p...)
}

// LogValue renders the configuration for logging. The database URL and
// API keys are never included.
func (c *Config) LogValue() slog.Value {
	dbURL := "[NONE]"
	if c.Database.Enabled() {
		dbURL = "[MASKED]"
	}
	return slog.GroupValue(
		slog.Group("server", "addr", c.Server.Addr()),
		slog.Group("database", "url", dbURL, "max_conns", c.Database.MaxConns, "copy_batch_size", c.Database.CopyBatchSize),
		slog.Group("convert",
			"reject_duplicate_pks", c.Convert.RejectDuplicatePKs,
			"reject_invalid_pks", c.Convert.RejectInvalidPKs,
			"max_file_size", c.Convert.MaxFileSize,
			"timeout", c.Convert.Timeout),
		slog.Group("schema", "dir", c.Schema.Dir, "watch", c.Schema.Watch, "mapping_dir", c.Schema.MappingDir),
		slog.Group("limits", "max_concurrent", c.Limits.MaxConcurrent, "max_wait", c.Limits.MaxWaitTime),
		slog.Group("rate", "enabled", c.Rate.Enabled, "per_minute", c.Rate.RequestsPerMinute),
		slog.Group("security", "require_api_key", c.Security.RequireAPIKey, "api_keys", len(c.Security.APIKeys)),
		slog.Group("logging", "level", c.Logging.Level, "format", c.Logging.Format),
	)
}

// String returns the same masked view as LogValue.
func (c *Config) String() string {
	return c.LogValue().String()
}
