// Package logging sets up log/slog for the CLI and the HTTP server and
// derives per-request loggers.
//
// A logger taken from a context carries the chi request id and the
// conversion id attached by core.ContextWithConversionID, so the lines of
// one conversion can be grepped together.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/seconvert/internal/core"
)

// Setup installs a text or json logger writing to w as the slog default
// and returns it. Unknown formats fall back to text. Debug level also
// records the source position of each call.
func Setup(w io.Writer, level, format string) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{Level: lvl, AddSource: lvl == slog.LevelDebug}

	var h slog.Handler = slog.NewTextHandler(w, opts)
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// ParseLevel maps a level name to its slog.Level. Anything unknown is info.
func ParseLevel(level string) slog.Level {
	if lvl, ok := levels[strings.ToLower(level)]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// contextAttrs returns the correlation ids stored in ctx.
func contextAttrs(ctx context.Context) []any {
	var attrs []any
	if id := middleware.GetReqID(ctx); id != "" {
		attrs = append(attrs, slog.String("request_id", id))
	}
	if id := core.ConversionIDFromContext(ctx); id != "" {
		attrs = append(attrs, slog.String("conversion_id", id))
	}
	return attrs
}

// FromContext returns the default logger with the correlation ids of ctx.
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if attrs := contextAttrs(ctx); len(attrs) > 0 {
		logger = logger.With(attrs...)
	}
	return logger
}

// WithFields is FromContext plus extra key/value pairs, e.g.
//
//	logging.WithFields(ctx, "from", from.ID(), "to", to.ID()).Info("conversion started")
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}
