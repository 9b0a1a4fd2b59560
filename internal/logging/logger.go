// Package logging configures log/slog and builds context-scoped loggers.
//
// Request ids set by chi's RequestID middleware are carried into every entry
// logged through FromContext, so one upload can be traced from the handler
// down to each skipped record.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

// Setup configures the global slog logger writing to stdout.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
func Setup(level, format string) {
	SetupWriter(os.Stdout, level, format)
}

// SetupWriter is Setup with an explicit destination. The CLI logs to stderr
// so stdout stays free for command output.
func SetupWriter(w io.Writer, level, format string) {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// FromContext returns the default logger, with request_id when ctx carries one.
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}

	return logger
}

// WithFields returns FromContext(ctx) with additional fields.
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}

// ForImport returns the logger used for the lifetime of one import call.
//
//	log := logging.ForImport(ctx, importID, meetID, "MEET_ENTRIES")
//	log.Info("import started", "files", len(docs))
func ForImport(ctx context.Context, importID, meetID, dataset string) *slog.Logger {
	return WithFields(ctx,
		"import_id", importID,
		"meet_id", meetID,
		"dataset", dataset,
	)
}
