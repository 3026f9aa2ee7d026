package http

import (
	"context"
	"log/slog"

	"github.com/example/class-booking/internal/logging"
)

type contextKey string

const closedDateContextKey contextKey = "closed_date"

// ContextWithLogger returns a derived context carrying the request logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext returns the request logger, or nil when none is attached.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}

// ContextWithClosedDate injects the date resolved from the request path.
func ContextWithClosedDate(ctx context.Context, date string) context.Context {
	return context.WithValue(ctx, closedDateContextKey, date)
}

// ClosedDateFromContext extracts a date previously associated with the context.
func ClosedDateFromContext(ctx context.Context) (string, bool) {
	date, ok := ctx.Value(closedDateContextKey).(string)
	return date, ok
}

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// handlerLogger prefers the request logger so request_id flows into handler logs.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	logger := LoggerFromContext(ctx)
	if logger == nil {
		logger = defaultLogger(fallback)
	}
	pairs := append([]any{"handler", handlerName, "operation", operation}, attrs...)
	return logger.With(pairs...)
}
