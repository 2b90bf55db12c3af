package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger.
// In production (ENVIRONMENT=production) it uses JSON output for log
// aggregation. Otherwise it uses the human-readable text handler.
func Init() {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// WithRecord returns a logger with record context fields attached.
// Use this for all logging within a publish transition.
func WithRecord(recordID, kind, authorID string) *slog.Logger {
	return slog.With(
		"record_id", recordID,
		"kind", kind,
		"author_id", authorID,
	)
}

// WithHandler returns a logger scoped to a publish-bus handler invocation.
func WithHandler(logger *slog.Logger, handlerName string) *slog.Logger {
	return logger.With("handler", handlerName)
}
