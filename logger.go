package eventio

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with eventio-specific helpers. The in-memory
// core never logs; the store and storage backends log through an injected
// *Logger.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses the default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithCollection adds a collection name field to the logger.
func (l *Logger) WithCollection(name string) *Logger {
	return &Logger{Logger: l.Logger.With("collection", name)}
}

// LogWriteEvent logs one written event frame.
func (l *Logger) LogWriteEvent(ctx context.Context, frame int, collections int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "write event failed",
			"frame", frame,
			"collections", collections,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "event written",
			"frame", frame,
			"collections", collections,
		)
	}
}

// LogReadEvent logs one read event frame.
func (l *Logger) LogReadEvent(ctx context.Context, frame int, collections int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "read event failed",
			"frame", frame,
			"collections", collections,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "event read",
			"frame", frame,
			"collections", collections,
		)
	}
}

// LogEvolve logs an applied schema evolution.
func (l *Logger) LogEvolve(ctx context.Context, collType string, from, to uint32) {
	l.DebugContext(ctx, "schema evolved",
		"type", collType,
		"from", from,
		"to", to,
	)
}
