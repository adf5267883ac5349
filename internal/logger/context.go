package logger

import "context"

type loggerKey struct{}

var defaultLogger = NewLogger(WithFormat("text"))

// WithLogger returns a context that carries the given logger.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger stored in the context, or the default
// text logger when none is present.
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(loggerKey{}).(Logger); ok {
		return logger
	}
	return defaultLogger
}
