package container

import "log/slog"

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the logger for writer diagnostics.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Writer) {
		w.logger = logger
	}
}

// WithContainerID overrides the identifier recorded in the directory.
// By default a random UUID is used.
func WithContainerID(id string) Option {
	return func(w *Writer) {
		w.id = id
	}
}
