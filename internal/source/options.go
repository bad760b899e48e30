package source

import "log/slog"

// DefaultChunkSize is the per-read buffer size used when no WithChunkSize
// option is set.
const DefaultChunkSize = 1 << 20

type config struct {
	chunkSize int
	logger    *slog.Logger
}

// Option configures a Reader.
type Option func(*config)

// WithChunkSize sets the maximum chunk length returned by Chunk.
// Values <= 0 keep DefaultChunkSize.
func WithChunkSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// WithLogger sets the logger for source diagnostics.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}
