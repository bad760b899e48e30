package shredder

import (
	"log/slog"

	"github.com/meigma/shredder/internal/accumulator"
	"github.com/meigma/shredder/internal/container"
	"github.com/meigma/shredder/internal/source"
)

// PackOption configures a Pack operation.
type PackOption func(*packConfig)

type packConfig struct {
	chunkSize   int
	containerID string
	logger      *slog.Logger
	progress    ProgressFunc
	accOpts     []accumulator.Option
}

func newPackConfig(opts []PackOption) packConfig {
	cfg := packConfig{chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (c *packConfig) sourceOptions() []source.Option {
	return []source.Option{
		source.WithChunkSize(c.chunkSize),
		source.WithLogger(c.logger),
	}
}

func (c *packConfig) containerOptions() []container.Option {
	opts := []container.Option{container.WithLogger(c.logger)}
	if c.containerID != "" {
		opts = append(opts, container.WithContainerID(c.containerID))
	}
	return opts
}

func (c *packConfig) accumulatorOptions() []accumulator.Option {
	return append(append([]accumulator.Option(nil), c.accOpts...), accumulator.WithLogger(c.logger))
}

// PackWithChunkSize sets the maximum number of content bytes read from the
// archive at a time (default: 1 MiB). Each chunk becomes one data_offset
// entry, so a record of n bytes contributes ceil(n/size) entries.
// Values <= 0 keep the default.
func PackWithChunkSize(n int) PackOption {
	return func(cfg *packConfig) {
		if n > 0 {
			cfg.chunkSize = n
		}
	}
}

// PackWithDataChunkSize sets the storage chunk size of the data array in bytes.
func PackWithDataChunkSize(n uint64) PackOption {
	return func(cfg *packConfig) {
		cfg.accOpts = append(cfg.accOpts, accumulator.WithDataChunkSize(n))
	}
}

// PackWithNameChunkSize sets the storage chunk size of the name array in bytes.
func PackWithNameChunkSize(n uint64) PackOption {
	return func(cfg *packConfig) {
		cfg.accOpts = append(cfg.accOpts, accumulator.WithNameChunkSize(n))
	}
}

// PackWithIndexChunkSize sets the storage chunk size, in elements, of the
// offset arrays.
func PackWithIndexChunkSize(n uint64) PackOption {
	return func(cfg *packConfig) {
		cfg.accOpts = append(cfg.accOpts, accumulator.WithIndexChunkSize(n))
	}
}

// PackWithDataCompression sets the codec for the data array (default: none).
func PackWithDataCompression(c Compression) PackOption {
	return func(cfg *packConfig) {
		cfg.accOpts = append(cfg.accOpts, accumulator.WithDataCompression(c))
	}
}

// PackWithNameCompression sets the codec for the name array (default: deflate).
func PackWithNameCompression(c Compression) PackOption {
	return func(cfg *packConfig) {
		cfg.accOpts = append(cfg.accOpts, accumulator.WithNameCompression(c))
	}
}

// PackWithRecordIndex controls whether the record_chunk array is written
// (default: true). Without it, Archive.Data is unavailable.
func PackWithRecordIndex(enabled bool) PackOption {
	return func(cfg *packConfig) {
		cfg.accOpts = append(cfg.accOpts, accumulator.WithRecordIndex(enabled))
	}
}

// PackWithContainerID sets the container identifier instead of a random UUID.
// Packing the same archive twice with the same identifier produces identical
// containers.
func PackWithContainerID(id string) PackOption {
	return func(cfg *packConfig) {
		cfg.containerID = id
	}
}

// PackWithLogger sets the logger for pack operations.
// If not set, logging is disabled.
func PackWithLogger(logger *slog.Logger) PackOption {
	return func(cfg *packConfig) {
		cfg.logger = logger
	}
}

// PackWithProgress sets a callback to receive progress updates.
func PackWithProgress(fn ProgressFunc) PackOption {
	return func(cfg *packConfig) {
		cfg.progress = fn
	}
}
