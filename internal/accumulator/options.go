package accumulator

import (
	"log/slog"

	"github.com/meigma/shredder/internal/container"
)

// Default chunk granularities, in elements.
const (
	// DefaultDataChunkSize is the allocation unit of the data array.
	DefaultDataChunkSize = 1 << 20

	// DefaultIndexChunkSize is the allocation unit of the offset arrays.
	DefaultIndexChunkSize = 1 << 16

	// DefaultNameChunkSize is the allocation unit of the name array.
	DefaultNameChunkSize = 1 << 16
)

// Array names inside the container.
const (
	DataArray        = "data"
	DataOffsetArray  = "data_offset"
	NameArray        = "name"
	NameOffsetArray  = "name_offset"
	RecordChunkArray = "record_chunk"
)

type config struct {
	dataChunkSize   uint64
	indexChunkSize  uint64
	nameChunkSize   uint64
	dataCompression container.Compression
	nameCompression container.Compression
	recordIndex     bool
	logger          *slog.Logger
}

func defaultConfig() config {
	return config{
		dataChunkSize:   DefaultDataChunkSize,
		indexChunkSize:  DefaultIndexChunkSize,
		nameChunkSize:   DefaultNameChunkSize,
		dataCompression: container.CompressionNone,
		nameCompression: container.CompressionDeflate,
		recordIndex:     true,
	}
}

// Option configures an Accumulator.
type Option func(*config)

// WithDataChunkSize sets the storage chunk size of the data array in bytes.
// Zero keeps the default.
func WithDataChunkSize(n uint64) Option {
	return func(c *config) {
		if n > 0 {
			c.dataChunkSize = n
		}
	}
}

// WithIndexChunkSize sets the storage chunk size of the offset arrays in
// elements. Zero keeps the default.
func WithIndexChunkSize(n uint64) Option {
	return func(c *config) {
		if n > 0 {
			c.indexChunkSize = n
		}
	}
}

// WithNameChunkSize sets the storage chunk size of the name array in bytes.
// Zero keeps the default.
func WithNameChunkSize(n uint64) Option {
	return func(c *config) {
		if n > 0 {
			c.nameChunkSize = n
		}
	}
}

// WithNameCompression sets the codec of the name array (default deflate).
func WithNameCompression(comp container.Compression) Option {
	return func(c *config) {
		c.nameCompression = comp
	}
}

// WithDataCompression sets the codec of the data array (default none).
// Offsets always refer to raw positions; compression only changes how
// chunks are stored.
func WithDataCompression(comp container.Compression) Option {
	return func(c *config) {
		c.dataCompression = comp
	}
}

// WithRecordIndex controls whether the record_chunk array is written.
// Without it the container holds exactly the four core arrays.
func WithRecordIndex(enabled bool) Option {
	return func(c *config) {
		c.recordIndex = enabled
	}
}

// WithLogger sets the logger for accumulator diagnostics.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}
