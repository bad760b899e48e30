package shredder

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/meigma/shredder/internal/source"
)

// CheckOption configures a Check operation.
type CheckOption func(*checkConfig)

type checkConfig struct {
	chunkSize int
	logger    *slog.Logger
}

// CheckWithChunkSize sets the chunk size records are measured against
// (default: DefaultChunkSize). Values <= 0 keep the default.
func CheckWithChunkSize(n int) CheckOption {
	return func(cfg *checkConfig) {
		if n > 0 {
			cfg.chunkSize = n
		}
	}
}

// CheckWithLogger sets the logger for check operations.
// If not set, logging is disabled.
func CheckWithLogger(logger *slog.Logger) CheckOption {
	return func(cfg *checkConfig) {
		cfg.logger = logger
	}
}

// CheckReport describes an archive without packing it.
type CheckReport struct {
	// Records is the number of archive entries.
	Records uint64

	// NonEmpty is the number of entries with content.
	NonEmpty uint64

	// MultiChunk is the number of entries whose content exceeds one chunk and
	// therefore contributes several data_offset entries when packed.
	MultiChunk uint64

	// Chunks is the number of data_offset entries a pack would produce.
	Chunks uint64

	// DataBytes is the total content size.
	DataBytes uint64

	// Largest is the name of the largest entry and LargestSize its size.
	Largest     string
	LargestSize uint64

	// ChunkSize is the chunk size the archive was measured against.
	ChunkSize int

	// Format is the detected archive format.
	Format string

	// Filters lists the detected compression layers, outermost first.
	Filters []string
}

// Check reads the archive at archivePath and reports what packing it would
// produce. Nothing is written. An archive that cannot be closed cleanly fails
// the check.
func Check(ctx context.Context, archivePath string, opts ...CheckOption) (CheckReport, error) {
	cfg := checkConfig{chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	src, err := source.Open(archivePath, source.WithChunkSize(cfg.chunkSize), source.WithLogger(cfg.logger))
	if err != nil {
		return CheckReport{}, err
	}
	return check(ctx, src, &cfg)
}

// check takes ownership of src.
func check(ctx context.Context, src recordSource, cfg *checkConfig) (report CheckReport, err error) {
	defer func() {
		if cerr := src.Close(); cerr != nil && err == nil {
			report, err = CheckReport{}, cerr
		}
	}()

	report = CheckReport{ChunkSize: src.ChunkSize(), Format: src.Format().String()}
	for _, f := range src.Filters() {
		report.Filters = append(report.Filters, f.String())
	}

	for {
		if err := ctx.Err(); err != nil {
			return CheckReport{}, err
		}
		name, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return CheckReport{}, err
		}

		var size, chunks uint64
		for {
			chunk, err := src.Chunk()
			if err != nil {
				return CheckReport{}, err
			}
			if len(chunk) == 0 {
				break
			}
			size += uint64(len(chunk))
			chunks++
		}

		report.Records++
		report.Chunks += chunks
		report.DataBytes += size
		if chunks > 0 {
			report.NonEmpty++
		}
		if chunks > 1 {
			report.MultiChunk++
			cfg.log().Debug("record spans several chunks", "name", name, "size", size, "chunks", chunks)
		}
		if report.Records == 1 || size > report.LargestSize {
			report.Largest, report.LargestSize = name, size
		}
	}

	if err := src.Close(); err != nil {
		return CheckReport{}, err
	}
	return report, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (c *checkConfig) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}
