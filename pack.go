package shredder

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/meigma/shredder/internal/accumulator"
	"github.com/meigma/shredder/internal/container"
	"github.com/meigma/shredder/internal/source"
)

// DefaultChunkSize is the content chunk size used when no PackWithChunkSize
// option is set.
const DefaultChunkSize = source.DefaultChunkSize

// OutputSuffix is appended to the archive path to form the default output path.
const OutputSuffix = ".shred"

// DefaultOutputPath returns the container path used for archivePath.
func DefaultOutputPath(archivePath string) string {
	return archivePath + OutputSuffix
}

// Pack reads the archive at archivePath and writes its records to a new
// container at outPath.
//
// Records are appended in archive order. Pack is fail-fast: the first error
// from the archive, the container, or ctx aborts the operation and is
// returned. The partially written container file is left in place but is not
// a valid container. An archive that cannot be closed cleanly also fails
// Pack, even though the container was already written.
func Pack(ctx context.Context, archivePath, outPath string, opts ...PackOption) (Stats, error) {
	cfg := newPackConfig(opts)

	src, err := source.Open(archivePath, cfg.sourceOptions()...)
	if err != nil {
		return Stats{}, err
	}
	return pack(ctx, src, archivePath, outPath, &cfg)
}

// PackReader is like Pack but reads the archive from r. A zip archive is
// buffered in memory in full before its records are read.
func PackReader(ctx context.Context, r io.Reader, outPath string, opts ...PackOption) (Stats, error) {
	cfg := newPackConfig(opts)

	src, err := source.NewReader(r, cfg.sourceOptions()...)
	if err != nil {
		return Stats{}, err
	}
	return pack(ctx, src, "", outPath, &cfg)
}

// recordSource is the view of a source.Reader the driver and the checker
// consume.
type recordSource interface {
	Next() (string, error)
	Chunk() ([]byte, error)
	Format() source.Format
	Filters() []source.Filter
	ChunkSize() int
	Close() error
}

// packer drives records from a source into an accumulator.
type packer struct {
	cfg *packConfig
	src recordSource
	acc *accumulator.Accumulator
}

// pack takes ownership of src. A failure to close it fails the whole
// operation even when the container was written.
func pack(ctx context.Context, src recordSource, archivePath, outPath string, cfg *packConfig) (stats Stats, err error) {
	defer func() {
		if cerr := src.Close(); cerr != nil && err == nil {
			stats, err = Stats{}, cerr
		}
	}()

	log := cfg.log()
	log.Info("packing archive",
		"archive", archivePath,
		"output", outPath,
		"format", src.Format().String(),
		"chunk_size", src.ChunkSize())
	cfg.report(ProgressEvent{Stage: StageOpened})

	w, err := container.Create(outPath, cfg.containerOptions()...)
	if err != nil {
		return Stats{}, err
	}
	acc, err := accumulator.New(accumulator.ContainerStore(w), cfg.accumulatorOptions()...)
	if err != nil {
		_ = w.Abort() //nolint:errcheck // best-effort cleanup
		return Stats{}, err
	}
	defer func() {
		if err != nil {
			acc.Abort()
			_ = w.Abort() //nolint:errcheck // best-effort cleanup
			log.Debug("pack aborted", "records", acc.Stats().Records, "error", err)
		}
	}()

	p := &packer{cfg: cfg, src: src, acc: acc}
	if err := p.run(ctx); err != nil {
		return Stats{}, err
	}

	accStats := acc.Stats()
	cfg.report(ProgressEvent{Stage: StageFinalizing, RecordsDone: accStats.Records, BytesDone: accStats.DataBytes})
	if err := acc.Finalize(); err != nil {
		return Stats{}, err
	}
	if err := w.Close(); err != nil {
		return Stats{}, err
	}
	if err := src.Close(); err != nil {
		return Stats{}, err
	}
	cfg.report(ProgressEvent{Stage: StageDone, RecordsDone: accStats.Records, BytesDone: accStats.DataBytes})

	stats = Stats{
		Records:     accStats.Records,
		Chunks:      accStats.Chunks,
		DataBytes:   accStats.DataBytes,
		NameBytes:   accStats.NameBytes,
		ContainerID: w.ID(),
		Format:      src.Format().String(),
	}
	for _, f := range src.Filters() {
		stats.Filters = append(stats.Filters, f.String())
	}
	log.Info("archive packed",
		"output", outPath,
		"records", stats.Records,
		"chunks", stats.Chunks,
		"data_bytes", stats.DataBytes)
	return stats, nil
}

// run appends every record until the source is exhausted.
func (p *packer) run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		name, err := p.src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := p.record(name); err != nil {
			return err
		}

		stats := p.acc.Stats()
		p.cfg.report(ProgressEvent{
			Stage:       StagePacking,
			Name:        name,
			RecordsDone: stats.Records,
			BytesDone:   stats.DataBytes,
		})
	}
}

// record appends the content chunks of the current record, then its name.
func (p *packer) record(name string) error {
	for {
		chunk, err := p.src.Chunk()
		if err != nil {
			return err
		}
		if len(chunk) == 0 {
			break
		}
		if err := p.acc.AppendData(chunk); err != nil {
			return err
		}
	}
	return p.acc.AppendName(name)
}

func (c *packConfig) report(ev ProgressEvent) {
	if c.progress != nil {
		c.progress(ev)
	}
}

// log returns the logger, falling back to a discard logger if nil.
func (c *packConfig) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}
