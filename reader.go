package shredder

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"slices"

	"github.com/meigma/shredder/internal/container"
)

// OpenOption configures Open.
type OpenOption func(*openConfig)

type openConfig struct {
	verify bool
	logger *slog.Logger
}

// OpenWithVerify checks the digest of every array, including data, before
// Open returns. Index arrays are always verified because they are read in
// full.
func OpenWithVerify(enabled bool) OpenOption {
	return func(cfg *openConfig) {
		cfg.verify = enabled
	}
}

// OpenWithLogger sets the logger for archive reads.
// If not set, logging is disabled.
func OpenWithLogger(logger *slog.Logger) OpenOption {
	return func(cfg *openConfig) {
		cfg.logger = logger
	}
}

// Archive provides record access to a packed container.
//
// The index arrays and the name stream are loaded into memory by Open;
// record contents are decoded from the data array on demand.
//
// Archive is safe for concurrent reads. Close must not race with reads.
type Archive struct {
	c      *container.Reader
	data   *container.ArrayReader
	logger *slog.Logger

	dataIndex   []uint64
	names       []byte
	nameIndex   []uint64
	recordIndex []uint64
}

// Open opens a container written by Pack and validates its index arrays.
func Open(ctx context.Context, path string, opts ...OpenOption) (*Archive, error) {
	var cfg openConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	c, err := container.Open(path)
	if err != nil {
		return nil, err
	}
	a := &Archive{c: c, logger: cfg.logger}
	if err := a.load(ctx); err != nil {
		_ = c.Close() //nolint:errcheck // best-effort cleanup
		return nil, err
	}
	if cfg.verify {
		if err := a.Verify(ctx); err != nil {
			_ = c.Close() //nolint:errcheck // best-effort cleanup
			return nil, err
		}
	}

	a.log().Debug("archive opened",
		"path", path,
		"id", c.ID(),
		"records", len(a.nameIndex),
		"chunks", len(a.dataIndex),
		"record_index", a.recordIndex != nil)
	return a, nil
}

func (a *Archive) load(ctx context.Context) error {
	var err error
	if a.data, err = a.c.Array(DataArray); err != nil {
		return err
	}
	if a.dataIndex, err = a.readIndex(ctx, DataOffsetArray); err != nil {
		return err
	}
	if a.nameIndex, err = a.readIndex(ctx, NameOffsetArray); err != nil {
		return err
	}
	names, err := a.c.Array(NameArray)
	if err != nil {
		return err
	}
	if a.names, err = names.ReadAll(ctx); err != nil {
		return err
	}
	if a.c.Has(RecordChunkArray) {
		if a.recordIndex, err = a.readIndex(ctx, RecordChunkArray); err != nil {
			return err
		}
	}
	return a.validate()
}

func (a *Archive) readIndex(ctx context.Context, name string) ([]uint64, error) {
	ar, err := a.c.Array(name)
	if err != nil {
		return nil, err
	}
	return ar.ReadUint64s(ctx)
}

// validate checks the cross-array invariants so that record lookups can
// slice without further bounds checks.
func (a *Archive) validate() error {
	dataLen := a.data.Len()
	for i, off := range a.dataIndex {
		if off >= dataLen || (i > 0 && off <= a.dataIndex[i-1]) {
			return fmt.Errorf("%w: data_offset[%d] = %d", ErrInconsistent, i, off)
		}
	}
	if len(a.dataIndex) > 0 && a.dataIndex[0] != 0 {
		return fmt.Errorf("%w: data_offset[0] = %d", ErrInconsistent, a.dataIndex[0])
	}
	if len(a.dataIndex) == 0 && dataLen != 0 {
		return fmt.Errorf("%w: %d data bytes without chunks", ErrInconsistent, dataLen)
	}

	nameLen := uint64(len(a.names))
	for i, off := range a.nameIndex {
		if off >= nameLen || (i > 0 && off <= a.nameIndex[i-1]) || (i == 0 && off != 0) {
			return fmt.Errorf("%w: name_offset[%d] = %d", ErrInconsistent, i, off)
		}
		if off > 0 && a.names[off-1] != 0 {
			return fmt.Errorf("%w: name %d is not NUL-terminated", ErrInconsistent, i-1)
		}
	}
	if nameLen > 0 && (len(a.nameIndex) == 0 || a.names[nameLen-1] != 0) {
		return fmt.Errorf("%w: name stream is not NUL-terminated", ErrInconsistent)
	}

	if a.recordIndex == nil {
		return nil
	}
	if len(a.recordIndex) != len(a.nameIndex) {
		return fmt.Errorf("%w: %d record_chunk entries for %d records", ErrInconsistent, len(a.recordIndex), len(a.nameIndex))
	}
	chunks := uint64(len(a.dataIndex))
	for i, first := range a.recordIndex {
		if first > chunks || (i > 0 && first < a.recordIndex[i-1]) {
			return fmt.Errorf("%w: record_chunk[%d] = %d", ErrInconsistent, i, first)
		}
	}
	return nil
}

// log returns the logger, falling back to a discard logger if nil.
func (a *Archive) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.logger
}

// ID returns the container identifier.
func (a *Archive) ID() string {
	return a.c.ID()
}

// Len returns the number of records.
func (a *Archive) Len() int {
	return len(a.nameIndex)
}

// HasRecordIndex reports whether record contents can be read individually.
func (a *Archive) HasRecordIndex() bool {
	return a.recordIndex != nil
}

// Arrays describes the stored arrays.
func (a *Archive) Arrays() []ArrayInfo {
	return a.c.Arrays()
}

// Name returns the name of record i.
func (a *Archive) Name(i int) (string, error) {
	if i < 0 || i >= len(a.nameIndex) {
		return "", fmt.Errorf("%w: %d", ErrRecordRange, i)
	}
	start := a.nameIndex[i]
	end := uint64(len(a.names))
	if i+1 < len(a.nameIndex) {
		end = a.nameIndex[i+1]
	}
	return string(a.names[start : end-1]), nil
}

// Data returns the content of record i.
func (a *Archive) Data(i int) ([]byte, error) {
	if a.recordIndex == nil {
		return nil, ErrNoRecordIndex
	}
	if i < 0 || i >= len(a.recordIndex) {
		return nil, fmt.Errorf("%w: %d", ErrRecordRange, i)
	}
	first := a.recordIndex[i]
	next := uint64(len(a.dataIndex))
	if i+1 < len(a.recordIndex) {
		next = a.recordIndex[i+1]
	}
	if first == next {
		return []byte{}, nil
	}
	start := a.dataIndex[first]
	end := a.data.Len()
	if next < uint64(len(a.dataIndex)) {
		end = a.dataIndex[next]
	}
	return a.data.ReadRange(start, end-start)
}

// Record returns name and content of record i.
func (a *Archive) Record(i int) (Record, error) {
	name, err := a.Name(i)
	if err != nil {
		return Record{}, err
	}
	data, err := a.Data(i)
	if err != nil {
		return Record{}, err
	}
	return Record{Name: name, Data: data}, nil
}

// Records returns an iterator over all records in archive order.
// Iteration stops after the first error.
func (a *Archive) Records() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for i := range a.nameIndex {
			rec, err := a.Record(i)
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// Names returns an iterator over record names in archive order.
func (a *Archive) Names() iter.Seq[string] {
	return func(yield func(string) bool) {
		for i := range a.nameIndex {
			name, _ := a.Name(i) //nolint:errcheck // i is in range
			if !yield(name) {
				return
			}
		}
	}
}

// Lookup returns the number of the last record with the given name.
// Later entries shadow earlier ones, as when extracting a tar archive.
func (a *Archive) Lookup(name string) (int, bool) {
	target := append([]byte(name), 0)
	for i := len(a.nameIndex) - 1; i >= 0; i-- {
		start := a.nameIndex[i]
		end := uint64(len(a.names))
		if i+1 < len(a.nameIndex) {
			end = a.nameIndex[i+1]
		}
		if bytes.Equal(a.names[start:end], target) {
			return i, true
		}
	}
	return -1, false
}

// ReadFile returns the content of the last record named name.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	i, ok := a.Lookup(name)
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}
	return a.Data(i)
}

// DataIndex returns a copy of the data_offset array.
func (a *Archive) DataIndex() []uint64 {
	return slices.Clone(a.dataIndex)
}

// NameIndex returns a copy of the name_offset array.
func (a *Archive) NameIndex() []uint64 {
	return slices.Clone(a.nameIndex)
}

// RecordIndex returns a copy of the record_chunk array, or nil if the
// container has none.
func (a *Archive) RecordIndex() []uint64 {
	return slices.Clone(a.recordIndex)
}

// NameBlob returns a copy of the name stream.
func (a *Archive) NameBlob() []byte {
	return bytes.Clone(a.names)
}

// DataBlob decodes and returns the whole data stream.
func (a *Archive) DataBlob(ctx context.Context) ([]byte, error) {
	return a.data.ReadAll(ctx)
}

// Verify checks every array against its recorded digest.
func (a *Archive) Verify(ctx context.Context) error {
	for _, info := range a.c.Arrays() {
		ar, err := a.c.Array(info.Name)
		if err != nil {
			return err
		}
		if err := ar.Verify(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the container.
func (a *Archive) Close() error {
	return a.c.Close()
}
