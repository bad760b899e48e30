package container

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/meigma/shredder/internal/sizing"
)

// FormatVersion is the on-disk format version written by this package.
const FormatVersion = 1

const (
	headerMagic  = "SHREDDER"
	trailerMagic = "SHREDEND"
	headerSize   = 16
	trailerSize  = 32
)

// Writer creates a container file. It is not safe for concurrent use; a
// container has exactly one writer for its whole lifetime.
type Writer struct {
	path   string
	file   *os.File
	bw     *bufio.Writer
	off    uint64
	arrays []*Array
	names  map[string]struct{}
	enc    encoder
	id     string
	logger *slog.Logger
	closed bool
}

// Create truncates or creates the file at path and writes the header.
//
// The returned Writer holds the file open until Close or Abort; callers must
// call one of them on every path.
func Create(path string, opts ...Option) (*Writer, error) {
	w := &Writer{
		path:  path,
		names: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.id == "" {
		w.id = uuid.NewString()
	}

	f, err := os.Create(path) //nolint:gosec // caller-provided output path is intentional
	if err != nil {
		return nil, &BackendError{Op: "create", Err: err}
	}
	w.file = f
	w.bw = bufio.NewWriterSize(f, 1<<20)

	var hdr [headerSize]byte
	copy(hdr[:8], headerMagic)
	binary.LittleEndian.PutUint32(hdr[8:12], FormatVersion)
	if err := w.write(hdr[:]); err != nil {
		_ = f.Close() //nolint:errcheck // best-effort cleanup
		return nil, &BackendError{Op: "create", Err: err}
	}

	w.log().Debug("container created", "path", path, "id", w.id)
	return w, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (w *Writer) log() *slog.Logger {
	if w.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return w.logger
}

// Path returns the file path the writer was created with.
func (w *Writer) Path() string {
	return w.path
}

// ID returns the container identifier recorded in the directory.
func (w *Writer) ID() string {
	return w.id
}

// CreateArray adds an empty array to the container.
//
// Arrays must be created before Close and closed individually before the
// container itself can be closed.
func (w *Writer) CreateArray(spec ArraySpec) (*Array, error) {
	if w.closed {
		return nil, &BackendError{Op: "create array", Array: spec.Name, Err: ErrClosed}
	}
	if spec.Name == "" || !spec.Compression.valid() || spec.Type.Size() == 0 {
		return nil, &BackendError{Op: "create array", Array: spec.Name, Err: ErrInvalidSpec}
	}
	if _, ok := w.names[spec.Name]; ok {
		return nil, &BackendError{Op: "create array", Array: spec.Name, Err: ErrDuplicateArray}
	}
	if spec.ChunkSize == 0 {
		spec.ChunkSize = DefaultChunkSize
	}
	chunkBytes, err := sizing.Mul(spec.ChunkSize, spec.Type.Size())
	if err != nil || chunkBytes > MaxChunkBytes {
		return nil, &BackendError{Op: "create array", Array: spec.Name, Err: fmt.Errorf("%w: chunk size %d", ErrInvalidSpec, spec.ChunkSize)}
	}

	a := newArray(w, spec)
	w.names[spec.Name] = struct{}{}
	w.arrays = append(w.arrays, a)
	w.log().Debug("array created",
		"array", spec.Name,
		"type", spec.Type.String(),
		"chunk_size", spec.ChunkSize,
		"compression", spec.Compression.String())
	return a, nil
}

// Close writes the directory and trailer and closes the file.
//
// Every array must already be closed. The file handle is released even when
// Close fails; the file is then left without a directory.
func (w *Writer) Close() (err error) {
	if w.closed {
		return &BackendError{Op: "close", Err: ErrClosed}
	}
	w.closed = true
	defer w.enc.close()
	defer func() {
		if cerr := w.file.Close(); cerr != nil && err == nil {
			err = &BackendError{Op: "close", Err: cerr}
		}
	}()

	for _, a := range w.arrays {
		if !a.closed {
			return &BackendError{Op: "close", Array: a.spec.Name, Err: ErrArrayOpen}
		}
	}

	dir := buildDirectory(w.id, w.arrays)
	dirOffset := w.off
	if err := w.write(dir); err != nil {
		return &BackendError{Op: "write directory", Err: err}
	}

	var trailer [trailerSize]byte
	binary.LittleEndian.PutUint64(trailer[0:8], dirOffset)
	binary.LittleEndian.PutUint64(trailer[8:16], sizing.Len(dir))
	binary.LittleEndian.PutUint64(trailer[16:24], xxhash.Sum64(dir))
	copy(trailer[24:], trailerMagic)
	if err := w.write(trailer[:]); err != nil {
		return &BackendError{Op: "write trailer", Err: err}
	}

	if err := w.bw.Flush(); err != nil {
		return &BackendError{Op: "flush", Err: err}
	}
	if err := w.file.Sync(); err != nil {
		return &BackendError{Op: "sync", Err: err}
	}

	w.log().Debug("container closed", "path", w.path, "arrays", len(w.arrays), "size", w.off)
	return nil
}

// Abort releases the file without writing the directory. Buffered chunk data
// is discarded and no attempt is made to remove the partial file. Abort after
// Close or a previous Abort is a no-op.
func (w *Writer) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.enc.close()
	w.log().Debug("container aborted", "path", w.path)
	if err := w.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return &BackendError{Op: "abort", Err: err}
	}
	return nil
}

// writeChunk compresses raw as requested, appends it to the file, and returns
// its location.
func (w *Writer) writeChunk(raw []byte, c Compression) (chunkRef, error) {
	if w.closed {
		return chunkRef{}, ErrClosed
	}
	stored, err := w.enc.encode(raw, c)
	if err != nil {
		return chunkRef{}, err
	}
	ref := chunkRef{
		offset:     w.off,
		storedSize: sizing.Len(stored),
		rawSize:    sizing.Len(raw),
		checksum:   xxhash.Sum64(stored),
	}
	if err := w.write(stored); err != nil {
		return chunkRef{}, err
	}
	return ref, nil
}

// write appends p to the file and advances the file offset.
func (w *Writer) write(p []byte) error {
	next, err := sizing.Add(w.off, sizing.Len(p))
	if err != nil {
		return ErrSizeOverflow
	}
	if _, err := w.bw.Write(p); err != nil {
		return err
	}
	w.off = next
	return nil
}
