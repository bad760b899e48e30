package source

import (
	"archive/tar"
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

const peekBufferSize = 64 << 10

// Reader yields the records of an archive in order.
//
// Usage follows the archive iteration pattern: call Next to advance to a
// record, then Chunk until it returns an empty slice, then Next again.
// Chunks alias an internal buffer that is overwritten by the next call.
//
// Reader is not safe for concurrent use.
type Reader struct {
	path    string
	logger  *slog.Logger
	buf     []byte
	closers []io.Closer
	filters []Filter
	format  Format
	members entries

	cur     io.Reader
	curDone func() error
	curEOF  bool
	records int
	closed  bool
}

// Open opens the archive at path and detects its filters and format.
func Open(path string, opts ...Option) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &SourceError{Op: "open", Path: path, Err: err}
	}
	// newReader closes f on failure.
	return newReader(path, f, f, opts)
}

// NewReader reads an archive from an arbitrary stream.
// The caller keeps ownership of r; Close does not close it.
func NewReader(r io.Reader, opts ...Option) (*Reader, error) {
	return newReader("", r, nil, opts)
}

func newReader(path string, src io.Reader, owned io.Closer, opts []Option) (*Reader, error) {
	cfg := config{chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Reader{
		path:   path,
		logger: cfg.logger,
		buf:    make([]byte, cfg.chunkSize),
	}
	if owned != nil {
		r.closers = append(r.closers, owned)
	}

	if err := r.detect(src); err != nil {
		r.closeAll()
		return nil, err
	}

	r.log().Debug("opened archive",
		"path", path,
		"format", r.format.String(),
		"filters", len(r.filters),
		"chunk_size", cfg.chunkSize)
	return r, nil
}

func (r *Reader) detect(src io.Reader) error {
	br := bufio.NewReaderSize(src, peekBufferSize)
	stream := io.Reader(br)

	for {
		filter, err := detectFilter(br)
		if err != nil {
			return &SourceError{Op: "detect", Path: r.path, Err: err}
		}
		if filter == FilterNone {
			break
		}
		if len(r.filters) == MaxFilterDepth {
			return &SourceError{Op: "detect", Path: r.path, Err: ErrTooManyFilters}
		}
		dec, closer, err := openFilter(filter, stream)
		if err != nil {
			return &SourceError{Op: "open " + filter.String(), Path: r.path, Err: err}
		}
		if closer != nil {
			r.closers = append(r.closers, closer)
		}
		r.filters = append(r.filters, filter)
		br = bufio.NewReaderSize(dec, peekBufferSize)
		stream = br
	}

	zipped, err := isZip(br)
	if err != nil {
		return &SourceError{Op: "detect", Path: r.path, Err: err}
	}
	if !zipped {
		r.format = FormatTar
		r.members = &tarEntries{tr: tar.NewReader(stream)}
		return nil
	}

	// zip needs random access to its central directory.
	r.format = FormatZip
	var (
		at   io.ReaderAt
		size int64
	)
	if f, ok := src.(*os.File); ok && len(r.filters) == 0 {
		info, statErr := f.Stat()
		if statErr != nil {
			return &SourceError{Op: "stat", Path: r.path, Err: statErr}
		}
		at, size = f, info.Size()
	} else {
		data, readErr := io.ReadAll(stream)
		if readErr != nil {
			return &SourceError{Op: "read", Path: r.path, Err: readErr}
		}
		at, size = bytes.NewReader(data), int64(len(data))
	}
	members, err := newZipEntries(at, size)
	if err != nil {
		return &SourceError{Op: "open zip", Path: r.path, Err: err}
	}
	r.members = members
	return nil
}

// Format returns the detected archive format.
func (r *Reader) Format() Format {
	return r.format
}

// Filters returns the detected compression layers, outermost first.
func (r *Reader) Filters() []Filter {
	return append([]Filter(nil), r.filters...)
}

// ChunkSize returns the maximum chunk length.
func (r *Reader) ChunkSize() int {
	return len(r.buf)
}

// Records returns how many records Next has yielded.
func (r *Reader) Records() int {
	return r.records
}

// Next advances to the next record and returns its name.
// It returns io.EOF when the archive has no more records. Any unread content
// of the previous record is skipped.
func (r *Reader) Next() (string, error) {
	if r.closed {
		return "", &SourceError{Op: "next", Path: r.path, Err: ErrClosed}
	}
	if err := r.finishCurrent(); err != nil {
		return "", err
	}

	name, content, done, err := r.members.next()
	if errors.Is(err, io.EOF) {
		return "", io.EOF
	}
	if err != nil {
		return "", &SourceError{Op: "next", Path: r.path, Err: err}
	}

	r.cur = content
	r.curDone = done
	r.curEOF = false
	r.records++
	return name, nil
}

// Chunk returns the next piece of the current record's content, at most
// ChunkSize bytes. An empty slice means the record is complete; further calls
// keep returning an empty slice until Next is called.
func (r *Reader) Chunk() ([]byte, error) {
	if r.closed {
		return nil, &SourceError{Op: "read", Path: r.path, Err: ErrClosed}
	}
	if r.cur == nil || r.curEOF {
		return r.buf[:0], nil
	}

	// A truncated stream reports io.ErrUnexpectedEOF itself, so only a clean
	// io.EOF ends the record.
	n := 0
	for n < len(r.buf) {
		m, err := r.cur.Read(r.buf[n:])
		n += m
		if errors.Is(err, io.EOF) {
			r.curEOF = true
			break
		}
		if err != nil {
			return nil, &SourceError{Op: "read", Path: r.path, Err: fmt.Errorf("record %d: %w", r.records, err)}
		}
	}
	return r.buf[:n], nil
}

func (r *Reader) finishCurrent() error {
	done := r.curDone
	r.cur, r.curDone, r.curEOF = nil, nil, false
	if done == nil {
		return nil
	}
	if err := done(); err != nil {
		return &SourceError{Op: "close entry", Path: r.path, Err: err}
	}
	return nil
}

// Close releases the archive and any decoders. It is safe to call more than
// once.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.finishCurrent()
	if closeErr := r.closeAll(); err == nil {
		err = closeErr
	}
	return err
}

func (r *Reader) closeAll() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	if err := errors.Join(errs...); err != nil {
		return &SourceError{Op: "close", Path: r.path, Err: err}
	}
	return nil
}

func (r *Reader) log() *slog.Logger {
	if r.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.logger
}
