package container

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"runtime"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"
	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/shredder/internal/sizing"
)

// ArrayInfo describes a stored array.
type ArrayInfo struct {
	Name        string
	Type        ElementType
	Compression Compression
	ChunkSize   uint64
	Extent      uint64
	Digest      digest.Digest
	Chunks      int
	StoredSize  uint64
}

// Reader provides read access to a closed container file. The file is
// memory-mapped; slices returned for uncompressed arrays may alias the mapping
// and are only valid until Close.
//
// Reader is safe for concurrent use.
type Reader struct {
	file    *os.File
	data    mmap.MMap
	dir     *directory
	arrays  map[string]*ArrayReader
	ordered []*ArrayReader
	dec     *decoder
}

// Open maps the container at path and validates its header, trailer, and
// directory.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path) //nolint:gosec // caller-provided path is intentional
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat container: %w", err)
	}
	if info.Size() < headerSize+trailerSize {
		f.Close()
		return nil, fmt.Errorf("%w: file too small (%d bytes)", ErrCorrupt, info.Size())
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("map container: %w", err)
	}

	r := &Reader{file: f, data: data}
	if err := r.load(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) load() error {
	data := []byte(r.data)
	size := sizing.Len(data)

	if !bytes.Equal(data[:8], []byte(headerMagic)) {
		return fmt.Errorf("%w: bad header magic", ErrCorrupt)
	}
	if v := binary.LittleEndian.Uint32(data[8:12]); v != FormatVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}

	trailer := data[size-trailerSize:]
	if !bytes.Equal(trailer[24:], []byte(trailerMagic)) {
		return fmt.Errorf("%w: %v", ErrCorrupt, errNoTrailer)
	}
	dirOffset := binary.LittleEndian.Uint64(trailer[0:8])
	dirSize := binary.LittleEndian.Uint64(trailer[8:16])
	dirEnd, err := sizing.Add(dirOffset, dirSize)
	if err != nil || dirOffset < headerSize || dirEnd != size-trailerSize {
		return fmt.Errorf("%w: directory out of bounds", ErrCorrupt)
	}
	dirBytes := data[dirOffset:dirEnd]
	if xxhash.Sum64(dirBytes) != binary.LittleEndian.Uint64(trailer[16:24]) {
		return fmt.Errorf("%w: directory", ErrChecksum)
	}

	dir, err := parseDirectory(dirBytes, dirOffset)
	if err != nil {
		return err
	}
	r.dir = dir

	dec, err := newDecoder()
	if err != nil {
		return err
	}
	r.dec = dec

	r.arrays = make(map[string]*ArrayReader, len(dir.arrays))
	for i := range dir.arrays {
		ar := &ArrayReader{r: r, entry: &dir.arrays[i]}
		r.arrays[ar.entry.info.Name] = ar
		r.ordered = append(r.ordered, ar)
	}
	return nil
}

// ID returns the container identifier.
func (r *Reader) ID() string {
	return r.dir.id
}

// Version returns the directory format version.
func (r *Reader) Version() uint32 {
	return r.dir.version
}

// Arrays returns the stored arrays in creation order.
func (r *Reader) Arrays() []ArrayInfo {
	infos := make([]ArrayInfo, len(r.ordered))
	for i, ar := range r.ordered {
		infos[i] = ar.entry.info
	}
	return infos
}

// Array returns a reader for the named array.
func (r *Reader) Array(name string) (*ArrayReader, error) {
	ar, ok := r.arrays[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return ar, nil
}

// Has reports whether the named array exists.
func (r *Reader) Has(name string) bool {
	_, ok := r.arrays[name]
	return ok
}

// Close unmaps and closes the file.
func (r *Reader) Close() error {
	if r.dec != nil {
		r.dec.close()
		r.dec = nil
	}
	var err error
	if r.data != nil {
		err = r.data.Unmap()
		r.data = nil
	}
	if r.file != nil {
		if cerr := r.file.Close(); cerr != nil && err == nil {
			err = cerr
		}
		r.file = nil
	}
	return err
}

// ArrayReader reads one stored array.
type ArrayReader struct {
	r     *Reader
	entry *arrayEntry
}

// Info returns the array's directory entry.
func (a *ArrayReader) Info() ArrayInfo {
	return a.entry.info
}

// Len returns the extent in elements.
func (a *ArrayReader) Len() uint64 {
	return a.entry.info.Extent
}

// chunk returns the raw content of chunk i after verifying its checksum.
func (a *ArrayReader) chunk(i int) ([]byte, error) {
	c := a.entry.chunks[i]
	stored := a.r.data[c.offset : c.offset+c.storedSize]
	if xxhash.Sum64(stored) != c.checksum {
		return nil, fmt.Errorf("%w: array %s chunk %d", ErrChecksum, a.entry.info.Name, i)
	}
	rawSize, err := sizing.ToInt(c.rawSize)
	if err != nil {
		return nil, ErrSizeOverflow
	}
	return a.r.dec.decode(stored, rawSize, a.entry.info.Compression)
}

// ReadAll returns a copy of the entire array content and verifies it against
// the recorded digest. Chunks are decoded in parallel.
func (a *ArrayReader) ReadAll(ctx context.Context) ([]byte, error) {
	total, err := sizing.Mul(a.entry.info.Extent, a.entry.info.Type.Size())
	if err != nil {
		return nil, ErrSizeOverflow
	}
	n, err := sizing.ToInt(total)
	if err != nil {
		return nil, ErrSizeOverflow
	}
	out := make([]byte, n)
	elem := a.entry.info.Type.Size()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range a.entry.chunks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			raw, err := a.chunk(i)
			if err != nil {
				return err
			}
			copy(out[a.entry.starts[i]*elem:], raw)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	verifier := a.entry.info.Digest.Verifier()
	if _, err := verifier.Write(out); err != nil {
		return nil, err
	}
	if !verifier.Verified() {
		return nil, fmt.Errorf("%w: array %s", ErrDigestMismatch, a.entry.info.Name)
	}
	return out, nil
}

// ReadRange returns n elements starting at element index start, encoded as
// bytes. Only the chunks overlapping the range are decoded.
func (a *ArrayReader) ReadRange(start, n uint64) ([]byte, error) {
	end, err := sizing.Add(start, n)
	if err != nil || end > a.entry.info.Extent {
		return nil, fmt.Errorf("%w: range [%d, %d) outside extent %d", ErrOutOfRange, start, start+n, a.entry.info.Extent)
	}
	elem := a.entry.info.Type.Size()
	size, err := sizing.ToInt(n * elem)
	if err != nil {
		return nil, ErrSizeOverflow
	}
	out := make([]byte, 0, size)
	if n == 0 {
		return out, nil
	}

	starts := a.entry.starts
	first := sort.Search(len(starts), func(i int) bool { return starts[i] > start }) - 1
	for i := first; i < len(starts) && starts[i] < end; i++ {
		raw, err := a.chunk(i)
		if err != nil {
			return nil, err
		}
		chunkStart := starts[i]
		lo := max(start, chunkStart) - chunkStart
		hi := min(end-chunkStart, sizing.Len(raw)/elem)
		out = append(out, raw[lo*elem:hi*elem]...)
	}
	return out, nil
}

// ReadUint64s returns the whole array decoded as uint64 values.
func (a *ArrayReader) ReadUint64s(ctx context.Context) ([]uint64, error) {
	if a.entry.info.Type != Uint64 {
		return nil, fmt.Errorf("%w: array %s is %s", ErrElementType, a.entry.info.Name, a.entry.info.Type)
	}
	raw, err := a.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	values := make([]uint64, len(raw)/8)
	for i := range values {
		values[i] = binary.LittleEndian.Uint64(raw[i*8:])
	}
	return values, nil
}

// Verify decodes every chunk in order and checks the array digest without
// materializing the whole array.
func (a *ArrayReader) Verify(ctx context.Context) error {
	verifier := a.entry.info.Digest.Verifier()
	for i := range a.entry.chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw, err := a.chunk(i)
		if err != nil {
			return err
		}
		if _, err := verifier.Write(raw); err != nil {
			return err
		}
	}
	if !verifier.Verified() {
		return fmt.Errorf("%w: array %s", ErrDigestMismatch, a.entry.info.Name)
	}
	return nil
}
