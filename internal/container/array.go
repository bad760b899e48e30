package container

import (
	_ "crypto/sha256" // registers digest.Canonical
	"encoding/binary"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/shredder/internal/sizing"
)

// Array is a growable typed array inside a container being written.
//
// Growth follows an extend-then-write contract: Extend declares the new
// logical extent, WriteRange fills elements inside it. Elements that are
// never written read back as zero. Writes must not reach back into a chunk
// that has already been flushed.
type Array struct {
	w        *Writer
	spec     ArraySpec
	elemSize uint64
	extent   uint64
	flushed  uint64
	tail     []byte
	chunks   []chunkRef
	digester digest.Digester
	scratch  []byte
	closed   bool
}

func newArray(w *Writer, spec ArraySpec) *Array {
	return &Array{
		w:        w,
		spec:     spec,
		elemSize: spec.Type.Size(),
		digester: digest.Canonical.Digester(),
	}
}

// Name returns the array name.
func (a *Array) Name() string {
	return a.spec.Name
}

// Spec returns the array spec with defaults applied.
func (a *Array) Spec() ArraySpec {
	return a.spec
}

// Extent returns the current logical length in elements.
func (a *Array) Extent() uint64 {
	return a.extent
}

// Extend grows the logical length to newExtent elements.
func (a *Array) Extend(newExtent uint64) error {
	if a.closed {
		return a.fail("extend", ErrArrayClosed)
	}
	if newExtent < a.extent {
		return a.fail("extend", ErrShrink)
	}
	if _, err := sizing.Mul(newExtent, a.elemSize); err != nil {
		return a.fail("extend", ErrSizeOverflow)
	}
	a.extent = newExtent
	return nil
}

// WriteRange writes encoded elements starting at element index start.
// len(p) must be a multiple of the element size; uint64 elements are little
// endian.
func (a *Array) WriteRange(start uint64, p []byte) error {
	if a.closed {
		return a.fail("write", ErrArrayClosed)
	}
	if sizing.Len(p)%a.elemSize != 0 {
		return a.fail("write", ErrMisaligned)
	}
	end, err := sizing.Add(start, sizing.Len(p)/a.elemSize)
	if err != nil {
		return a.fail("write", ErrSizeOverflow)
	}
	if end > a.extent {
		return a.fail("write", ErrOutOfRange)
	}
	if start < a.flushed {
		return a.fail("write", ErrRangeFlushed)
	}

	chunk := a.spec.ChunkSize
	for len(p) > 0 {
		for start >= a.flushed+chunk {
			if err := a.flush(chunk); err != nil {
				return a.fail("write", err)
			}
		}
		a.ensureTail()
		n := copy(a.tail[(start-a.flushed)*a.elemSize:], p)
		p = p[n:]
		start += uint64(n) / a.elemSize //nolint:gosec // copy count is never negative
		if start == a.flushed+chunk {
			if err := a.flush(chunk); err != nil {
				return a.fail("write", err)
			}
		}
	}
	return nil
}

// WriteUint64s encodes values and writes them starting at element index start.
func (a *Array) WriteUint64s(start uint64, values []uint64) error {
	if a.spec.Type != Uint64 {
		return a.fail("write", ErrElementType)
	}
	need := len(values) * 8
	if cap(a.scratch) < need {
		a.scratch = make([]byte, need)
	}
	buf := a.scratch[:need]
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], v)
	}
	return a.WriteRange(start, buf)
}

// Close flushes the remaining elements, including any unwritten zero fill up
// to the extent, and seals the array.
func (a *Array) Close() error {
	if a.closed {
		return a.fail("close", ErrArrayClosed)
	}
	for a.flushed < a.extent {
		if err := a.flush(min(a.spec.ChunkSize, a.extent-a.flushed)); err != nil {
			return a.fail("close", err)
		}
	}
	a.closed = true
	a.tail = nil
	a.scratch = nil
	a.w.log().Debug("array closed",
		"array", a.spec.Name,
		"extent", a.extent,
		"chunks", len(a.chunks),
		"digest", a.digester.Digest().String())
	return nil
}

// Digest returns the digest of the flushed raw content. After Close it covers
// the whole array.
func (a *Array) Digest() digest.Digest {
	return a.digester.Digest()
}

// ensureTail allocates the chunk buffer on first use. The buffer is sized to
// a whole chunk so it is allocated once per array.
func (a *Array) ensureTail() {
	if a.tail == nil {
		a.tail = make([]byte, a.spec.ChunkSize*a.elemSize)
	}
}

// flush persists the first elems elements of the tail buffer as one chunk and
// advances the flushed boundary.
func (a *Array) flush(elems uint64) error {
	a.ensureTail()
	raw := a.tail[:elems*a.elemSize]
	if _, err := a.digester.Hash().Write(raw); err != nil {
		return err
	}
	ref, err := a.w.writeChunk(raw, a.spec.Compression)
	if err != nil {
		return err
	}
	a.chunks = append(a.chunks, ref)
	a.flushed += elems
	clear(a.tail)
	return nil
}

func (a *Array) fail(op string, err error) error {
	return &BackendError{Op: op, Array: a.spec.Name, Err: err}
}
