package container

import (
	"github.com/meigma/shredder/internal/fb"
)

// DefaultChunkSize is the chunk granularity, in elements, used when an
// ArraySpec leaves ChunkSize unset.
const DefaultChunkSize = 1 << 20

// MaxChunkBytes bounds the in-memory tail buffer of a single array.
const MaxChunkBytes = 1 << 30

// ElementType identifies the type stored in an array.
type ElementType uint8

const (
	Uint8 ElementType = iota
	Uint64
)

// Size returns the encoded width of one element in bytes.
func (t ElementType) Size() uint64 {
	switch t {
	case Uint8:
		return 1
	case Uint64:
		return 8
	default:
		return 0
	}
}

func (t ElementType) String() string {
	switch t {
	case Uint8:
		return "uint8"
	case Uint64:
		return "uint64"
	default:
		return "unknown"
	}
}

func (t ElementType) toFB() fb.ElementType {
	if t == Uint64 {
		return fb.ElementTypeUint64
	}
	return fb.ElementTypeUint8
}

func elementTypeFromFB(t fb.ElementType) (ElementType, bool) {
	switch t {
	case fb.ElementTypeUint8:
		return Uint8, true
	case fb.ElementTypeUint64:
		return Uint64, true
	default:
		return 0, false
	}
}

// Compression identifies the per-chunk codec of an array.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionDeflate
	CompressionZstd
	CompressionSnappy
)

// String returns the human-readable name of the codec.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionDeflate:
		return "deflate"
	case CompressionZstd:
		return "zstd"
	case CompressionSnappy:
		return "snappy"
	default:
		return "unknown"
	}
}

func (c Compression) valid() bool {
	return c <= CompressionSnappy
}

func (c Compression) toFB() fb.Compression {
	return fb.Compression(c) //nolint:gosec // bounded by valid()
}

func compressionFromFB(c fb.Compression) (Compression, bool) {
	if v := int8(c); v >= 0 && v <= int8(CompressionSnappy) {
		return Compression(v), true //nolint:gosec // bounds checked above
	}
	return 0, false
}

// ArraySpec describes an array at creation time.
type ArraySpec struct {
	// Name identifies the array within the container. Names are unique.
	Name string

	// Type is the element type.
	Type ElementType

	// ChunkSize is the allocation and storage granularity in elements.
	// Zero uses DefaultChunkSize.
	ChunkSize uint64

	// Compression is applied to each stored chunk independently.
	Compression Compression
}

// chunkRef locates one stored chunk in the file.
type chunkRef struct {
	offset     uint64
	storedSize uint64
	rawSize    uint64
	checksum   uint64
}
