package shredder

import (
	"github.com/meigma/shredder/internal/accumulator"
	"github.com/meigma/shredder/internal/container"
)

// Compression identifies the codec applied to stored chunks of an array.
type Compression = container.Compression

// Compression constants.
const (
	CompressionNone    = container.CompressionNone
	CompressionDeflate = container.CompressionDeflate
	CompressionZstd    = container.CompressionZstd
	CompressionSnappy  = container.CompressionSnappy
)

// ArrayInfo describes one array stored in a container.
type ArrayInfo = container.ArrayInfo

// Array names in a packed container.
const (
	DataArray        = accumulator.DataArray
	DataOffsetArray  = accumulator.DataOffsetArray
	NameArray        = accumulator.NameArray
	NameOffsetArray  = accumulator.NameOffsetArray
	RecordChunkArray = accumulator.RecordChunkArray
)

// Stats summarizes a pack operation.
type Stats struct {
	// Records is the number of archive entries packed.
	Records uint64

	// Chunks is the number of content chunks, the length of data_offset.
	Chunks uint64

	// DataBytes is the total content size.
	DataBytes uint64

	// NameBytes is the size of the name stream, terminators included.
	NameBytes uint64

	// ContainerID identifies the written container.
	ContainerID string

	// Format is the detected archive format ("tar" or "zip").
	Format string

	// Filters lists the detected compression layers, outermost first.
	Filters []string
}

// Record is one packed archive entry.
type Record struct {
	Name string
	Data []byte
}
