package container

import (
	"errors"
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/opencontainers/go-digest"

	"github.com/meigma/shredder/internal/fb"
	"github.com/meigma/shredder/internal/sizing"
)

// buildDirectory serializes the array table to FlatBuffers format.
func buildDirectory(id string, arrays []*Array) []byte {
	builder := flatbuffers.NewBuilder(1024)

	// Build arrays in reverse order (FlatBuffers requirement)
	arrayOffsets := make([]flatbuffers.UOffsetT, len(arrays))
	for i := len(arrays) - 1; i >= 0; i-- {
		a := arrays[i]

		nameOffset := builder.CreateString(a.spec.Name)
		digestOffset := builder.CreateString(a.Digest().String())

		fb.ArrayStartChunksVector(builder, len(a.chunks))
		for j := len(a.chunks) - 1; j >= 0; j-- {
			c := a.chunks[j]
			fb.CreateChunk(builder, c.offset, c.storedSize, c.rawSize, c.checksum)
		}
		chunksOffset := builder.EndVector(len(a.chunks))

		fb.ArrayStart(builder)
		fb.ArrayAddName(builder, nameOffset)
		fb.ArrayAddElementType(builder, a.spec.Type.toFB())
		fb.ArrayAddCompression(builder, a.spec.Compression.toFB())
		fb.ArrayAddChunkSize(builder, a.spec.ChunkSize)
		fb.ArrayAddExtent(builder, a.extent)
		fb.ArrayAddDigest(builder, digestOffset)
		fb.ArrayAddChunks(builder, chunksOffset)
		arrayOffsets[i] = fb.ArrayEnd(builder)
	}

	fb.DirectoryStartArraysVector(builder, len(arrays))
	for i := len(arrayOffsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(arrayOffsets[i])
	}
	arraysOffset := builder.EndVector(len(arrays))

	idOffset := builder.CreateString(id)

	fb.DirectoryStart(builder)
	fb.DirectoryAddVersion(builder, FormatVersion)
	fb.DirectoryAddContainerId(builder, idOffset)
	fb.DirectoryAddArrays(builder, arraysOffset)
	builder.Finish(fb.DirectoryEnd(builder))
	return builder.FinishedBytes()
}

// directory is the decoded, validated array table.
type directory struct {
	version uint32
	id      string
	arrays  []arrayEntry
}

type arrayEntry struct {
	info   ArrayInfo
	chunks []chunkRef
	// starts[i] is the element index of chunk i's first element.
	starts []uint64
}

// parseDirectory decodes the FlatBuffers directory and checks that every
// chunk lies inside the chunk region [headerSize, dataEnd).
func parseDirectory(data []byte, dataEnd uint64) (dir *directory, err error) {
	defer func() {
		if r := recover(); r != nil {
			dir = nil
			err = fmt.Errorf("%w: failed to parse directory: %v", ErrCorrupt, r)
		}
	}()
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty directory", ErrCorrupt)
	}

	root := fb.GetRootAsDirectory(data, 0)
	dir = &directory{
		version: root.Version(),
		id:      string(root.ContainerId()),
	}
	if dir.version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, dir.version)
	}

	seen := make(map[string]struct{}, root.ArraysLength())
	var fbArray fb.Array
	for i := range root.ArraysLength() {
		if !root.Arrays(&fbArray, i) {
			return nil, fmt.Errorf("%w: missing array %d", ErrCorrupt, i)
		}
		entry, err := parseArray(&fbArray, dataEnd)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[entry.info.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateArray, entry.info.Name)
		}
		seen[entry.info.Name] = struct{}{}
		dir.arrays = append(dir.arrays, entry)
	}
	return dir, nil
}

func parseArray(a *fb.Array, dataEnd uint64) (arrayEntry, error) {
	name := string(a.Name())
	typ, ok := elementTypeFromFB(a.ElementType())
	if !ok || name == "" {
		return arrayEntry{}, fmt.Errorf("%w: array %q has invalid element type", ErrCorrupt, name)
	}
	comp, ok := compressionFromFB(a.Compression())
	if !ok {
		return arrayEntry{}, fmt.Errorf("%w: array %q has invalid compression", ErrCorrupt, name)
	}
	dgst, err := digest.Parse(string(a.Digest()))
	if err != nil {
		return arrayEntry{}, fmt.Errorf("%w: array %q digest: %v", ErrCorrupt, name, err)
	}

	chunkBytes, err := sizing.Mul(a.ChunkSize(), typ.Size())
	if err != nil || chunkBytes == 0 || chunkBytes > MaxChunkBytes {
		return arrayEntry{}, fmt.Errorf("%w: array %q has invalid chunk size", ErrCorrupt, name)
	}
	extentBytes, err := sizing.Mul(a.Extent(), typ.Size())
	if err != nil {
		return arrayEntry{}, fmt.Errorf("%w: array %q extent overflows", ErrCorrupt, name)
	}

	entry := arrayEntry{
		info: ArrayInfo{
			Name:        name,
			Type:        typ,
			Compression: comp,
			ChunkSize:   a.ChunkSize(),
			Extent:      a.Extent(),
			Digest:      dgst,
		},
		chunks: make([]chunkRef, 0, a.ChunksLength()),
		starts: make([]uint64, 0, a.ChunksLength()),
	}

	var (
		fbChunk fb.Chunk
		total   uint64
	)
	for j := range a.ChunksLength() {
		if !a.Chunks(&fbChunk, j) {
			return arrayEntry{}, fmt.Errorf("%w: array %q missing chunk %d", ErrCorrupt, name, j)
		}
		c := chunkRef{
			offset:     fbChunk.Offset(),
			storedSize: fbChunk.StoredSize(),
			rawSize:    fbChunk.RawSize(),
			checksum:   fbChunk.Checksum(),
		}
		end, addErr := sizing.Add(c.offset, c.storedSize)
		if addErr != nil || c.offset < headerSize || end > dataEnd {
			return arrayEntry{}, fmt.Errorf("%w: array %q chunk %d out of bounds", ErrCorrupt, name, j)
		}
		// Only the last chunk may be short.
		last := j == a.ChunksLength()-1
		if c.rawSize == 0 || c.rawSize%typ.Size() != 0 || c.rawSize > chunkBytes || (!last && c.rawSize != chunkBytes) {
			return arrayEntry{}, fmt.Errorf("%w: array %q chunk %d has invalid size", ErrCorrupt, name, j)
		}
		entry.starts = append(entry.starts, total/typ.Size())
		entry.chunks = append(entry.chunks, c)
		entry.info.StoredSize += c.storedSize
		total += c.rawSize
	}
	if total != extentBytes {
		return arrayEntry{}, fmt.Errorf("%w: array %q chunks hold %d bytes, extent needs %d", ErrCorrupt, name, total, extentBytes)
	}
	entry.info.Chunks = len(entry.chunks)
	return entry, nil
}

var errNoTrailer = errors.New("missing trailer")
