// Package container implements the persistent store behind a packed archive:
// a single file holding named, growable, typed arrays.
//
// Each array grows through an extend-then-write contract. Elements are
// buffered in a fixed-size tail chunk and flushed to the file as soon as the
// write cursor crosses a chunk boundary, so memory use is bounded by one chunk
// per open array regardless of how large the array becomes. Chunks may be
// compressed individually; the data array is usually left uncompressed so that
// its offsets map directly onto raw byte positions.
//
// File layout:
//
//	header    magic "SHREDDER", version uint32, reserved uint32
//	chunks    chunk payloads in flush order
//	directory FlatBuffers-encoded array table (schema/container.fbs)
//	trailer   directory offset uint64, directory size uint64,
//	          xxhash64(directory) uint64, magic "SHREDEND"
//
// All integers are little endian. The directory is written by Writer.Close,
// so a file whose writer was aborted has no trailer and cannot be opened.
package container
