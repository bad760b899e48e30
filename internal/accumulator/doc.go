// Package accumulator implements the streaming dual-stream blob accumulator.
//
// An Accumulator appends record data and record names into two growable byte
// arrays while maintaining their offset indexes:
//
//	data         bytes of every data chunk, back to back
//	data_offset  start offset in data of every appended chunk
//	name         record names, each followed by a NUL byte
//	name_offset  start offset in name of every completed record
//	record_chunk index into data_offset of each record's first chunk
//
// data_offset is indexed per chunk, not per record: a record delivered in
// several chunks contributes several entries, and a record without data
// contributes none. record_chunk (enabled by default) maps records onto
// chunk ranges so readers can recover record boundaries.
//
// Every append extends the target array to its new extent and then writes
// the appended range. Arrays are never shrunk or rewritten.
package accumulator
