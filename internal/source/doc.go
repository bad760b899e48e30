// Package source decodes an archive into an ordered sequence of records.
//
// A record is one archive entry: a name and its content, delivered as
// bounded chunks. Compression filters (gzip, zstd, xz, bzip2, snappy framing)
// are detected from magic bytes and may be stacked; the innermost stream is
// read as zip when it starts with a zip signature and as tar otherwise.
//
// Entries are yielded in archive order. Directories, links, and other
// non-regular entries are records too; their content is empty.
package source
