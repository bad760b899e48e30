// Package shredder repacks archives into a columnar container.
//
// Every archive entry becomes a record. Record contents are concatenated into
// a single data stream and record names into a single NUL-terminated name
// stream. Two offset arrays index the streams, so the whole archive is stored
// as four arrays:
//   - data: the concatenated contents of every record
//   - data_offset: the data offset at which each content chunk begins
//   - name: every record name followed by a NUL byte
//   - name_offset: the name offset at which each record name begins
//
// Contents are indexed per chunk rather than per record: a record read in
// several chunks contributes several data_offset entries and an empty record
// contributes none. A fifth array, record_chunk, maps each record to its
// first data_offset entry so readers can recover record boundaries.
//
// # Packing
//
//	stats, err := shredder.Pack(ctx, "layer.tar.gz", shredder.DefaultOutputPath("layer.tar.gz"))
//	if err != nil {
//	    return err
//	}
//	fmt.Println(stats.Records, "records packed")
//
// Input may be tar or zip, optionally wrapped in gzip, zstd, xz, bzip2, or
// snappy framing. Packing is single-pass. For tar input, and for zip files
// opened by path without a filter, memory use is bounded by the chunk sizes
// rather than by archive size. A zip read from a stream or behind a filter is
// buffered in memory because its central directory sits at the end.
//
// # Reading
//
//	a, err := shredder.Open(ctx, "layer.tar.gz.shred")
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//	for rec, err := range a.Records() {
//	    ...
//	}
package shredder
