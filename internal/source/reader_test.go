package source

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/containerd/stargz-snapshotter/estargz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/shredder/internal/testutil"
)

type record struct {
	name   string
	data   []byte
	chunks int
}

// drain reads every record, checking that only the last chunk of a record
// may be short.
func drain(t *testing.T, r *Reader) []record {
	t.Helper()

	var out []record
	for {
		name, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)

		rec := record{name: name, data: []byte{}}
		short := false
		for {
			chunk, err := r.Chunk()
			require.NoError(t, err)
			if len(chunk) == 0 {
				break
			}
			require.False(t, short, "short chunk before end of %s", name)
			require.LessOrEqual(t, len(chunk), r.ChunkSize())
			short = len(chunk) < r.ChunkSize()
			rec.data = append(rec.data, chunk...)
			rec.chunks++
		}
		out = append(out, rec)
	}
}

func sampleEntries() []testutil.Entry {
	return []testutil.Entry{
		{Name: "dir/", Dir: true},
		{Name: "dir/hello.txt", Data: []byte("hello")},
		{Name: "empty", Data: nil},
		{Name: "big.bin", Data: testutil.RandomBytes(1, 2500)},
		{Name: "text.txt", Data: testutil.CompressibleBytes(1024)},
	}
}

func assertRecords(t *testing.T, want []testutil.Entry, got []record) {
	t.Helper()

	require.Len(t, got, len(want))
	for i, e := range want {
		assert.Equal(t, e.Name, got[i].name, "record %d", i)
		assert.Equal(t, len(e.Data), len(got[i].data), "record %d", i)
		assert.True(t, bytes.Equal(e.Data, got[i].data), "record %d content", i)
	}
}

func TestReaderTarChunking(t *testing.T) {
	t.Parallel()

	entries := sampleEntries()
	r, err := NewReader(bytes.NewReader(testutil.Tar(t, entries)), WithChunkSize(1024))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, FormatTar, r.Format())
	assert.Empty(t, r.Filters())
	assert.Equal(t, 1024, r.ChunkSize())

	got := drain(t, r)
	assertRecords(t, entries, got)

	// ceil(size / chunk size) chunks per record
	assert.Equal(t, 0, got[0].chunks)
	assert.Equal(t, 1, got[1].chunks)
	assert.Equal(t, 0, got[2].chunks)
	assert.Equal(t, 3, got[3].chunks)
	assert.Equal(t, 1, got[4].chunks)
	assert.Equal(t, 5, r.Records())
}

func TestReaderFormatsAndFilters(t *testing.T) {
	t.Parallel()

	entries := sampleEntries()
	tarData := testutil.Tar(t, entries)
	zipData := testutil.Zip(t, entries)

	tests := []struct {
		name    string
		data    []byte
		format  Format
		filters []Filter
	}{
		{"tar", tarData, FormatTar, nil},
		{"tar.gz", testutil.Gzip(t, tarData), FormatTar, []Filter{FilterGzip}},
		{"tar.zst", testutil.Zstd(t, tarData), FormatTar, []Filter{FilterZstd}},
		{"tar.xz", testutil.XZ(t, tarData), FormatTar, []Filter{FilterXZ}},
		{"tar.sz", testutil.Snappy(t, tarData), FormatTar, []Filter{FilterSnappy}},
		{"tar.zst.gz", testutil.Gzip(t, testutil.Zstd(t, tarData)), FormatTar, []Filter{FilterGzip, FilterZstd}},
		{"zip", zipData, FormatZip, nil},
		{"zip.gz", testutil.Gzip(t, zipData), FormatZip, []Filter{FilterGzip}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r, err := NewReader(bytes.NewReader(tt.data), WithChunkSize(512))
			require.NoError(t, err)
			defer r.Close()

			assert.Equal(t, tt.format, r.Format())
			if tt.filters == nil {
				assert.Empty(t, r.Filters())
			} else {
				assert.Equal(t, tt.filters, r.Filters())
			}

			assertRecords(t, entries, drain(t, r))
		})
	}
}

func TestOpenFromPath(t *testing.T) {
	t.Parallel()

	entries := sampleEntries()
	dir := t.TempDir()

	for _, tc := range []struct {
		name   string
		data   []byte
		format Format
	}{
		{"archive.tar", testutil.Tar(t, entries), FormatTar},
		{"archive.zip", testutil.Zip(t, entries), FormatZip},
		{"archive.tar.xz", testutil.XZ(t, testutil.Tar(t, entries)), FormatTar},
	} {
		path := testutil.WriteFile(t, dir, tc.name, tc.data)
		r, err := Open(path)
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.format, r.Format(), tc.name)
		assertRecords(t, entries, drain(t, r))
		require.NoError(t, r.Close())
	}
}

func TestReaderEStargz(t *testing.T) {
	t.Parallel()

	entries := []testutil.Entry{
		{Name: "etc/", Dir: true},
		{Name: "etc/config.json", Data: []byte(`{"debug":true}`)},
		{Name: "bin/", Dir: true},
		{Name: "bin/tool", Data: testutil.RandomBytes(7, 64<<10)},
	}
	tarData := testutil.Tar(t, entries)

	for _, tc := range []struct {
		name   string
		data   []byte
		filter Filter
	}{
		{"estargz", testutil.EStargz(t, tarData), FilterGzip},
		{"estargz-small-chunks", testutil.EStargz(t, tarData, estargz.WithChunkSize(4096)), FilterGzip},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r, err := NewReader(bytes.NewReader(tc.data), WithChunkSize(4096))
			require.NoError(t, err)
			defer r.Close()

			require.NotEmpty(t, r.Filters())
			assert.Equal(t, tc.filter, r.Filters()[0])
			assert.Equal(t, FormatTar, r.Format())

			// The layer adds landmark and TOC entries around the originals.
			byName := make(map[string][]byte)
			var order []string
			for _, rec := range drain(t, r) {
				byName[strings.TrimPrefix(rec.name, "./")] = rec.data
				order = append(order, strings.TrimPrefix(rec.name, "./"))
			}
			last := -1
			for _, e := range entries {
				name := strings.TrimSuffix(e.Name, "/")
				idx := indexOf(order, name, e.Name)
				require.GreaterOrEqual(t, idx, 0, "missing %s", e.Name)
				assert.Greater(t, idx, last, "order of %s", e.Name)
				last = idx
				if !e.Dir {
					assert.True(t, bytes.Equal(e.Data, byName[e.Name]), "content of %s", e.Name)
				}
			}
		})
	}
}

func indexOf(names []string, alts ...string) int {
	for i, n := range names {
		for _, a := range alts {
			if n == a {
				return i
			}
		}
	}
	return -1
}

func TestDetectFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
		want  Filter
	}{
		{"gzip", []byte{0x1f, 0x8b, 0x08, 0x00}, FilterGzip},
		{"zstd", []byte{0x28, 0xb5, 0x2f, 0xfd, 0x00}, FilterZstd},
		{"xz", []byte{0xfd, '7', 'z', 'X', 'Z', 0x00, 0x00}, FilterXZ},
		{"bzip2", []byte("BZh91AY&SY"), FilterBzip2},
		{"snappy", []byte("\xff\x06\x00\x00sNaPpY"), FilterSnappy},
		{"tar", []byte("ustar"), FilterNone},
		{"short", []byte{0x1f}, FilterNone},
		{"empty", nil, FilterNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := detectFilter(bufio.NewReader(bytes.NewReader(tt.input)))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NotEqual(t, "unknown", got.String())
		})
	}
}

func TestReaderEmptyInput(t *testing.T) {
	t.Parallel()

	r, err := NewReader(bytes.NewReader(nil))
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 0, r.Records())
}

func TestReaderSkipsGlobalHeader(t *testing.T) {
	t.Parallel()

	entries := []testutil.Entry{
		{Name: "repo/", Dir: true},
		{Name: "repo/a.txt", Data: []byte("hello")},
	}
	data := testutil.TarWithGlobalHeader(t, map[string]string{
		"comment": "4b825dc642cb6eb9a060e54bf8d69288fbee4904",
	}, entries)

	r, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer r.Close()

	assertRecords(t, entries, drain(t, r))
	assert.Equal(t, 2, r.Records())
}

func TestReaderRejectsGarbage(t *testing.T) {
	t.Parallel()

	r, err := NewReader(bytes.NewReader(testutil.CompressibleBytes(1024)))
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next()
	require.Error(t, err)
	var srcErr *SourceError
	assert.ErrorAs(t, err, &srcErr)
	assert.Equal(t, "next", srcErr.Op)
}

func TestReaderTruncatedStream(t *testing.T) {
	t.Parallel()

	entries := []testutil.Entry{{Name: "payload", Data: testutil.RandomBytes(3, 256<<10)}}
	full := testutil.Gzip(t, testutil.Tar(t, entries))
	truncated := full[:len(full)/2]

	r, err := NewReader(bytes.NewReader(truncated), WithChunkSize(4096))
	require.NoError(t, err)
	defer r.Close()

	var failure error
	for failure == nil {
		if _, err := r.Next(); err != nil {
			require.NotErrorIs(t, err, io.EOF)
			failure = err
			break
		}
		for {
			chunk, err := r.Chunk()
			if err != nil {
				failure = err
				break
			}
			if len(chunk) == 0 {
				break
			}
		}
	}
	var srcErr *SourceError
	require.ErrorAs(t, failure, &srcErr)
	assert.ErrorIs(t, failure, io.ErrUnexpectedEOF)
}

func TestOpenMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Open(t.TempDir() + "/missing.tar")
	require.Error(t, err)
	var srcErr *SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, "open", srcErr.Op)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReaderSkipsUnreadContent(t *testing.T) {
	t.Parallel()

	entries := sampleEntries()
	for _, data := range [][]byte{testutil.Tar(t, entries), testutil.Zip(t, entries)} {
		r, err := NewReader(bytes.NewReader(data), WithChunkSize(100))
		require.NoError(t, err)

		// Chunk before the first Next yields nothing.
		chunk, err := r.Chunk()
		require.NoError(t, err)
		assert.Empty(t, chunk)

		var names []string
		for {
			name, err := r.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			require.NoError(t, err)
			names = append(names, name)
			if name == "big.bin" {
				// read one chunk, leave the rest
				chunk, err := r.Chunk()
				require.NoError(t, err)
				assert.Len(t, chunk, 100)
			}
		}
		assert.Equal(t, []string{"dir/", "dir/hello.txt", "empty", "big.bin", "text.txt"}, names)
		require.NoError(t, r.Close())
	}
}

func TestReaderClosed(t *testing.T) {
	t.Parallel()

	r, err := NewReader(bytes.NewReader(testutil.Tar(t, sampleEntries())))
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err = r.Next()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = r.Chunk()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestChunkEmptyUntilNext(t *testing.T) {
	t.Parallel()

	r, err := NewReader(bytes.NewReader(testutil.Tar(t, sampleEntries())))
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	require.NoError(t, err)

	chunk, err := r.Chunk()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), chunk)
	for range 3 {
		chunk, err = r.Chunk()
		require.NoError(t, err)
		assert.Empty(t, chunk)
	}
}
