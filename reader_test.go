package shredder

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/shredder/internal/container"
	"github.com/meigma/shredder/internal/testutil"
)

func TestArchiveLookup(t *testing.T) {
	t.Parallel()

	out, _ := packEntries(t, []testutil.Entry{
		{Name: "etc/passwd", Data: []byte("v1")},
		{Name: "etc/hosts", Data: []byte("localhost")},
		{Name: "etc/passwd", Data: []byte("v2")},
	})
	a := openArchive(t, out)

	i, ok := a.Lookup("etc/passwd")
	require.True(t, ok)
	assert.Equal(t, 2, i)

	data, err := a.ReadFile("etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)

	_, ok = a.Lookup("etc")
	assert.False(t, ok)
	_, err = a.ReadFile("etc/shadow")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	assert.Equal(t, []string{"etc/passwd", "etc/hosts", "etc/passwd"}, slices.Collect(a.Names()))
}

func TestArchiveRecordRange(t *testing.T) {
	t.Parallel()

	out, _ := packEntries(t, []testutil.Entry{{Name: "only", Data: []byte("x")}})
	a := openArchive(t, out)

	for _, i := range []int{-1, 1, 100} {
		_, err := a.Name(i)
		assert.ErrorIs(t, err, ErrRecordRange)
		_, err = a.Data(i)
		assert.ErrorIs(t, err, ErrRecordRange)
		_, err = a.Record(i)
		assert.ErrorIs(t, err, ErrRecordRange)
	}

	rec, err := a.Record(0)
	require.NoError(t, err)
	assert.Equal(t, Record{Name: "only", Data: []byte("x")}, rec)
}

func TestArchiveDetectsCorruptData(t *testing.T) {
	t.Parallel()

	// A small data chunk size makes the first data chunk the first chunk in
	// the file, ahead of the index arrays which flush on close.
	out, _ := packEntries(t, []testutil.Entry{
		{Name: "payload", Data: []byte("abcdefghijklmnopqrstuvwxyz")},
	}, PackWithDataChunkSize(4))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "abcd", string(raw[16:20]))
	raw[16] ^= 0xff
	require.NoError(t, os.WriteFile(out, raw, 0o600))

	a := openArchive(t, out)
	_, err = a.Data(0)
	assert.ErrorIs(t, err, ErrChecksum)
	assert.ErrorIs(t, a.Verify(context.Background()), ErrChecksum)

	_, err = Open(context.Background(), out, OpenWithVerify(true))
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestOpenRejectsForeignFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "not-a-container", testutil.CompressibleBytes(4096))
	_, err := Open(context.Background(), path)
	assert.Error(t, err)

	_, err = Open(context.Background(), filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// writeContainer builds a container from raw arrays, bypassing the
// accumulator so that inconsistent layouts can be produced.
func writeContainer(t *testing.T, bytesArrays map[string][]byte, wordArrays map[string][]uint64) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "handmade.shred")
	w, err := container.Create(path)
	require.NoError(t, err)

	for _, name := range []string{DataArray, NameArray} {
		arr, err := w.CreateArray(container.ArraySpec{Name: name, Type: container.Uint8})
		require.NoError(t, err)
		p := bytesArrays[name]
		require.NoError(t, arr.Extend(uint64(len(p))))
		if len(p) > 0 {
			require.NoError(t, arr.WriteRange(0, p))
		}
		require.NoError(t, arr.Close())
	}
	for name, values := range wordArrays {
		arr, err := w.CreateArray(container.ArraySpec{Name: name, Type: container.Uint64})
		require.NoError(t, err)
		require.NoError(t, arr.Extend(uint64(len(values))))
		if len(values) > 0 {
			require.NoError(t, arr.WriteUint64s(0, values))
		}
		require.NoError(t, arr.Close())
	}
	require.NoError(t, w.Close())
	return path
}

func TestOpenValidatesIndexArrays(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		bytes map[string][]byte
		words map[string][]uint64
		want  error
	}{
		{
			name:  "valid",
			bytes: map[string][]byte{DataArray: []byte("hello"), NameArray: []byte("a\x00b\x00")},
			words: map[string][]uint64{DataOffsetArray: {0}, NameOffsetArray: {0, 2}, RecordChunkArray: {0, 1}},
		},
		{
			name:  "name without terminator",
			bytes: map[string][]byte{NameArray: []byte("abc")},
			words: map[string][]uint64{DataOffsetArray: {}, NameOffsetArray: {0}},
			want:  ErrInconsistent,
		},
		{
			name:  "name offset past stream",
			bytes: map[string][]byte{NameArray: []byte("a\x00")},
			words: map[string][]uint64{DataOffsetArray: {}, NameOffsetArray: {0, 5}},
			want:  ErrInconsistent,
		},
		{
			name:  "data offsets not increasing",
			bytes: map[string][]byte{DataArray: []byte("hello"), NameArray: []byte("a\x00")},
			words: map[string][]uint64{DataOffsetArray: {0, 3, 3}, NameOffsetArray: {0}},
			want:  ErrInconsistent,
		},
		{
			name:  "data without chunks",
			bytes: map[string][]byte{DataArray: []byte("hello")},
			words: map[string][]uint64{DataOffsetArray: {}, NameOffsetArray: {}},
			want:  ErrInconsistent,
		},
		{
			name:  "record index length mismatch",
			bytes: map[string][]byte{DataArray: []byte("x"), NameArray: []byte("a\x00")},
			words: map[string][]uint64{DataOffsetArray: {0}, NameOffsetArray: {0}, RecordChunkArray: {0, 1}},
			want:  ErrInconsistent,
		},
		{
			name:  "record index past chunks",
			bytes: map[string][]byte{DataArray: []byte("x"), NameArray: []byte("a\x00")},
			words: map[string][]uint64{DataOffsetArray: {0}, NameOffsetArray: {0}, RecordChunkArray: {2}},
			want:  ErrInconsistent,
		},
		{
			name:  "missing name offsets",
			bytes: map[string][]byte{},
			words: map[string][]uint64{DataOffsetArray: {}},
			want:  ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeContainer(t, tt.bytes, tt.words)
			a, err := Open(context.Background(), path)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				return
			}
			require.NoError(t, err)
			defer a.Close()
			rec, err := a.Record(0)
			require.NoError(t, err)
			assert.Equal(t, Record{Name: "a", Data: []byte("hello")}, rec)
			rec, err = a.Record(1)
			require.NoError(t, err)
			assert.Equal(t, Record{Name: "b", Data: []byte{}}, rec)
		})
	}
}
