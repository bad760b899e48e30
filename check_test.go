package shredder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/shredder/internal/testutil"
)

func TestCheck(t *testing.T) {
	t.Parallel()

	entries := []testutil.Entry{
		{Name: "dir/", Dir: true},
		{Name: "dir/small", Data: []byte("abc")},
		{Name: "dir/big", Data: testutil.RandomBytes(6, 3000)},
		{Name: "dir/exact", Data: testutil.RandomBytes(7, 1024)},
	}
	dir := t.TempDir()
	archive := testutil.WriteFile(t, dir, "in.tar.gz", testutil.Gzip(t, testutil.Tar(t, entries)))

	report, err := Check(context.Background(), archive, CheckWithChunkSize(1024))
	require.NoError(t, err)

	assert.Equal(t, uint64(4), report.Records)
	assert.Equal(t, uint64(3), report.NonEmpty)
	assert.Equal(t, uint64(1), report.MultiChunk)
	assert.Equal(t, uint64(1+3+1), report.Chunks)
	assert.Equal(t, uint64(3+3000+1024), report.DataBytes)
	assert.Equal(t, "dir/big", report.Largest)
	assert.Equal(t, uint64(3000), report.LargestSize)
	assert.Equal(t, 1024, report.ChunkSize)
	assert.Equal(t, "tar", report.Format)
	assert.Equal(t, []string{"gzip"}, report.Filters)

	// Check predicts what Pack produces.
	out := DefaultOutputPath(archive)
	stats, err := Pack(context.Background(), archive, out, PackWithChunkSize(1024))
	require.NoError(t, err)
	assert.Equal(t, report.Records, stats.Records)
	assert.Equal(t, report.Chunks, stats.Chunks)
	assert.Equal(t, report.DataBytes, stats.DataBytes)
}

func TestCheckErrors(t *testing.T) {
	t.Parallel()

	_, err := Check(context.Background(), t.TempDir()+"/missing.tar")
	var srcErr *SourceError
	require.ErrorAs(t, err, &srcErr)

	dir := t.TempDir()
	archive := testutil.WriteFile(t, dir, "in.tar", testutil.Tar(t, []testutil.Entry{{Name: "a", Data: []byte("a")}}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Check(ctx, archive)
	assert.ErrorIs(t, err, context.Canceled)
}
