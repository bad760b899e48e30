package accumulator

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/shredder/internal/container"
)

// memArray is an in-memory Array that records the calls it receives.
type memArray struct {
	store  *memStore
	spec   container.ArraySpec
	extent uint64
	data   []byte
	closed bool
}

func (m *memArray) Extend(n uint64) error {
	m.store.ops = append(m.store.ops, fmt.Sprintf("extend %s %d", m.spec.Name, n))
	if err := m.store.inject("extend", m.spec.Name); err != nil {
		return err
	}
	if n < m.extent {
		return errors.New("shrink")
	}
	m.extent = n
	m.data = append(m.data, make([]byte, int(n*m.spec.Type.Size())-len(m.data))...)
	return nil
}

func (m *memArray) WriteRange(start uint64, p []byte) error {
	m.store.ops = append(m.store.ops, fmt.Sprintf("write %s %d+%d", m.spec.Name, start, uint64(len(p))/m.spec.Type.Size()))
	if err := m.store.inject("write", m.spec.Name); err != nil {
		return err
	}
	off := int(start * m.spec.Type.Size())
	if off+len(p) > len(m.data) {
		return errors.New("write past extent")
	}
	copy(m.data[off:], p)
	return nil
}

func (m *memArray) Close() error {
	m.store.ops = append(m.store.ops, "close "+m.spec.Name)
	if err := m.store.inject("close", m.spec.Name); err != nil {
		return err
	}
	m.closed = true
	return nil
}

func (m *memArray) uint64s() []uint64 {
	out := make([]uint64, len(m.data)/8)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(m.data[i*8:])
	}
	return out
}

type memStore struct {
	arrays map[string]*memArray
	ops    []string
	failOp string
	failAt string
	err    error
}

func newMemStore() *memStore {
	return &memStore{arrays: make(map[string]*memArray)}
}

func (s *memStore) inject(op, name string) error {
	if s.err != nil && s.failOp == op && s.failAt == name {
		return s.err
	}
	return nil
}

func (s *memStore) CreateArray(spec container.ArraySpec) (Array, error) {
	if err := s.inject("create", spec.Name); err != nil {
		return nil, err
	}
	a := &memArray{store: s, spec: spec}
	s.arrays[spec.Name] = a
	return a, nil
}

type testRecord struct {
	name string
	data []byte
}

// feed drives acc the way the packer does: every record is split into chunks
// of at most chunkCap bytes, followed by its name.
func feed(t *testing.T, acc *Accumulator, records []testRecord, chunkCap int) int {
	t.Helper()
	chunks := 0
	for _, rec := range records {
		for data := rec.data; len(data) > 0; {
			n := min(chunkCap, len(data))
			require.NoError(t, acc.AppendData(data[:n]))
			data = data[n:]
			chunks++
		}
		require.NoError(t, acc.AppendName(rec.name))
	}
	return chunks
}

func TestEndToEndExample(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	acc, err := New(store)
	require.NoError(t, err)
	assert.Equal(t, StateCreated, acc.State())

	feed(t, acc, []testRecord{
		{name: "a.txt", data: []byte("hello")},
		{name: "b.bin"},
	}, 1024)
	assert.Equal(t, StateAccumulating, acc.State())
	require.NoError(t, acc.Finalize())
	assert.Equal(t, StateFinalized, acc.State())

	assert.Equal(t, []uint64{0}, store.arrays[DataOffsetArray].uint64s())
	assert.Equal(t, []byte("hello"), store.arrays[DataArray].data)
	assert.Equal(t, []uint64{0, 6}, store.arrays[NameOffsetArray].uint64s())
	assert.Equal(t, []byte("a.txt\x00b.bin\x00"), store.arrays[NameArray].data)
	assert.Equal(t, []uint64{0, 1}, store.arrays[RecordChunkArray].uint64s())
	assert.Equal(t, Stats{Records: 2, Chunks: 1, DataBytes: 5, NameBytes: 12}, acc.Stats())

	for _, a := range store.arrays {
		assert.True(t, a.closed, a.spec.Name)
	}
}

func TestExtendPrecedesWrite(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	acc, err := New(store, WithRecordIndex(false))
	require.NoError(t, err)
	require.NoError(t, acc.AppendData([]byte("abc")))
	require.NoError(t, acc.AppendData([]byte("de")))
	require.NoError(t, acc.AppendName("x"))

	assert.Equal(t, []string{
		"extend data 3", "write data 0+3",
		"extend data_offset 1", "write data_offset 0+1",
		"extend data 5", "write data 3+2",
		"extend data_offset 2", "write data_offset 1+1",
		"extend name 2", "write name 0+2",
		"extend name_offset 1", "write name_offset 0+1",
	}, store.ops)
	assert.NotContains(t, store.arrays, RecordChunkArray)
}

func TestIndexInvariants(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7)) //nolint:gosec // deterministic test data
	records := make([]testRecord, 200)
	for i := range records {
		size := rng.Intn(300)
		if i%17 == 0 {
			size = 0
		}
		data := make([]byte, size)
		rng.Read(data)
		records[i] = testRecord{name: fmt.Sprintf("dir%d/file-%d.bin", i%5, i), data: data}
	}

	store := newMemStore()
	acc, err := New(store)
	require.NoError(t, err)
	chunks := feed(t, acc, records, 64)
	require.NoError(t, acc.Finalize())

	dataOffsets := store.arrays[DataOffsetArray].uint64s()
	nameOffsets := store.arrays[NameOffsetArray].uint64s()
	firstChunks := store.arrays[RecordChunkArray].uint64s()
	dataBlob := store.arrays[DataArray].data
	nameBlob := store.arrays[NameArray].data

	require.Len(t, nameOffsets, len(records))
	require.Len(t, dataOffsets, chunks)
	require.Len(t, firstChunks, len(records))

	wantNameBytes := 0
	for _, rec := range records {
		wantNameBytes += len(rec.name) + 1
	}
	assert.Len(t, nameBlob, wantNameBytes)

	for i := 1; i < len(dataOffsets); i++ {
		assert.Less(t, dataOffsets[i-1], dataOffsets[i])
	}
	for i := 1; i < len(nameOffsets); i++ {
		assert.Equal(t, nameOffsets[i-1]+uint64(len(records[i-1].name))+1, nameOffsets[i])
	}

	// Reconstruct every record from the arrays.
	for i, rec := range records {
		nameEnd := bytes.IndexByte(nameBlob[nameOffsets[i]:], 0)
		require.GreaterOrEqual(t, nameEnd, 0)
		assert.Equal(t, rec.name, string(nameBlob[nameOffsets[i]:nameOffsets[i]+uint64(nameEnd)]))

		first := firstChunks[i]
		last := uint64(len(dataOffsets))
		if i+1 < len(firstChunks) {
			last = firstChunks[i+1]
		}
		var got []byte
		if first < last {
			end := uint64(len(dataBlob))
			if last < uint64(len(dataOffsets)) {
				end = dataOffsets[last]
			}
			got = dataBlob[dataOffsets[first]:end]
		}
		assert.Equal(t, len(rec.data), len(got), "record %d", i)
		if len(rec.data) > 0 {
			assert.Equal(t, rec.data, got, "record %d", i)
		}
		assert.Equal(t, uint64((len(rec.data)+63)/64), last-first, "record %d chunk count", i)
	}
}

func TestEmptyRecordHasNoDataIndexEntry(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	acc, err := New(store)
	require.NoError(t, err)
	require.NoError(t, acc.AppendName("empty"))
	require.NoError(t, acc.Finalize())

	assert.Equal(t, []uint64{0}, store.arrays[NameOffsetArray].uint64s())
	assert.Empty(t, store.arrays[DataOffsetArray].uint64s())
	assert.Empty(t, store.arrays[DataArray].data)
}

func TestLargeRecordSpansSeveralIndexEntries(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	acc, err := New(store)
	require.NoError(t, err)
	feed(t, acc, []testRecord{{name: "big", data: bytes.Repeat([]byte("z"), 2500)}}, 1024)
	require.NoError(t, acc.Finalize())

	assert.Equal(t, []uint64{0, 1024, 2048}, store.arrays[DataOffsetArray].uint64s())
	assert.Equal(t, []uint64{0}, store.arrays[NameOffsetArray].uint64s())
	assert.Equal(t, Stats{Records: 1, Chunks: 3, DataBytes: 2500, NameBytes: 4}, acc.Stats())
}

func TestContractViolations(t *testing.T) {
	t.Parallel()

	acc, err := New(newMemStore())
	require.NoError(t, err)

	require.ErrorIs(t, acc.AppendData(nil), ErrEmptyChunk)
	require.ErrorIs(t, acc.AppendName("bad\x00name"), ErrInvalidName)

	require.NoError(t, acc.Finalize())
	require.ErrorIs(t, acc.Finalize(), ErrAlreadyFinalized)
	require.ErrorIs(t, acc.AppendData([]byte("late")), ErrClosedStore)
	require.ErrorIs(t, acc.AppendName("late"), ErrClosedStore)

	acc.Abort()
	assert.Equal(t, StateFinalized, acc.State())
}

func TestAbort(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	acc, err := New(store)
	require.NoError(t, err)
	require.NoError(t, acc.AppendData([]byte("partial")))

	acc.Abort()
	assert.Equal(t, StateAborted, acc.State())
	require.ErrorIs(t, acc.AppendName("x"), ErrClosedStore)
	require.ErrorIs(t, acc.Finalize(), ErrClosedStore)
	for _, a := range store.arrays {
		assert.False(t, a.closed, a.spec.Name)
	}
}

func TestBackendErrorsPropagate(t *testing.T) {
	t.Parallel()

	injected := errors.New("disk full")
	tests := []struct {
		op, array string
		run       func(*Accumulator) error
	}{
		{op: "extend", array: DataArray, run: func(a *Accumulator) error { return a.AppendData([]byte("x")) }},
		{op: "write", array: DataOffsetArray, run: func(a *Accumulator) error { return a.AppendData([]byte("x")) }},
		{op: "write", array: NameArray, run: func(a *Accumulator) error { return a.AppendName("n") }},
		{op: "extend", array: RecordChunkArray, run: func(a *Accumulator) error { return a.AppendName("n") }},
		{op: "close", array: NameArray, run: func(a *Accumulator) error { return a.Finalize() }},
	}
	for _, tt := range tests {
		t.Run(tt.op+" "+tt.array, func(t *testing.T) {
			t.Parallel()

			store := newMemStore()
			store.failOp, store.failAt, store.err = tt.op, tt.array, injected
			acc, err := New(store)
			require.NoError(t, err)
			require.ErrorIs(t, tt.run(acc), injected)
		})
	}

	t.Run("create", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		store.failOp, store.failAt, store.err = "create", NameOffsetArray, injected
		_, err := New(store)
		require.ErrorIs(t, err, injected)
	})
}

func TestFinalizeClosesEveryArrayDespiteFailure(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.failOp, store.failAt, store.err = "close", NameOffsetArray, errors.New("boom")
	acc, err := New(store)
	require.NoError(t, err)

	require.Error(t, acc.Finalize())
	for name, a := range store.arrays {
		if name == NameOffsetArray {
			continue
		}
		assert.True(t, a.closed, name)
	}
}

func TestWithContainer(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "acc.shred")
	w, err := container.Create(path)
	require.NoError(t, err)

	acc, err := New(ContainerStore(w),
		WithDataChunkSize(8),
		WithIndexChunkSize(2),
		WithNameChunkSize(4),
		WithNameCompression(container.CompressionZstd),
	)
	require.NoError(t, err)
	feed(t, acc, []testRecord{
		{name: "a.txt", data: []byte("hello")},
		{name: "b.bin"},
		{name: "c/long.dat", data: []byte("0123456789abcdefghij")},
	}, 16)
	require.NoError(t, acc.Finalize())
	require.NoError(t, w.Close())

	r, err := container.Open(path)
	require.NoError(t, err)
	defer r.Close()

	ctx := context.Background()
	read := func(name string) []byte {
		ar, err := r.Array(name)
		require.NoError(t, err)
		b, err := ar.ReadAll(ctx)
		require.NoError(t, err)
		return b
	}
	readWords := func(name string) []uint64 {
		ar, err := r.Array(name)
		require.NoError(t, err)
		v, err := ar.ReadUint64s(ctx)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, []byte("hello0123456789abcdefghij"), read(DataArray))
	assert.Equal(t, []uint64{0, 5, 21}, readWords(DataOffsetArray))
	assert.Equal(t, []byte("a.txt\x00b.bin\x00c/long.dat\x00"), read(NameArray))
	assert.Equal(t, []uint64{0, 6, 12}, readWords(NameOffsetArray))
	assert.Equal(t, []uint64{0, 1, 1}, readWords(RecordChunkArray))

	info, err := r.Array(NameArray)
	require.NoError(t, err)
	assert.Equal(t, container.CompressionZstd, info.Info().Compression)
}
