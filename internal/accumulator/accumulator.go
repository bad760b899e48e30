package accumulator

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/meigma/shredder/internal/container"
	"github.com/meigma/shredder/internal/sizing"
)

// Contract violations by the caller. They indicate a driver defect rather
// than bad input.
var (
	// ErrClosedStore is returned by appends after Finalize or Abort.
	ErrClosedStore = errors.New("accumulator: store is closed")

	// ErrAlreadyFinalized is returned by a second call to Finalize.
	ErrAlreadyFinalized = errors.New("accumulator: already finalized")

	// ErrEmptyChunk is returned when AppendData is called without data.
	// The end of a record is signalled by AppendName, not by an empty chunk.
	ErrEmptyChunk = errors.New("accumulator: empty data chunk")

	// ErrInvalidName is returned for record names containing a NUL byte,
	// which would be indistinguishable from the name terminator.
	ErrInvalidName = errors.New("accumulator: record name contains NUL")
)

// State is the lifecycle state of an Accumulator.
type State uint8

const (
	// StateCreated means the arrays exist but nothing was appended yet.
	StateCreated State = iota
	// StateAccumulating means at least one append happened.
	StateAccumulating
	// StateFinalized is terminal: every array was closed.
	StateFinalized
	// StateAborted is terminal: the arrays were released without closing.
	StateAborted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateAccumulating:
		return "accumulating"
	case StateFinalized:
		return "finalized"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Stats summarizes what has been appended so far.
type Stats struct {
	// Records is the number of completed records (name_offset length).
	Records uint64
	// Chunks is the number of data chunks (data_offset length).
	Chunks uint64
	// DataBytes is the data array extent.
	DataBytes uint64
	// NameBytes is the name array extent, terminators included.
	NameBytes uint64
}

// Accumulator appends records into the data and name streams. It exclusively
// owns its arrays from New until Finalize or Abort and is not safe for
// concurrent use.
type Accumulator struct {
	cfg    config
	logger *slog.Logger

	data        *stream
	dataOffset  *stream
	name        *stream
	nameOffset  *stream
	recordChunk *stream
	streams     []*stream

	state      State
	firstChunk uint64
	word       [8]byte
	nameBuf    []byte
}

// stream is one array together with the extent the accumulator has grown it
// to.
type stream struct {
	name     string
	arr      Array
	elemSize uint64
	extent   uint64
}

// append extends the array by len(p) bytes worth of elements, writes p at
// the old extent, and returns that old extent.
func (s *stream) append(p []byte) (uint64, error) {
	off := s.extent
	next, err := sizing.Add(off, sizing.Len(p)/s.elemSize)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", s.name, err)
	}
	if err := s.arr.Extend(next); err != nil {
		return 0, err
	}
	if err := s.arr.WriteRange(off, p); err != nil {
		return 0, err
	}
	s.extent = next
	return off, nil
}

// New creates the accumulator's arrays in store.
func New(store Store, opts ...Option) (*Accumulator, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	acc := &Accumulator{cfg: cfg, logger: cfg.logger}
	specs := []struct {
		dst  **stream
		spec container.ArraySpec
	}{
		{&acc.data, container.ArraySpec{Name: DataArray, Type: container.Uint8, ChunkSize: cfg.dataChunkSize, Compression: cfg.dataCompression}},
		{&acc.dataOffset, container.ArraySpec{Name: DataOffsetArray, Type: container.Uint64, ChunkSize: cfg.indexChunkSize}},
		{&acc.name, container.ArraySpec{Name: NameArray, Type: container.Uint8, ChunkSize: cfg.nameChunkSize, Compression: cfg.nameCompression}},
		{&acc.nameOffset, container.ArraySpec{Name: NameOffsetArray, Type: container.Uint64, ChunkSize: cfg.indexChunkSize}},
	}
	if cfg.recordIndex {
		specs = append(specs, struct {
			dst  **stream
			spec container.ArraySpec
		}{&acc.recordChunk, container.ArraySpec{Name: RecordChunkArray, Type: container.Uint64, ChunkSize: cfg.indexChunkSize}})
	}

	for _, s := range specs {
		arr, err := store.CreateArray(s.spec)
		if err != nil {
			return nil, err
		}
		st := &stream{name: s.spec.Name, arr: arr, elemSize: s.spec.Type.Size()}
		*s.dst = st
		acc.streams = append(acc.streams, st)
	}

	acc.log().Debug("accumulator created", "arrays", len(acc.streams), "record_index", cfg.recordIndex)
	return acc, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (a *Accumulator) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.logger
}

// State returns the lifecycle state.
func (a *Accumulator) State() State {
	return a.state
}

// Stats returns the current array extents.
func (a *Accumulator) Stats() Stats {
	return Stats{
		Records:   a.nameOffset.extent,
		Chunks:    a.dataOffset.extent,
		DataBytes: a.data.extent,
		NameBytes: a.name.extent,
	}
}

func (a *Accumulator) checkOpen() error {
	if a.state == StateFinalized || a.state == StateAborted {
		return ErrClosedStore
	}
	return nil
}

// appendWord appends one uint64 element to s.
func (a *Accumulator) appendWord(s *stream, v uint64) error {
	binary.LittleEndian.PutUint64(a.word[:], v)
	_, err := s.append(a.word[:])
	return err
}

// AppendData appends one chunk of the current record. It adds exactly one
// data_offset entry, the data extent before the append.
func (a *Accumulator) AppendData(p []byte) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	if len(p) == 0 {
		return ErrEmptyChunk
	}
	a.state = StateAccumulating

	off, err := a.data.append(p)
	if err != nil {
		return err
	}
	return a.appendWord(a.dataOffset, off)
}

// AppendName completes the current record. It must be called exactly once per
// record, after the record's last AppendData.
func (a *Accumulator) AppendName(name string) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	if strings.IndexByte(name, 0) >= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	a.state = StateAccumulating

	a.nameBuf = append(append(a.nameBuf[:0], name...), 0)
	off, err := a.name.append(a.nameBuf)
	if err != nil {
		return err
	}
	if err := a.appendWord(a.nameOffset, off); err != nil {
		return err
	}
	if a.recordChunk != nil {
		if err := a.appendWord(a.recordChunk, a.firstChunk); err != nil {
			return err
		}
	}
	a.firstChunk = a.dataOffset.extent
	return nil
}

// Finalize closes every array. No appends are permitted afterwards; a second
// call returns ErrAlreadyFinalized.
//
// All arrays are closed even if one of them fails; the errors are joined.
func (a *Accumulator) Finalize() error {
	switch a.state {
	case StateFinalized:
		return ErrAlreadyFinalized
	case StateAborted:
		return ErrClosedStore
	}
	a.state = StateFinalized

	var errs []error
	for i := len(a.streams) - 1; i >= 0; i-- {
		if err := a.streams[i].arr.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	stats := a.Stats()
	a.log().Debug("accumulator finalized",
		"records", stats.Records,
		"chunks", stats.Chunks,
		"data_bytes", stats.DataBytes,
		"name_bytes", stats.NameBytes)
	return nil
}

// Abort releases the arrays without closing them. It is used on failure paths;
// the store is expected to discard the unfinished arrays. Abort after Finalize
// is a no-op.
func (a *Accumulator) Abort() {
	if a.state == StateFinalized || a.state == StateAborted {
		return
	}
	a.state = StateAborted
	a.log().Debug("accumulator aborted", "records", a.nameOffset.extent)
}
