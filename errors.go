package shredder

import (
	"errors"

	"github.com/meigma/shredder/internal/accumulator"
	"github.com/meigma/shredder/internal/container"
	"github.com/meigma/shredder/internal/source"
)

// Error types re-exported from the pipeline stages.
type (
	// SourceError reports that the archive could not be opened or decoded.
	SourceError = source.SourceError

	// BackendError reports a failure of the container storage.
	BackendError = container.BackendError
)

// Errors re-exported from accumulator. These indicate misuse of the
// accumulation contract.
var (
	// ErrClosedStore is returned by appends after the store was finalized or aborted.
	ErrClosedStore = accumulator.ErrClosedStore

	// ErrAlreadyFinalized is returned when a store is finalized twice.
	ErrAlreadyFinalized = accumulator.ErrAlreadyFinalized

	// ErrInvalidName is returned for record names containing a NUL byte.
	ErrInvalidName = accumulator.ErrInvalidName
)

// Errors re-exported from container.
var (
	// ErrNotFound is returned when a container lacks a required array.
	ErrNotFound = container.ErrNotFound

	// ErrCorrupt is returned when a container file is malformed.
	ErrCorrupt = container.ErrCorrupt

	// ErrChecksum is returned when a stored chunk fails its checksum.
	ErrChecksum = container.ErrChecksum

	// ErrDigestMismatch is returned when array content does not match its digest.
	ErrDigestMismatch = container.ErrDigestMismatch
)

var (
	// ErrNoRecordIndex is returned by Archive.Data when the container was
	// packed without the record_chunk array.
	ErrNoRecordIndex = errors.New("shredder: container has no record index")

	// ErrRecordRange is returned for a record number outside [0, Len).
	ErrRecordRange = errors.New("shredder: record out of range")

	// ErrInconsistent is returned when the index arrays disagree with each other.
	ErrInconsistent = errors.New("shredder: inconsistent index arrays")
)
