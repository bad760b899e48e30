package container

import (
	"errors"
	"fmt"
)

// Sentinel errors for container operations.
var (
	// ErrClosed is returned when the writer has already been closed or aborted.
	ErrClosed = errors.New("container: writer closed")

	// ErrArrayClosed is returned when an array is used after Close.
	ErrArrayClosed = errors.New("container: array closed")

	// ErrArrayOpen is returned by Writer.Close when an array was never closed.
	ErrArrayOpen = errors.New("container: array still open")

	// ErrDuplicateArray is returned when two arrays share a name.
	ErrDuplicateArray = errors.New("container: duplicate array name")

	// ErrInvalidSpec is returned when an array spec is malformed.
	ErrInvalidSpec = errors.New("container: invalid array spec")

	// ErrShrink is returned when Extend is called with a smaller extent.
	ErrShrink = errors.New("container: extent cannot shrink")

	// ErrOutOfRange is returned when a write ends past the declared extent.
	ErrOutOfRange = errors.New("container: write past extent")

	// ErrRangeFlushed is returned when a write targets a chunk that was
	// already persisted.
	ErrRangeFlushed = errors.New("container: range already flushed")

	// ErrMisaligned is returned when a write is not a whole number of elements.
	ErrMisaligned = errors.New("container: write not element aligned")

	// ErrElementType is returned when a typed accessor does not match the
	// array's element type.
	ErrElementType = errors.New("container: element type mismatch")

	// ErrSizeOverflow is returned when an extent or offset overflows.
	ErrSizeOverflow = errors.New("container: size overflow")

	// ErrNotFound is returned when a named array does not exist.
	ErrNotFound = errors.New("container: array not found")

	// ErrCorrupt is returned when the file structure is invalid.
	ErrCorrupt = errors.New("container: corrupt file")

	// ErrChecksum is returned when a chunk or the directory fails its checksum.
	ErrChecksum = errors.New("container: checksum mismatch")

	// ErrDigestMismatch is returned when array content does not match the
	// digest recorded in the directory.
	ErrDigestMismatch = errors.New("container: digest mismatch")

	// ErrUnsupportedVersion is returned for files written by a newer format.
	ErrUnsupportedVersion = errors.New("container: unsupported version")
)

// BackendError reports a failed create, extend, write, or close on the
// container. It is never retried by callers; a container that produced one is
// left unusable.
type BackendError struct {
	Op    string
	Array string
	Err   error
}

func (e *BackendError) Error() string {
	if e.Array == "" {
		return fmt.Sprintf("container: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("container: %s %s: %v", e.Op, e.Array, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}
