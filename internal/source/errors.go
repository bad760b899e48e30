package source

import (
	"errors"
	"fmt"
)

// ErrClosed is returned when the reader is used after Close.
var ErrClosed = errors.New("source: reader closed")

// ErrTooManyFilters is returned when compression filters nest deeper than
// MaxFilterDepth.
var ErrTooManyFilters = errors.New("source: too many nested compression filters")

// SourceError reports that the archive could not be opened or a read failed.
//
//nolint:revive // SourceError is intentionally named for clarity when re-exported
type SourceError struct {
	Op   string
	Path string
	Err  error
}

func (e *SourceError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("source: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("source: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}
