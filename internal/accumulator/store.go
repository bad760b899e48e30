package accumulator

import (
	"github.com/meigma/shredder/internal/container"
)

// Array is the growable array contract the accumulator relies on.
type Array interface {
	Extend(newExtent uint64) error
	WriteRange(start uint64, p []byte) error
	Close() error
}

// Store creates arrays. Errors from a Store or its arrays are treated as
// fatal and are never retried.
type Store interface {
	CreateArray(spec container.ArraySpec) (Array, error)
}

// ContainerStore adapts a container writer to Store.
func ContainerStore(w *container.Writer) Store {
	return containerStore{w: w}
}

type containerStore struct {
	w *container.Writer
}

func (s containerStore) CreateArray(spec container.ArraySpec) (Array, error) {
	a, err := s.w.CreateArray(spec)
	if err != nil {
		return nil, err
	}
	return a, nil
}
