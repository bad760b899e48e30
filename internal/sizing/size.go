// Package sizing provides overflow-checked extent arithmetic.
package sizing

import (
	"errors"
	"math"
)

// ErrOverflow is returned when an extent computation does not fit in its type.
var ErrOverflow = errors.New("size overflow")

// Add returns a+b, or ErrOverflow when the sum wraps.
func Add(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Mul returns a*b, or ErrOverflow when the product wraps.
func Mul(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if a > math.MaxUint64/b {
		return 0, ErrOverflow
	}
	return a * b, nil
}

// ToInt converts an element or byte count to int for slicing.
func ToInt(n uint64) (int, error) {
	if n > uint64(math.MaxInt) {
		return 0, ErrOverflow
	}
	return int(n), nil
}

// Len returns len(p) as a uint64.
func Len(p []byte) uint64 {
	return uint64(len(p)) //nolint:gosec // len is never negative
}
