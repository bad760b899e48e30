// Package testutil builds archive fixtures for tests.
package testutil

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes data to dir/name and returns the full path.
func WriteFile(tb testing.TB, dir, name string, data []byte) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		tb.Fatal(err)
	}
	return path
}

// RandomBytes returns n deterministic pseudo-random bytes.
func RandomBytes(seed int64, n int) []byte {
	b := make([]byte, n)
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // test data only
	for i := range b {
		b[i] = byte(rng.Intn(256))
	}
	return b
}

// CompressibleBytes returns n bytes of repeating text.
func CompressibleBytes(n int) []byte {
	const pattern = "shredder compressible payload "
	b := make([]byte, n)
	for i := range b {
		b[i] = pattern[i%len(pattern)]
	}
	return b
}
