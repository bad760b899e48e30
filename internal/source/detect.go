package source

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// MaxFilterDepth bounds how many compression layers are peeled off.
const MaxFilterDepth = 4

// Filter identifies a compression layer around the archive.
type Filter uint8

const (
	FilterNone Filter = iota
	FilterGzip
	FilterZstd
	FilterXZ
	FilterBzip2
	FilterSnappy
)

// String returns the filter name.
func (f Filter) String() string {
	switch f {
	case FilterNone:
		return "none"
	case FilterGzip:
		return "gzip"
	case FilterZstd:
		return "zstd"
	case FilterXZ:
		return "xz"
	case FilterBzip2:
		return "bzip2"
	case FilterSnappy:
		return "snappy"
	default:
		return "unknown"
	}
}

// Format identifies the archive container format.
type Format uint8

const (
	FormatTar Format = iota
	FormatZip
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatTar:
		return "tar"
	case FormatZip:
		return "zip"
	default:
		return "unknown"
	}
}

var (
	magicGzip   = []byte{0x1f, 0x8b}
	magicZstd   = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicXZ     = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	magicBzip2  = []byte("BZh")
	magicSnappy = []byte("\xff\x06\x00\x00sNaPpY")
	magicZip    = []byte("PK\x03\x04")
	magicZipEnd = []byte("PK\x05\x06")
)

// peek returns up to n leading bytes without consuming them.
func peek(br *bufio.Reader, n int) ([]byte, error) {
	b, err := br.Peek(n)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return b, nil
}

func detectFilter(br *bufio.Reader) (Filter, error) {
	magic, err := peek(br, len(magicSnappy))
	if err != nil {
		return FilterNone, err
	}
	switch {
	case bytes.HasPrefix(magic, magicGzip):
		return FilterGzip, nil
	case bytes.HasPrefix(magic, magicZstd):
		return FilterZstd, nil
	case bytes.HasPrefix(magic, magicXZ):
		return FilterXZ, nil
	case bytes.HasPrefix(magic, magicBzip2):
		return FilterBzip2, nil
	case bytes.HasPrefix(magic, magicSnappy):
		return FilterSnappy, nil
	default:
		return FilterNone, nil
	}
}

func isZip(br *bufio.Reader) (bool, error) {
	magic, err := peek(br, len(magicZip))
	if err != nil {
		return false, err
	}
	return bytes.HasPrefix(magic, magicZip) || bytes.HasPrefix(magic, magicZipEnd), nil
}

// openFilter wraps r in the decoder for f. The returned closer, when non-nil,
// must be closed after the stream is consumed.
func openFilter(f Filter, r io.Reader) (io.Reader, io.Closer, error) {
	switch f {
	case FilterGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, zr, nil
	case FilterZstd:
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, nil, err
		}
		rc := dec.IOReadCloser()
		return rc, rc, nil
	case FilterXZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return xr, nil, nil
	case FilterBzip2:
		return bzip2.NewReader(r), nil, nil
	case FilterSnappy:
		return snappy.NewReader(r), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported filter %d", f)
	}
}
