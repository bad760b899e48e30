package container

import (
	"bytes"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
)

// deflateLevel matches the level the name stream has always been stored with.
const deflateLevel = 6

// encoder compresses chunks on the write path. It is owned by a single Writer
// and reuses its codec state and scratch buffers across chunks.
type encoder struct {
	flate   *flate.Writer
	zstd    *zstd.Encoder
	buf     bytes.Buffer
	scratch []byte
}

// encode returns the stored form of raw. The result aliases either raw or the
// encoder's scratch space and is only valid until the next call.
func (e *encoder) encode(raw []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone:
		return raw, nil
	case CompressionDeflate:
		e.buf.Reset()
		if e.flate == nil {
			fw, err := flate.NewWriter(&e.buf, deflateLevel)
			if err != nil {
				return nil, fmt.Errorf("create deflate encoder: %w", err)
			}
			e.flate = fw
		} else {
			e.flate.Reset(&e.buf)
		}
		if _, err := e.flate.Write(raw); err != nil {
			return nil, fmt.Errorf("deflate: %w", err)
		}
		if err := e.flate.Close(); err != nil {
			return nil, fmt.Errorf("deflate: %w", err)
		}
		return e.buf.Bytes(), nil
	case CompressionZstd:
		if e.zstd == nil {
			enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1), zstd.WithLowerEncoderMem(true))
			if err != nil {
				return nil, fmt.Errorf("create zstd encoder: %w", err)
			}
			e.zstd = enc
		}
		e.scratch = e.zstd.EncodeAll(raw, e.scratch[:0])
		return e.scratch, nil
	case CompressionSnappy:
		e.scratch = snappy.Encode(e.scratch[:cap(e.scratch)], raw)
		return e.scratch, nil
	default:
		return nil, fmt.Errorf("%w: compression %d", ErrInvalidSpec, c)
	}
}

func (e *encoder) close() {
	if e.zstd != nil {
		e.zstd.Close()
		e.zstd = nil
	}
}

// decoder expands stored chunks on the read path. It is safe for concurrent
// use; the zstd decoder only serves DecodeAll.
type decoder struct {
	zstd *zstd.Decoder
}

func newDecoder() (*decoder, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &decoder{zstd: dec}, nil
}

// decode expands stored into a chunk of exactly rawSize bytes. For
// CompressionNone the result aliases stored.
func (d *decoder) decode(stored []byte, rawSize int, c Compression) ([]byte, error) {
	var (
		raw []byte
		err error
	)
	switch c {
	case CompressionNone:
		raw = stored
	case CompressionDeflate:
		fr := flate.NewReader(bytes.NewReader(stored))
		raw = make([]byte, rawSize)
		if _, err = io.ReadFull(fr, raw); err != nil {
			fr.Close()
			return nil, fmt.Errorf("%w: inflate: %v", ErrCorrupt, err)
		}
		var extra [1]byte
		if n, _ := fr.Read(extra[:]); n != 0 {
			fr.Close()
			return nil, fmt.Errorf("%w: inflate: trailing data", ErrCorrupt)
		}
		fr.Close()
	case CompressionZstd:
		raw, err = d.zstd.DecodeAll(stored, make([]byte, 0, rawSize))
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrCorrupt, err)
		}
	case CompressionSnappy:
		n, lenErr := snappy.DecodedLen(stored)
		if lenErr != nil || n != rawSize {
			return nil, fmt.Errorf("%w: snappy: bad length", ErrCorrupt)
		}
		raw, err = snappy.Decode(make([]byte, rawSize), stored)
		if err != nil {
			return nil, fmt.Errorf("%w: snappy: %v", ErrCorrupt, err)
		}
	default:
		return nil, fmt.Errorf("%w: compression %d", ErrCorrupt, c)
	}
	if len(raw) != rawSize {
		return nil, fmt.Errorf("%w: chunk expanded to %d bytes, want %d", ErrCorrupt, len(raw), rawSize)
	}
	return raw, nil
}

func (d *decoder) close() {
	d.zstd.Close()
}
