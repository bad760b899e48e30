package testutil

import (
	"archive/tar"
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/containerd/stargz-snapshotter/estargz"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Entry describes one archive member.
type Entry struct {
	Name string
	Data []byte
	Dir  bool
}

var fixtureTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Tar encodes entries as an uncompressed tar stream in the given order.
func Tar(tb testing.TB, entries []Entry) []byte {
	tb.Helper()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		hdr := &tar.Header{
			Name:    e.Name,
			Mode:    0o644,
			ModTime: fixtureTime,
			Size:    int64(len(e.Data)),
		}
		if e.Dir {
			hdr.Typeflag = tar.TypeDir
			hdr.Mode = 0o755
			hdr.Size = 0
		} else {
			hdr.Typeflag = tar.TypeReg
		}
		if err := tw.WriteHeader(hdr); err != nil {
			tb.Fatal(err)
		}
		if !e.Dir {
			if _, err := tw.Write(e.Data); err != nil {
				tb.Fatal(err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		tb.Fatal(err)
	}
	return buf.Bytes()
}

// TarWithGlobalHeader is like Tar but starts the stream with a PAX global
// header, as git archive does.
func TarWithGlobalHeader(tb testing.TB, records map[string]string, entries []Entry) []byte {
	tb.Helper()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := tw.WriteHeader(&tar.Header{
		Typeflag:   tar.TypeXGlobalHeader,
		Name:       "pax_global_header",
		PAXRecords: records,
	}); err != nil {
		tb.Fatal(err)
	}
	if err := tw.Flush(); err != nil {
		tb.Fatal(err)
	}
	// The members and the end-of-archive marker follow as a complete stream.
	buf.Write(Tar(tb, entries))
	return buf.Bytes()
}

// Zip encodes entries as a zip archive in the given order.
func Zip(tb testing.TB, entries []Entry) []byte {
	tb.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		name := e.Name
		if e.Dir && !strings.HasSuffix(name, "/") {
			name += "/"
		}
		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate, Modified: fixtureTime}
		if e.Dir {
			hdr.Method = zip.Store
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			tb.Fatal(err)
		}
		if _, err := w.Write(e.Data); err != nil {
			tb.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		tb.Fatal(err)
	}
	return buf.Bytes()
}

// Gzip compresses data as a single gzip member.
func Gzip(tb testing.TB, data []byte) []byte {
	tb.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		tb.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		tb.Fatal(err)
	}
	return buf.Bytes()
}

// Zstd compresses data as one zstd frame.
func Zstd(tb testing.TB, data []byte) []byte {
	tb.Helper()

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		tb.Fatal(err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}

// XZ compresses data in the xz container format.
func XZ(tb testing.TB, data []byte) []byte {
	tb.Helper()

	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	if err != nil {
		tb.Fatal(err)
	}
	if _, err := xw.Write(data); err != nil {
		tb.Fatal(err)
	}
	if err := xw.Close(); err != nil {
		tb.Fatal(err)
	}
	return buf.Bytes()
}

// Snappy compresses data in the snappy framing format.
func Snappy(tb testing.TB, data []byte) []byte {
	tb.Helper()

	var buf bytes.Buffer
	sw := snappy.NewBufferedWriter(&buf)
	if _, err := sw.Write(data); err != nil {
		tb.Fatal(err)
	}
	if err := sw.Close(); err != nil {
		tb.Fatal(err)
	}
	return buf.Bytes()
}

// EStargz converts an uncompressed tar stream into an eStargz blob.
func EStargz(tb testing.TB, tarData []byte, opts ...estargz.Option) []byte {
	tb.Helper()

	sr := io.NewSectionReader(bytes.NewReader(tarData), 0, int64(len(tarData)))
	rc, err := estargz.Build(sr, opts...)
	if err != nil {
		tb.Fatal(err)
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		tb.Fatal(err)
	}
	return buf.Bytes()
}
