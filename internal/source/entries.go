package source

import (
	"archive/tar"
	"io"

	"github.com/klauspost/compress/zip"
)

// entries iterates archive members. next returns io.EOF after the last one.
type entries interface {
	next() (name string, content io.Reader, done func() error, err error)
}

type tarEntries struct {
	tr *tar.Reader
}

func (t *tarEntries) next() (string, io.Reader, func() error, error) {
	for {
		hdr, err := t.tr.Next()
		if err != nil {
			return "", nil, nil, err
		}
		// Global PAX headers carry archive metadata, not a member.
		if hdr.Typeflag == tar.TypeXGlobalHeader {
			continue
		}
		return hdr.Name, t.tr, nil, nil
	}
}

type zipEntries struct {
	files []*zip.File
	i     int
}

func newZipEntries(r io.ReaderAt, size int64) (*zipEntries, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, err
	}
	return &zipEntries{files: zr.File}, nil
}

func (z *zipEntries) next() (string, io.Reader, func() error, error) {
	if z.i >= len(z.files) {
		return "", nil, nil, io.EOF
	}
	f := z.files[z.i]
	z.i++
	rc, err := f.Open()
	if err != nil {
		return "", nil, nil, err
	}
	return f.Name, rc, rc.Close, nil
}
