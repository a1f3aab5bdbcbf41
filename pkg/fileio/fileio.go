// Package fileio opens benchmark inputs and outputs. Files ending in .gz are
// transparently (de)compressed with pgzip, and text inputs in a legacy encoding
// are decoded to UTF-8.
package fileio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/pgzip"
	"golang.org/x/net/html/charset"
)

// GzipExt marks compressed files
const GzipExt = ".gz"

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r *readCloser) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Open opens path for reading. encoding is a WHATWG label such as "latin1";
// an empty label or "utf-8" leaves the bytes untouched.
func Open(path, encoding string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	rc := &readCloser{Reader: f, closers: []io.Closer{f}}

	if IsGzip(path) {
		zr, err := pgzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to decompress %s: %w", path, err)
		}
		rc.Reader = zr
		rc.closers = []io.Closer{zr, f}
	}

	if !isUTF8(encoding) {
		dr, err := charset.NewReaderLabel(encoding, rc.Reader)
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("unsupported encoding %q for %s: %w", encoding, path, err)
		}
		rc.Reader = dr
	}

	return rc, nil
}

type writeCloser struct {
	*bufio.Writer
	closers []io.Closer
}

func (w *writeCloser) Close() error {
	errs := []error{w.Flush()}
	for _, c := range w.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Create creates (or truncates) path for writing. Output is buffered; Close
// flushes it and must be checked.
func Create(path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}

	if IsGzip(path) {
		zw := pgzip.NewWriter(f)
		return &writeCloser{Writer: bufio.NewWriter(zw), closers: []io.Closer{zw, f}}, nil
	}
	return &writeCloser{Writer: bufio.NewWriter(f), closers: []io.Closer{f}}, nil
}

// CopyFile copies src to dst byte for byte.
func CopyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", dst, closeErr)
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return nil
}

// IsGzip reports whether path names a gzip-compressed file
func IsGzip(path string) bool {
	return strings.EqualFold(filepath.Ext(path), GzipExt)
}

func isUTF8(label string) bool {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "utf-8", "utf8":
		return true
	}
	return false
}
