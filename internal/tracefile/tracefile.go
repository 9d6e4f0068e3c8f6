// Package tracefile opens and creates JSON Lines trace files, optionally
// compressed with gzip or zstd.
package tracefile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Stdio is the path that selects stdin for Open and stdout for Create.
const Stdio = "-"

type Compression string

const (
	None Compression = "none"
	Gzip Compression = "gzip"
	Zstd Compression = "zstd"
)

// ParseCompression accepts "none", "gzip" or "zstd". An empty string yields
// "" which means "infer from the file name".
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(strings.ToLower(strings.TrimSpace(s))); c {
	case "", None, Gzip, Zstd:
		return c, nil
	default:
		return "", fmt.Errorf("unknown compression %q", s)
	}
}

// CompressionFor infers the compression from the file extension.
func CompressionFor(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return Gzip
	case ".zst", ".zstd":
		return Zstd
	default:
		return None
	}
}

// Open returns a reader over the decompressed contents of path.
func Open(path string) (io.ReadCloser, error) {
	if path == Stdio {
		return io.NopCloser(os.Stdin), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	switch CompressionFor(path) {
	case Gzip:
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open gzip %s: %w", path, err)
		}
		return &readCloser{Reader: zr, closers: []io.Closer{zr, f}}, nil
	case Zstd:
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open zstd %s: %w", path, err)
		}
		rc := dec.IOReadCloser()
		return &readCloser{Reader: rc, closers: []io.Closer{rc, f}}, nil
	}
	return f, nil
}

// Create truncates or creates path and returns a writer that compresses with c.
// An empty c is inferred from the file name. Close flushes the compressor
// before closing the file.
func Create(path string, c Compression) (io.WriteCloser, error) {
	var (
		f      io.Writer
		closer io.Closer
	)
	if path == Stdio {
		f = os.Stdout
	} else {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return nil, err
		}
		f, closer = file, file
	}

	if c == "" {
		c = CompressionFor(path)
	}

	wc := &writeCloser{Writer: f}
	switch c {
	case None:
	case Gzip:
		zw := gzip.NewWriter(f)
		wc.Writer, wc.closers = zw, append(wc.closers, zw)
	case Zstd:
		enc, err := zstd.NewWriter(f)
		if err != nil {
			if closer != nil {
				closer.Close()
			}
			return nil, fmt.Errorf("create zstd %s: %w", path, err)
		}
		wc.Writer, wc.closers = enc, append(wc.closers, enc)
	default:
		if closer != nil {
			closer.Close()
		}
		return nil, fmt.Errorf("unknown compression %q", c)
	}
	if closer != nil {
		wc.closers = append(wc.closers, closer)
	}
	return wc, nil
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r *readCloser) Close() error {
	return closeAll(r.closers)
}

type writeCloser struct {
	io.Writer
	closers []io.Closer
}

func (w *writeCloser) Close() error {
	return closeAll(w.closers)
}

func closeAll(closers []io.Closer) error {
	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
