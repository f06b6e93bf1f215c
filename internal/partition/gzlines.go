package partition

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"
)

// EachLine streams the non-empty lines of a gzip line-delimited file through
// fn. Iteration stops on the first error fn returns.
func EachLine(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("gzip %s: %w", path, err)
	}
	defer zr.Close()

	scanner := bufio.NewScanner(zr)
	// Records are small JSON objects, but quarantined payloads can carry
	// arbitrary upstream blobs. 1MB per line is generous.
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// LineWriter writes gzip line-delimited JSON, creating parent directories on
// open and truncating any existing file.
type LineWriter struct {
	f  *os.File
	zw *gzip.Writer
	bw *bufio.Writer
}

// NewLineWriter opens path for writing.
func NewLineWriter(path string) (*LineWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("mkdir for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	zw := gzip.NewWriter(f)
	return &LineWriter{f: f, zw: zw, bw: bufio.NewWriter(zw)}, nil
}

// WriteLine appends one line followed by a newline.
func (w *LineWriter) WriteLine(line []byte) error {
	if _, err := w.bw.Write(line); err != nil {
		return err
	}
	return w.bw.WriteByte('\n')
}

// Close flushes and closes the underlying writers.
func (w *LineWriter) Close() error {
	if err := w.bw.Flush(); err != nil {
		w.zw.Close()
		w.f.Close()
		return err
	}
	if err := w.zw.Close(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
