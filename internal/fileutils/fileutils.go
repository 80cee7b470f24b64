// Package fileutils provides utility functions for handling files.
package fileutils

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// AtomicWriteFunc streams the output of write into a temporary file next to path, then renames it over path.
// If the file already exists, then it will be overwritten. Not atomic on Windows.
// Nothing is left at path if write fails. It returns the number of bytes written.
func AtomicWriteFunc(path string, write func(io.Writer) error) (n int64, err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "tmp-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("could not create temporary file: %v", err)
	}
	defer func() {
		_ = tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to remove temporary file", "file", tmp.Name(), "error", err)
		}
	}()

	cw := &countingWriter{w: bufio.NewWriter(tmp)}
	if err := write(cw); err != nil {
		return 0, fmt.Errorf("could not write to temporary file: %w", err)
	}
	if err := cw.w.Flush(); err != nil {
		return 0, fmt.Errorf("could not flush temporary file: %v", err)
	}

	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("could not close temporary file: %v", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("could not rename temporary file: %v", err)
	}
	return cw.n, nil
}

type countingWriter struct {
	w *bufio.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
