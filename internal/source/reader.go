// Package source discovers plot logs and delivers their lines, either as a
// one-shot read or incrementally as the file grows.
package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// LineFunc receives one line without its terminator, and the number of
// bytes the line occupied in the file including the terminator.
type LineFunc func(line string, size int64) error

// ReadLines reads path from byte offset to end of file, calling fn for each
// newline-terminated line in order, and returns the offset just past the
// last consumed line. A trailing fragment without a newline is left in
// place; the writer may still be appending to it. Cancelling ctx stops the
// read between lines.
func ReadLines(ctx context.Context, path string, offset int64, fn LineFunc) (int64, error) {
	f, err := os.Open(path) // #nosec G304 -- user-provided paths are expected
	if err != nil {
		return offset, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return offset, fmt.Errorf("seeking %s to %d: %w", path, offset, err)
		}
	}

	r := bufio.NewReaderSize(f, 64*1024)
	pos := offset
	for {
		if err := ctx.Err(); err != nil {
			return pos, err
		}

		raw, err := r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return pos, fmt.Errorf("reading %s: %w", path, err)
		}
		if err != nil {
			// EOF: raw holds an unterminated fragment, if any.
			return pos, nil
		}

		if ferr := fn(trimEOL(raw), int64(len(raw))); ferr != nil {
			return pos, ferr
		}
		pos += int64(len(raw))
	}
}

func trimEOL(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}
