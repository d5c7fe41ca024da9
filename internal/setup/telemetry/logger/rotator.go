package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Rotator is a log file writer that caps the file at roughly maxLines lines.
// Once twice the cap has been written, the file is rewritten with only the
// newest maxLines lines.
type Rotator struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	lines    []string // ring of the newest lines
	next     int
	filled   bool
	written  int
	maxLines int
}

// NewRotator opens path for appending. A non-positive maxLines disables rotation.
func NewRotator(path string, maxLines int) (*Rotator, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cannot open log file %s: %w", path, err)
	}

	r := &Rotator{file: file, path: path, maxLines: maxLines}
	if maxLines > 0 {
		r.lines = make([]string, maxLines)
	}
	return r, nil
}

// Write implements io.Writer.
func (r *Rotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, err := r.file.Write(p)
	if err != nil || r.maxLines <= 0 {
		return n, err
	}

	for line := range strings.SplitSeq(strings.TrimRight(string(p), "\n"), "\n") {
		if line == "" {
			continue
		}

		r.lines[r.next] = line
		r.next = (r.next + 1) % r.maxLines
		if r.next == 0 {
			r.filled = true
		}

		r.written++
		if r.written >= r.maxLines*2 {
			if err := r.rotate(); err != nil {
				return n, fmt.Errorf("failed to rotate log file: %w", err)
			}
			r.written = r.maxLines
		}
	}

	return n, nil
}

// Sync flushes the file to disk.
func (r *Rotator) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.file.Sync()
}

// Close closes the underlying file.
func (r *Rotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.file.Close()
}

// retained returns the buffered lines oldest first.
func (r *Rotator) retained() []string {
	if !r.filled {
		return append([]string(nil), r.lines[:r.next]...)
	}
	return append(append([]string(nil), r.lines[r.next:]...), r.lines[:r.next]...)
}

// rotate replaces the file with the retained lines.
func (r *Rotator) rotate() error {
	temp, err := os.CreateTemp(filepath.Dir(r.path), "temp-log-")
	if err != nil {
		return err
	}
	tempPath := temp.Name()

	if _, err := temp.WriteString(strings.Join(r.retained(), "\n") + "\n"); err != nil {
		temp.Close()
		os.Remove(tempPath)
		return err
	}
	if err := temp.Close(); err != nil {
		os.Remove(tempPath)
		return err
	}

	r.file.Close()

	// Windows cannot rename over an existing file
	os.Remove(r.path)
	if err := os.Rename(tempPath, r.path); err != nil {
		return err
	}

	file, err := os.OpenFile(r.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	r.file = file
	return nil
}
