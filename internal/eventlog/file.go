package eventlog

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// File is the append-only event log. It is opened once and released by Close.
type File struct {
	mu       sync.Mutex
	path     string
	w        io.WriteCloser
	failures int
}

// Create makes a fresh log file in dir named after now.
func Create(dir string, now time.Time) (*File, error) {
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, FileName(now))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create event log: %w", err)
	}
	return &File{path: path, w: f}, nil
}

func newFile(path string, w io.WriteCloser) *File {
	return &File{path: path, w: w}
}

func (f *File) Path() string { return f.path }

// Record appends one line. Failures are counted and otherwise dropped so the
// simulation keeps running.
func (f *File) Record(e Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.w == nil {
		f.failLocked(os.ErrClosed)
		return
	}
	if _, err := io.WriteString(f.w, e.String()+"\n"); err != nil {
		f.failLocked(err)
	}
}

func (f *File) failLocked(err error) {
	if f.failures == 0 {
		log.Printf("eventlog: write to %s failed, further errors suppressed: %v", f.path, err)
	}
	f.failures++
}

// Failures reports how many writes were dropped.
func (f *File) Failures() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failures
}

func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.w == nil {
		return nil
	}
	err := f.w.Close()
	f.w = nil
	return err
}
