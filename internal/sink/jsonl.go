// Package sink persists compression results as JSON Lines.
package sink

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/raphaelgruber/ctxcompress/internal/models"
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("sink closed")

// JSONL appends one record per line to a file. Safe for concurrent use;
// writes are serialized and each line is flushed as soon as it is written.
type JSONL struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	w       *bufio.Writer
	written int
	closed  bool
}

// Create opens path for writing, truncating any previous content and creating
// parent directories as needed.
func Create(path string) (*JSONL, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}

	return &JSONL{
		path: path,
		file: f,
		w:    bufio.NewWriter(f),
	}, nil
}

// Path returns the output file path.
func (s *JSONL) Path() string {
	return s.path
}

// Write encodes r as a single line. Non-ASCII text is kept as UTF-8.
func (s *JSONL) Write(r models.Record) error {
	line, err := encodeLine(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if _, err := s.w.Write(line); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	// Flush per record so a crash loses at most the in-flight line.
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flush record: %w", err)
	}
	s.written++
	return nil
}

// Written returns the number of records written so far.
func (s *JSONL) Written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Close flushes, syncs and closes the file. Calling Close twice is a no-op.
func (s *JSONL) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	flushErr := s.w.Flush()
	syncErr := s.file.Sync()
	closeErr := s.file.Close()
	if err := errors.Join(flushErr, syncErr, closeErr); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}
	return nil
}

func encodeLine(r models.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encode appends the trailing newline.
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return buf.Bytes(), nil
}
