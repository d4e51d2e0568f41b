// Package sink appends generation records to a JSON-lines file.
package sink

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Sink is an append-only JSON-lines writer safe for concurrent use.
// Every record reaches the file in a single write followed by fsync.
type Sink struct {
	mu      sync.Mutex
	path    string
	f       *os.File
	written int64
	closed  bool
}

// Open opens path for appending, creating it and its directory when missing.
// A torn final line left by a crash is terminated so the next record starts on its own line.
func Open(path string) (*Sink, error) {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}

	torn, err := endsWithoutNewline(path)
	if err != nil {
		f.Close()
		return nil, err
	}
	if torn {
		if _, err := f.Write([]byte("\n")); err != nil {
			f.Close()
			return nil, fmt.Errorf("terminate torn line: %w", err)
		}
	}

	return &Sink{path: path, f: f}, nil
}

func endsWithoutNewline(path string) (bool, error) {
	r, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("inspect output: %w", err)
	}
	defer r.Close()

	info, err := r.Stat()
	if err != nil {
		return false, fmt.Errorf("inspect output: %w", err)
	}
	if info.Size() == 0 {
		return false, nil
	}

	last := make([]byte, 1)
	if _, err := r.ReadAt(last, info.Size()-1); err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("inspect output: %w", err)
	}
	return last[0] != '\n', nil
}

// Encode renders v as one JSON line. HTML escaping is off so special tokens stay verbatim.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// Encoder already terminates with '\n'
	return buf.Bytes(), nil
}

// Append writes v as one line and syncs it to disk.
func (s *Sink) Append(v any) error {
	line, err := Encode(v)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return os.ErrClosed
	}
	if _, err := s.f.Write(line); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("sync output: %w", err)
	}
	s.written++
	return nil
}

// Written returns the number of records appended through this sink.
func (s *Sink) Written() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Path returns the output path.
func (s *Sink) Path() string { return s.path }

// Close closes the underlying file. Further appends fail.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.f.Close()
}
