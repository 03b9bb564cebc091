// Package sink implements a polymorphic byte-sink capability: a destination
// for printer output or the log file that can be swapped for a discarding
// null implementation without the caller knowing the difference.
package sink

import (
	"io"
	"os"
)

// Sink is a write-only byte destination: the printer device or the optional
// log file.
type Sink interface {
	Write(p []byte) error
	Close() error
}

// Null discards everything written to it. It is the default printer and
// log sink.
type Null struct{}

// Write discards p and always succeeds.
func (Null) Write(p []byte) error { return nil }

// Close is a no-op.
func (Null) Close() error { return nil }

// File appends to a host file, created if necessary. Used for `-printer`
// and `-log`.
type File struct {
	f *os.File
}

// NewFile opens (creating/appending) name as a File sink.
func NewFile(name string) (*File, error) {
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &File{f: f}, nil
}

// Write appends p to the file.
func (s *File) Write(p []byte) error {
	_, err := s.f.Write(p)
	return err
}

// Close closes the underlying file.
func (s *File) Close() error {
	return s.f.Close()
}

// Writer adapts any Sink to an io.Writer, for code that wants the stdlib
// interface (e.g. bufio).
type Writer struct {
	Sink Sink
}

var _ io.Writer = Writer{}

// Write implements io.Writer in terms of Sink.Write.
func (w Writer) Write(p []byte) (int, error) {
	if err := w.Sink.Write(p); err != nil {
		return 0, err
	}
	return len(p), nil
}
