package gio

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
)

var _ Channel = &Stream{}

// Stream is a channel over an OS file. Writes are buffered until Flush,
// Seek or Close.
type Stream struct {
	f      *os.File
	w      *bufio.Writer
	own    bool
	closed bool
	logger *slog.Logger
}

// NewStream wraps an externally owned file such as os.Stdout. Close flushes
// but leaves the file open.
func NewStream(f *os.File, logger *slog.Logger) *Stream {
	return &Stream{f: f, w: bufio.NewWriter(f), logger: logger}
}

// OpenStream opens path and owns the resulting file
func OpenStream(path string, flag int, perm os.FileMode, logger *slog.Logger) (*Stream, error) {
	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		return nil, fmt.Errorf("stream: %w", err)
	}
	s := NewStream(f, logger)
	s.own = true
	return s, nil
}

// Read reads from the underlying file after flushing pending writes
func (s *Stream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, io.ErrShortBuffer
	}
	if err := s.w.Flush(); err != nil {
		return 0, err
	}
	return s.f.Read(p)
}

// Write buffers p, short writes come back with the underlying error
func (s *Stream) Write(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	return s.w.Write(p)
}

// Seek flushes and delegates, streams such as pipes report the OS error
func (s *Stream) Seek(off int64, whence int) (int64, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if err := s.w.Flush(); err != nil {
		return 0, err
	}
	return s.f.Seek(off, whence)
}

// Flush writes buffered bytes to the file
func (s *Stream) Flush() error {
	if s.closed {
		return ErrClosed
	}
	return s.w.Flush()
}

// Close flushes and, when the file is owned, closes it
func (s *Stream) Close() error {
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	err := s.w.Flush()
	if s.own {
		if cerr := s.f.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Destroy closes the stream if it is still open
func (s *Stream) Destroy() {
	destroy(s, s.closed, s.logger, s.f.Name())
}
