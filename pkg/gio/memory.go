package gio

import (
	"io"
	"log/slog"
)

var _ Channel = &Memory{}

// Memory is a channel over a fixed buffer. Writes overwrite the buffer in
// place up to its end and never grow it.
type Memory struct {
	buffer []byte
	cursor int64 // invariant: 0 <= cursor <= len(buffer)
	closed bool

	readOnly bool
	name     string
	logger   *slog.Logger
}

// NewMemory creates a channel over buffer, the buffer is owned by the channel
func NewMemory(buffer []byte) *Memory {
	return &Memory{buffer: buffer, name: "memory"}
}

// SetLogger sets the logger used by Destroy
func (m *Memory) SetLogger(l *slog.Logger) {
	m.logger = l
}

// Len returns the length of the underlying buffer
func (m *Memory) Len() int64 {
	return int64(len(m.buffer))
}

// Read copies at most len(p) bytes from the cursor
func (m *Memory) Read(p []byte) (int, error) {
	if m.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, io.ErrShortBuffer
	}
	if m.cursor >= int64(len(m.buffer)) {
		return 0, io.EOF
	}
	n := copy(p, m.buffer[m.cursor:])
	m.cursor += int64(n)
	return n, nil
}

// Write copies p into the buffer at the cursor, a short write is
// reported with io.ErrShortWrite
func (m *Memory) Write(p []byte) (int, error) {
	if m.closed {
		return 0, ErrClosed
	}
	if m.readOnly {
		return 0, ErrReadOnly
	}
	n := copy(m.buffer[m.cursor:], p)
	m.cursor += int64(n)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Seek moves the cursor, positions outside the buffer are rejected
func (m *Memory) Seek(off int64, whence int) (int64, error) {
	if m.closed {
		return 0, ErrClosed
	}
	pos, err := offset(m.cursor, int64(len(m.buffer)), off, whence)
	if err != nil {
		return m.cursor, err
	}
	m.cursor = pos
	return pos, nil
}

// Flush is a no-op, writes land in the buffer directly
func (m *Memory) Flush() error {
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close marks the channel closed
func (m *Memory) Close() error {
	if m.closed {
		return ErrClosed
	}
	m.closed = true
	return nil
}

// Destroy closes the channel if needed and drops the buffer
func (m *Memory) Destroy() {
	destroy(m, m.closed, m.logger, m.name)
	m.buffer = nil
	m.cursor = 0
}
