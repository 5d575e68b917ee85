package gio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Snapshot is a read-only Memory channel holding the full content of a
// file captured at construction. Later changes to the file are not observed.
type Snapshot struct {
	Memory
}

// NewSnapshot reads the whole content of path into an owned buffer sized
// exactly to the file length. It returns either a ready snapshot or an error,
// never a partially filled channel.
func NewSnapshot(path string, logger *slog.Logger) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("snapshot: stat %s: %w", path, err)
	}
	if !st.Mode().IsRegular() {
		return nil, fmt.Errorf("snapshot: %s is not a regular file", path)
	}
	size := st.Size()
	if int64(int(size)) != size {
		return nil, fmt.Errorf("snapshot: %s too large (%d bytes)", path, size)
	}

	buffer := make([]byte, size)
	if _, err := io.ReadFull(f, buffer); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("snapshot: %s: %w", path, ErrSizeChanged)
		}
		return nil, fmt.Errorf("snapshot: read %s: %w", path, err)
	}
	// the file must end where stat said it did
	var extra [1]byte
	if n, err := f.Read(extra[:]); n > 0 || (err != nil && err != io.EOF) {
		if err != nil {
			return nil, fmt.Errorf("snapshot: read %s: %w", path, err)
		}
		return nil, fmt.Errorf("snapshot: %s: %w", path, ErrSizeChanged)
	}

	s := &Snapshot{}
	s.buffer = buffer
	s.readOnly = true
	s.name = path
	s.logger = logger
	return s, nil
}

// Bytes exposes the captured image without copying, callers must not
// modify it
func (s *Snapshot) Bytes() []byte {
	return s.buffer
}

// Name returns the path the snapshot was taken from
func (s *Snapshot) Name() string {
	return s.name
}
