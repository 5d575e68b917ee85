package gio

import (
	"io"
	"sync"
)

// ReaderAt adapts a seekable channel to io.ReaderAt. The channel cursor is
// moved by every call, concurrent calls are serialized.
type ReaderAt struct {
	mu sync.Mutex
	ch Channel
}

// NewReaderAt returns a ReaderAt over ch
func NewReaderAt(ch Channel) *ReaderAt {
	return &ReaderAt{ch: ch}
}

// ReadAt reads len(p) bytes at off, returning io.EOF if fewer are available
func (r *ReaderAt) ReadAt(p []byte, off int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.ch.Seek(off, io.SeekStart); err != nil {
		return 0, io.EOF
	}
	n, err := io.ReadFull(r.ch, p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return n, err
}
