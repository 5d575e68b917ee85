// Package pipe captures the bounded diagnostic output of a child process
// through an os pipe.
package pipe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// Buffer is a writable pipe whose read end is drained into a buffer of at
// most Max+1 bytes. The extra byte tells a full buffer from a truncated one.
type Buffer struct {
	W      *os.File
	Max    int64
	Buffer *bytes.Buffer
	Done   <-chan struct{}
}

// NewPipe create a pipe with a goroutine to copy its read-end to writer
// returns the write end and signal for finish
// caller need to close w
func NewPipe(writer io.Writer, n int64) (<-chan struct{}, *os.File, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, err
	}
	done := make(chan struct{})
	go func() {
		io.CopyN(writer, r, n)
		close(done)
		// ensure no blocking / SIGPIPE on the other end
		io.Copy(io.Discard, r)
		r.Close()
	}()
	return done, w, nil
}

// NewBuffer creates a os pipe, caller need to close w once the child holds
// its copy, otherwise Done never fires
func NewBuffer(max int64) (*Buffer, error) {
	buffer := new(bytes.Buffer)
	done, w, err := NewPipe(buffer, max+1)
	if err != nil {
		return nil, err
	}
	return &Buffer{
		W:      w,
		Max:    max,
		Buffer: buffer,
		Done:   done,
	}, nil
}

// Wait blocks until the write end is closed by every holder or the buffer
// is full
func (b *Buffer) Wait(ctx context.Context) error {
	select {
	case <-b.Done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Truncated reports whether more than Max bytes were written
func (b *Buffer) Truncated() bool {
	return int64(b.Buffer.Len()) > b.Max
}

// Text returns the captured output trimmed of blanks, marking truncation.
// It must only be called after Done fired.
func (b *Buffer) Text() string {
	s := b.Buffer.String()
	if b.Truncated() {
		return strings.TrimSpace(s[:b.Max]) + "..."
	}
	return strings.TrimSpace(s)
}

func (b Buffer) String() string {
	return fmt.Sprintf("Buffer[%d/%d]", b.Buffer.Len(), b.Max)
}
