package gio

import (
	"errors"
	"io"
	"log/slog"
)

// Channel is the uniform contract over byte sources and sinks
type Channel interface {
	io.ReadWriteSeeker

	// Flush pushes buffered writes, no-op for read-only channels
	Flush() error

	// Close releases the channel, it does not destroy the object
	Close() error

	// Destroy closes the channel if not yet closed. Errors are only logged.
	Destroy()
}

// Errors returned by channels
var (
	ErrClosed      = errors.New("gio: channel closed")
	ErrReadOnly    = errors.New("gio: channel is read-only")
	ErrSeekRange   = errors.New("gio: seek outside of channel bounds")
	ErrWhence      = errors.New("gio: invalid whence")
	ErrSizeChanged = errors.New("gio: source size changed while reading")
)

// destroy implements the shared Destroy behaviour: close when open and
// report a failure to the logger only
func destroy(c Channel, closed bool, logger *slog.Logger, name string) {
	if closed {
		return
	}
	if err := c.Close(); err != nil && logger != nil {
		logger.Warn("implicit close failed", "channel", name, "error", err)
	}
}

// offset computes the new absolute position for a seek on a channel of
// the given length, rejecting positions outside of [0, length]
func offset(cur, length, off int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = cur
	case io.SeekEnd:
		base = length
	default:
		return cur, ErrWhence
	}
	pos := base + off
	if (off > 0 && pos < base) || pos < 0 || pos > length {
		return cur, ErrSeekRange
	}
	return pos, nil
}
