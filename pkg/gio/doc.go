// Package gio provides the trusted generic I/O channel used by the
// bootstrap pipeline to read the payload.
//
// A Channel is a byte-addressable, seekable source or sink. Two families
// implement it:
//
//	Stream    wraps an OS file (e.g. stdout); writes are buffered until Flush
//	Memory    fixed in-memory buffer with a cursor, 0 <= cursor <= length
//	Snapshot  read-only Memory captured in full from a path at construction
//
// Read follows io.Reader: it returns n >= 1 with a nil error, or 0 with
// io.EOF once the end is reached (EOF is sticky), or 0 with a failure.
// A short read is never end-of-stream. An empty p fails with
// io.ErrShortBuffer, a caller always asks for at least one byte.
//
// Memory and Snapshot reject seeks outside [0, length] with ErrSeekRange and
// leave the cursor where it was. Snapshot never accepts writes.
package gio
