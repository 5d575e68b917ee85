// Package etag computes the identity digest of a payload image.
//
// Digests are BLAKE3 keyed hashes under a fixed domain key, so an etag can
// not be confused with a plain BLAKE3 of the same bytes computed elsewhere.
package etag

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// Tag is a 32-byte payload digest
type Tag [32]byte

// payloadDomainKey is ASCII "sel.payload.image" zero-padded to 32 bytes
var payloadDomainKey = [32]byte{
	's', 'e', 'l', '.', 'p', 'a', 'y', 'l', 'o', 'a', 'd', '.',
	'i', 'm', 'a', 'g', 'e',
}

func newHasher() *blake3.Hasher {
	h, err := blake3.NewKeyed(payloadDomainKey[:])
	if err != nil {
		// key length is fixed at compile time
		panic(err)
	}
	return h
}

// Sum returns the etag of b
func Sum(b []byte) Tag {
	h := newHasher()
	h.Write(b)
	var t Tag
	copy(t[:], h.Sum(nil))
	return t
}

// Reader streams r through the hash
func Reader(r io.Reader) (Tag, error) {
	h := newHasher()
	if _, err := io.Copy(h, r); err != nil {
		return Tag{}, err
	}
	var t Tag
	copy(t[:], h.Sum(nil))
	return t, nil
}

// File computes the etag of the file at path
func File(path string) (Tag, error) {
	f, err := os.Open(path)
	if err != nil {
		return Tag{}, fmt.Errorf("etag: %w", err)
	}
	defer f.Close()

	t, err := Reader(f)
	if err != nil {
		return Tag{}, fmt.Errorf("etag: %w", err)
	}
	return t, nil
}

// IsZero reports whether the tag was never computed
func (t Tag) IsZero() bool {
	return t == Tag{}
}

// String returns the hex encoding of the tag
func (t Tag) String() string {
	return hex.EncodeToString(t[:])
}

// MarshalText encodes the tag as hex in reports
func (t Tag) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}
