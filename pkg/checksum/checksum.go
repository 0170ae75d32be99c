// Package checksum computes SHA-256 digests of attachment content while it
// streams to a storage backend.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
)

// Reader passes data through unchanged and hashes it on the way.
type Reader struct {
	r io.Reader
	h hash.Hash
	n int64
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, h: sha256.New()}
}

func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.h.Write(p[:n])
		r.n += int64(n)
	}
	return n, err
}

// Sum returns the hex digest of everything read so far.
func (r *Reader) Sum() string { return hex.EncodeToString(r.h.Sum(nil)) }

// Size returns the number of bytes read so far.
func (r *Reader) Size() int64 { return r.n }

// SHA256 drains reader and returns its hex digest.
func SHA256(reader io.Reader) (string, error) {
	cr := NewReader(reader)
	if _, err := io.Copy(io.Discard, cr); err != nil {
		return "", fmt.Errorf("failed to calculate checksum: %w", err)
	}
	return cr.Sum(), nil
}
