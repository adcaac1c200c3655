// Package blobstore adapts object storage for file contents. Stored objects
// are addressed by opaque ids generated on Put; the metadata store keeps the
// mapping from logical files to ids.
package blobstore

import (
	"context"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// Object describes a blob written by Put.
type Object struct {
	ID       string
	Size     int64
	Checksum string
}

// Store is the blob store contract. Open returns an error matching
// common.ErrorNotFound for unknown ids; Delete of an unknown id succeeds.
// Other failures match common.ErrorStoreFailure.
type Store interface {
	Put(ctx context.Context, r io.Reader, filename, contentType string) (*Object, error)
	Open(ctx context.Context, id string) (io.ReadCloser, error)
	Delete(ctx context.Context, id string) error
}

// Presigner is implemented by stores able to hand out temporary direct
// download links.
type Presigner interface {
	PresignGet(ctx context.Context, id, filename string, ttl time.Duration) (string, error)
}

// NewStorageKey returns a fresh object key partitioned by date.
func NewStorageKey() string {
	d := time.Now().UTC()
	return fmt.Sprintf("files/%d/%d/%d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

// digestReader counts and hashes everything read through it.
type digestReader struct {
	r io.Reader
	h hash.Hash
	n int64
}

func newDigestReader(r io.Reader) *digestReader {
	h, _ := blake2b.New256(nil) // only fails for oversized keys
	return &digestReader{r: r, h: h}
}

func (d *digestReader) Read(p []byte) (int, error) {
	n, err := d.r.Read(p)
	if n > 0 {
		d.h.Write(p[:n])
		d.n += int64(n)
	}
	return n, err
}

func (d *digestReader) Sum() string {
	return hex.EncodeToString(d.h.Sum(nil))
}

// Checksum returns the hex BLAKE2b-256 digest of data.
func Checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// contextReader stops reading once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
