package blobstore

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/dmitrijs2005/doctree/internal/common"
)

// MemoryStore keeps blobs in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) Put(ctx context.Context, r io.Reader, filename, contentType string) (*Object, error) {
	dr := newDigestReader(contextReader{ctx: ctx, r: r})
	data, err := io.ReadAll(dr)
	if err != nil {
		return nil, common.StoreFailure(err, "read %s", filename)
	}

	obj := &Object{ID: NewStorageKey(), Size: dr.n, Checksum: dr.Sum()}

	m.mu.Lock()
	m.blobs[obj.ID] = data
	m.mu.Unlock()

	return obj, nil
}

func (m *MemoryStore) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	m.mu.RLock()
	data, ok := m.blobs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, common.NotFound("blob %s not found", id)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.blobs, id)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored blobs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

// Has reports whether id is stored.
func (m *MemoryStore) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[id]
	return ok
}
