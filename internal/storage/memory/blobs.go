package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/google/uuid"
)

type blobEntry struct {
	data []byte
	meta core.Blob
}

type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string]blobEntry
}

var _ core.BlobStore = (*BlobStore)(nil)

func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string]blobEntry)}
}

func (s *BlobStore) Store(ctx context.Context, data []byte, originalName, contentType string) (domain.FileRef, error) {
	if err := ctx.Err(); err != nil {
		return domain.FileRef{}, fmt.Errorf("store blob: %v: %w", err, domain.ErrBackend)
	}
	id := uuid.NewString()
	ref := domain.FileRef{ID: id, Name: originalName, URL: domain.FileURLPrefix + id, Size: int64(len(data))}
	buf := make([]byte, len(data))
	copy(buf, data)
	s.mu.Lock()
	s.blobs[id] = blobEntry{data: buf, meta: core.Blob{Ref: ref, ContentType: contentType}}
	s.mu.Unlock()
	return ref, nil
}

func (s *BlobStore) Retrieve(_ context.Context, id string) ([]byte, *core.Blob, error) {
	s.mu.RLock()
	e, ok := s.blobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("file %q: %w", id, domain.ErrNotFound)
	}
	meta := e.meta
	return e.data, &meta, nil
}
