package cachestore

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedStore wraps a backing Store with an in-process LRU so repeated
// restores of hot keys (every job of a run restoring the same dependency
// environment) skip backend I/O. Writes go through to the backend first;
// the memory layer only ever holds blobs the backend has accepted.
type CachedStore struct {
	backend Store
	memory  *lru.Cache[string, []byte]
}

// NewCachedStore wraps backend with an LRU holding up to size blobs.
func NewCachedStore(backend Store, size int) (*CachedStore, error) {
	memory, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{backend: backend, memory: memory}, nil
}

// Restore implements Store.
func (s *CachedStore) Restore(ctx context.Context, key string) ([]byte, bool, error) {
	if blob, ok := s.memory.Get(key); ok {
		return blob, true, nil
	}
	blob, ok, err := s.backend.Restore(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	s.memory.Add(key, blob)
	return blob, true, nil
}

// Save implements Store.
func (s *CachedStore) Save(ctx context.Context, key string, blob []byte) error {
	if err := s.backend.Save(ctx, key, blob); err != nil {
		return err
	}
	s.memory.Add(key, blob)
	return nil
}
