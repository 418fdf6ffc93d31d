// Package cachestore implements the content-addressed cache shared by
// workflow jobs: dependency environments and build outputs stored under
// deterministic keys derived from branch and content checksums.
//
// Entries are opaque blobs. There is no eviction: entries are overwritten on
// key collision and otherwise retained indefinitely. Concurrent saves to the
// same key are last-writer-wins with no locking guarantee.
package cachestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store is a content-addressed key/value store for cache blobs.
type Store interface {
	// Restore returns the blob stored under key. A never-saved key returns
	// ok=false and a nil error: callers treat it as a cold cache and rebuild
	// from scratch.
	Restore(ctx context.Context, key string) (blob []byte, ok bool, err error)

	// Save stores the blob under key. Saving the same key twice overwrites.
	Save(ctx context.Context, key string, blob []byte) error
}

// FSStore stores blobs as flat files under a root directory. It is the
// default backend for single-host runs.
type FSStore struct {
	root string
}

// NewFSStore creates the root directory if needed and returns the store.
func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("cachestore: create root: %w", err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) path(key string) string {
	// Keys are namespace-prefixed hex digests, but sanitize anyway so a
	// hostile namespace cannot escape the root.
	safe := strings.ReplaceAll(key, string(os.PathSeparator), "_")
	return filepath.Join(s.root, safe)
}

// Restore implements Store.
func (s *FSStore) Restore(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	blob, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cachestore: restore %s: %w", key, err)
	}
	return blob, true, nil
}

// Save implements Store. The write goes through a temp file and rename so a
// concurrent Restore never observes a half-written blob; concurrent saves to
// the same key remain last-writer-wins.
func (s *FSStore) Save(ctx context.Context, key string, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.root, ".save-*")
	if err != nil {
		return fmt.Errorf("cachestore: save %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return fmt.Errorf("cachestore: save %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cachestore: save %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return fmt.Errorf("cachestore: save %s: %w", key, err)
	}
	return nil
}
