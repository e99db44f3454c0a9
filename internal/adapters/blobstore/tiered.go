package blobstore

import (
	"context"
	"errors"

	"go.trai.ch/reuse/internal/core/ports"
)

// TieredStore reads from a fast local store first and falls back to a
// shared one, copying hits back into the local store. Writes go to both.
type TieredStore struct {
	local  ports.BlobStore
	shared ports.BlobStore
}

// NewTieredStore combines a local and a shared store.
func NewTieredStore(local, shared ports.BlobStore) *TieredStore {
	return &TieredStore{local: local, shared: shared}
}

// Get returns the local blob, or the shared one when the local store misses.
func (s *TieredStore) Get(ctx context.Context, name string) ([]byte, bool, error) {
	data, ok, err := s.local.Get(ctx, name)
	if err == nil && ok {
		return data, true, nil
	}

	data, ok, sharedErr := s.shared.Get(ctx, name)
	if sharedErr != nil {
		return nil, false, errors.Join(err, sharedErr)
	}
	if !ok {
		return nil, false, err
	}

	// Backfill failures only cost a later shared read.
	_ = s.local.Put(ctx, name, data)
	return data, true, nil
}

// Put writes to both stores.
func (s *TieredStore) Put(ctx context.Context, name string, data []byte) error {
	if err := s.local.Put(ctx, name, data); err != nil {
		return err
	}
	return s.shared.Put(ctx, name, data)
}

// Delete removes the blob from both stores.
func (s *TieredStore) Delete(ctx context.Context, name string) error {
	return errors.Join(s.local.Delete(ctx, name), s.shared.Delete(ctx, name))
}

// Close closes both stores.
func (s *TieredStore) Close() error {
	return errors.Join(s.local.Close(), s.shared.Close())
}
