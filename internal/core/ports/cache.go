package ports

import (
	"context"

	"go.trai.ch/reuse/internal/core/domain"
)

//go:generate mockgen -source=cache.go -destination=mocks/mock_cache.go -package=mocks

// CacheGateway is the engine's view of the artifact cache.
// Fetched bytes are trusted: a hit returns whatever is stored under the key.
type CacheGateway interface {
	// Get returns the artifact blob stored under key.
	// The boolean is false when nothing is stored.
	Get(ctx context.Context, key domain.Key) ([]byte, bool, error)

	// Put stores the blob and its metadata under key.
	// A cancelled context never leaves a partially written entry.
	Put(ctx context.Context, key domain.Key, blob []byte, meta *domain.Metadata) error

	// GetMetadata returns the metadata stored under key.
	// The boolean is false when nothing is stored.
	GetMetadata(ctx context.Context, key domain.Key) (*domain.Metadata, bool, error)
}

// BlobStore is an opaque name to blob storage engine.
type BlobStore interface {
	// Get returns the blob stored under name. The boolean is false when absent.
	Get(ctx context.Context, name string) ([]byte, bool, error)

	// Put atomically replaces the blob stored under name.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes the blob stored under name. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// Close releases resources held by the store.
	Close() error
}

// CacheProvider opens the cache a workspace is configured with.
type CacheProvider interface {
	// Open returns the artifact gateway and the raw store that manifests are
	// kept in. Closing the store releases the gateway as well.
	Open(ctx context.Context, root string, settings domain.CacheSettings) (CacheGateway, BlobStore, error)
}
