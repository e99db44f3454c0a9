package cache

import (
	"context"
	"path/filepath"

	"go.trai.ch/reuse/internal/adapters/blobstore"
	"go.trai.ch/reuse/internal/core/domain"
	"go.trai.ch/reuse/internal/core/ports"
)

// Provider implements ports.CacheProvider from workspace cache settings.
type Provider struct {
	logger ports.Logger
}

// NewProvider creates a Provider.
func NewProvider(logger ports.Logger) *Provider {
	return &Provider{logger: logger}
}

// Open builds the store stack for the settings: the local directory store,
// tiered over a shared sqlite database when one is configured. With the
// cache off, nothing outlives the invocation.
func (p *Provider) Open(
	_ context.Context,
	root string,
	settings domain.CacheSettings,
) (ports.CacheGateway, ports.BlobStore, error) {
	var store ports.BlobStore
	if settings.Mode == domain.CacheOff {
		store = blobstore.NewMemoryStore()
	} else {
		store = blobstore.NewDirStore(resolve(root, settings.Dir))
		if settings.Shared != "" {
			shared, err := blobstore.OpenSQLite(resolve(root, settings.Shared), 0)
			if err != nil {
				return nil, nil, err
			}
			store = blobstore.NewTieredStore(store, shared)
		}
	}

	p.logger.Debug("cache opened", "mode", string(settings.Mode), "shared", settings.Shared)
	gateway := NewGateway(store, Options{
		Compression: settings.Compression,
		Verify:      settings.Verify,
	}, p.logger)
	return gateway, store, nil
}

func resolve(root, path string) string {
	if path == "" {
		path = domain.DefaultCachePath()
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
