// Package cache implements the artifact cache gateway over a blob store.
package cache

import (
	"context"
	"errors"

	"go.trai.ch/reuse/internal/adapters/blobstore"
	"go.trai.ch/reuse/internal/core/codec"
	"go.trai.ch/reuse/internal/core/domain"
	"go.trai.ch/reuse/internal/core/ports"
	"go.trai.ch/reuse/internal/engine/fingerprint"
	"go.trai.ch/zerr"
)

// Options configures a Gateway.
type Options struct {
	Compression domain.Compression
	// Verify compares fetched blobs against the digest recorded in their
	// metadata and reports mismatches as misses.
	Verify bool
}

// Gateway implements ports.CacheGateway. Artifacts are stored compressed
// under artifact/<key>, metadata as CBOR under meta/<key>.
type Gateway struct {
	blobs  ports.BlobStore
	opts   Options
	logger ports.Logger
}

// NewGateway creates a gateway over blobs.
func NewGateway(blobs ports.BlobStore, opts Options, logger ports.Logger) *Gateway {
	if opts.Compression == "" {
		opts.Compression = domain.CompressionZstd
	}
	return &Gateway{blobs: blobs, opts: opts, logger: logger}
}

// ArtifactName returns the blob name of the artifact stored under key.
func ArtifactName(key domain.Key) string {
	return "artifact/" + key.String()
}

// MetadataName returns the blob name of the metadata stored under key.
func MetadataName(key domain.Key) string {
	return "meta/" + key.String()
}

// Get returns the artifact blob stored under key. Stored bytes are served
// as they are unless verification is enabled.
func (g *Gateway) Get(ctx context.Context, key domain.Key) ([]byte, bool, error) {
	raw, ok, err := g.blobs.Get(ctx, ArtifactName(key))
	if err != nil {
		return nil, false, unavailable(err, key)
	}
	if !ok {
		return nil, false, nil
	}

	blob, err := blobstore.Decompress(raw)
	if err != nil {
		g.logger.Warn("ignoring undecodable cache entry", "key", key.String(), "error", err.Error())
		return nil, false, nil
	}

	if g.opts.Verify {
		meta, ok, err := g.GetMetadata(ctx, key)
		if err != nil {
			return nil, false, err
		}
		if ok && !meta.OutputDigest.IsZero() && fingerprint.Output(blob) != meta.OutputDigest {
			g.logger.Warn("cache entry failed verification", "key", key.String(), "unit", meta.Unit.String())
			return nil, false, nil
		}
	}

	return blob, true, nil
}

// Put stores the blob and then its metadata. A reader that finds the blob
// without metadata rederives what it needs from the blob.
func (g *Gateway) Put(ctx context.Context, key domain.Key, blob []byte, meta *domain.Metadata) error {
	if err := g.blobs.Put(ctx, ArtifactName(key), blobstore.Compress(blob, g.opts.Compression)); err != nil {
		return unavailable(err, key)
	}
	if meta == nil {
		return nil
	}

	data, err := codec.Marshal(meta)
	if err != nil {
		return zerr.With(err, "key", key.String())
	}
	if err := g.blobs.Put(ctx, MetadataName(key), data); err != nil {
		return unavailable(err, key)
	}
	return nil
}

// GetMetadata returns the metadata stored under key.
func (g *Gateway) GetMetadata(ctx context.Context, key domain.Key) (*domain.Metadata, bool, error) {
	data, ok, err := g.blobs.Get(ctx, MetadataName(key))
	if err != nil {
		return nil, false, unavailable(err, key)
	}
	if !ok {
		return nil, false, nil
	}

	var meta domain.Metadata
	if err := codec.Unmarshal(data, &meta); err != nil {
		g.logger.Warn("ignoring undecodable cache metadata", "key", key.String(), "error", err.Error())
		return nil, false, nil
	}
	return &meta, true, nil
}

func unavailable(err error, key domain.Key) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return zerr.With(errors.Join(domain.ErrCacheUnavailable, err), "key", key.String())
}
