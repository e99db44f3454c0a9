package cache_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/reuse/internal/adapters/blobstore"
	"go.trai.ch/reuse/internal/adapters/cache"
	"go.trai.ch/reuse/internal/core/domain"
	"go.trai.ch/reuse/internal/core/ports/mocks"
	"go.trai.ch/reuse/internal/engine/fingerprint"
	"go.uber.org/mock/gomock"
)

func testKey(b byte) domain.Key {
	var k domain.Key
	k[0] = b
	return k
}

func quietLogger(t *testing.T) *mocks.MockLogger {
	t.Helper()
	logger := mocks.NewMockLogger(gomock.NewController(t))
	logger.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()
	logger.EXPECT().Warn(gomock.Any(), gomock.Any()).AnyTimes()
	return logger
}

func TestGateway_PutThenGet(t *testing.T) {
	ctx := context.Background()
	for _, c := range []domain.Compression{domain.CompressionZstd, domain.CompressionLZ4, domain.CompressionNone} {
		t.Run(string(c), func(t *testing.T) {
			store := blobstore.NewMemoryStore()
			g := cache.NewGateway(store, cache.Options{Compression: c}, quietLogger(t))

			blob := []byte("artifact artifact artifact artifact artifact")
			meta := &domain.Metadata{Unit: domain.NewUnitID("core"), OutputDigest: fingerprint.Output(blob)}
			require.NoError(t, g.Put(ctx, testKey(1), blob, meta))

			got, ok, err := g.Get(ctx, testKey(1))
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, blob, got)

			gotMeta, ok, err := g.GetMetadata(ctx, testKey(1))
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "core", gotMeta.Unit.String())

			assert.Equal(t, []string{cache.ArtifactName(testKey(1)), cache.MetadataName(testKey(1))}, store.Names())
		})
	}
}

func TestGateway_Miss(t *testing.T) {
	g := cache.NewGateway(blobstore.NewMemoryStore(), cache.Options{}, quietLogger(t))

	_, ok, err := g.Get(context.Background(), testKey(2))
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = g.GetMetadata(context.Background(), testKey(2))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGateway_UndecodableBlobsAreMisses(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	ctrl := gomock.NewController(t)
	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Warn("ignoring undecodable cache entry", gomock.Any()).Times(1)
	logger.EXPECT().Warn("ignoring undecodable cache metadata", gomock.Any()).Times(1)

	g := cache.NewGateway(store, cache.Options{}, logger)
	require.NoError(t, store.Put(ctx, cache.ArtifactName(testKey(3)), nil))
	require.NoError(t, store.Put(ctx, cache.MetadataName(testKey(3)), []byte{0xff}))

	_, ok, err := g.Get(ctx, testKey(3))
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = g.GetMetadata(ctx, testKey(3))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGateway_Verify(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	blob := []byte("original")
	meta := &domain.Metadata{Unit: domain.NewUnitID("core"), OutputDigest: fingerprint.Output(blob)}

	writer := cache.NewGateway(store, cache.Options{Compression: domain.CompressionNone}, quietLogger(t))
	require.NoError(t, writer.Put(ctx, testKey(4), blob, meta))
	require.NoError(t, store.Put(ctx, cache.ArtifactName(testKey(4)), blobstore.Compress([]byte("tampered"), domain.CompressionNone)))

	got, ok, err := writer.Get(ctx, testKey(4))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("tampered"), got)

	verifying := cache.NewGateway(store, cache.Options{Verify: true}, quietLogger(t))
	_, ok, err = verifying.Get(ctx, testKey(4))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGateway_StoreFailuresAreUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockBlobStore(ctrl)
	ioErr := errors.New("disk on fire")
	store.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, false, ioErr)
	store.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any()).Return(ioErr)

	g := cache.NewGateway(store, cache.Options{}, quietLogger(t))

	_, _, err := g.Get(context.Background(), testKey(5))
	require.ErrorIs(t, err, domain.ErrCacheUnavailable)
	require.ErrorIs(t, err, ioErr)

	err = g.Put(context.Background(), testKey(5), []byte("x"), nil)
	require.ErrorIs(t, err, domain.ErrCacheUnavailable)
}

func TestGateway_CancellationIsNotUnavailable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := cache.NewGateway(blobstore.NewMemoryStore(), cache.Options{}, quietLogger(t))
	_, _, err := g.Get(ctx, testKey(6))
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrCacheUnavailable)
}

func TestProvider_Open(t *testing.T) {
	root := t.TempDir()
	p := cache.NewProvider(quietLogger(t))
	ctx := context.Background()

	t.Run("local directory", func(t *testing.T) {
		settings := domain.DefaultCacheSettings()
		gateway, store, err := p.Open(ctx, root, settings)
		require.NoError(t, err)
		defer func() { _ = store.Close() }()

		require.NoError(t, gateway.Put(ctx, testKey(7), []byte("x"), nil))
		assert.FileExists(t, filepath.Join(root, ".reuse", "cache", cache.ArtifactName(testKey(7))))
	})

	t.Run("shared database", func(t *testing.T) {
		settings := domain.DefaultCacheSettings()
		settings.Shared = filepath.Join(t.TempDir(), "shared.db")
		gateway, store, err := p.Open(ctx, root, settings)
		require.NoError(t, err)
		defer func() { _ = store.Close() }()

		require.NoError(t, gateway.Put(ctx, testKey(8), []byte("x"), nil))
		assert.FileExists(t, settings.Shared)
	})

	t.Run("cache off keeps nothing", func(t *testing.T) {
		settings := domain.DefaultCacheSettings()
		settings.Mode = domain.CacheOff
		settings.Dir = "off-cache"
		gateway, store, err := p.Open(ctx, root, settings)
		require.NoError(t, err)

		require.NoError(t, gateway.Put(ctx, testKey(9), []byte("x"), nil))
		assert.NoDirExists(t, filepath.Join(root, "off-cache"))
		_, isMemory := store.(*blobstore.MemoryStore)
		assert.True(t, isMemory)
	})
}
