package blobstore_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/reuse/internal/adapters/blobstore"
	"go.trai.ch/reuse/internal/core/domain"
	"go.trai.ch/reuse/internal/core/ports"
)

func stores(t *testing.T) map[string]ports.BlobStore {
	t.Helper()
	sqliteStore, err := blobstore.OpenSQLite(filepath.Join(t.TempDir(), "shared.db"), 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })

	return map[string]ports.BlobStore{
		"dir":    blobstore.NewDirStore(filepath.Join(t.TempDir(), "cache")),
		"memory": blobstore.NewMemoryStore(),
		"sqlite": sqliteStore,
		"tiered": blobstore.NewTieredStore(blobstore.NewMemoryStore(), blobstore.NewMemoryStore()),
	}
}

func TestBlobStores(t *testing.T) {
	ctx := context.Background()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := store.Get(ctx, "artifact/missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Put(ctx, "artifact/one", []byte("first")))
			require.NoError(t, store.Put(ctx, "artifact/one", []byte("second")))

			data, ok, err := store.Get(ctx, "artifact/one")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, []byte("second"), data)

			require.NoError(t, store.Put(ctx, "meta/empty", []byte{}))
			data, ok, err = store.Get(ctx, "meta/empty")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Empty(t, data)

			require.NoError(t, store.Delete(ctx, "artifact/one"))
			require.NoError(t, store.Delete(ctx, "artifact/one"))
			_, ok, err = store.Get(ctx, "artifact/one")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestBlobStores_HonorCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, _, err := store.Get(ctx, "artifact/one")
			require.ErrorIs(t, err, context.Canceled)
		})
	}
}

func TestDirStore_RejectsEscapingNames(t *testing.T) {
	store := blobstore.NewDirStore(t.TempDir())
	ctx := context.Background()

	for _, name := range []string{"", "../outside", "/abs/path"} {
		err := store.Put(ctx, name, []byte("x"))
		require.ErrorContains(t, err, domain.ErrInvalidBlobName.Error(), name)
	}
}

func TestDirStore_LaysOutBlobsAsFiles(t *testing.T) {
	root := t.TempDir()
	store := blobstore.NewDirStore(root)
	require.NoError(t, store.Put(context.Background(), "manifest/abc", []byte("m")))

	assert.FileExists(t, filepath.Join(root, "manifest", "abc"))
	assert.Equal(t, root, store.Root())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := blobstore.NewMemoryStore()
	ctx := context.Background()

	data := []byte("abc")
	require.NoError(t, store.Put(ctx, "a", data))
	data[0] = 'x'

	got, _, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
	got[0] = 'y'

	again, _, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
	assert.Equal(t, []string{"a"}, store.Names())
}

func TestTieredStore_BackfillsLocal(t *testing.T) {
	ctx := context.Background()
	local, shared := blobstore.NewMemoryStore(), blobstore.NewMemoryStore()
	require.NoError(t, shared.Put(ctx, "artifact/k", []byte("remote")))

	store := blobstore.NewTieredStore(local, shared)
	data, ok, err := store.Get(ctx, "artifact/k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("remote"), data)
	assert.Equal(t, []string{"artifact/k"}, local.Names())

	require.NoError(t, store.Put(ctx, "artifact/new", []byte("both")))
	assert.Contains(t, local.Names(), "artifact/new")
	assert.Contains(t, shared.Names(), "artifact/new")
}

func TestSQLiteStore_SharedBetweenHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	ctx := context.Background()

	first, err := blobstore.OpenSQLite(path, 1)
	require.NoError(t, err)
	require.NoError(t, first.Put(ctx, "artifact/k", []byte("shared")))
	require.NoError(t, first.Close())

	second, err := blobstore.OpenSQLite(path, 1)
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	data, ok, err := second.Get(ctx, "artifact/k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("shared"), data)
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	_, err := blobstore.OpenSQLite("", 1)
	require.ErrorContains(t, err, domain.ErrBlobStoreOpenFailed.Error())
}

func TestCompress(t *testing.T) {
	compressible := bytes.Repeat([]byte("reuse "), 512)
	tiny := []byte("x")

	for _, c := range []domain.Compression{domain.CompressionZstd, domain.CompressionLZ4, domain.CompressionNone} {
		t.Run(string(c), func(t *testing.T) {
			for _, data := range [][]byte{compressible, tiny, {}} {
				blob := blobstore.Compress(data, c)
				got, err := blobstore.Decompress(blob)
				require.NoError(t, err)
				assert.Equal(t, len(data), len(got))
				assert.True(t, bytes.Equal(data, got))
			}
		})
	}

	assert.Less(t, len(blobstore.Compress(compressible, domain.CompressionZstd)), len(compressible))
	assert.Less(t, len(blobstore.Compress(compressible, domain.CompressionLZ4)), len(compressible))
}

func TestDecompress_RejectsCorruptBlobs(t *testing.T) {
	valid := blobstore.Compress([]byte("payload"), domain.CompressionNone)

	for name, blob := range map[string][]byte{
		"empty":     nil,
		"truncated": valid[:len(valid)-1],
		"bad tag":   append([]byte{9}, valid[1:]...),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := blobstore.Decompress(blob)
			require.ErrorContains(t, err, domain.ErrDecompressFailed.Error())
		})
	}
}
