// Package blobstore implements the physical storage engines behind the
// artifact cache: a directory of files, a shared sqlite database, an
// in-memory map and a two-level combination of those.
package blobstore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/reuse/internal/core/domain"
	"go.trai.ch/zerr"
)

// DirStore implements ports.BlobStore with one file per blob under a root
// directory. Names map to relative paths.
type DirStore struct {
	root string
}

// NewDirStore returns a store rooted at dir. The directory is created lazily.
func NewDirStore(dir string) *DirStore {
	return &DirStore{root: filepath.Clean(dir)}
}

// Root returns the directory the store writes to.
func (s *DirStore) Root() string {
	return s.root
}

// Get reads the blob stored under name.
func (s *DirStore) Get(ctx context.Context, name string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	path, err := s.path(name)
	if err != nil {
		return nil, false, err
	}

	//nolint:gosec // Path is validated to stay inside the store root
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, zerr.With(zerr.Wrap(err, domain.ErrBlobReadFailed.Error()), "blob", name)
	}
	return data, true, nil
}

// Put writes the blob to a temporary file and renames it into place, so
// readers observe either the old or the new blob.
func (s *DirStore) Put(ctx context.Context, name string, data []byte) (err error) {
	path, err := s.path(name)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrBlobWriteFailed.Error()), "blob", name)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrBlobWriteFailed.Error()), "blob", name)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return zerr.With(zerr.Wrap(err, domain.ErrBlobWriteFailed.Error()), "blob", name)
	}
	if err = tmp.Close(); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrBlobWriteFailed.Error()), "blob", name)
	}

	if err = ctx.Err(); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrBlobWriteFailed.Error()), "blob", name)
	}
	return nil
}

// Delete removes the blob stored under name.
func (s *DirStore) Delete(_ context.Context, name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return zerr.With(zerr.Wrap(err, domain.ErrBlobWriteFailed.Error()), "blob", name)
	}
	return nil
}

// Close is a no-op.
func (s *DirStore) Close() error {
	return nil
}

func (s *DirStore) path(name string) (string, error) {
	rel := filepath.FromSlash(name)
	if name == "" || !filepath.IsLocal(rel) {
		return "", zerr.With(domain.ErrInvalidBlobName, "blob", name)
	}
	return filepath.Join(s.root, rel), nil
}
