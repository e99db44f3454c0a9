package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"go.trai.ch/reuse/internal/core/domain"
	"go.trai.ch/zerr"
)

// CleanOptions configuration for the Clean method.
type CleanOptions struct {
	// Cache also removes the local artifact cache. A shared cache is never removed.
	Cache bool
}

// Clean removes materialized outputs and build logs, and optionally the local cache.
func (a *App) Clean(_ context.Context, options CleanOptions) error {
	ws, err := a.load()
	if err != nil {
		return err
	}

	var errs error
	remove := func(path, name string) {
		a.logger.Info("removing "+name, "path", path)
		if err := os.RemoveAll(path); err != nil {
			errs = errors.Join(errs, zerr.With(zerr.Wrap(err, "failed to remove "+name), "path", path))
		}
	}

	remove(filepath.Join(ws.Root, domain.DefaultOutPath()), "outputs")
	remove(filepath.Join(ws.Root, domain.DefaultLogPath()), "build logs")

	if options.Cache {
		dir := ws.Cache.Dir
		if dir == "" {
			dir = domain.DefaultCachePath()
		}
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(ws.Root, dir)
		}
		remove(dir, "cache")
	}

	return errs
}
