package app

import (
	"context"
	"encoding/json"
	"path/filepath"

	"go.trai.ch/reuse/internal/adapters/blobstore"
	"go.trai.ch/reuse/internal/core/domain"
	"go.trai.ch/reuse/internal/engine/scheduler"
	"go.trai.ch/zerr"
)

// usageFile is the materialized form of a unit's usage record.
type usageFile struct {
	Unit string            `json:"unit"`
	Refs []domain.EntryRef `json:"refs"`
}

// materialize writes the output of every successful unit to
// .reuse/out/<unit>.art, and the entries it used to <unit>.usage.json.
// Each file is replaced atomically.
func (a *App) materialize(ctx context.Context, root string, report *scheduler.Report) error {
	out := blobstore.NewDirStore(filepath.Join(root, domain.DefaultOutPath()))

	for _, id := range report.Planned {
		res, ok := report.Results[id]
		if !ok || !res.Succeeded() {
			continue
		}
		name := id.String()

		if err := out.Put(ctx, name+domain.ArtifactExt, res.Blob); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to materialize output"), "unit", name)
		}
		if res.Usage == nil {
			continue
		}

		refs := res.Usage.Refs
		if refs == nil {
			refs = []domain.EntryRef{}
		}
		data, err := json.MarshalIndent(usageFile{Unit: name, Refs: refs}, "", "  ")
		if err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrEncodeFailed.Error()), "unit", name)
		}
		if err := out.Put(ctx, name+domain.UsageExt, append(data, '\n')); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to materialize usage"), "unit", name)
		}
	}
	return nil
}
