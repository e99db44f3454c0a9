package app

import (
	"context"
	"fmt"
	"time"

	"go.trai.ch/reuse/internal/core/domain"
	"go.trai.ch/reuse/internal/engine/fingerprint"
	"go.trai.ch/reuse/internal/engine/manifest"
	"go.trai.ch/zerr"
)

// KeysOptions configuration for the Keys method.
type KeysOptions struct {
	// Explain prints the RuleKey material after the keys.
	Explain bool
}

// Keys prints the key tiers of a unit. The input-based and dep-file keys
// depend on a previous build, so they are read from the metadata stored
// under the RuleKey and shown as "-" when nothing is cached.
func (a *App) Keys(ctx context.Context, unitName string, opts KeysOptions) error {
	if unitName == "" {
		return domain.ErrNoUnitsSpecified
	}
	ws, err := a.load()
	if err != nil {
		return err
	}
	keys, err := fingerprint.New(ws.Graph, ws.Cache.Salt)
	if err != nil {
		return zerr.Wrap(err, domain.ErrConfiguration.Error())
	}

	id := domain.NewUnitID(unitName)
	ruleKey, err := keys.RuleKey(id)
	if err != nil {
		return err
	}
	manifestKey, err := keys.ManifestKey(id)
	if err != nil {
		return err
	}

	var meta *domain.Metadata
	if ws.Cache.Mode.Reads() {
		gateway, store, openErr := a.caches.Open(ctx, ws.Root, ws.Cache)
		if openErr != nil {
			return zerr.Wrap(openErr, "failed to open cache")
		}
		defer func() { _ = store.Close() }()

		if meta, _, err = gateway.GetMetadata(ctx, ruleKey); err != nil {
			a.logger.Debug("metadata unavailable", "unit", unitName, "error", err.Error())
		}
	}

	_, _ = fmt.Fprintf(a.out, "unit:        %s\n", unitName)
	_, _ = fmt.Fprintf(a.out, "rule_key:    %s\n", ruleKey)
	_, _ = fmt.Fprintf(a.out, "manifest:    %s\n", manifestKey)
	if meta != nil {
		_, _ = fmt.Fprintf(a.out, "input_based: %s\n", orDash(meta.InputBasedKey))
		_, _ = fmt.Fprintf(a.out, "dep_file:    %s\n", orDash(meta.DepFileKey))
		_, _ = fmt.Fprintf(a.out, "abi:         %s\n", orDash(meta.Abi))
		_, _ = fmt.Fprintf(a.out, "output:      %s\n", orDash(meta.OutputDigest))
	} else {
		_, _ = fmt.Fprintln(a.out, "input_based: -")
		_, _ = fmt.Fprintln(a.out, "dep_file:    -")
	}

	if opts.Explain {
		explanation, err := keys.Explain(id)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(a.out, "\n%s", explanation)
	}
	return nil
}

// Manifest prints the manifest entries of a unit, most recently matched first.
func (a *App) Manifest(ctx context.Context, unitName string) error {
	if unitName == "" {
		return domain.ErrNoUnitsSpecified
	}
	ws, err := a.load()
	if err != nil {
		return err
	}
	keys, err := fingerprint.New(ws.Graph, ws.Cache.Salt)
	if err != nil {
		return zerr.Wrap(err, domain.ErrConfiguration.Error())
	}
	manifestKey, err := keys.ManifestKey(domain.NewUnitID(unitName))
	if err != nil {
		return err
	}

	_, store, err := a.caches.Open(ctx, ws.Root, ws.Cache)
	if err != nil {
		return zerr.Wrap(err, "failed to open cache")
	}
	defer func() { _ = store.Close() }()

	m, err := manifest.New(store, manifest.Options{
		Capacity: ws.Cache.ManifestCapacity,
		ReadOnly: true,
	}).Load(ctx, manifestKey)
	if err != nil {
		return zerr.Wrap(err, "failed to load manifest")
	}

	_, _ = fmt.Fprintf(a.out, "manifest %s (%s)\n", unitName, manifestKey.Short())
	if m == nil || len(m.Entries) == 0 {
		_, _ = fmt.Fprintln(a.out, "no entries")
		return nil
	}
	for i, entry := range m.Entries {
		_, _ = fmt.Fprintf(a.out, "#%d output %s created %s matched %s\n",
			i, entry.OutputKey.Short(), timestamp(entry.Created), timestamp(entry.LastMatched))
		for _, in := range entry.Inputs {
			_, _ = fmt.Fprintf(a.out, "   %s %s\n", in.EntryRef, in.Fingerprint.Short())
		}
	}
	return nil
}

func orDash(k domain.Key) string {
	if k.IsZero() {
		return "-"
	}
	return k.String()
}

func timestamp(nanos int64) string {
	if nanos == 0 {
		return "-"
	}
	return time.Unix(0, nanos).UTC().Format(time.RFC3339)
}
