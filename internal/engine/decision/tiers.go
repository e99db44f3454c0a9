package decision

import (
	"context"

	"go.trai.ch/reuse/internal/core/codec"
	"go.trai.ch/reuse/internal/core/domain"
	"go.trai.ch/reuse/internal/engine/abi"
	"go.trai.ch/reuse/internal/engine/fingerprint"
	"go.trai.ch/reuse/internal/engine/usage"
	"go.trai.ch/zerr"
)

// fetched is an output read from the cache together with its metadata.
type fetched struct {
	blob     []byte
	artifact *domain.Artifact
	meta     *domain.Metadata
}

func (r *Resolver) tryExact(ctx context.Context, _ *Session, unit *domain.BuildUnit, res *UnitResult) (bool, error) {
	out, err := r.fetch(ctx, res.RuleKey)
	if out == nil {
		return false, err
	}

	r.accept(unit, res, out, domain.OutcomeFetchedExactMatch, domain.TierExact)
	if out.meta != nil {
		res.InputBasedKey = out.meta.InputBasedKey
		res.DepFileKey = out.meta.DepFileKey
	}
	return true, nil
}

func (r *Resolver) tryInputBased(ctx context.Context, s *Session, unit *domain.BuildUnit, res *UnitResult) (bool, error) {
	key, err := s.keys.InputBasedRuleKey(unit.ID, s)
	if err != nil {
		return false, err
	}
	res.InputBasedKey = key

	out, err := r.fetch(ctx, key)
	if out == nil {
		return false, err
	}

	r.accept(unit, res, out, domain.OutcomeFetchedInputBasedMatch, domain.TierInputBased)
	if out.meta != nil {
		res.DepFileKey = out.meta.DepFileKey
	}
	r.write(ctx, res, res.RuleKey)
	return true, nil
}

func (r *Resolver) tryManifest(ctx context.Context, s *Session, unit *domain.BuildUnit, res *UnitResult) (bool, error) {
	if !unit.Capabilities.SupportsDepFile {
		return false, nil
	}

	manifestKey, err := s.keys.ManifestKey(unit.ID)
	if err != nil {
		return false, err
	}
	entry, ok, err := r.manifests.Lookup(ctx, manifestKey, s)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, domain.ErrManifestMiss
	}

	key, err := s.keys.DepFileRuleKey(unit.ID, entry.Inputs)
	if err != nil {
		return false, err
	}

	// A manifest entry whose output is gone is a miss, not an error.
	out, err := r.fetch(ctx, key)
	if out == nil {
		return false, err
	}

	r.accept(unit, res, out, domain.OutcomeFetchedManifestMatch, domain.TierManifest)
	res.DepFileKey = key
	res.Usage = domain.NewUsageRecord(domain.Refs(entry.Inputs))

	promote := []domain.Key{res.RuleKey}
	if res.InputBasedKey.IsZero() {
		if ibk, err := s.keys.InputBasedRuleKey(unit.ID, s); err == nil {
			res.InputBasedKey = ibk
		}
	}
	if !res.InputBasedKey.IsZero() {
		promote = append(promote, res.InputBasedKey)
	}
	r.write(ctx, res, promote...)
	return true, nil
}

// fetch reads the output stored under key. Gateway errors and undecodable
// blobs are misses; the returned error only explains the miss.
func (r *Resolver) fetch(ctx context.Context, key domain.Key) (*fetched, error) {
	blob, ok, err := r.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, err
	}

	art, err := codec.DecodeArtifact(blob)
	if err != nil {
		r.logger.Warn("ignoring undecodable artifact", "key", key.String(), "error", err.Error())
		return nil, nil
	}

	out := &fetched{blob: blob, artifact: art}
	meta, ok, err := r.cache.GetMetadata(ctx, key)
	if err != nil {
		r.logger.Debug("metadata unavailable", "key", key.String(), "error", err.Error())
	} else if ok {
		out.meta = meta
	}
	return out, nil
}

// accept fills res from a cache hit. The ABI and usage come from the stored
// metadata; without metadata they are rederived from the blob.
func (r *Resolver) accept(unit *domain.BuildUnit, res *UnitResult, out *fetched, outcome domain.BuildOutcome, tier domain.Tier) {
	res.Outcome = outcome
	res.Tier = tier
	res.Blob = out.blob
	res.Artifact = out.artifact
	res.OutputDigest = fingerprint.Output(out.blob)

	if out.meta != nil {
		res.Abi = out.meta.Abi
		res.Usage = out.meta.Usage
	}
	if res.Abi.IsZero() {
		derived, err := abi.Extract(unit.Capabilities, out.artifact, out.blob)
		if err != nil {
			r.logger.Debug("failed to derive abi", "unit", unit.ID.String(), "error", err.Error())
			return
		}
		res.Abi = derived
	}
}

func (r *Resolver) build(ctx context.Context, s *Session, unit *domain.BuildUnit, res *UnitResult) {
	res.Tier = domain.TierBuild

	upstream := unit.Upstream()
	deps := make(map[domain.UnitID]*domain.Artifact, len(upstream))
	for _, dep := range upstream {
		art, _ := s.Artifact(dep)
		deps[dep] = art
	}

	tracker := usage.NewTracker(deps)
	for _, proc := range unit.Processors {
		tracker.ReadAll(proc)
	}
	art, err := r.compiler.Compile(ctx, unit, tracker)
	record := tracker.Finish(err == nil)
	if err != nil {
		res.Outcome, res.Err = domain.OutcomeFailed, err
		return
	}

	blob, err := codec.EncodeArtifact(art)
	if err != nil {
		res.Outcome, res.Err = domain.OutcomeFailed, zerr.Wrap(err, domain.ErrCompileFailure.Error())
		return
	}
	abiKey, err := abi.Extract(unit.Capabilities, art, blob)
	if err != nil {
		res.Outcome, res.Err = domain.OutcomeFailed, zerr.Wrap(err, domain.ErrCompileFailure.Error())
		return
	}

	res.Outcome = domain.OutcomeBuiltLocally
	res.Blob = blob
	res.Artifact = art
	res.Abi = abiKey
	res.OutputDigest = fingerprint.Output(blob)
	res.Usage = record

	if !r.opts.WriteCache {
		return
	}

	keys := []domain.Key{res.RuleKey}
	if ibk, err := s.keys.InputBasedRuleKey(unit.ID, s); err == nil {
		res.InputBasedKey = ibk
		keys = append(keys, ibk)
	}

	var used []domain.EntryFingerprint
	if unit.Capabilities.SupportsDepFile && record != nil {
		used = fingerprint.Current(s, record.Refs)
		if dfk, err := s.keys.DepFileRuleKey(unit.ID, used); err == nil {
			res.DepFileKey = dfk
			keys = append(keys, dfk)
		}
	}

	r.write(ctx, res, keys...)

	if !res.DepFileKey.IsZero() {
		r.appendManifest(ctx, s, unit, used, res.DepFileKey)
	}
}

func (r *Resolver) appendManifest(
	ctx context.Context,
	s *Session,
	unit *domain.BuildUnit,
	used []domain.EntryFingerprint,
	outputKey domain.Key,
) {
	manifestKey, err := s.keys.ManifestKey(unit.ID)
	if err != nil {
		return
	}
	if err := r.manifests.Put(ctx, manifestKey, unit.ID, used, outputKey); err != nil {
		r.logger.Debug("failed to update manifest", "unit", unit.ID.String(), "error", err.Error())
	}
}

// write stores the output of res under every key. Failed writes only cost
// future hits, so they are logged and otherwise ignored.
func (r *Resolver) write(ctx context.Context, res *UnitResult, keys ...domain.Key) {
	if !r.opts.WriteCache {
		return
	}

	meta := &domain.Metadata{
		Unit:          res.Unit,
		RuleKey:       res.RuleKey,
		InputBasedKey: res.InputBasedKey,
		DepFileKey:    res.DepFileKey,
		Abi:           res.Abi,
		OutputDigest:  res.OutputDigest,
		Usage:         res.Usage,
		Outcome:       res.Outcome,
		BuiltAt:       r.now().UnixNano(),
	}
	for _, key := range keys {
		if err := r.cache.Put(ctx, key, res.Blob, meta); err != nil {
			r.logger.Debug("cache write failed", "unit", res.Unit.String(), "key", key.Short(), "error", err.Error())
		}
	}
}
