// Package decision resolves build units through the ordered reuse tiers:
// exact RuleKey match, input-based match over dependency ABIs, manifest
// match over the entries a previous build used, and finally a real build.
package decision

import (
	"context"
	"errors"
	"slices"
	"time"

	"go.trai.ch/reuse/internal/core/domain"
	"go.trai.ch/reuse/internal/core/ports"
	"go.trai.ch/reuse/internal/engine/manifest"
	"go.trai.ch/zerr"
)

// Options controls which tiers are attempted and whether results are written back.
type Options struct {
	// NoCache skips every cache tier. Results are still written.
	NoCache bool
	// ReadCache enables the cache tiers.
	ReadCache bool
	// WriteCache enables writing outputs, metadata and manifests.
	WriteCache bool
}

// OptionsFor derives the options of a cache mode.
func OptionsFor(mode domain.CacheMode, noCache bool) Options {
	return Options{
		NoCache:    noCache,
		ReadCache:  mode.Reads(),
		WriteCache: mode.Writes(),
	}
}

func (o Options) readsCache() bool {
	return o.ReadCache && !o.NoCache
}

// Resolver runs the tier state machine for single units. It holds no
// per-invocation state; that lives in the Session.
type Resolver struct {
	cache     ports.CacheGateway
	manifests *manifest.Store
	compiler  ports.Compiler
	logger    ports.Logger
	tracer    ports.Tracer
	sink      ports.OutcomeSink
	opts      Options
	now       func() time.Time
}

// Config holds the collaborators of a Resolver.
type Config struct {
	Cache     ports.CacheGateway
	Manifests *manifest.Store
	Compiler  ports.Compiler
	Logger    ports.Logger
	Tracer    ports.Tracer
	// Sink is optional.
	Sink    ports.OutcomeSink
	Options Options
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewResolver creates a Resolver.
func NewResolver(cfg Config) *Resolver {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Resolver{
		cache:     cfg.Cache,
		manifests: cfg.Manifests,
		compiler:  cfg.Compiler,
		logger:    cfg.Logger,
		tracer:    cfg.Tracer,
		sink:      cfg.Sink,
		opts:      cfg.Options,
		now:       now,
	}
}

// Resolve returns the terminal result of a unit. Concurrent calls for the
// same unit share one attempt. Upstream units that have not been resolved
// yet are resolved first.
func (r *Resolver) Resolve(ctx context.Context, s *Session, id domain.UnitID) *UnitResult {
	f, leader := s.claim(id)
	if !leader {
		select {
		case <-f.done:
			return f.result
		case <-ctx.Done():
			return &UnitResult{Unit: id, Outcome: domain.OutcomeFailed, Tier: domain.TierNone, Err: ctx.Err()}
		}
	}

	res := r.resolve(ctx, s, id)
	s.complete(f, res)
	return res
}

func (r *Resolver) resolve(ctx context.Context, s *Session, id domain.UnitID) *UnitResult {
	start := r.now()
	res := &UnitResult{Unit: id, Tier: domain.TierNone}

	unit, ok := s.graph.GetUnit(id)
	if !ok {
		res.Outcome = domain.OutcomeFailed
		res.Err = zerr.Wrap(zerr.With(domain.ErrUnitNotFound, "unit", id.String()), domain.ErrConfiguration.Error())
		return r.finish(s, res, start)
	}

	ruleKey, err := s.keys.RuleKey(id)
	if err != nil {
		res.Outcome = domain.OutcomeFailed
		res.Err = zerr.Wrap(err, domain.ErrConfiguration.Error())
		return r.finish(s, res, start)
	}
	res.RuleKey = ruleKey

	r.claimUpstream(ctx, s, unit)
	for _, dep := range unit.Upstream() {
		depRes := r.Resolve(ctx, s, dep)
		if depRes.Succeeded() {
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			res.Outcome, res.Err = domain.OutcomeFailed, ctxErr
			return res
		}
		res.Outcome = domain.OutcomeFailed
		res.Err = zerr.With(zerr.With(domain.ErrDependencyFailure, "unit", id.String()), "dependency", dep.String())
		return r.finish(s, res, start)
	}

	ctx, span := r.tracer.Start(ctx, "resolve", ports.WithUnit(id.String()))
	defer span.End()

	if r.opts.readsCache() && r.resolveFromCache(ctx, s, unit, res) {
		span.SetAttribute("reuse.tier", string(res.Tier))
		return r.finish(s, res, start)
	}

	if err := ctx.Err(); err != nil {
		res.Outcome, res.Err = domain.OutcomeFailed, err
		return res
	}

	r.build(ctx, s, unit, res)
	if ctx.Err() != nil && !res.Succeeded() {
		res.Err = ctx.Err()
		return res
	}
	if res.Err != nil {
		span.RecordError(res.Err)
	}
	span.SetAttribute("reuse.tier", string(res.Tier))
	return r.finish(s, res, start)
}

// claimUpstream resolves the unclaimed part of the unit's closure in
// topological order. Each unit resolved here finds its own upstream already
// claimed, so resolution never nests deeper than one level.
func (r *Resolver) claimUpstream(ctx context.Context, s *Session, unit *domain.BuildUnit) {
	if !slices.ContainsFunc(unit.Upstream(), func(dep domain.UnitID) bool { return !s.claimed(dep) }) {
		return
	}
	closure, err := s.graph.Closure([]domain.UnitID{unit.ID})
	if err != nil {
		return
	}
	for _, id := range closure {
		if id != unit.ID && !s.claimed(id) {
			r.Resolve(ctx, s, id)
		}
	}
}

// resolveFromCache attempts the cache tiers in order, stopping at the first hit.
func (r *Resolver) resolveFromCache(ctx context.Context, s *Session, unit *domain.BuildUnit, res *UnitResult) bool {
	tiers := []struct {
		tier    domain.Tier
		attempt func(context.Context, *Session, *domain.BuildUnit, *UnitResult) (bool, error)
	}{
		{domain.TierExact, r.tryExact},
		{domain.TierInputBased, r.tryInputBased},
		{domain.TierManifest, r.tryManifest},
	}

	for _, t := range tiers {
		hit, err := t.attempt(ctx, s, unit, res)
		if hit {
			return true
		}
		r.logMiss(unit.ID, t.tier, err)
		if ctx.Err() != nil {
			return false
		}
	}
	return false
}

func (r *Resolver) logMiss(id domain.UnitID, tier domain.Tier, err error) {
	if err == nil {
		r.logger.Debug("tier miss", "unit", id.String(), "tier", string(tier))
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	r.logger.Debug("tier skipped", "unit", id.String(), "tier", string(tier), "reason", err.Error())
}

func (r *Resolver) finish(s *Session, res *UnitResult, start time.Time) *UnitResult {
	res.Elapsed = r.now().Sub(start)

	rec := domain.OutcomeRecord{
		Unit:    res.Unit,
		Outcome: res.Outcome,
		Tier:    res.Tier,
		Elapsed: res.Elapsed,
		RuleKey: res.RuleKey,
	}
	if res.Err != nil {
		rec.Cause = res.Err.Error()
	}

	s.record(rec)
	if r.sink != nil {
		r.sink.Record(rec)
	}
	return res
}
