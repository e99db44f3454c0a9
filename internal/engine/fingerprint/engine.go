// Package fingerprint computes the key tiers of a build unit: the RuleKey
// over the full transitive structure, the InputBasedRuleKey over dependency
// ABIs, the DepFileRuleKey over the entries a build actually used, and the
// manifest key under which those observations are stored.
package fingerprint

import (
	"slices"
	"strconv"

	"go.trai.ch/reuse/internal/core/domain"
	"go.trai.ch/zerr"
)

// DepFacts resolves what the input-based key needs to know about upstream
// units once they reached a terminal state.
type DepFacts interface {
	// Abi returns the ABI fingerprint of a resolved dependency.
	Abi(id domain.UnitID) (domain.Key, bool)
	// OutputDigest returns the content digest of a resolved unit's output.
	OutputDigest(id domain.UnitID) (domain.Key, bool)
}

// Engine computes keys for the units of one validated graph.
// RuleKeys are computed once, in topological order, into an arena indexed
// by graph position; the Engine is read-only afterwards and safe for
// concurrent use.
type Engine struct {
	graph    *domain.Graph
	salt     string
	ruleKeys []domain.Key
}

// New computes the RuleKey of every unit in the graph.
func New(graph *domain.Graph, salt string) (*Engine, error) {
	if !graph.Validated() {
		return nil, domain.ErrGraphNotValidated
	}

	e := &Engine{
		graph:    graph,
		salt:     salt,
		ruleKeys: make([]domain.Key, graph.UnitCount()),
	}

	i := 0
	for unit := range graph.Walk() {
		b := newKeyBuilder(ruleDomain, false)
		e.writeRuleMaterial(b, unit)
		e.ruleKeys[i] = b.sum()
		i++
	}

	return e, nil
}

// RuleKey returns the memoized RuleKey of a unit.
func (e *Engine) RuleKey(id domain.UnitID) (domain.Key, error) {
	i, ok := e.graph.Index(id)
	if !ok {
		return domain.Key{}, zerr.With(domain.ErrUnitNotFound, "unit", id.String())
	}
	return e.ruleKeys[i], nil
}

// Explain returns the RuleKey material of a unit in readable form.
func (e *Engine) Explain(id domain.UnitID) (string, error) {
	unit, ok := e.graph.GetUnit(id)
	if !ok {
		return "", zerr.With(domain.ErrUnitNotFound, "unit", id.String())
	}
	b := newKeyBuilder(ruleDomain, true)
	e.writeRuleMaterial(b, unit)
	return b.explanation(), nil
}

// InputBasedRuleKey computes the key over own inputs and the ABI of each
// dependency. Processors contribute their output digest, since their code
// runs during the build. If any fact is unknown the error wraps
// domain.ErrMissingAbi and the tier does not apply.
func (e *Engine) InputBasedRuleKey(id domain.UnitID, facts DepFacts) (domain.Key, error) {
	unit, ok := e.graph.GetUnit(id)
	if !ok {
		return domain.Key{}, zerr.With(domain.ErrUnitNotFound, "unit", id.String())
	}

	b := newKeyBuilder(inputBasedDomain, false)
	e.writeOwnMaterial(b, unit)

	for i, dep := range unit.Deps {
		abi, ok := facts.Abi(dep)
		if !ok {
			return domain.Key{}, zerr.With(zerr.With(domain.ErrMissingAbi, "unit", id.String()), "dependency", dep.String())
		}
		b.key(indexed("dep", i)+".abi", abi)
	}
	for i, proc := range unit.Processors {
		digest, ok := facts.OutputDigest(proc)
		if !ok {
			return domain.Key{}, zerr.With(zerr.With(domain.ErrMissingAbi, "unit", id.String()), "processor", proc.String())
		}
		b.key(indexed("processor", i)+".output", digest)
	}

	return b.sum(), nil
}

// DepFileRuleKey computes the key over own inputs and the fingerprints of the
// dependency entries a previous build of this unit read.
func (e *Engine) DepFileRuleKey(id domain.UnitID, used []domain.EntryFingerprint) (domain.Key, error) {
	unit, ok := e.graph.GetUnit(id)
	if !ok {
		return domain.Key{}, zerr.With(domain.ErrUnitNotFound, "unit", id.String())
	}

	sorted := slices.Clone(used)
	domain.SortFingerprints(sorted)

	b := newKeyBuilder(depFileDomain, false)
	e.writeOwnMaterial(b, unit)
	writeUsed(b, sorted)
	return b.sum(), nil
}

// ManifestKey returns the address of the unit's manifest. It covers own
// inputs and configuration only, so any source change starts a new manifest.
func (e *Engine) ManifestKey(id domain.UnitID) (domain.Key, error) {
	unit, ok := e.graph.GetUnit(id)
	if !ok {
		return domain.Key{}, zerr.With(domain.ErrUnitNotFound, "unit", id.String())
	}

	b := newKeyBuilder(manifestDomain, false)
	e.writeOwnMaterial(b, unit)
	return b.sum(), nil
}

func (e *Engine) writeRuleMaterial(b *keyBuilder, unit *domain.BuildUnit) {
	e.writeOwnMaterial(b, unit)
	for i, dep := range unit.Deps {
		b.key(indexed("dep", i)+".rule_key", e.ruleKeys[e.mustIndex(dep)])
	}
	for i, proc := range unit.Processors {
		b.key(indexed("processor", i)+".rule_key", e.ruleKeys[e.mustIndex(proc)])
	}
}

// mustIndex is only called for upstream units, which Validate guarantees exist
// and precede their dependents in the arena.
func (e *Engine) mustIndex(id domain.UnitID) int {
	i, ok := e.graph.Index(id)
	if !ok {
		panic("fingerprint: unit missing from validated graph: " + id.String())
	}
	return i
}

// writeOwnMaterial writes everything about the unit itself: identity,
// sources, configuration and the names of its upstream units in order.
func (e *Engine) writeOwnMaterial(b *keyBuilder, unit *domain.BuildUnit) {
	b.str("format", FormatVersion)
	b.str("salt", e.salt)
	b.str("unit", unit.ID.String())
	b.str("kind", string(unit.Kind))
	b.str("capabilities", "abi="+strconv.FormatBool(unit.Capabilities.SupportsAbi)+
		",depfile="+strconv.FormatBool(unit.Capabilities.SupportsDepFile))

	b.count("src", len(unit.Inputs))
	for i, in := range unit.Inputs {
		b.str(indexed("src", i)+".path", in.Path)
		b.str(indexed("src", i)+".digest", in.Digest)
	}

	b.strs("flag", unit.Config.Flags)

	resources := unit.Config.SortedResources()
	b.count("resource", len(resources))
	for i, res := range resources {
		b.str(indexed("resource", i)+".path", res.Path)
		b.str(indexed("resource", i)+".digest", res.Digest)
	}

	keys := unit.Config.SortedPropertyKeys()
	b.count("property", len(keys))
	for _, k := range keys {
		b.str("property["+k+"]", unit.Config.Properties[k])
	}

	b.strs("command", unit.Command)

	deps := make([]string, len(unit.Deps))
	for i, dep := range unit.Deps {
		deps[i] = dep.String()
	}
	b.strs("dep", deps)

	procs := make([]string, len(unit.Processors))
	for i, proc := range unit.Processors {
		procs[i] = proc.String()
	}
	b.strs("processor", procs)
}

func writeUsed(b *keyBuilder, used []domain.EntryFingerprint) {
	b.count("used", len(used))
	for i, fp := range used {
		b.str(indexed("used", i), fp.EntryRef.String())
		b.key(indexed("used", i)+".fingerprint", fp.Fingerprint)
	}
}
