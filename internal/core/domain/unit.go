package domain

import (
	"slices"
	"strings"
)

// UnitKind names the family a build unit belongs to. It selects the default
// capability set; the decision engine only ever inspects Capabilities.
type UnitKind string

const (
	// KindLibrary is a compiled library whose output has an API surface.
	KindLibrary UnitKind = "library"
	// KindResources is a resource-only unit. Its ABI is its content hash.
	KindResources UnitKind = "resources"
	// KindGenerated is a unit whose sources are produced by a generator.
	KindGenerated UnitKind = "generated"
)

// Valid reports whether the kind is known.
func (k UnitKind) Valid() bool {
	switch k {
	case KindLibrary, KindResources, KindGenerated:
		return true
	default:
		return false
	}
}

// Capabilities controls which reuse tiers apply to a unit.
type Capabilities struct {
	// SupportsAbi means the output has a visible surface narrower than its bytes.
	SupportsAbi bool `yaml:"abi"`
	// SupportsDepFile means real builds of the unit report which dependency entries they read.
	SupportsDepFile bool `yaml:"depfile"`
}

// DefaultCapabilities returns the capability set for a unit kind.
func DefaultCapabilities(kind UnitKind) Capabilities {
	switch kind {
	case KindLibrary:
		return Capabilities{SupportsAbi: true, SupportsDepFile: true}
	case KindGenerated:
		return Capabilities{SupportsAbi: true, SupportsDepFile: false}
	default:
		return Capabilities{}
	}
}

// Input is a named file together with the fingerprint of its contents.
// The digest is opaque to the engine; the graph provider decides its format.
type Input struct {
	Path   string
	Digest string
}

// UnitConfig is the configuration part of a unit's key material.
type UnitConfig struct {
	// Flags are passed to the compiler in order.
	Flags []string
	// Resources are unordered; they are hashed sorted by path.
	Resources []Input
	// Properties are unordered key/value settings.
	Properties map[string]string
}

// BuildUnit is one compilable target in the dependency graph.
// Units are immutable for the duration of an invocation.
type BuildUnit struct {
	ID           UnitID
	Kind         UnitKind
	Capabilities Capabilities
	// Deps are ordered; their order is part of the key (classpath order).
	Deps []UnitID
	// Processors are units whose full output is run during the build.
	// Their output digest, not their ABI, feeds the input-based key.
	Processors []UnitID
	// Inputs are the unit's own sources in canonical order.
	Inputs []Input
	Config UnitConfig
	// Command is the compiler invocation used by the shell compiler.
	Command []string
	// Dir is the absolute directory the unit is built in. Input paths are
	// relative to it. It is not part of any key.
	Dir string
}

// Upstream returns the declared dependencies followed by processors,
// without duplicates.
func (u *BuildUnit) Upstream() []UnitID {
	all := make([]UnitID, 0, len(u.Deps)+len(u.Processors))
	seen := make(map[UnitID]struct{}, cap(all))
	for _, id := range slices.Concat(u.Deps, u.Processors) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		all = append(all, id)
	}
	return all
}

// SortedResources returns the resources ordered by path.
func (c *UnitConfig) SortedResources() []Input {
	res := slices.Clone(c.Resources)
	slices.SortFunc(res, func(a, b Input) int {
		return strings.Compare(a.Path, b.Path)
	})
	return res
}

// SortedPropertyKeys returns the property keys in lexical order.
func (c *UnitConfig) SortedPropertyKeys() []string {
	keys := make([]string, 0, len(c.Properties))
	for k := range c.Properties {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
