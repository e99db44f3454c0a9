package domain

import (
	"cmp"
	"slices"
)

// DefaultManifestCapacity is the number of entries a manifest keeps before evicting.
const DefaultManifestCapacity = 16

// ManifestEntry maps one observed set of used-entry fingerprints to the key
// of the output that was built from them.
type ManifestEntry struct {
	Inputs      []EntryFingerprint `cbor:"inputs"`
	OutputKey   Key                `cbor:"output"`
	Created     int64              `cbor:"created"`
	LastMatched int64              `cbor:"matched"`
}

// Manifest is the per-unit collection of entries stored in the cache.
type Manifest struct {
	Unit    UnitID          `cbor:"unit"`
	Entries []ManifestEntry `cbor:"entries"`
}

// Trim orders the entries by most recent match and drops the oldest beyond
// capacity. Ties are broken by creation time.
func (m *Manifest) Trim(capacity int) {
	slices.SortStableFunc(m.Entries, func(a, b ManifestEntry) int {
		return cmp.Or(cmp.Compare(b.LastMatched, a.LastMatched), cmp.Compare(b.Created, a.Created))
	})
	if capacity > 0 && len(m.Entries) > capacity {
		m.Entries = m.Entries[:capacity]
	}
}

// Find returns the index of the entry recorded for exactly the given
// fingerprints, or -1.
func (m *Manifest) Find(inputs []EntryFingerprint) int {
	return slices.IndexFunc(m.Entries, func(e ManifestEntry) bool {
		return SameFingerprints(e.Inputs, inputs)
	})
}
