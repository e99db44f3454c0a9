package domain

import (
	"cmp"
	"slices"
	"strings"
)

// EntryRef names one entry of one dependency's output.
type EntryRef struct {
	Dep   UnitID `cbor:"dep" json:"dep"`
	Entry string `cbor:"entry" json:"entry"`
}

// Compare orders refs by dependency, then entry name.
func (r EntryRef) Compare(other EntryRef) int {
	return cmp.Or(r.Dep.Compare(other.Dep), strings.Compare(r.Entry, other.Entry))
}

// String returns "dep:entry".
func (r EntryRef) String() string {
	return r.Dep.String() + ":" + r.Entry
}

// UsageRecord is the set of dependency entries a real build read.
// Refs are sorted and unique.
type UsageRecord struct {
	Refs []EntryRef `cbor:"refs" json:"refs"`
}

// NewUsageRecord sorts and deduplicates the refs.
func NewUsageRecord(refs []EntryRef) *UsageRecord {
	sorted := slices.Clone(refs)
	slices.SortFunc(sorted, EntryRef.Compare)
	sorted = slices.CompactFunc(sorted, func(a, b EntryRef) bool {
		return a.Compare(b) == 0
	})
	return &UsageRecord{Refs: sorted}
}

// Deps returns the distinct dependencies referenced, in order.
func (u *UsageRecord) Deps() []UnitID {
	var deps []UnitID
	for _, ref := range u.Refs {
		if len(deps) == 0 || deps[len(deps)-1] != ref.Dep {
			deps = append(deps, ref.Dep)
		}
	}
	return deps
}

// EntryFingerprint pairs a dependency entry with the fingerprint of its bytes.
type EntryFingerprint struct {
	EntryRef
	Fingerprint Key `cbor:"fingerprint" json:"fingerprint"`
}

// SameFingerprints reports whether two sorted fingerprint lists cover the
// same entries at the same fingerprints.
func SameFingerprints(a, b []EntryFingerprint) bool {
	return slices.EqualFunc(a, b, func(x, y EntryFingerprint) bool {
		return x.EntryRef.Compare(y.EntryRef) == 0 && x.Fingerprint == y.Fingerprint
	})
}

// SortFingerprints orders fingerprints by their entry ref.
func SortFingerprints(fps []EntryFingerprint) {
	slices.SortFunc(fps, func(a, b EntryFingerprint) int {
		return a.EntryRef.Compare(b.EntryRef)
	})
}

// Refs returns the entry refs of the fingerprints.
func Refs(fps []EntryFingerprint) []EntryRef {
	refs := make([]EntryRef, len(fps))
	for i := range fps {
		refs[i] = fps[i].EntryRef
	}
	return refs
}
