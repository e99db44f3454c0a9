package domain

import (
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// EntryKind distinguishes compiled code from resources inside an artifact.
type EntryKind string

const (
	// EntryCode is a compiled entry with an API surface.
	EntryCode EntryKind = "code"
	// EntryResource is an opaque resource copied or processed into the output.
	EntryResource EntryKind = "resource"
)

// Visibility is the access level of a surface member.
type Visibility string

const (
	// VisibilityPublic members are visible to every dependent.
	VisibilityPublic Visibility = "public"
	// VisibilityProtected members are visible to subtypes.
	VisibilityProtected Visibility = "protected"
	// VisibilityPackage members are visible within the declaring package.
	VisibilityPackage Visibility = "package"
	// VisibilityPrivate members are never part of the ABI.
	VisibilityPrivate Visibility = "private"
)

// Member is a declared member of a code entry.
type Member struct {
	Kind       string     `cbor:"kind" yaml:"kind"`
	Name       string     `cbor:"name" yaml:"name"`
	Signature  string     `cbor:"signature,omitempty" yaml:"signature"`
	Visibility Visibility `cbor:"visibility" yaml:"visibility"`
	// Constant holds the value of an inlinable constant. Dependents may have
	// the value baked into their output, so it is part of the ABI.
	Constant string `cbor:"constant,omitempty" yaml:"constant"`
}

// Surface is the declared API of a code entry.
type Surface struct {
	Members []Member `cbor:"members" yaml:"members"`
}

// Entry is a single named item in an artifact.
type Entry struct {
	Name    string    `cbor:"name"`
	Kind    EntryKind `cbor:"kind"`
	Surface *Surface  `cbor:"surface,omitempty"`
	Data    []byte    `cbor:"data"`
}

// Artifact is the output of building a unit. Entries are kept sorted by name.
type Artifact struct {
	Entries []Entry `cbor:"entries"`
}

// NewArtifact sorts the entries and rejects duplicate names.
func NewArtifact(entries []Entry) (*Artifact, error) {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b Entry) int {
		return strings.Compare(a.Name, b.Name)
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Name == sorted[i-1].Name {
			return nil, zerr.With(ErrDuplicateEntry, "entry", sorted[i].Name)
		}
	}
	return &Artifact{Entries: sorted}, nil
}

// Entry looks up an entry by name.
func (a *Artifact) Entry(name string) (*Entry, bool) {
	i, found := slices.BinarySearchFunc(a.Entries, name, func(e Entry, n string) int {
		return strings.Compare(e.Name, n)
	})
	if !found {
		return nil, false
	}
	return &a.Entries[i], true
}

// Names returns the entry names in order.
func (a *Artifact) Names() []string {
	names := make([]string, len(a.Entries))
	for i := range a.Entries {
		names[i] = a.Entries[i].Name
	}
	return names
}
