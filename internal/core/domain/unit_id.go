package domain

import (
	"cmp"
	"unique"
)

// UnitID is the interned identity of a build unit.
// Identities are compared by handle, so equality is a pointer comparison.
type UnitID struct {
	h unique.Handle[string]
}

// NewUnitID creates a new UnitID from a name.
func NewUnitID(name string) UnitID {
	return UnitID{h: unique.Make(name)}
}

// NewUnitIDs converts a list of names into identities, preserving order.
func NewUnitIDs(names []string) []UnitID {
	res := make([]UnitID, len(names))
	for i, name := range names {
		res[i] = NewUnitID(name)
	}
	return res
}

// String returns the unit name.
func (id UnitID) String() string {
	var zero unique.Handle[string]
	if id.h == zero {
		return ""
	}
	return id.h.Value()
}

// IsZero reports whether the identity was never set.
func (id UnitID) IsZero() bool {
	var zero unique.Handle[string]
	return id.h == zero
}

// Compare orders identities by name.
func (id UnitID) Compare(other UnitID) int {
	return cmp.Compare(id.String(), other.String())
}

// MarshalText implements encoding.TextMarshaler.
func (id UnitID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *UnitID) UnmarshalText(text []byte) error {
	id.h = unique.Make(string(text))
	return nil
}
