package fingerprint

import (
	"go.trai.ch/reuse/internal/core/domain"
)

// Entry fingerprints the bytes of one artifact entry: its name, kind,
// declared surface and data.
func Entry(e *domain.Entry) domain.Key {
	b := newKeyBuilder(entryDomain, false)
	b.str("name", e.Name)
	b.str("kind", string(e.Kind))
	if e.Surface != nil {
		b.count("member", len(e.Surface.Members))
		for i, m := range e.Surface.Members {
			prefix := indexed("member", i)
			b.str(prefix+".kind", m.Kind)
			b.str(prefix+".name", m.Name)
			b.str(prefix+".signature", m.Signature)
			b.str(prefix+".visibility", string(m.Visibility))
			b.str(prefix+".constant", m.Constant)
		}
	}
	b.bytes("data", e.Data)
	return b.sum()
}

// AbsentEntry is the fingerprint recorded for an entry a build looked for but
// did not find. It never equals the fingerprint of a present entry.
func AbsentEntry(name string) domain.Key {
	b := newKeyBuilder(entryDomain, false)
	b.str("absent", name)
	return b.sum()
}

// Output is the content digest of an encoded output blob.
func Output(blob []byte) domain.Key {
	b := newKeyBuilder(outputDomain, false)
	b.bytes("blob", blob)
	return b.sum()
}

// EntrySource returns the current outputs of resolved dependencies.
type EntrySource interface {
	// Artifact returns the current output of a resolved unit.
	Artifact(id domain.UnitID) (*domain.Artifact, bool)
}

// Current fingerprints the given refs against the current dependency outputs.
// A ref whose dependency has no output, or whose entry is missing, gets the
// absent fingerprint.
func Current(src EntrySource, refs []domain.EntryRef) []domain.EntryFingerprint {
	fps := make([]domain.EntryFingerprint, len(refs))
	for i, ref := range refs {
		fps[i] = domain.EntryFingerprint{EntryRef: ref, Fingerprint: AbsentEntry(ref.Entry)}
		art, ok := src.Artifact(ref.Dep)
		if !ok {
			continue
		}
		if entry, ok := art.Entry(ref.Entry); ok {
			fps[i].Fingerprint = Entry(entry)
		}
	}
	domain.SortFingerprints(fps)
	return fps
}
