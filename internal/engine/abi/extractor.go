// Package abi derives the ABI fingerprint of a build output: a digest of the
// externally visible surface that dependents can observe, so that changes to
// bodies and private members do not invalidate them.
package abi

import (
	"cmp"
	"slices"

	"github.com/zeebo/blake3"
	"go.trai.ch/reuse/internal/core/codec"
	"go.trai.ch/reuse/internal/core/domain"
	"go.trai.ch/reuse/internal/engine/fingerprint"
	"go.trai.ch/zerr"
)

var surfaceDomain = [domain.KeySize]byte{
	'r', 'e', 'u', 's', 'e', '.', 'a', 'b', 'i', '.',
	's', 'u', 'r', 'f', 'a', 'c', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

type memberView struct {
	Kind       string `cbor:"k"`
	Name       string `cbor:"n"`
	Signature  string `cbor:"s"`
	Visibility string `cbor:"v"`
	Constant   string `cbor:"c"`
}

type entryView struct {
	Name    string       `cbor:"n"`
	Kind    string       `cbor:"k"`
	Members []memberView `cbor:"m"`
	// Content is set for entries whose bytes are their surface.
	Content []byte `cbor:"d"`
}

// Extract returns the ABI fingerprint of an output. blob must be the
// encoding of art. Units without ABI support get the content digest of the
// blob, so every change to them is visible to dependents.
func Extract(caps domain.Capabilities, art *domain.Artifact, blob []byte) (domain.Key, error) {
	if !caps.SupportsAbi {
		return fingerprint.Output(blob), nil
	}

	views := make([]entryView, 0, len(art.Entries))
	for i := range art.Entries {
		views = append(views, project(&art.Entries[i]))
	}
	slices.SortFunc(views, func(a, b entryView) int {
		return cmp.Compare(a.Name, b.Name)
	})

	data, err := codec.Marshal(views)
	if err != nil {
		return domain.Key{}, zerr.Wrap(err, "failed to serialize abi surface")
	}

	hasher, err := blake3.NewKeyed(surfaceDomain[:])
	if err != nil {
		panic("abi: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = hasher.Write(data)

	var k domain.Key
	copy(k[:], hasher.Sum(nil))
	return k, nil
}

// ExtractBlob decodes blob and extracts its ABI fingerprint.
func ExtractBlob(caps domain.Capabilities, blob []byte) (domain.Key, error) {
	if !caps.SupportsAbi {
		return fingerprint.Output(blob), nil
	}
	art, err := codec.DecodeArtifact(blob)
	if err != nil {
		return domain.Key{}, err
	}
	return Extract(caps, art, blob)
}

// project keeps what a dependent can observe of an entry. Resources and code
// entries without a declared surface are observed through their bytes.
func project(e *domain.Entry) entryView {
	view := entryView{Name: e.Name, Kind: string(e.Kind)}

	if e.Kind != domain.EntryCode || e.Surface == nil {
		digest := fingerprint.Entry(e)
		view.Content = digest[:]
		return view
	}

	members := make([]memberView, 0, len(e.Surface.Members))
	for _, m := range e.Surface.Members {
		if m.Visibility == domain.VisibilityPrivate {
			continue
		}
		members = append(members, memberView{
			Kind:       m.Kind,
			Name:       m.Name,
			Signature:  m.Signature,
			Visibility: string(m.Visibility),
			Constant:   m.Constant,
		})
	}
	slices.SortFunc(members, func(a, b memberView) int {
		return cmp.Or(
			cmp.Compare(a.Kind, b.Kind),
			cmp.Compare(a.Name, b.Name),
			cmp.Compare(a.Signature, b.Signature),
			cmp.Compare(a.Visibility, b.Visibility),
			cmp.Compare(a.Constant, b.Constant),
		)
	})
	view.Members = members
	return view
}
