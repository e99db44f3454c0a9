// Package codec provides the deterministic CBOR encoding used for every
// persisted value: artifacts, metadata, manifests and ABI surfaces.
//
// Core deterministic encoding (RFC 8949 section 4.2) makes equal values
// encode to equal bytes, so encodings can be hashed.
package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"go.trai.ch/reuse/internal/core/domain"
	"go.trai.ch/zerr"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// Keys and unit identities implement encoding.TextMarshaler and are
	// stored as their text form.
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
		DefaultMapType:  reflect.TypeOf(map[string]any(nil)),
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v with core deterministic encoding.
func Marshal(v any) ([]byte, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrEncodeFailed.Error())
	}
	return data, nil
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v any) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return zerr.Wrap(err, domain.ErrDecodeFailed.Error())
	}
	return nil
}

// EncodeArtifact returns the canonical blob for an artifact.
func EncodeArtifact(a *domain.Artifact) ([]byte, error) {
	return Marshal(a)
}

// DecodeArtifact parses an artifact blob. Entries are re-sorted, since
// lookups rely on name order, and duplicate names are rejected.
func DecodeArtifact(blob []byte) (*domain.Artifact, error) {
	var a domain.Artifact
	if err := Unmarshal(blob, &a); err != nil {
		return nil, err
	}
	art, err := domain.NewArtifact(a.Entries)
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrDecodeFailed.Error())
	}
	return art, nil
}

// Diagnose returns the CBOR diagnostic notation of data, for debugging.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
