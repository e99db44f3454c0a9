package domain

import (
	"encoding/hex"

	"go.trai.ch/zerr"
)

// KeySize is the length in bytes of every fingerprint produced by the engine.
const KeySize = 32

// Key is a fixed-length BLAKE3 digest. It addresses cached artifacts and
// identifies ABI surfaces, dependency entries and manifests.
type Key [KeySize]byte

// String returns the lowercase hex encoding of the key.
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// Short returns an abbreviated form for log lines.
func (k Key) Short() string {
	return hex.EncodeToString(k[:6])
}

// IsZero reports whether the key is unset.
func (k Key) IsZero() bool {
	return k == Key{}
}

// MarshalText implements encoding.TextMarshaler.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKey decodes a hex key produced by Key.String.
func ParseKey(s string) (Key, error) {
	var k Key
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return k, zerr.With(zerr.Wrap(err, ErrInvalidKey.Error()), "key", s)
	}
	if len(decoded) != KeySize {
		return k, zerr.With(zerr.With(ErrInvalidKey, "key", s), "length", len(decoded))
	}
	copy(k[:], decoded)
	return k, nil
}
