package fingerprint

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"
	"go.trai.ch/reuse/internal/core/domain"
)

// FormatVersion is mixed into every key. Bump it when the key layout changes.
const FormatVersion = "reuse/1"

type domainKey [domain.KeySize]byte

func newDomainKey(label string) domainKey {
	var k domainKey
	copy(k[:], "reuse.key."+label)
	return k
}

var (
	ruleDomain       = newDomainKey("rule")
	inputBasedDomain = newDomainKey("input")
	depFileDomain    = newDomainKey("depfile")
	manifestDomain   = newDomainKey("manifest")
	entryDomain      = newDomainKey("entry")
	outputDomain     = newDomainKey("output")
)

// keyBuilder feeds labelled, length-prefixed fields into a keyed BLAKE3
// hasher. The framing makes the encoding injective: no two field sequences
// produce the same byte stream. When log is set, every field is also recorded
// in human-readable form.
type keyBuilder struct {
	h   *blake3.Hasher
	log *strings.Builder
	buf [8]byte
}

func newKeyBuilder(d domainKey, explain bool) *keyBuilder {
	// NewKeyed only fails for keys that are not 32 bytes long.
	h, err := blake3.NewKeyed(d[:])
	if err != nil {
		panic("fingerprint: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	b := &keyBuilder{h: h}
	if explain {
		b.log = &strings.Builder{}
	}
	return b
}

func (b *keyBuilder) writeLen(n int) {
	binary.BigEndian.PutUint64(b.buf[:], uint64(n))
	_, _ = b.h.Write(b.buf[:])
}

func (b *keyBuilder) field(label string, value []byte, display string) {
	b.writeLen(len(label))
	_, _ = b.h.Write([]byte(label))
	b.writeLen(len(value))
	_, _ = b.h.Write(value)
	if b.log != nil {
		fmt.Fprintf(b.log, "%s: %s\n", label, display)
	}
}

func (b *keyBuilder) str(label, value string) {
	b.field(label, []byte(value), strconv.Quote(value))
}

func (b *keyBuilder) key(label string, k domain.Key) {
	b.field(label, k[:], k.String())
}

func (b *keyBuilder) count(label string, n int) {
	var v [8]byte
	binary.BigEndian.PutUint64(v[:], uint64(n))
	b.field(label, v[:], strconv.Itoa(n))
}

func (b *keyBuilder) strs(label string, values []string) {
	b.count(label, len(values))
	for i, v := range values {
		b.str(indexed(label, i), v)
	}
}

func (b *keyBuilder) bytes(label string, data []byte) {
	b.field(label, data, fmt.Sprintf("%d bytes", len(data)))
}

func (b *keyBuilder) sum() domain.Key {
	var k domain.Key
	copy(k[:], b.h.Sum(nil))
	return k
}

func (b *keyBuilder) explanation() string {
	if b.log == nil {
		return ""
	}
	return b.log.String()
}

func indexed(label string, i int) string {
	return label + "[" + strconv.Itoa(i) + "]"
}
