// Package manifest stores, per unit, the sets of dependency entries earlier
// builds used together with the key of the output each produced.
//
// A manifest blob is shared by every process using the same cache backend.
// Writers read, merge and replace the blob; two racing writers may lose one
// another's update. That is acceptable: a lookup only needs the entries that
// are present to be valid, never the set to be complete.
package manifest

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"go.trai.ch/reuse/internal/core/codec"
	"go.trai.ch/reuse/internal/core/domain"
	"go.trai.ch/reuse/internal/core/ports"
	"go.trai.ch/reuse/internal/engine/fingerprint"
	"go.trai.ch/zerr"
)

// Options configures a Store.
type Options struct {
	// Capacity is the maximum number of entries kept per manifest.
	Capacity int
	// Now returns the current time. It defaults to time.Now.
	Now func() time.Time
	// ReadOnly disables the match-time write-back of Lookup.
	ReadOnly bool
}

// Store reads and writes manifests through a blob store.
type Store struct {
	blobs    ports.BlobStore
	capacity int
	now      func() time.Time
	readOnly bool
	locks    sync.Map // domain.Key -> *sync.Mutex
}

// New creates a Store.
func New(blobs ports.BlobStore, opts Options) *Store {
	if opts.Capacity <= 0 {
		opts.Capacity = domain.DefaultManifestCapacity
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		blobs:    blobs,
		capacity: opts.Capacity,
		now:      opts.Now,
		readOnly: opts.ReadOnly,
	}
}

// BlobName returns the blob name of the manifest stored under key.
func BlobName(key domain.Key) string {
	return "manifest/" + key.String()
}

// Load returns the manifest stored under key, merged and trimmed.
// Returns nil, nil if none is stored.
func (s *Store) Load(ctx context.Context, key domain.Key) (*domain.Manifest, error) {
	data, ok, err := s.read(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	m, err := s.decode(data)
	if err != nil {
		return nil, zerr.With(err, "manifest", key.String())
	}
	return m, nil
}

func (s *Store) read(ctx context.Context, key domain.Key) ([]byte, bool, error) {
	data, ok, err := s.blobs.Get(ctx, BlobName(key))
	if err != nil {
		return nil, false, zerr.With(errors.Join(domain.ErrCacheUnavailable, err), "manifest", key.String())
	}
	return data, ok, nil
}

func (s *Store) decode(data []byte) (*domain.Manifest, error) {
	var m domain.Manifest
	if err := codec.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	s.normalize(&m)
	return &m, nil
}

// Put records that building with the given used-entry fingerprints produced
// the output stored under outputKey. Every distinct fingerprint set is its
// own entry, so the outputs of earlier dependency states stay reachable.
// Recording an identical set again refreshes that entry. Beyond capacity the
// least recently matched entries are evicted.
func (s *Store) Put(
	ctx context.Context,
	key domain.Key,
	unit domain.UnitID,
	inputs []domain.EntryFingerprint,
	outputKey domain.Key,
) error {
	inputs = slices.Clone(inputs)
	domain.SortFingerprints(inputs)
	now := s.now().UnixNano()

	return s.update(ctx, key, unit, func(m *domain.Manifest) bool {
		entry := domain.ManifestEntry{
			Inputs:      inputs,
			OutputKey:   outputKey,
			Created:     now,
			LastMatched: now,
		}
		if i := m.Find(inputs); i >= 0 {
			m.Entries[i] = entry
		} else {
			m.Entries = append(m.Entries, entry)
		}
		return true
	})
}

// Lookup returns the first entry, most recently matched first, whose every
// fingerprint equals the current fingerprint of the same dependency entry.
// A hit refreshes the entry's match time on a best-effort basis.
func (s *Store) Lookup(
	ctx context.Context,
	key domain.Key,
	src fingerprint.EntrySource,
) (*domain.ManifestEntry, bool, error) {
	m, err := s.Load(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if m == nil {
		return nil, false, nil
	}

	for i := range m.Entries {
		entry := m.Entries[i]
		current := fingerprint.Current(src, domain.Refs(entry.Inputs))
		if !slices.Equal(current, entry.Inputs) {
			continue
		}

		s.touch(ctx, key, m.Unit, &entry)
		return &entry, true, nil
	}
	return nil, false, nil
}

func (s *Store) touch(ctx context.Context, key domain.Key, unit domain.UnitID, matched *domain.ManifestEntry) {
	now := s.now().UnixNano()
	matched.LastMatched = now
	if s.readOnly {
		return
	}
	// Losing this write only affects eviction order.
	_ = s.update(ctx, key, unit, func(m *domain.Manifest) bool {
		i := m.Find(matched.Inputs)
		if i < 0 || m.Entries[i].OutputKey != matched.OutputKey {
			return false
		}
		m.Entries[i].LastMatched = now
		return true
	})
}

// update runs a read-merge-write cycle. Writers within this process are
// serialized per manifest; mutate reports whether anything changed.
func (s *Store) update(
	ctx context.Context,
	key domain.Key,
	unit domain.UnitID,
	mutate func(m *domain.Manifest) bool,
) error {
	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	data, ok, err := s.read(ctx, key)
	if err != nil {
		return err
	}
	m := &domain.Manifest{Unit: unit}
	if ok {
		// An undecodable manifest is replaced rather than blocking new entries.
		if decoded, err := s.decode(data); err == nil {
			m = decoded
		}
	}

	if !mutate(m) {
		return nil
	}
	s.normalize(m)

	data, err = codec.Marshal(m)
	if err != nil {
		return err
	}
	if err := s.blobs.Put(ctx, BlobName(key), data); err != nil {
		return zerr.With(errors.Join(domain.ErrCacheUnavailable, err), "manifest", key.String())
	}
	return nil
}

// normalize merges entries with identical fingerprint sets, keeping the most
// recently matched one, and trims to capacity.
func (s *Store) normalize(m *domain.Manifest) {
	for i := range m.Entries {
		domain.SortFingerprints(m.Entries[i].Inputs)
	}
	m.Trim(0)

	merged := m.Entries[:0]
	for _, entry := range m.Entries {
		dup := slices.ContainsFunc(merged, func(e domain.ManifestEntry) bool {
			return domain.SameFingerprints(e.Inputs, entry.Inputs)
		})
		if !dup {
			merged = append(merged, entry)
		}
	}
	m.Entries = merged
	m.Trim(s.capacity)
}

func (s *Store) lockFor(key domain.Key) *sync.Mutex {
	lock, _ := s.locks.LoadOrStore(key, &sync.Mutex{})
	return lock.(*sync.Mutex)
}
