// Package usage records which entries of its dependencies' outputs a build
// actually read.
package usage

import (
	"sync"

	"go.trai.ch/reuse/internal/core/domain"
	"go.trai.ch/reuse/internal/core/ports"
)

var _ ports.DependencyReader = (*Tracker)(nil)

// Tracker serves dependency outputs to a compiler and observes every entry
// read, resources included. It is safe for concurrent use by a compiler that
// reads in parallel.
type Tracker struct {
	deps map[domain.UnitID]*domain.Artifact

	mu       sync.Mutex
	used     map[domain.EntryRef]struct{}
	finished bool
}

// NewTracker creates a tracker over the outputs of a unit's dependencies and processors.
func NewTracker(deps map[domain.UnitID]*domain.Artifact) *Tracker {
	return &Tracker{
		deps: deps,
		used: make(map[domain.EntryRef]struct{}),
	}
}

// Entry returns an entry of a dependency's output and records the read.
// Reads of entries that do not exist are recorded too: if the entry appears
// later, the build may have turned out differently.
func (t *Tracker) Entry(dep domain.UnitID, name string) (*domain.Entry, bool) {
	art, known := t.deps[dep]
	if !known {
		// Not an upstream unit of this build; nothing a key could cover.
		return nil, false
	}

	t.mu.Lock()
	if !t.finished {
		t.used[domain.EntryRef{Dep: dep, Entry: name}] = struct{}{}
	}
	t.mu.Unlock()

	return art.Entry(name)
}

// Entries lists the entry names of a dependency's output without recording usage.
func (t *Tracker) Entries(dep domain.UnitID) []string {
	art, ok := t.deps[dep]
	if !ok {
		return nil
	}
	return art.Names()
}

// ReadAll records a read of every entry of a dependency's output. Processor
// outputs feed a build as a whole.
func (t *Tracker) ReadAll(dep domain.UnitID) {
	art, ok := t.deps[dep]
	if !ok || art == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return
	}
	for _, name := range art.Names() {
		t.used[domain.EntryRef{Dep: dep, Entry: name}] = struct{}{}
	}
}

// Peek returns an entry of a dependency's output without recording the read.
func (t *Tracker) Peek(dep domain.UnitID, name string) (*domain.Entry, bool) {
	art, ok := t.deps[dep]
	if !ok {
		return nil, false
	}
	return art.Entry(name)
}

// Finish stops recording. It returns the usage record of a successful build;
// a failed build yields nil, since failures are never cached.
func (t *Tracker) Finish(success bool) *domain.UsageRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.finished = true
	if !success {
		return nil
	}

	refs := make([]domain.EntryRef, 0, len(t.used))
	for ref := range t.used {
		refs = append(refs, ref)
	}
	return domain.NewUsageRecord(refs)
}
