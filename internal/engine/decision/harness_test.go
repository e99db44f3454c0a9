package decision_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.trai.ch/reuse/internal/adapters/blobstore"
	"go.trai.ch/reuse/internal/adapters/cache"
	"go.trai.ch/reuse/internal/adapters/telemetry"
	"go.trai.ch/reuse/internal/core/domain"
	"go.trai.ch/reuse/internal/core/ports"
	"go.trai.ch/reuse/internal/core/ports/mocks"
	"go.trai.ch/reuse/internal/engine/decision"
	"go.trai.ch/reuse/internal/engine/fingerprint"
	"go.trai.ch/reuse/internal/engine/manifest"
	"go.uber.org/mock/gomock"
)

// fakeCompiler produces configured outputs and reads configured entries of
// its dependencies.
type fakeCompiler struct {
	mu      sync.Mutex
	outputs map[string][]domain.Entry
	reads   map[string][]domain.EntryRef
	failing map[string]bool
	calls   map[string]int
}

func newFakeCompiler() *fakeCompiler {
	return &fakeCompiler{
		outputs: make(map[string][]domain.Entry),
		reads:   make(map[string][]domain.EntryRef),
		failing: make(map[string]bool),
		calls:   make(map[string]int),
	}
}

func (c *fakeCompiler) Compile(_ context.Context, unit *domain.BuildUnit, deps ports.DependencyReader) (*domain.Artifact, error) {
	name := unit.ID.String()

	c.mu.Lock()
	c.calls[name]++
	entries := slices.Clone(c.outputs[name])
	reads := slices.Clone(c.reads[name])
	failing := c.failing[name]
	c.mu.Unlock()

	for _, ref := range reads {
		deps.Entry(ref.Dep, ref.Entry)
	}
	if failing {
		return nil, errors.Join(domain.ErrCompileFailure, errors.New(name+".java:1: error: ';' expected"))
	}
	if entries == nil {
		entries = []domain.Entry{{Name: name, Kind: domain.EntryResource, Data: []byte(unit.Inputs[0].Digest)}}
	}
	return domain.NewArtifact(entries)
}

func (c *fakeCompiler) setOutput(unit string, entries ...domain.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outputs[unit] = entries
}

func (c *fakeCompiler) setReads(unit string, refs ...domain.EntryRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads[unit] = refs
}

func (c *fakeCompiler) setFailing(unit string, failing bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failing[unit] = failing
}

func (c *fakeCompiler) callCount(unit string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[unit]
}

// code returns a code entry with one public method.
func code(name, signature, body string) domain.Entry {
	return domain.Entry{
		Name: name,
		Kind: domain.EntryCode,
		Surface: &domain.Surface{Members: []domain.Member{
			{Kind: "method", Name: name, Signature: signature, Visibility: domain.VisibilityPublic},
		}},
		Data: []byte(signature + "{" + body + "}"),
	}
}

func ref(dep, entry string) domain.EntryRef {
	return domain.EntryRef{Dep: domain.NewUnitID(dep), Entry: entry}
}

// workspace persists a cache and a compiler across invocations, like a
// developer machine does between builds.
type workspace struct {
	t        *testing.T
	store    *blobstore.MemoryStore
	compiler *fakeCompiler
	logger   *mocks.MockLogger
	units    map[string]*domain.BuildUnit
	verify   bool
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	ctrl := gomock.NewController(t)
	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()
	logger.EXPECT().Info(gomock.Any(), gomock.Any()).AnyTimes()
	logger.EXPECT().Warn(gomock.Any(), gomock.Any()).AnyTimes()

	return &workspace{
		t:        t,
		store:    blobstore.NewMemoryStore(),
		compiler: newFakeCompiler(),
		logger:   logger,
		units:    make(map[string]*domain.BuildUnit),
	}
}

func (w *workspace) addUnit(name string, caps domain.Capabilities, deps ...string) *domain.BuildUnit {
	unit := &domain.BuildUnit{
		ID:           domain.NewUnitID(name),
		Kind:         domain.KindLibrary,
		Capabilities: caps,
		Deps:         domain.NewUnitIDs(deps),
		Inputs:       []domain.Input{{Path: name + ".java", Digest: name + "-v1"}},
	}
	w.units[name] = unit
	return unit
}

func (w *workspace) addLibrary(name string, deps ...string) *domain.BuildUnit {
	return w.addUnit(name, domain.DefaultCapabilities(domain.KindLibrary), deps...)
}

// edit changes the unit's source digest, which changes its own key material.
func (w *workspace) edit(name, digest string) {
	w.units[name].Inputs[0].Digest = digest
}

type invocation struct {
	session *decision.Session
	results map[string]*decision.UnitResult
}

func (inv *invocation) outcome(name string) domain.BuildOutcome {
	return inv.results[name].Outcome
}

func (w *workspace) resolver(opts decision.Options) *decision.Resolver {
	return decision.NewResolver(decision.Config{
		Cache:     cache.NewGateway(w.store, cache.Options{Compression: domain.CompressionNone, Verify: w.verify}, w.logger),
		Manifests: w.manifests(opts),
		Compiler:  w.compiler,
		Logger:    w.logger,
		Tracer:    telemetry.NewNoOpTracer(),
		Options:   opts,
	})
}

func (w *workspace) manifests(opts decision.Options) *manifest.Store {
	return manifest.New(w.store, manifest.Options{ReadOnly: !opts.WriteCache})
}

func (w *workspace) session() *decision.Session {
	w.t.Helper()
	g := domain.NewGraph()
	for _, unit := range w.units {
		clone := *unit
		clone.Inputs = slices.Clone(unit.Inputs)
		require.NoError(w.t, g.AddUnit(&clone))
	}
	require.NoError(w.t, g.Validate())

	keys, err := fingerprint.New(g, "")
	require.NoError(w.t, err)
	return decision.NewSession(g, keys)
}

func (w *workspace) runWith(opts decision.Options) *invocation {
	w.t.Helper()
	s := w.session()
	r := w.resolver(opts)

	inv := &invocation{session: s, results: make(map[string]*decision.UnitResult)}
	for _, id := range s.Graph().IDs() {
		inv.results[id.String()] = r.Resolve(context.Background(), s, id)
	}
	return inv
}

func (w *workspace) run() *invocation {
	w.t.Helper()
	return w.runWith(decision.OptionsFor(domain.CacheReadWrite, false))
}
