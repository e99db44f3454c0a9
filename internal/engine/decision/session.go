package decision

import (
	"slices"
	"sync"
	"time"

	"go.trai.ch/reuse/internal/core/domain"
	"go.trai.ch/reuse/internal/engine/fingerprint"
)

var (
	_ fingerprint.DepFacts    = (*Session)(nil)
	_ fingerprint.EntrySource = (*Session)(nil)
)

// UnitResult is the terminal state of one unit in an invocation.
type UnitResult struct {
	Unit    domain.UnitID
	Outcome domain.BuildOutcome
	Tier    domain.Tier

	RuleKey       domain.Key
	InputBasedKey domain.Key
	DepFileKey    domain.Key
	Abi           domain.Key
	OutputDigest  domain.Key

	// Blob is the encoded Artifact.
	Blob     []byte
	Artifact *domain.Artifact
	Usage    *domain.UsageRecord

	Elapsed time.Duration
	// Err is set for failed units: the compile failure, the dependency
	// failure, or the context error of an aborted resolution.
	Err error
}

// Succeeded reports whether the unit produced an output.
func (r *UnitResult) Succeeded() bool {
	return r != nil && r.Err == nil && r.Outcome.Succeeded()
}

type future struct {
	done   chan struct{}
	result *UnitResult
}

func (f *future) resolved() (*UnitResult, bool) {
	select {
	case <-f.done:
		return f.result, true
	default:
		return nil, false
	}
}

// Session is the state of one invocation: the keys of the graph, the
// in-flight and finished resolutions, and the build log. Sessions are never
// shared between invocations.
type Session struct {
	graph *domain.Graph
	keys  *fingerprint.Engine

	mu      sync.Mutex
	futures map[domain.UnitID]*future

	logMu sync.Mutex
	log   []domain.OutcomeRecord
}

// NewSession creates a session over a validated graph.
func NewSession(graph *domain.Graph, keys *fingerprint.Engine) *Session {
	return &Session{
		graph:   graph,
		keys:    keys,
		futures: make(map[domain.UnitID]*future, graph.UnitCount()),
	}
}

// Graph returns the graph the session resolves.
func (s *Session) Graph() *domain.Graph {
	return s.graph
}

// Keys returns the fingerprint engine of the session.
func (s *Session) Keys() *fingerprint.Engine {
	return s.keys
}

// claim returns the future of a unit. The boolean is true for the caller
// that registered it and must resolve it.
func (s *Session) claim(id domain.UnitID) (*future, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.futures[id]; ok {
		return f, false
	}
	f := &future{done: make(chan struct{})}
	s.futures[id] = f
	return f, true
}

func (s *Session) claimed(id domain.UnitID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.futures[id]
	return ok
}

func (s *Session) complete(f *future, res *UnitResult) {
	f.result = res
	close(f.done)
}

// Result returns the terminal result of a unit, if it has one.
func (s *Session) Result(id domain.UnitID) (*UnitResult, bool) {
	s.mu.Lock()
	f, ok := s.futures[id]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	return f.resolved()
}

func (s *Session) succeeded(id domain.UnitID) (*UnitResult, bool) {
	res, ok := s.Result(id)
	if !ok || !res.Succeeded() {
		return nil, false
	}
	return res, true
}

// Abi implements fingerprint.DepFacts.
func (s *Session) Abi(id domain.UnitID) (domain.Key, bool) {
	res, ok := s.succeeded(id)
	if !ok || res.Abi.IsZero() {
		return domain.Key{}, false
	}
	return res.Abi, true
}

// OutputDigest implements fingerprint.DepFacts.
func (s *Session) OutputDigest(id domain.UnitID) (domain.Key, bool) {
	res, ok := s.succeeded(id)
	if !ok {
		return domain.Key{}, false
	}
	return res.OutputDigest, true
}

// Artifact implements fingerprint.EntrySource.
func (s *Session) Artifact(id domain.UnitID) (*domain.Artifact, bool) {
	res, ok := s.succeeded(id)
	if !ok {
		return nil, false
	}
	return res.Artifact, true
}

func (s *Session) record(rec domain.OutcomeRecord) {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	s.log = append(s.log, rec)
}

// Log returns the outcome records in the order units finished.
func (s *Session) Log() []domain.OutcomeRecord {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	return slices.Clone(s.log)
}
