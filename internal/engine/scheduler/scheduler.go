// Package scheduler resolves the units of a graph in dataflow order: a unit
// is dispatched once every upstream unit reached a terminal state.
package scheduler

import (
	"context"
	"errors"
	"runtime"

	"go.trai.ch/reuse/internal/core/domain"
	"go.trai.ch/reuse/internal/core/ports"
	"go.trai.ch/reuse/internal/engine/decision"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// Resolver resolves a single unit within a session.
type Resolver interface {
	Resolve(ctx context.Context, s *decision.Session, id domain.UnitID) *decision.UnitResult
}

// Scheduler manages the resolution of units in the dependency graph.
type Scheduler struct {
	resolver Resolver
	tracer   ports.Tracer
}

// NewScheduler creates a new Scheduler.
func NewScheduler(resolver Resolver, tracer ports.Tracer) *Scheduler {
	return &Scheduler{resolver: resolver, tracer: tracer}
}

// Report is the result of one run.
type Report struct {
	// Planned lists the units of the run in topological order.
	Planned []domain.UnitID
	Results map[domain.UnitID]*decision.UnitResult
	Log     []domain.OutcomeRecord
}

// Failed returns the failed units in topological order.
func (r *Report) Failed() []domain.UnitID {
	var failed []domain.UnitID
	for _, id := range r.Planned {
		if res, ok := r.Results[id]; ok && !res.Succeeded() {
			failed = append(failed, id)
		}
	}
	return failed
}

// Err returns an error wrapping domain.ErrBuildFailed if any unit failed.
func (r *Report) Err() error {
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}

	errs := make([]error, 0, len(failed)+1)
	errs = append(errs, domain.ErrBuildFailed)
	for _, id := range failed {
		if cause := r.Results[id].Err; cause != nil && !errors.Is(cause, domain.ErrDependencyFailure) {
			errs = append(errs, zerr.With(zerr.Wrap(cause, "unit failed"), "unit", id.String()))
		}
	}
	return errors.Join(errs...)
}

// Run resolves targets and everything they depend on. Without targets the
// whole graph is resolved. A parallelism below one means runtime.NumCPU().
//
// A failed unit fails its transitive dependents; unrelated units continue.
// When ctx is cancelled no further units are dispatched and Run returns the
// partial report together with the context error.
func (s *Scheduler) Run(
	ctx context.Context,
	session *decision.Session,
	targets []domain.UnitID,
	parallelism int,
) (*Report, error) {
	graph := session.Graph()
	planned := graph.IDs()
	if len(targets) > 0 {
		var err error
		planned, err = graph.Closure(targets)
		if err != nil {
			return nil, err
		}
	}
	if parallelism < 1 {
		parallelism = runtime.NumCPU()
	}

	ctx, span := s.tracer.Start(ctx, "build")
	defer span.End()

	names := make([]string, len(planned))
	for i, id := range planned {
		names[i] = id.String()
	}
	s.tracer.EmitPlan(ctx, names)

	state := newRunState(ctx, s.resolver, session, planned, parallelism)
	err := state.loop()

	report := &Report{
		Planned: planned,
		Results: state.results,
		Log:     session.Log(),
	}
	if err != nil {
		span.RecordError(err)
	}
	return report, err
}

type runState struct {
	ctx         context.Context
	resolver    Resolver
	session     *decision.Session
	parallelism int

	inDegree  map[domain.UnitID]int
	ready     []domain.UnitID
	active    int
	resultsCh chan *decision.UnitResult
	results   map[domain.UnitID]*decision.UnitResult
	group     errgroup.Group
}

func newRunState(
	ctx context.Context,
	resolver Resolver,
	session *decision.Session,
	planned []domain.UnitID,
	parallelism int,
) *runState {
	graph := session.Graph()
	included := make(map[domain.UnitID]bool, len(planned))
	for _, id := range planned {
		included[id] = true
	}

	state := &runState{
		ctx:         ctx,
		resolver:    resolver,
		session:     session,
		parallelism: parallelism,
		inDegree:    make(map[domain.UnitID]int, len(planned)),
		resultsCh:   make(chan *decision.UnitResult, len(planned)),
		results:     make(map[domain.UnitID]*decision.UnitResult, len(planned)),
	}
	state.group.SetLimit(parallelism)

	// planned is topological, so the ready queue starts in a stable order.
	for _, id := range planned {
		unit, _ := graph.GetUnit(id)
		degree := 0
		for _, dep := range unit.Upstream() {
			if included[dep] {
				degree++
			}
		}
		state.inDegree[id] = degree
		if degree == 0 {
			state.ready = append(state.ready, id)
		}
	}
	return state
}

func (state *runState) isDone() bool {
	return state.active == 0 && len(state.ready) == 0
}

func (state *runState) loop() error {
	for !state.isDone() {
		state.schedule()

		if state.ctx.Err() != nil && state.active == 0 {
			break
		}

		select {
		case res := <-state.resultsCh:
			state.handleResult(res)
		case <-state.ctx.Done():
			if state.active > 0 {
				state.handleResult(<-state.resultsCh)
			}
		}
	}

	_ = state.group.Wait()
	return state.ctx.Err()
}

func (state *runState) schedule() {
	for len(state.ready) > 0 && state.active < state.parallelism && state.ctx.Err() == nil {
		id := state.ready[0]
		state.ready = state.ready[1:]
		state.active++

		state.group.Go(func() error {
			state.resultsCh <- state.resolver.Resolve(state.ctx, state.session, id)
			return nil
		})
	}
}

func (state *runState) handleResult(res *decision.UnitResult) {
	state.active--

	// Aborted units are not terminal.
	if state.ctx.Err() != nil && !res.Succeeded() && errors.Is(res.Err, state.ctx.Err()) {
		return
	}
	state.results[res.Unit] = res

	// Dependents of failed units are released too; they record a
	// dependency failure without attempting any tier.
	for _, dep := range state.session.Graph().Dependents(res.Unit) {
		if _, ok := state.inDegree[dep]; !ok {
			continue
		}
		state.inDegree[dep]--
		if state.inDegree[dep] == 0 {
			state.ready = append(state.ready, dep)
		}
	}
}
