// Package domain contains the core domain models of the reuse engine: build
// units, their dependency graph, keys, artifacts, usage records and manifests.
package domain

import (
	"iter"
	"slices"

	"go.trai.ch/zerr"
)

// Graph represents the dependency graph of build units.
// The graph provider builds it; the engine only reads it after Validate.
type Graph struct {
	root           string
	units          map[UnitID]*BuildUnit
	executionOrder []UnitID
	index          map[UnitID]int
	dependents     map[UnitID][]UnitID
}

// NewGraph creates a new empty Graph.
func NewGraph() *Graph {
	return &Graph{
		units: make(map[UnitID]*BuildUnit),
	}
}

// SetRoot sets the workspace root directory.
func (g *Graph) SetRoot(root string) {
	g.root = root
}

// Root returns the workspace root directory.
func (g *Graph) Root() string {
	return g.root
}

// AddUnit adds a unit to the graph.
// It returns an error if a unit with the same identity already exists.
// Adding a unit invalidates a previous Validate.
func (g *Graph) AddUnit(u *BuildUnit) error {
	if _, exists := g.units[u.ID]; exists {
		return zerr.With(ErrUnitAlreadyExists, "unit", u.ID.String())
	}
	g.units[u.ID] = u
	g.executionOrder = nil
	g.index = nil
	g.dependents = nil
	return nil
}

// Validate checks that every edge resolves and that the graph is acyclic.
// It populates the topological order used by Walk and Index. The depth-first
// search runs on an explicit stack.
func (g *Graph) Validate() error {
	type frame struct {
		id   UnitID
		ups  []UnitID
		next int
	}

	order := make([]UnitID, 0, len(g.units))
	visited := make(map[UnitID]int, len(g.units)) // 0: unvisited, 1: visiting, 2: visited
	var stack []frame

	push := func(id UnitID) {
		visited[id] = 1
		stack = append(stack, frame{id: id, ups: g.units[id].Upstream()})
	}

	// Sorted roots keep Walk deterministic across processes.
	for _, root := range g.sortedIDs() {
		if visited[root] != 0 {
			continue
		}
		push(root)

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next == len(top.ups) {
				visited[top.id] = 2
				order = append(order, top.id)
				stack = stack[:len(stack)-1]
				continue
			}

			u := top.id
			dep := top.ups[top.next]
			top.next++

			if _, exists := g.units[dep]; !exists {
				return zerr.With(zerr.With(ErrMissingDependency, "unit", u.String()), "dependency", dep.String())
			}
			switch visited[dep] {
			case 1:
				path := make([]UnitID, len(stack))
				for i := range stack {
					path[i] = stack[i].id
				}
				return g.buildCycleError(path, dep)
			case 0:
				push(dep)
			}
		}
	}

	index := make(map[UnitID]int, len(order))
	dependents := make(map[UnitID][]UnitID, len(order))
	for i, id := range order {
		index[id] = i
		for _, dep := range g.units[id].Upstream() {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	g.executionOrder = order
	g.index = index
	g.dependents = dependents
	return nil
}

// Validated reports whether Validate succeeded since the last mutation.
func (g *Graph) Validated() bool {
	return g.index != nil
}

// buildCycleError constructs an error with cycle path metadata.
func (g *Graph) buildCycleError(path []UnitID, dep UnitID) error {
	cyclePath := ""
	startIdx := slices.Index(path, dep)
	for i := startIdx; i < len(path); i++ {
		cyclePath += path[i].String() + " -> "
	}
	cyclePath += dep.String()
	return zerr.With(ErrCycleDetected, "cycle", cyclePath)
}

func (g *Graph) sortedIDs() []UnitID {
	ids := make([]UnitID, 0, len(g.units))
	for id := range g.units {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, UnitID.Compare)
	return ids
}

// Walk returns an iterator that yields units in topological order,
// dependencies first. It assumes Validate() has been called and returned nil.
func (g *Graph) Walk() iter.Seq[*BuildUnit] {
	return func(yield func(*BuildUnit) bool) {
		for _, id := range g.executionOrder {
			if !yield(g.units[id]) {
				return
			}
		}
	}
}

// GetUnit returns the unit with the given identity.
func (g *Graph) GetUnit(id UnitID) (*BuildUnit, bool) {
	u, ok := g.units[id]
	return u, ok
}

// UnitCount returns the number of units in the graph.
func (g *Graph) UnitCount() int {
	return len(g.units)
}

// Index returns the position of the unit in topological order.
func (g *Graph) Index(id UnitID) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// Dependents returns the units that list id as a dependency or processor.
func (g *Graph) Dependents(id UnitID) []UnitID {
	return g.dependents[id]
}

// Closure returns the targets and everything they transitively depend on,
// in topological order.
func (g *Graph) Closure(targets []UnitID) ([]UnitID, error) {
	if !g.Validated() {
		return nil, ErrGraphNotValidated
	}

	include := make(map[UnitID]bool, len(g.units))
	queue := make([]UnitID, 0, len(targets))
	for _, t := range targets {
		if _, ok := g.units[t]; !ok {
			return nil, zerr.With(ErrUnitNotFound, "unit", t.String())
		}
		if !include[t] {
			include[t] = true
			queue = append(queue, t)
		}
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, dep := range g.units[current].Upstream() {
			if !include[dep] {
				include[dep] = true
				queue = append(queue, dep)
			}
		}
	}

	closure := make([]UnitID, 0, len(include))
	for _, id := range g.executionOrder {
		if include[id] {
			closure = append(closure, id)
		}
	}
	return closure, nil
}

// IDs returns every unit identity in topological order.
func (g *Graph) IDs() []UnitID {
	return slices.Clone(g.executionOrder)
}
