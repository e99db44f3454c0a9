package domain_test

import (
	"slices"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/reuse/internal/core/domain"
	"go.trai.ch/zerr"
)

func unit(name string, deps ...string) *domain.BuildUnit {
	return &domain.BuildUnit{
		ID:   domain.NewUnitID(name),
		Kind: domain.KindLibrary,
		Deps: domain.NewUnitIDs(deps),
	}
}

func buildGraph(t *testing.T, units ...*domain.BuildUnit) *domain.Graph {
	t.Helper()
	g := domain.NewGraph()
	for _, u := range units {
		require.NoError(t, g.AddUnit(u))
	}
	require.NoError(t, g.Validate())
	return g
}

func names(ids []domain.UnitID) []string {
	res := make([]string, len(ids))
	for i, id := range ids {
		res[i] = id.String()
	}
	return res
}

func TestGraph_AddUnit(t *testing.T) {
	g := domain.NewGraph()
	require.NoError(t, g.AddUnit(unit("core")))

	err := g.AddUnit(unit("core"))
	require.Error(t, err)

	zErr, ok := err.(*zerr.Error)
	require.True(t, ok, "expected *zerr.Error, got %T", err)
	assert.Equal(t, "core", zErr.Metadata()["unit"])
}

func TestGraph_Validate_TopologicalOrder(t *testing.T) {
	g := buildGraph(t,
		unit("app", "util", "core"),
		unit("util", "core"),
		unit("core"),
	)

	order := names(g.IDs())
	assert.Equal(t, []string{"core", "util", "app"}, order)

	i, ok := g.Index(domain.NewUnitID("util"))
	require.True(t, ok)
	assert.Equal(t, 1, i)

	var walked []string
	for u := range g.Walk() {
		walked = append(walked, u.ID.String())
	}
	assert.Equal(t, order, walked)
}

func TestGraph_Validate_ProcessorsAreUpstream(t *testing.T) {
	app := unit("app")
	app.Processors = domain.NewUnitIDs([]string{"gen"})
	g := buildGraph(t, app, unit("gen"))

	assert.Equal(t, []string{"gen", "app"}, names(g.IDs()))
	assert.Equal(t, []string{"app"}, names(g.Dependents(domain.NewUnitID("gen"))))
}

func TestGraph_Validate_MissingDependency(t *testing.T) {
	g := domain.NewGraph()
	require.NoError(t, g.AddUnit(unit("app", "ghost")))

	err := g.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, domain.ErrMissingDependency.Error())
	assert.False(t, g.Validated())
}

func TestGraph_Validate_Cycle(t *testing.T) {
	g := domain.NewGraph()
	require.NoError(t, g.AddUnit(unit("a", "b")))
	require.NoError(t, g.AddUnit(unit("b", "c")))
	require.NoError(t, g.AddUnit(unit("c", "a")))

	err := g.Validate()
	require.Error(t, err)

	zErr, ok := err.(*zerr.Error)
	require.True(t, ok, "expected *zerr.Error, got %T", err)
	assert.Equal(t, "a -> b -> c -> a", zErr.Metadata()["cycle"])
}

func TestGraph_Validate_SelfCycle(t *testing.T) {
	g := domain.NewGraph()
	require.NoError(t, g.AddUnit(unit("a", "a")))

	err := g.Validate()
	require.Error(t, err)

	zErr, ok := err.(*zerr.Error)
	require.True(t, ok, "expected *zerr.Error, got %T", err)
	assert.Equal(t, "a -> a", zErr.Metadata()["cycle"])
}

func TestGraph_Validate_DeepChain(t *testing.T) {
	const depth = 100_000
	g := domain.NewGraph()
	require.NoError(t, g.AddUnit(unit("u0")))
	for i := 1; i < depth; i++ {
		require.NoError(t, g.AddUnit(unit("u"+strconv.Itoa(i), "u"+strconv.Itoa(i-1))))
	}
	require.NoError(t, g.Validate())

	for _, i := range []int{0, 1, depth / 2, depth - 1} {
		idx, ok := g.Index(domain.NewUnitID("u" + strconv.Itoa(i)))
		require.True(t, ok)
		assert.Equal(t, i, idx)
	}
}

func TestGraph_AddUnit_InvalidatesValidation(t *testing.T) {
	g := buildGraph(t, unit("core"))
	require.True(t, g.Validated())

	require.NoError(t, g.AddUnit(unit("app", "core")))
	assert.False(t, g.Validated())

	_, err := g.Closure(domain.NewUnitIDs([]string{"app"}))
	assert.ErrorContains(t, err, domain.ErrGraphNotValidated.Error())
}

func TestGraph_Closure(t *testing.T) {
	g := buildGraph(t,
		unit("app", "util"),
		unit("util", "core"),
		unit("core"),
		unit("tool"),
	)

	closure, err := g.Closure(domain.NewUnitIDs([]string{"app"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"core", "util", "app"}, names(closure))

	closure, err = g.Closure(domain.NewUnitIDs([]string{"tool", "core"}))
	require.NoError(t, err)
	assert.True(t, slices.Equal([]string{"core", "tool"}, names(closure)))

	_, err = g.Closure(domain.NewUnitIDs([]string{"missing"}))
	assert.ErrorContains(t, err, domain.ErrUnitNotFound.Error())
}

func TestBuildUnit_Upstream(t *testing.T) {
	u := unit("app", "core", "util")
	u.Processors = domain.NewUnitIDs([]string{"gen", "core"})

	assert.Equal(t, []string{"core", "util", "gen"}, names(u.Upstream()))
}
