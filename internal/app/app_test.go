package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/reuse/internal/adapters/cache"
	"go.trai.ch/reuse/internal/adapters/telemetry"
	"go.trai.ch/reuse/internal/app"
	"go.trai.ch/reuse/internal/core/domain"
	"go.trai.ch/reuse/internal/core/ports"
	"go.trai.ch/reuse/internal/core/ports/mocks"
	"go.trai.ch/reuse/internal/engine/fingerprint"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	root     string
	ws       *domain.Workspace
	loader   *mocks.MockGraphLoader
	compiler *mocks.MockCompiler
	logger   *mocks.MockLogger
	out      *bytes.Buffer
	app      *app.App
}

// newFixture sets up a workspace with app depending on core, backed by a
// real local cache under a temporary root.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	t.Setenv("NO_COLOR", "1")

	ctrl := gomock.NewController(t)
	root := t.TempDir()

	f := &fixture{
		root:     root,
		ws:       newWorkspace(t, root),
		loader:   mocks.NewMockGraphLoader(ctrl),
		compiler: mocks.NewMockCompiler(ctrl),
		logger:   mocks.NewMockLogger(ctrl),
		out:      new(bytes.Buffer),
	}
	f.loader.EXPECT().Load(root).Return(f.ws, nil).AnyTimes()
	f.logger.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()
	f.logger.EXPECT().Info(gomock.Any(), gomock.Any()).AnyTimes()
	f.logger.EXPECT().Warn(gomock.Any(), gomock.Any()).AnyTimes()

	f.app = app.New(
		f.loader,
		cache.NewProvider(f.logger),
		f.compiler,
		f.logger,
		telemetry.NewNoOpTracer(),
		telemetry.NewSummary(),
	).WithOutput(f.out).WithWorkingDir(root)
	return f
}

func newWorkspace(t *testing.T, root string) *domain.Workspace {
	t.Helper()
	g := domain.NewGraph()
	g.SetRoot(root)
	require.NoError(t, g.AddUnit(&domain.BuildUnit{
		ID:           domain.NewUnitID("core"),
		Kind:         domain.KindLibrary,
		Capabilities: domain.DefaultCapabilities(domain.KindLibrary),
		Inputs:       []domain.Input{{Path: "src/Core.java", Digest: "xxh64:01"}},
	}))
	require.NoError(t, g.AddUnit(&domain.BuildUnit{
		ID:           domain.NewUnitID("app"),
		Kind:         domain.KindLibrary,
		Capabilities: domain.DefaultCapabilities(domain.KindLibrary),
		Deps:         domain.NewUnitIDs([]string{"core"}),
		Inputs:       []domain.Input{{Path: "src/App.java", Digest: "xxh64:02"}},
	}))
	require.NoError(t, g.Validate())

	return &domain.Workspace{
		Root:  root,
		Graph: g,
		Cache: domain.DefaultCacheSettings(),
		Build: domain.BuildSettings{Parallelism: 2},
	}
}

// expectCompiles makes core produce one public method that app reads.
func (f *fixture) expectCompiles(times int) {
	f.compiler.EXPECT().Compile(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, unit *domain.BuildUnit, deps ports.DependencyReader) (*domain.Artifact, error) {
			if unit.ID.String() == "app" {
				_, ok := deps.Entry(domain.NewUnitID("core"), "Core")
				if !ok {
					return nil, errors.Join(domain.ErrCompileFailure, errors.New("Core not found"))
				}
				return domain.NewArtifact([]domain.Entry{{Name: "App", Kind: domain.EntryCode, Data: []byte("app")}})
			}
			return domain.NewArtifact([]domain.Entry{{
				Name: "Core",
				Kind: domain.EntryCode,
				Surface: &domain.Surface{Members: []domain.Member{
					{Kind: "method", Name: "run", Signature: "()V", Visibility: domain.VisibilityPublic},
				}},
				Data: []byte("core"),
			}})
		}).Times(times)
}

func TestApp_Build(t *testing.T) {
	f := newFixture(t)
	f.expectCompiles(2)

	require.NoError(t, f.app.Build(context.Background(), nil, app.BuildOptions{}))
	assert.Contains(t, f.out.String(), "built")
	assert.Contains(t, f.out.String(), "2 units: 2 built, 0 fetched, 0 failed")

	art, err := os.ReadFile(filepath.Join(f.root, ".reuse", "out", "core.art"))
	require.NoError(t, err)
	assert.NotEmpty(t, art)

	data, err := os.ReadFile(filepath.Join(f.root, ".reuse", "out", "app.usage.json"))
	require.NoError(t, err)
	var usage struct {
		Unit string `json:"unit"`
		Refs []struct {
			Dep   string `json:"dep"`
			Entry string `json:"entry"`
		} `json:"refs"`
	}
	require.NoError(t, json.Unmarshal(data, &usage))
	assert.Equal(t, "app", usage.Unit)
	require.Len(t, usage.Refs, 1)
	assert.Equal(t, "core", usage.Refs[0].Dep)
	assert.Equal(t, "Core", usage.Refs[0].Entry)

	t.Run("second build fetches", func(t *testing.T) {
		f.out.Reset()
		require.NoError(t, f.app.Build(context.Background(), nil, app.BuildOptions{}))
		assert.Contains(t, f.out.String(), "fetched (exact)")
		assert.Contains(t, f.out.String(), "2 units: 0 built, 2 fetched, 0 failed")
	})
}

func TestApp_Build_NoCacheRebuilds(t *testing.T) {
	f := newFixture(t)
	f.expectCompiles(4)

	require.NoError(t, f.app.Build(context.Background(), nil, app.BuildOptions{}))
	require.NoError(t, f.app.Build(context.Background(), nil, app.BuildOptions{NoCache: true}))
	assert.Contains(t, f.out.String(), "2 units: 2 built, 0 fetched, 0 failed")
}

func TestApp_Build_CacheModeOverride(t *testing.T) {
	f := newFixture(t)
	f.expectCompiles(4)

	require.NoError(t, f.app.Build(context.Background(), nil, app.BuildOptions{CacheMode: domain.CacheOff}))
	require.NoError(t, f.app.Build(context.Background(), nil, app.BuildOptions{CacheMode: domain.CacheReadOnly}))

	_, err := os.Stat(filepath.Join(f.root, ".reuse", "cache", "artifact"))
	assert.True(t, os.IsNotExist(err), "nothing may be written with the cache off or read-only")
}

func TestApp_Build_Targets(t *testing.T) {
	f := newFixture(t)
	f.expectCompiles(1)

	require.NoError(t, f.app.Build(context.Background(), []string{"core"}, app.BuildOptions{}))
	assert.Contains(t, f.out.String(), "1 units: 1 built")

	_, err := os.Stat(filepath.Join(f.root, ".reuse", "out", "app.art"))
	assert.True(t, os.IsNotExist(err))
}

func TestApp_Build_CompileFailure(t *testing.T) {
	f := newFixture(t)
	f.compiler.EXPECT().Compile(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.Join(domain.ErrCompileFailure, errors.New("Core.java:1: error"))).
		Times(1)
	f.logger.EXPECT().Error(gomock.Any()).Times(1)

	err := f.app.Build(context.Background(), nil, app.BuildOptions{})
	require.ErrorIs(t, err, domain.ErrBuildFailed)
	assert.Contains(t, f.out.String(), "failed")
	assert.Contains(t, f.out.String(), "skipped")

	_, statErr := os.Stat(filepath.Join(f.root, ".reuse", "out", "core.art"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestApp_Build_Errors(t *testing.T) {
	t.Run("invalid cache mode", func(t *testing.T) {
		f := newFixture(t)
		err := f.app.Build(context.Background(), nil, app.BuildOptions{CacheMode: "sometimes"})
		require.ErrorContains(t, err, domain.ErrInvalidCacheMode.Error())
	})

	t.Run("unknown target", func(t *testing.T) {
		f := newFixture(t)
		err := f.app.Build(context.Background(), []string{"missing"}, app.BuildOptions{})
		require.ErrorContains(t, err, "failed to plan build")
	})

	t.Run("load failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		loader := mocks.NewMockGraphLoader(ctrl)
		logger := mocks.NewMockLogger(ctrl)
		loader.EXPECT().Load("/nowhere").Return(nil, domain.ErrConfigNotFound)

		a := app.New(loader, cache.NewProvider(logger), mocks.NewMockCompiler(ctrl), logger,
			telemetry.NewNoOpTracer(), telemetry.NewSummary()).WithWorkingDir("/nowhere")

		err := a.Build(context.Background(), nil, app.BuildOptions{})
		require.ErrorContains(t, err, "failed to load configuration")
	})
}

func TestApp_Build_LogFile(t *testing.T) {
	f := newFixture(t)
	f.expectCompiles(2)

	path := filepath.Join(f.root, "outcomes.jsonl")
	require.NoError(t, f.app.Build(context.Background(), nil, app.BuildOptions{LogFile: path}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var rec domain.OutcomeRecord
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "core", rec.Unit.String())
	assert.Equal(t, domain.OutcomeBuiltLocally, rec.Outcome)

	t.Run("default location", func(t *testing.T) {
		require.NoError(t, f.app.Build(context.Background(), nil, app.BuildOptions{}))
		_, err := os.Stat(filepath.Join(f.root, ".reuse", "log", "build.jsonl"))
		require.NoError(t, err)
	})
}

func TestApp_Keys(t *testing.T) {
	f := newFixture(t)

	keys, err := fingerprint.New(f.ws.Graph, "")
	require.NoError(t, err)
	ruleKey, err := keys.RuleKey(domain.NewUnitID("app"))
	require.NoError(t, err)

	require.NoError(t, f.app.Keys(context.Background(), "app", app.KeysOptions{}))
	assert.Contains(t, f.out.String(), "rule_key:    "+ruleKey.String())
	assert.Contains(t, f.out.String(), "input_based: -")

	t.Run("after a build", func(t *testing.T) {
		f.expectCompiles(2)
		require.NoError(t, f.app.Build(context.Background(), nil, app.BuildOptions{}))

		f.out.Reset()
		require.NoError(t, f.app.Keys(context.Background(), "app", app.KeysOptions{Explain: true}))
		assert.NotContains(t, f.out.String(), "input_based: -")
		assert.Contains(t, f.out.String(), `unit: "app"`)
	})

	t.Run("unknown unit", func(t *testing.T) {
		err := f.app.Keys(context.Background(), "missing", app.KeysOptions{})
		require.ErrorContains(t, err, domain.ErrUnitNotFound.Error())
	})

	t.Run("no unit", func(t *testing.T) {
		err := f.app.Keys(context.Background(), "", app.KeysOptions{})
		require.ErrorIs(t, err, domain.ErrNoUnitsSpecified)
	})
}

func TestApp_Manifest(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.app.Manifest(context.Background(), "app"))
	assert.Contains(t, f.out.String(), "no entries")

	f.expectCompiles(2)
	require.NoError(t, f.app.Build(context.Background(), nil, app.BuildOptions{}))

	f.out.Reset()
	require.NoError(t, f.app.Manifest(context.Background(), "app"))
	assert.Contains(t, f.out.String(), "#0 output")
	assert.Contains(t, f.out.String(), "core:Core")
}

func TestApp_Clean(t *testing.T) {
	f := newFixture(t)
	f.expectCompiles(2)
	require.NoError(t, f.app.Build(context.Background(), nil, app.BuildOptions{}))

	reuseDir := filepath.Join(f.root, ".reuse")
	require.DirExists(t, filepath.Join(reuseDir, "out"))
	require.DirExists(t, filepath.Join(reuseDir, "cache"))

	require.NoError(t, f.app.Clean(context.Background(), app.CleanOptions{}))
	assert.NoDirExists(t, filepath.Join(reuseDir, "out"))
	assert.NoDirExists(t, filepath.Join(reuseDir, "log"))
	assert.DirExists(t, filepath.Join(reuseDir, "cache"))

	require.NoError(t, f.app.Clean(context.Background(), app.CleanOptions{Cache: true}))
	assert.NoDirExists(t, filepath.Join(reuseDir, "cache"))
}
