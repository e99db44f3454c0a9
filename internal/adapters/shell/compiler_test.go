package shell_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/reuse/internal/adapters/shell"
	"go.trai.ch/reuse/internal/core/domain"
	"go.trai.ch/reuse/internal/core/ports/mocks"
	"go.trai.ch/reuse/internal/engine/usage"
	"go.uber.org/mock/gomock"
)

var coreID = domain.NewUnitID("core")

func newCompiler(t *testing.T) (*shell.Compiler, *mocks.MockLogger) {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	return shell.NewCompiler(mockLogger), mockLogger
}

func coreTracker(t *testing.T) *usage.Tracker {
	t.Helper()
	art, err := domain.NewArtifact([]domain.Entry{
		{Name: "pkg/A", Kind: domain.EntryCode, Data: []byte("A-bytes")},
		{Name: "pkg/B", Kind: domain.EntryCode, Data: []byte("B-bytes")},
	})
	require.NoError(t, err)
	return usage.NewTracker(map[domain.UnitID]*domain.Artifact{coreID: art})
}

func shellUnit(t *testing.T, script string) *domain.BuildUnit {
	t.Helper()
	return &domain.BuildUnit{
		ID:           domain.NewUnitID("app"),
		Kind:         domain.KindLibrary,
		Capabilities: domain.DefaultCapabilities(domain.KindLibrary),
		Deps:         []domain.UnitID{coreID},
		Command:      []string{"sh", "-c", script},
		Dir:          t.TempDir(),
	}
}

func TestCompiler_Compile_StreamsOutput(t *testing.T) {
	compiler, mockLogger := newCompiler(t)
	gomock.InOrder(
		mockLogger.EXPECT().Debug("line1", "unit", "app"),
		mockLogger.EXPECT().Debug("line2", "unit", "app"),
		mockLogger.EXPECT().Debug("part1part2", "unit", "app"),
	)

	unit := shellUnit(t, "echo line1; echo line2; printf part1; printf part2")
	_, err := compiler.Compile(context.Background(), unit, coreTracker(t))
	require.NoError(t, err)
}

func TestCompiler_Compile_CollectsOutputs(t *testing.T) {
	compiler, _ := newCompiler(t)

	script := `mkdir -p "$REUSE_OUT/pkg" &&
printf 'compiled' > "$REUSE_OUT/pkg/App" &&
printf 'text' > "$REUSE_OUT/notes.txt" &&
cat > "$REUSE_SURFACE" <<'YAML'
entries:
  pkg/App:
    members:
      - kind: method
        name: run
        signature: "()V"
        visibility: public
YAML
`
	unit := shellUnit(t, script)
	art, err := compiler.Compile(context.Background(), unit, coreTracker(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"notes.txt", "pkg/App"}, art.Names())

	app, ok := art.Entry("pkg/App")
	require.True(t, ok)
	assert.Equal(t, domain.EntryCode, app.Kind)
	assert.Equal(t, []byte("compiled"), app.Data)
	require.NotNil(t, app.Surface)
	assert.Equal(t, []domain.Member{{Kind: "method", Name: "run", Signature: "()V", Visibility: domain.VisibilityPublic}}, app.Surface.Members)

	notes, ok := art.Entry("notes.txt")
	require.True(t, ok)
	assert.Equal(t, domain.EntryResource, notes.Kind)
}

func TestCompiler_Compile_UsageReport(t *testing.T) {
	compiler, _ := newCompiler(t)
	tracker := coreTracker(t)

	script := `cat "$REUSE_DEPS/core/pkg/A" > "$REUSE_OUT/copy" &&
printf 'core\tpkg/A\ncore\tpkg/Missing\n' > "$REUSE_USAGE"`
	art, err := compiler.Compile(context.Background(), shellUnit(t, script), tracker)
	require.NoError(t, err)

	copied, ok := art.Entry("copy")
	require.True(t, ok)
	assert.Equal(t, []byte("A-bytes"), copied.Data)

	record := tracker.Finish(true)
	assert.Equal(t, []domain.EntryRef{
		{Dep: coreID, Entry: "pkg/A"},
		{Dep: coreID, Entry: "pkg/Missing"},
	}, record.Refs)
}

func TestCompiler_Compile_NoUsageReportReadsEverything(t *testing.T) {
	compiler, _ := newCompiler(t)
	tracker := coreTracker(t)

	_, err := compiler.Compile(context.Background(), shellUnit(t, "true"), tracker)
	require.NoError(t, err)

	record := tracker.Finish(true)
	assert.Equal(t, []domain.EntryRef{
		{Dep: coreID, Entry: "pkg/A"},
		{Dep: coreID, Entry: "pkg/B"},
	}, record.Refs)
}

func TestCompiler_Compile_MalformedUsageReport(t *testing.T) {
	compiler, _ := newCompiler(t)

	_, err := compiler.Compile(context.Background(), shellUnit(t, `echo "no tab" > "$REUSE_USAGE"`), coreTracker(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCompileFailure)
}

func TestCompiler_Compile_Failure(t *testing.T) {
	compiler, _ := newCompiler(t)

	_, err := compiler.Compile(context.Background(), shellUnit(t, "echo 'error: A.java:3 missing ;' >&2; exit 3"), coreTracker(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCompileFailure)
	assert.ErrorContains(t, err, "command failed")

	var md interface{ Metadata() map[string]any }
	require.True(t, errors.As(err, &md))
	assert.Equal(t, "error: A.java:3 missing ;\n", md.Metadata()["diagnostics"])
	assert.Equal(t, 3, md.Metadata()["exit_code"])
}

func TestCompiler_Compile_Environment(t *testing.T) {
	t.Setenv("REUSE_TEST_SECRET", "leak")
	compiler, _ := newCompiler(t)

	unit := shellUnit(t, `printf '%s|%s|%s|%s' "$REUSE_UNIT" "$REUSE_FLAGS" "$REUSE_PROP_TARGET_VERSION" "$REUSE_TEST_SECRET" > "$REUSE_OUT/env"`)
	unit.Config.Flags = []string{"-g", "-O2"}
	unit.Config.Properties = map[string]string{"target.version": "21"}

	art, err := compiler.Compile(context.Background(), unit, coreTracker(t))
	require.NoError(t, err)

	env, ok := art.Entry("env")
	require.True(t, ok)
	assert.Equal(t, "app|-g -O2|21|", string(env.Data))
}

func TestCompiler_Compile_WithoutCommand(t *testing.T) {
	compiler, _ := newCompiler(t)
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "res"), domain.DirPerm))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "res", "logo.txt"), []byte("logo"), domain.PrivateFilePerm))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Main.java"), []byte("class Main {}"), domain.PrivateFilePerm))

	unit := &domain.BuildUnit{
		ID:     domain.NewUnitID("plain"),
		Kind:   domain.KindLibrary,
		Inputs: []domain.Input{{Path: "Main.java", Digest: "x"}},
		Config: domain.UnitConfig{Resources: []domain.Input{{Path: "res/logo.txt", Digest: "y"}}},
		Dir:    dir,
	}

	art, err := compiler.Compile(context.Background(), unit, usage.NewTracker(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"Main.java", "res/logo.txt"}, art.Names())

	mainEntry, _ := art.Entry("Main.java")
	assert.Equal(t, domain.EntryCode, mainEntry.Kind)
	logo, _ := art.Entry("res/logo.txt")
	assert.Equal(t, domain.EntryResource, logo.Kind)
}

func TestCompiler_Compile_Cancelled(t *testing.T) {
	compiler, _ := newCompiler(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := compiler.Compile(ctx, shellUnit(t, "sleep 5"), coreTracker(t))
	require.ErrorIs(t, err, context.Canceled)
}
