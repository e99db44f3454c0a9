// Package shell provides the shell compiler adapter. A unit's command runs
// in its directory with the dependency outputs staged on disk; whatever it
// writes to $REUSE_OUT becomes the unit's output.
package shell

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.trai.ch/reuse/internal/core/domain"
	"go.trai.ch/reuse/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var _ ports.Compiler = (*Compiler)(nil)

// Environment variables set for every command.
const (
	EnvUnit    = "REUSE_UNIT"
	EnvOut     = "REUSE_OUT"
	EnvDeps    = "REUSE_DEPS"
	EnvUsage   = "REUSE_USAGE"
	EnvSurface = "REUSE_SURFACE"
	EnvFlags   = "REUSE_FLAGS"
	// EnvPropertyPrefix is followed by the upper-cased property name.
	EnvPropertyPrefix = "REUSE_PROP_"
)

// passthroughEnv lists the variables inherited from the calling process.
// Everything else is dropped so that builds do not depend on ambient state
// the keys cannot see.
var passthroughEnv = []string{"PATH", "HOME", "TMPDIR", "LANG", "LC_ALL", "USER"}

var (
	errMalformedUsage   = zerr.New("malformed usage report line")
	errMalformedSurface = zerr.New("malformed surface report")
	errInvalidEntryName = zerr.New("invalid entry name")
)

// SurfaceReport is the format of the file at $REUSE_SURFACE. Entries listed
// in it are code entries with the given surface; every other output file is
// a resource.
type SurfaceReport struct {
	Entries map[string]domain.Surface `yaml:"entries"`
}

// Compiler implements ports.Compiler using os/exec.
type Compiler struct {
	logger ports.Logger
}

// NewCompiler creates a new shell Compiler.
func NewCompiler(logger ports.Logger) *Compiler {
	return &Compiler{logger: logger}
}

// Compile builds the unit. Units without a command produce their sources
// and resources as entries. Otherwise the dependency outputs are staged
// under $REUSE_DEPS/<dep>/<entry>, the command runs and the files it wrote to
// $REUSE_OUT are collected.
//
// The command reports the staged entries it read by writing "dep<TAB>entry"
// lines to $REUSE_USAGE. Without a report every staged entry counts as read.
func (c *Compiler) Compile(ctx context.Context, unit *domain.BuildUnit, deps ports.DependencyReader) (*domain.Artifact, error) {
	resources, err := readInputs(unit.Dir, unit.Config.Resources, domain.EntryResource)
	if err != nil {
		return nil, compileFailure(err, "")
	}

	if len(unit.Command) == 0 {
		kind := domain.EntryCode
		if unit.Kind == domain.KindResources {
			kind = domain.EntryResource
		}
		srcs, err := readInputs(unit.Dir, unit.Inputs, kind)
		if err != nil {
			return nil, compileFailure(err, "")
		}
		reportAll(unit, deps)
		return newArtifact(append(srcs, resources...))
	}

	work, err := os.MkdirTemp("", "reuse-build-")
	if err != nil {
		return nil, zerr.Wrap(err, "failed to create build directory")
	}
	defer func() {
		_ = os.RemoveAll(work)
	}()

	w := workdir(work)
	if err := w.stage(unit, deps); err != nil {
		return nil, err
	}

	if err := c.run(ctx, unit, w); err != nil {
		return nil, err
	}

	if err := w.reportUsage(unit, deps); err != nil {
		return nil, compileFailure(err, "")
	}

	outputs, err := w.collect()
	if err != nil {
		return nil, compileFailure(err, "")
	}
	return newArtifact(append(outputs, resources...))
}

func (c *Compiler) run(ctx context.Context, unit *domain.BuildUnit, w workdir) error {
	name := unit.Command[0]
	cmd := exec.CommandContext(ctx, name, unit.Command[1:]...) //nolint:gosec // user provided command
	cmd.Dir = unit.Dir
	cmd.Env = environment(os.Environ(), unit, w)

	var stderr bytes.Buffer
	stdout := &logWriter{logger: c.logger, unit: unit.ID.String()}
	cmd.Stdout = stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	stdout.Flush()
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	return zerr.With(compileFailure(zerr.Wrap(err, "command failed"), stderr.String()), "exit_code", exitCode)
}

// compileFailure classifies err as a compile failure and attaches the
// compiler's diagnostics verbatim.
func compileFailure(err error, diagnostics string) error {
	failure := errors.Join(domain.ErrCompileFailure, err)
	if diagnostics == "" {
		return failure
	}
	return zerr.With(failure, "diagnostics", diagnostics)
}

func newArtifact(entries []domain.Entry) (*domain.Artifact, error) {
	art, err := domain.NewArtifact(entries)
	if err != nil {
		return nil, compileFailure(err, "")
	}
	return art, nil
}

// environment builds the command environment from the allow-listed parts
// of sysEnv and the unit's own settings.
func environment(sysEnv []string, unit *domain.BuildUnit, w workdir) []string {
	env := make([]string, 0, len(passthroughEnv)+6+len(unit.Config.Properties))
	for _, entry := range sysEnv {
		k, _, ok := strings.Cut(entry, "=")
		if ok && isPassthrough(k) {
			env = append(env, entry)
		}
	}

	env = append(env,
		EnvUnit+"="+unit.ID.String(),
		EnvOut+"="+w.out(),
		EnvDeps+"="+w.deps(),
		EnvUsage+"="+w.usage(),
		EnvSurface+"="+w.surface(),
		EnvFlags+"="+strings.Join(unit.Config.Flags, " "),
	)
	for _, k := range unit.Config.SortedPropertyKeys() {
		env = append(env, EnvPropertyPrefix+propertyName(k)+"="+unit.Config.Properties[k])
	}
	return env
}

func isPassthrough(key string) bool {
	for _, k := range passthroughEnv {
		if k == key {
			return true
		}
	}
	return false
}

func propertyName(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, key)
}

// readInputs reads declared files into entries named by their path.
func readInputs(dir string, inputs []domain.Input, kind domain.EntryKind) ([]domain.Entry, error) {
	entries := make([]domain.Entry, 0, len(inputs))
	for _, in := range inputs {
		// #nosec G304 -- paths come from the workspace loader
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(in.Path)))
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to read input"), "path", in.Path)
		}
		entries = append(entries, domain.Entry{Name: in.Path, Kind: kind, Data: data})
	}
	return entries, nil
}

// reportAll marks every entry of every upstream unit as read.
func reportAll(unit *domain.BuildUnit, deps ports.DependencyReader) {
	for _, dep := range unit.Upstream() {
		for _, name := range deps.Entries(dep) {
			deps.Entry(dep, name)
		}
	}
}

// workdir is the scratch directory of one command run.
type workdir string

func (w workdir) out() string     { return filepath.Join(string(w), "out") }
func (w workdir) deps() string    { return filepath.Join(string(w), "deps") }
func (w workdir) usage() string   { return filepath.Join(string(w), "usage") }
func (w workdir) surface() string { return filepath.Join(string(w), "surface.yaml") }

func (w workdir) stage(unit *domain.BuildUnit, deps ports.DependencyReader) error {
	if err := os.MkdirAll(w.out(), domain.DirPerm); err != nil {
		return zerr.Wrap(err, "failed to create output directory")
	}

	for _, dep := range unit.Upstream() {
		for _, name := range deps.Entries(dep) {
			entry, ok := deps.Peek(dep, name)
			if !ok {
				continue
			}
			path, err := entryPath(filepath.Join(w.deps(), dep.String()), name)
			if err != nil {
				return compileFailure(zerr.With(err, "dependency", dep.String()), "")
			}
			if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
				return zerr.Wrap(err, "failed to stage dependency")
			}
			if err := os.WriteFile(path, entry.Data, domain.PrivateFilePerm); err != nil {
				return zerr.Wrap(err, "failed to stage dependency")
			}
		}
	}
	return nil
}

func entryPath(root, name string) (string, error) {
	rel := filepath.FromSlash(name)
	if !filepath.IsLocal(rel) {
		return "", zerr.With(errInvalidEntryName, "entry", name)
	}
	return filepath.Join(root, rel), nil
}

func (w workdir) reportUsage(unit *domain.BuildUnit, deps ports.DependencyReader) error {
	f, err := os.Open(w.usage())
	if errors.Is(err, fs.ErrNotExist) {
		reportAll(unit, deps)
		return nil
	}
	if err != nil {
		return zerr.Wrap(err, "failed to open usage report")
	}
	defer func() {
		_ = f.Close()
	}()

	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		dep, entry, ok := strings.Cut(text, "\t")
		if !ok || dep == "" || entry == "" {
			return zerr.With(zerr.With(errMalformedUsage, "line", line), "text", text)
		}
		deps.Entry(domain.NewUnitID(dep), entry)
	}
	if err := scanner.Err(); err != nil {
		return zerr.Wrap(err, "failed to read usage report")
	}
	return nil
}

func (w workdir) collect() ([]domain.Entry, error) {
	report, err := w.readSurface()
	if err != nil {
		return nil, err
	}

	var entries []domain.Entry
	err = filepath.WalkDir(w.out(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(w.out(), path)
		if err != nil {
			return err
		}
		// #nosec G304 -- path is inside the build directory
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		entry := domain.Entry{Name: filepath.ToSlash(rel), Kind: domain.EntryResource, Data: data}
		if surface, ok := report.Entries[entry.Name]; ok {
			entry.Kind = domain.EntryCode
			entry.Surface = &surface
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, zerr.Wrap(err, "failed to collect outputs")
	}
	return entries, nil
}

func (w workdir) readSurface() (SurfaceReport, error) {
	var report SurfaceReport
	// #nosec G304 -- path is inside the build directory
	data, err := os.ReadFile(w.surface())
	if errors.Is(err, fs.ErrNotExist) {
		return report, nil
	}
	if err != nil {
		return report, zerr.Wrap(err, "failed to read surface report")
	}
	if err := yaml.Unmarshal(data, &report); err != nil {
		return report, zerr.Wrap(err, errMalformedSurface.Error())
	}
	return report, nil
}

// logWriter forwards complete lines of command output to the logger.
type logWriter struct {
	logger ports.Logger
	unit   string
	buf    []byte
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.logger.Debug(string(w.buf[:i]), "unit", w.unit)
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Flush logs a trailing line without a newline.
func (w *logWriter) Flush() {
	if len(w.buf) > 0 {
		w.logger.Debug(string(w.buf), "unit", w.unit)
		w.buf = nil
	}
}
