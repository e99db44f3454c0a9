// Package config provides the workspace loader for reuse.
package config

import (
	"os"
	"path/filepath"
	"regexp"
	"slices"

	"go.trai.ch/reuse/internal/core/domain"
	"go.trai.ch/reuse/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var _ ports.GraphLoader = (*Loader)(nil)

var validUnitNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// Loader implements ports.GraphLoader using a YAML file.
type Loader struct {
	Logger   ports.Logger
	Resolver ports.InputResolver
	Hasher   ports.Hasher
}

// NewLoader creates a new Loader.
func NewLoader(logger ports.Logger, resolver ports.InputResolver, hasher ports.Hasher) *Loader {
	return &Loader{Logger: logger, Resolver: resolver, Hasher: hasher}
}

// Load finds reuse.yaml by walking up from cwd, fingerprints every declared
// source and resource, and returns the validated workspace.
func (l *Loader) Load(cwd string) (*domain.Workspace, error) {
	configPath, err := findConfiguration(cwd)
	if err != nil {
		return nil, err
	}

	var workfile Workfile
	if err := readAndUnmarshalYAML(configPath, &workfile); err != nil {
		return nil, zerr.With(err, "path", configPath)
	}

	ws := &domain.Workspace{
		Root:  resolveRoot(configPath, workfile.Root),
		Cache: domain.DefaultCacheSettings(),
	}
	if err := applyCache(&ws.Cache, workfile.Cache); err != nil {
		return nil, zerr.Wrap(err, domain.ErrConfiguration.Error())
	}
	if workfile.Build != nil {
		ws.Build.Parallelism = workfile.Build.Parallelism
	}

	graph, err := l.buildGraph(ws.Root, workfile.Units)
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrConfiguration.Error())
	}
	ws.Graph = graph

	l.Logger.Debug("workspace loaded", "path", configPath, "units", graph.UnitCount())
	return ws, nil
}

func findConfiguration(cwd string) (string, error) {
	currentDir := cwd
	for {
		candidate := filepath.Join(currentDir, domain.WorkspaceFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return "", zerr.With(domain.ErrConfigNotFound, "cwd", cwd)
		}
		currentDir = parentDir
	}
}

func applyCache(settings *domain.CacheSettings, dto *CacheDTO) error {
	if dto == nil {
		return nil
	}

	if dto.Dir != "" {
		settings.Dir = dto.Dir
	}
	settings.Shared = dto.Shared
	settings.Salt = dto.Salt
	settings.Verify = dto.Verify

	if dto.Mode != "" {
		settings.Mode = domain.CacheMode(dto.Mode)
		if !settings.Mode.Valid() {
			return zerr.With(domain.ErrInvalidCacheMode, "mode", dto.Mode)
		}
	}
	if dto.Compression != "" {
		settings.Compression = domain.Compression(dto.Compression)
		if !settings.Compression.Valid() {
			return zerr.With(domain.ErrInvalidCompression, "compression", dto.Compression)
		}
	}
	if dto.ManifestCapacity < 0 {
		return zerr.With(zerr.New("manifest capacity must not be negative"), "manifestCapacity", dto.ManifestCapacity)
	}
	if dto.ManifestCapacity > 0 {
		settings.ManifestCapacity = dto.ManifestCapacity
	}
	return nil
}

func (l *Loader) buildGraph(root string, units map[string]*UnitDTO) (*domain.Graph, error) {
	g := domain.NewGraph()
	g.SetRoot(root)

	// Sorted so that the first reported error does not depend on map order.
	names := make([]string, 0, len(units))
	for name := range units {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		unit, err := l.buildUnit(root, name, units[name])
		if err != nil {
			return nil, zerr.With(err, "unit", name)
		}
		if err := g.AddUnit(unit); err != nil {
			return nil, err
		}
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func (l *Loader) buildUnit(root, name string, dto *UnitDTO) (*domain.BuildUnit, error) {
	if !validUnitNameRegex.MatchString(name) {
		return nil, domain.ErrInvalidUnitName
	}
	if dto == nil {
		dto = &UnitDTO{}
	}

	kind := domain.UnitKind(dto.Kind)
	if kind == "" {
		kind = domain.KindLibrary
	}
	if !kind.Valid() {
		return nil, zerr.With(domain.ErrInvalidUnitKind, "kind", dto.Kind)
	}

	caps := domain.DefaultCapabilities(kind)
	if dto.Capabilities != nil {
		if dto.Capabilities.Abi != nil {
			caps.SupportsAbi = *dto.Capabilities.Abi
		}
		if dto.Capabilities.DepFile != nil {
			caps.SupportsDepFile = *dto.Capabilities.DepFile
		}
	}

	inputs, err := l.fingerprint(root, dto.Srcs)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to fingerprint sources")
	}
	resources, err := l.fingerprint(root, dto.Resources)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to fingerprint resources")
	}

	return &domain.BuildUnit{
		ID:           domain.NewUnitID(name),
		Kind:         kind,
		Capabilities: caps,
		Deps:         domain.NewUnitIDs(dto.Deps),
		Processors:   domain.NewUnitIDs(dto.Processors),
		Inputs:       inputs,
		Config: domain.UnitConfig{
			Flags:      dto.Flags,
			Resources:  resources,
			Properties: dto.Properties,
		},
		Command: dto.Cmd,
		Dir:     root,
	}, nil
}

// fingerprint resolves patterns and digests every match. Paths are stored
// relative to the workspace root with forward slashes, so keys do not depend
// on where the workspace is checked out.
func (l *Loader) fingerprint(root string, patterns []string) ([]domain.Input, error) {
	if len(patterns) == 0 {
		return nil, nil
	}

	paths, err := l.Resolver.ResolveInputs(patterns, root)
	if err != nil {
		return nil, err
	}

	inputs := make([]domain.Input, 0, len(paths))
	for _, path := range paths {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to relativize input"), "path", path)
		}
		digest, err := l.Hasher.ComputeFileDigest(path)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, domain.Input{Path: filepath.ToSlash(rel), Digest: digest})
	}
	return inputs, nil
}

func resolveRoot(configPath, configuredRoot string) string {
	configDir := filepath.Dir(configPath)
	if configuredRoot == "" {
		return filepath.Clean(configDir)
	}
	if filepath.IsAbs(configuredRoot) {
		return filepath.Clean(configuredRoot)
	}
	return filepath.Clean(filepath.Join(configDir, configuredRoot))
}

// readAndUnmarshalYAML reads a YAML file and unmarshals it into the target struct.
func readAndUnmarshalYAML[T any](configPath string, target *T) error {
	// #nosec G304 -- configPath is discovered by findConfiguration
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		return zerr.Wrap(err, domain.ErrConfigReadFailed.Error())
	}

	if parseErr := yaml.Unmarshal(configFile, target); parseErr != nil {
		return zerr.Wrap(parseErr, domain.ErrConfigParseFailed.Error())
	}

	return nil
}
