package config

// Workfile represents the structure of the reuse.yaml workspace file.
type Workfile struct {
	Version string              `yaml:"version"`
	Root    string              `yaml:"root"`
	Cache   *CacheDTO           `yaml:"cache"`
	Build   *BuildDTO           `yaml:"build"`
	Units   map[string]*UnitDTO `yaml:"units"`
}

// CacheDTO represents the cache section.
type CacheDTO struct {
	Dir              string `yaml:"dir"`
	Shared           string `yaml:"shared"`
	Mode             string `yaml:"mode"`
	Compression      string `yaml:"compression"`
	ManifestCapacity int    `yaml:"manifestCapacity"`
	Salt             string `yaml:"salt"`
	Verify           bool   `yaml:"verify"`
}

// BuildDTO represents the build section.
type BuildDTO struct {
	Parallelism int `yaml:"parallelism"`
}

// UnitDTO represents a build unit definition.
type UnitDTO struct {
	Kind         string            `yaml:"kind"`
	Srcs         []string          `yaml:"srcs"`
	Deps         []string          `yaml:"deps"`
	Processors   []string          `yaml:"processors"`
	Flags        []string          `yaml:"flags"`
	Resources    []string          `yaml:"resources"`
	Properties   map[string]string `yaml:"properties"`
	Cmd          []string          `yaml:"cmd"`
	Capabilities *CapabilitiesDTO  `yaml:"capabilities"`
}

// CapabilitiesDTO overrides the defaults of a unit's kind.
type CapabilitiesDTO struct {
	Abi     *bool `yaml:"abi"`
	DepFile *bool `yaml:"depfile"`
}
