package domain

import "runtime"

// CacheMode controls whether tiers read from and write to the cache.
type CacheMode string

const (
	// CacheReadWrite reads and writes the cache.
	CacheReadWrite CacheMode = "readwrite"
	// CacheReadOnly reads the cache but never writes to it.
	CacheReadOnly CacheMode = "readonly"
	// CacheOff disables the cache entirely.
	CacheOff CacheMode = "off"
)

// Valid reports whether the mode is known.
func (m CacheMode) Valid() bool {
	switch m {
	case CacheReadWrite, CacheReadOnly, CacheOff:
		return true
	default:
		return false
	}
}

// Reads reports whether cache tiers should be consulted.
func (m CacheMode) Reads() bool {
	return m != CacheOff
}

// Writes reports whether results should be written back.
func (m CacheMode) Writes() bool {
	return m == CacheReadWrite
}

// Compression names the codec used for stored blobs.
type Compression string

const (
	// CompressionZstd compresses blobs with zstd.
	CompressionZstd Compression = "zstd"
	// CompressionLZ4 compresses blobs with block-mode LZ4.
	CompressionLZ4 Compression = "lz4"
	// CompressionNone stores blobs verbatim.
	CompressionNone Compression = "none"
)

// Valid reports whether the compression is known.
func (c Compression) Valid() bool {
	switch c {
	case CompressionZstd, CompressionLZ4, CompressionNone:
		return true
	default:
		return false
	}
}

// CacheSettings configures the cache gateway.
type CacheSettings struct {
	// Dir is the local directory store, relative to the workspace root.
	Dir string
	// Shared is an optional sqlite database shared between workspaces.
	Shared           string
	Mode             CacheMode
	Compression      Compression
	ManifestCapacity int
	// Salt is mixed into every key. Changing it invalidates the whole cache.
	Salt string
	// Verify enables digest verification of fetched blobs.
	Verify bool
}

// BuildSettings configures the scheduler.
type BuildSettings struct {
	Parallelism int
}

// Workspace is the loaded workspace: the unit graph plus its settings.
type Workspace struct {
	Root  string
	Graph *Graph
	Cache CacheSettings
	Build BuildSettings
}

// DefaultCacheSettings returns the settings used when the workspace file omits them.
func DefaultCacheSettings() CacheSettings {
	return CacheSettings{
		Dir:              DefaultCachePath(),
		Mode:             CacheReadWrite,
		Compression:      CompressionZstd,
		ManifestCapacity: DefaultManifestCapacity,
	}
}

// EffectiveParallelism returns the configured parallelism or the CPU count.
func (b BuildSettings) EffectiveParallelism() int {
	if b.Parallelism > 0 {
		return b.Parallelism
	}
	return runtime.NumCPU()
}
