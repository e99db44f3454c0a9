package domain

import "go.trai.ch/zerr"

// Error kinds surfaced by the decision engine. Only ErrConfiguration and
// ErrCompileFailure are reported to the user as build failures; the rest are
// recorded and fall through to the next tier.
var (
	// ErrConfiguration is returned when a unit is malformed. It is fatal and raised before scheduling.
	ErrConfiguration = zerr.New("invalid build configuration")

	// ErrDependencyFailure is recorded when a required dependency never reached success.
	ErrDependencyFailure = zerr.New("dependency failed")

	// ErrCompileFailure is returned when the compiler was invoked and failed.
	ErrCompileFailure = zerr.New("compilation failed")

	// ErrCacheUnavailable is returned when the cache gateway could not serve a request.
	ErrCacheUnavailable = zerr.New("cache unavailable")

	// ErrMissingAbi is recorded when a dependency has no ABI fingerprint.
	ErrMissingAbi = zerr.New("dependency abi fingerprint unavailable")

	// ErrManifestMiss is recorded when no manifest entry matches the current fingerprints.
	ErrManifestMiss = zerr.New("no matching manifest entry")
)

var (
	// ErrUnitAlreadyExists is returned when attempting to add a unit with an identity that already exists.
	ErrUnitAlreadyExists = zerr.New("unit already exists")

	// ErrMissingDependency is returned when a unit references a dependency that doesn't exist in the graph.
	ErrMissingDependency = zerr.New("missing dependency")

	// ErrCycleDetected is returned when a cycle is detected in the unit dependency graph.
	ErrCycleDetected = zerr.New("cycle detected")

	// ErrUnitNotFound is returned when a requested unit is not found in the graph.
	ErrUnitNotFound = zerr.New("unit not found")

	// ErrGraphNotValidated is returned when an operation requires a validated graph.
	ErrGraphNotValidated = zerr.New("graph has not been validated")

	// ErrInvalidUnitName is returned when a unit name contains invalid characters.
	ErrInvalidUnitName = zerr.New("invalid unit name")

	// ErrInvalidUnitKind is returned when a unit declares an unknown kind.
	ErrInvalidUnitKind = zerr.New("invalid unit kind, expected 'library', 'resources' or 'generated'")

	// ErrDuplicateEntry is returned when an artifact contains two entries with the same name.
	ErrDuplicateEntry = zerr.New("duplicate artifact entry")

	// ErrInvalidKey is returned when a key cannot be parsed.
	ErrInvalidKey = zerr.New("invalid key")

	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrConfigNotFound is returned when the config file cannot be found.
	ErrConfigNotFound = zerr.New("could not find " + WorkspaceFileName)

	// ErrInputNotFound is returned when a declared source pattern matches nothing.
	ErrInputNotFound = zerr.New("input not found")

	// ErrInvalidCacheMode is returned when the cache mode is unknown.
	ErrInvalidCacheMode = zerr.New("invalid cache mode, expected 'readwrite', 'readonly' or 'off'")

	// ErrInvalidCompression is returned when the compression setting is unknown.
	ErrInvalidCompression = zerr.New("invalid compression, expected 'zstd', 'lz4' or 'none'")

	// ErrBuildFailed is returned when any requested unit or one of its dependencies failed.
	ErrBuildFailed = zerr.New("build failed")

	// ErrNoUnitsSpecified is returned when a command requires at least one unit.
	ErrNoUnitsSpecified = zerr.New("no units specified")
)

var (
	// ErrBlobReadFailed is returned when a blob cannot be read from a store.
	ErrBlobReadFailed = zerr.New("failed to read blob")

	// ErrBlobWriteFailed is returned when a blob cannot be written to a store.
	ErrBlobWriteFailed = zerr.New("failed to write blob")

	// ErrInvalidBlobName is returned when a blob name escapes the store root.
	ErrInvalidBlobName = zerr.New("invalid blob name")

	// ErrBlobStoreOpenFailed is returned when a blob store cannot be opened.
	ErrBlobStoreOpenFailed = zerr.New("failed to open blob store")

	// ErrDecodeFailed is returned when a stored value cannot be decoded.
	ErrDecodeFailed = zerr.New("failed to decode stored value")

	// ErrEncodeFailed is returned when a value cannot be encoded for storage.
	ErrEncodeFailed = zerr.New("failed to encode value")

	// ErrDecompressFailed is returned when a stored blob cannot be decompressed.
	ErrDecompressFailed = zerr.New("failed to decompress blob")
)
