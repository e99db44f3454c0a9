package domain

import "path/filepath"

const (
	// ReuseDirName is the name of the internal workspace directory.
	ReuseDirName = ".reuse"

	// CacheDirName is the name of the local artifact cache directory.
	CacheDirName = "cache"

	// OutDirName is the name of the materialized outputs directory.
	OutDirName = "out"

	// LogDirName is the name of the build log directory.
	LogDirName = "log"

	// WorkspaceFileName is the name of the workspace configuration file.
	WorkspaceFileName = "reuse.yaml"

	// ArtifactExt is the file extension of materialized outputs.
	ArtifactExt = ".art"

	// UsageExt is the file extension of materialized usage records.
	UsageExt = ".usage.json"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644

	// PrivateFilePerm is the default permission for private files (rw-------).
	PrivateFilePerm = 0o600
)

// DefaultReusePath returns the default root directory for reuse metadata.
func DefaultReusePath() string {
	return ReuseDirName
}

// DefaultCachePath returns the default path for the local artifact cache.
// It joins .reuse and cache.
func DefaultCachePath() string {
	return filepath.Join(ReuseDirName, CacheDirName)
}

// DefaultOutPath returns the default path for materialized outputs.
// It joins .reuse and out.
func DefaultOutPath() string {
	return filepath.Join(ReuseDirName, OutDirName)
}

// DefaultLogPath returns the default directory for build logs.
// It joins .reuse and log.
func DefaultLogPath() string {
	return filepath.Join(ReuseDirName, LogDirName)
}
