package ports

// Hasher defines the interface for fingerprinting source files.
//
//go:generate mockgen -destination=mocks/hasher_mock.go -package=mocks -source=hasher.go
type Hasher interface {
	// ComputeFileDigest returns an opaque, stable fingerprint of the file's contents.
	ComputeFileDigest(path string) (string, error)
}
