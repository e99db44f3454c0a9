package ports

// InputResolver defines the interface for resolving input files.
//
//go:generate mockgen -destination=mocks/resolver_mock.go -package=mocks -source=resolver.go
type InputResolver interface {
	// ResolveInputs resolves the given patterns, relative to root, to concrete
	// file paths. Matches of each pattern are sorted; pattern order is kept and
	// duplicates are dropped.
	ResolveInputs(patterns []string, root string) ([]string, error)
}
