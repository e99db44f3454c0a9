package fs

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/reuse/internal/core/domain"
	"go.trai.ch/reuse/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.InputResolver = (*Resolver)(nil)

// Resolver implements ports.InputResolver with filepath.Glob. A pattern
// ending in "/**" or naming a directory matches every file below it.
type Resolver struct {
	walker *Walker
}

// NewResolver creates a new Resolver.
func NewResolver(walker *Walker) *Resolver {
	return &Resolver{walker: walker}
}

// ResolveInputs resolves patterns relative to root. Each pattern must match
// at least one file.
func (r *Resolver) ResolveInputs(patterns []string, root string) ([]string, error) {
	seen := make(map[string]bool)
	var result []string

	for _, pattern := range patterns {
		matches, err := r.resolve(pattern, root)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			return nil, zerr.With(domain.ErrInputNotFound, "pattern", pattern)
		}

		slices.Sort(matches)
		for _, match := range matches {
			if !seen[match] {
				seen[match] = true
				result = append(result, match)
			}
		}
	}

	return result, nil
}

func (r *Resolver) resolve(pattern, root string) ([]string, error) {
	if dir, ok := strings.CutSuffix(pattern, "/**"); ok {
		return r.walk(filepath.Join(root, filepath.FromSlash(dir))), nil
	}

	path := filepath.Join(root, filepath.FromSlash(pattern))
	candidates, err := filepath.Glob(path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to glob path"), "pattern", pattern)
	}

	var files []string
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to stat path"), "path", candidate)
		}
		if info.IsDir() {
			files = append(files, r.walk(candidate)...)
			continue
		}
		files = append(files, candidate)
	}
	return files, nil
}

func (r *Resolver) walk(dir string) []string {
	var files []string
	for path := range r.walker.WalkFiles(dir, nil) {
		files = append(files, path)
	}
	return files
}
