package ports

import (
	"context"

	"go.trai.ch/reuse/internal/core/domain"
)

//go:generate mockgen -source=compiler.go -destination=mocks/mock_compiler.go -package=mocks

// DependencyReader gives a compiler access to the outputs of a unit's
// dependencies and processors. Reads are observed to build usage records.
type DependencyReader interface {
	// Entry reads one entry of a dependency's output. Reading an entry that
	// does not exist is still observed.
	Entry(dep domain.UnitID, name string) (*domain.Entry, bool)

	// Entries lists the entry names of a dependency's output. Listing is not usage.
	Entries(dep domain.UnitID) []string

	// Peek reads an entry without recording it. Compilers that stage
	// dependency outputs ahead of a run must report what the run read
	// through Entry.
	Peek(dep domain.UnitID, name string) (*domain.Entry, bool)
}

// Compiler is the compiler invocation collaborator.
type Compiler interface {
	// Compile builds the unit. Failures wrap domain.ErrCompileFailure and
	// carry the compiler's diagnostics verbatim.
	Compile(ctx context.Context, unit *domain.BuildUnit, deps DependencyReader) (*domain.Artifact, error)
}
