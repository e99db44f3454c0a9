package ports

import "go.trai.ch/reuse/internal/core/domain"

// GraphLoader defines the interface for loading the workspace and its unit graph.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type GraphLoader interface {
	// Load finds the workspace file from the given working directory and
	// returns the validated workspace.
	Load(cwd string) (*domain.Workspace, error)
}
