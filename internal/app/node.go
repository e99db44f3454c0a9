package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/reuse/internal/adapters/cache"     //nolint:depguard // Wired in app layer
	"go.trai.ch/reuse/internal/adapters/config"    //nolint:depguard // Wired in app layer
	"go.trai.ch/reuse/internal/adapters/logger"    //nolint:depguard // Wired in app layer
	"go.trai.ch/reuse/internal/adapters/shell"     //nolint:depguard // Wired in app layer
	"go.trai.ch/reuse/internal/adapters/telemetry" //nolint:depguard // Wired in app layer
	"go.trai.ch/reuse/internal/core/ports"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			cache.NodeID,
			shell.NodeID,
			logger.NodeID,
			telemetry.TracerNodeID,
			telemetry.SummaryNodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			a, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return &Components{App: a, Logger: log}, nil
		},
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	loader, err := graft.Dep[ports.GraphLoader](ctx)
	if err != nil {
		return nil, err
	}
	caches, err := graft.Dep[ports.CacheProvider](ctx)
	if err != nil {
		return nil, err
	}
	compiler, err := graft.Dep[ports.Compiler](ctx)
	if err != nil {
		return nil, err
	}
	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}
	tracer, err := graft.Dep[ports.Tracer](ctx)
	if err != nil {
		return nil, err
	}
	summary, err := graft.Dep[*telemetry.Summary](ctx)
	if err != nil {
		return nil, err
	}
	return New(loader, caches, compiler, log, tracer, summary), nil
}
