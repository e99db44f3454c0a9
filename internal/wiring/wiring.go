// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/reuse/internal/adapters/cache"
	_ "go.trai.ch/reuse/internal/adapters/config"
	_ "go.trai.ch/reuse/internal/adapters/fs"
	_ "go.trai.ch/reuse/internal/adapters/logger"
	_ "go.trai.ch/reuse/internal/adapters/shell"
	_ "go.trai.ch/reuse/internal/adapters/telemetry"
	// Register app nodes.
	_ "go.trai.ch/reuse/internal/app"
)
