package telemetry

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/reuse/internal/core/ports"
)

const (
	// TracerNodeID is the unique identifier for the tracer Graft node.
	TracerNodeID graft.ID = "adapter.telemetry"
	// SummaryNodeID is the unique identifier for the timing summary Graft node.
	SummaryNodeID graft.ID = "adapter.telemetry.summary"
)

func init() {
	graft.Register(graft.Node[ports.Tracer]{
		ID:        TracerNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Tracer, error) {
			return NewOTelTracer("reuse"), nil
		},
	})

	graft.Register(graft.Node[*Summary]{
		ID:        SummaryNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*Summary, error) {
			return NewSummary(), nil
		},
	})
}
