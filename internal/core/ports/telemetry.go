package ports

import "context"

//go:generate mockgen -source=telemetry.go -destination=mocks/mock_telemetry.go -package=mocks

// Tracer is the entry point for creating spans.
type Tracer interface {
	// Start creates a new span.
	Start(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span)
	// EmitPlan signals that a set of units is planned for resolution.
	EmitPlan(ctx context.Context, units []string)
}

// Span represents a unit of work.
type Span interface {
	// End completes the span.
	End()
	// RecordError records an error for the span.
	RecordError(err error)
	// SetAttribute adds a key-value pair to the span.
	SetAttribute(key string, value any)
}

// SpanConfig holds configuration for a starting span.
type SpanConfig struct {
	// Unit is the unit the span resolves, if any.
	Unit string
}

// SpanOption is a functional option for configuring a span.
type SpanOption func(*SpanConfig)

// WithUnit tags the span with the unit it resolves.
func WithUnit(unit string) SpanOption {
	return func(c *SpanConfig) {
		c.Unit = unit
	}
}
