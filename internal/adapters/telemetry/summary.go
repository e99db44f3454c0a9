package telemetry

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

var _ sdktrace.SpanProcessor = (*Summary)(nil)

// Timing is the wall time of one finished span that resolved a unit.
type Timing struct {
	Unit     string
	Span     string
	Duration time.Duration
	Failed   bool
}

// Summary implements sdktrace.SpanProcessor and keeps the timings of unit
// spans for the end-of-build summary.
type Summary struct {
	mu      sync.Mutex
	timings []Timing
}

// NewSummary returns an empty Summary.
func NewSummary() *Summary {
	return &Summary{}
}

// OnStart does nothing.
func (s *Summary) OnStart(_ context.Context, _ sdktrace.ReadWriteSpan) {}

// OnEnd records spans carrying the unit attribute.
func (s *Summary) OnEnd(span sdktrace.ReadOnlySpan) {
	var unit string
	for _, attr := range span.Attributes() {
		if string(attr.Key) == UnitAttribute {
			unit = attr.Value.AsString()
			break
		}
	}
	if unit == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.timings = append(s.timings, Timing{
		Unit:     unit,
		Span:     span.Name(),
		Duration: span.EndTime().Sub(span.StartTime()),
		Failed:   span.Status().Code == codes.Error,
	})
}

// Timings returns the recorded timings, slowest first.
func (s *Summary) Timings() []Timing {
	s.mu.Lock()
	timings := slices.Clone(s.timings)
	s.mu.Unlock()

	slices.SortFunc(timings, func(a, b Timing) int {
		return cmp.Or(
			cmp.Compare(b.Duration, a.Duration),
			cmp.Compare(a.Unit, b.Unit),
			cmp.Compare(a.Span, b.Span),
		)
	})
	return timings
}

// ForceFlush does nothing.
func (s *Summary) ForceFlush(_ context.Context) error {
	return nil
}

// Shutdown does nothing.
func (s *Summary) Shutdown(_ context.Context) error {
	return nil
}
