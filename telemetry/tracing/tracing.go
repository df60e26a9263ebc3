// Package tracing wires the module's optional diagnostic spans to a real
// OpenTelemetry tracer (go.opentelemetry.io/otel) rather than a
// hand-rolled internal span type, standardizing on the ecosystem SDK
// throughout this module.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Tracer wraps an OTel tracer for the one span shape this module emits:
// one span per coordinator Process tick or scheduler minute tick.
type Tracer struct {
	tracer oteltrace.Tracer
}

// NewNoop returns a Tracer backed by the OTel no-op implementation; the
// default when no exporter is configured.
func NewNoop() *Tracer {
	return &Tracer{tracer: oteltrace.NewNoopTracerProvider().Tracer("hydrocore")}
}

// NewFromProvider returns a Tracer backed by a configured SDK provider
// (built by NewSDKProvider) or any other oteltrace.TracerProvider.
func NewFromProvider(p oteltrace.TracerProvider) *Tracer {
	return &Tracer{tracer: p.Tracer("hydrocore")}
}

// NewSDKProvider constructs a minimal OTel SDK TracerProvider with no
// exporter attached (spans are created and sampled but not shipped); a
// host wires a real exporter by passing trace.WithBatcher to its own
// provider and using NewFromProvider instead.
func NewSDKProvider() *trace.TracerProvider {
	return trace.NewTracerProvider()
}

// SetGlobal installs p as the process-wide OTel tracer provider, mirroring
// otel.SetTracerProvider so other instrumented packages pick it up.
func SetGlobal(p oteltrace.TracerProvider) { otel.SetTracerProvider(p) }

// StartTick starts one span for a single Process/tick invocation.
func (t *Tracer) StartTick(ctx context.Context, name string) (context.Context, oteltrace.Span) {
	return t.tracer.Start(ctx, name)
}
