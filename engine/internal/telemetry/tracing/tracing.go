// Package tracing bridges the engine's internal event/log plumbing to the
// active OpenTelemetry span context. The actual tracer provider lives in
// telemetry/tracing; this package only extracts correlation ids so internal
// packages (events, logging) don't need to import the OTel SDK directly.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// ExtractIDs returns the trace and span id of the span active in ctx, if any.
func ExtractIDs(ctx context.Context) (traceID, spanID string) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}
