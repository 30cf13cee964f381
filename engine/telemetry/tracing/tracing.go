// Package tracing wraps a real OpenTelemetry TracerProvider for one engine
// instance. The engine builds one when tracing is enabled; its evaluation
// loop starts no spans of its own. No exporter is attached by default — callers embedding the
// engine register their own span processor/exporter on the returned provider;
// without one, spans are created and recorded but not exported anywhere.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/99souls/atrwac/engine"

// Provider owns a TracerProvider scoped to one engine instance so multiple
// engines in a process don't share sampling state.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// NewProvider builds a TracerProvider sampling the given fraction of root
// spans ([0,1], parent-based). A fraction <= 0 disables sampling entirely
// (NeverSample, whatever the parent's decision).
func NewProvider(sampleFraction float64) *Provider {
	sampler := sdktrace.NeverSample()
	if sampleFraction > 0 {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleFraction))
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sampler))
	return &Provider{tp: tp, tracer: tp.Tracer(instrumentationName)}
}

// StartSpan starts a span named name as a child of ctx's current span.
func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if p == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return p.tracer.Start(ctx, name)
}

// RegisterSpanProcessor attaches an exporter-backed processor (e.g. batch
// span processor wrapping an OTLP exporter); optional.
func (p *Provider) RegisterSpanProcessor(sp sdktrace.SpanProcessor) {
	if p == nil || sp == nil {
		return
	}
	p.tp.RegisterSpanProcessor(sp)
}

// Shutdown flushes and stops the underlying TracerProvider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// SetGlobal installs this provider as the process-wide otel default, useful
// for libraries that call otel.Tracer(...) directly instead of taking one.
func (p *Provider) SetGlobal() {
	if p == nil {
		return
	}
	otel.SetTracerProvider(p.tp)
}
