package tracing

import (
	"context"
	"testing"
)

func TestStartSpanOnNilProviderReturnsNoopSpan(t *testing.T) {
	var p *Provider
	ctx, span := p.StartSpan(context.Background(), "op")
	if ctx == nil || span == nil {
		t.Fatalf("expected nil-receiver StartSpan to return a usable no-op span")
	}
}

func TestNewProviderWithZeroFractionNeverSamples(t *testing.T) {
	p := NewProvider(0)
	defer func() { _ = p.Shutdown(context.Background()) }()
	_, span := p.StartSpan(context.Background(), "op")
	if span.SpanContext().IsSampled() {
		t.Fatalf("expected a zero sample fraction to produce an unsampled span")
	}
}

func TestShutdownOnNilProviderIsNoop(t *testing.T) {
	var p *Provider
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("expected nil-receiver Shutdown to be a no-op, got %v", err)
	}
}
