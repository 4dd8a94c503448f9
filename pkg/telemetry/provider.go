package telemetry

import (
	"context"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"
	"go.opentelemetry.io/otel/trace/noop"
)

// Provider is the tracer provider installed for the process. A disabled Provider hands
// out non-recording tracers and has nothing to flush.
type Provider struct {
	embedded.TracerProvider

	sdk      *sdktrace.TracerProvider
	disabled trace.TracerProvider
}

var _ trace.TracerProvider = (*Provider)(nil)

func (p *Provider) Tracer(name string, options ...trace.TracerOption) trace.Tracer {
	if p.sdk == nil {
		return p.disabled.Tracer(name, options...)
	}
	return p.sdk.Tracer(name, options...)
}

// Enabled reports whether spans are recorded.
func (p *Provider) Enabled() bool {
	return p.sdk != nil
}

// RegisterSpanProcessor adds sp to an enabled provider. It is ignored when tracing is off.
func (p *Provider) RegisterSpanProcessor(sp sdktrace.SpanProcessor) {
	if p.sdk != nil {
		p.sdk.RegisterSpanProcessor(sp)
	}
}

// Close flushes pending spans and shuts the provider down. Calling it again is a no-op.
func (p *Provider) Close(ctx context.Context) error {
	if p.sdk == nil {
		return nil
	}
	if err := p.sdk.ForceFlush(ctx); err != nil {
		return err
	}
	if err := p.sdk.Shutdown(ctx); err != nil {
		return err
	}
	p.sdk = nil
	p.disabled = noop.NewTracerProvider()
	return nil
}
