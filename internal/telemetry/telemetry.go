// Package telemetry configures OpenTelemetry tracing. Without an endpoint the
// tracer provider is a no-op.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config is the top-level telemetry section of pulse.yaml.
type Config struct {
	// OTLPEndpoint is the OTLP/HTTP collector (host:port). Empty disables
	// tracing.
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure"`

	// SamplingRate is the fraction of traces kept, 0.0 to 1.0. Defaults to 1.
	SamplingRate *float64 `yaml:"sampling_rate"`

	// ServiceName defaults to "pulse".
	ServiceName string `yaml:"service_name"`
}

// Enabled reports whether an exporter is configured.
func (c Config) Enabled() bool {
	return c.OTLPEndpoint != ""
}

// Provider owns a tracer provider. It only becomes the process-wide one
// when Install is called, so a runtime that fails to build never replaces
// the provider of the one still running.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.TracerProvider
}

// Setup builds the tracer provider described by cfg without installing it.
func Setup(ctx context.Context, cfg Config, version string) (*Provider, error) {
	if !cfg.Enabled() {
		return &Provider{tracer: noop.NewTracerProvider()}, nil
	}

	name := cfg.ServiceName
	if name == "" {
		name = "pulse"
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", name),
		attribute.String("service.version", version),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: resource: %w", err)
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: exporter: %w", err)
	}

	rate := 1.0
	if cfg.SamplingRate != nil {
		rate = *cfg.SamplingRate
	}
	var sampler sdktrace.Sampler
	switch {
	case rate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case rate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(rate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	return &Provider{tp: tp, tracer: tp}, nil
}

// Install makes p the global tracer provider, used by otelhttp and any
// code calling otel.Tracer.
func (p *Provider) Install() {
	otel.SetTracerProvider(p.tracer)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// Tracer returns a tracer bound to p, whether or not p is installed.
func (p *Provider) Tracer(name string) trace.Tracer {
	return p.tracer.Tracer(name)
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.tp.Shutdown(ctx)
}

