package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestSetup_Disabled(t *testing.T) {
	p, err := Setup(context.Background(), Config{}, "test")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}

	_, span := p.Tracer("test").Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Error("disabled telemetry should produce invalid span contexts")
	}
	span.End()
}

func TestSetup_Enabled(t *testing.T) {
	rate := 0.5
	p, err := Setup(context.Background(), Config{OTLPEndpoint: "127.0.0.1:4318", Insecure: true, SamplingRate: &rate}, "test")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if p.tp == nil {
		t.Fatal("expected an sdk tracer provider")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = p.Shutdown(ctx)
}

// Not parallel: touches the global provider.
func TestSetup_DoesNotReplaceGlobalUntilInstall(t *testing.T) {
	running := noop.NewTracerProvider()
	otel.SetTracerProvider(running)
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	p, err := Setup(context.Background(), Config{OTLPEndpoint: "127.0.0.1:4318", Insecure: true}, "test")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	defer func() { _ = p.Shutdown(ctx) }()

	if otel.GetTracerProvider() != running {
		t.Fatal("Setup replaced the global tracer provider")
	}

	p.Install()
	if otel.GetTracerProvider() != p.tp {
		t.Error("Install did not set the global tracer provider")
	}
}
