package telemetry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

func stdoutProvider(t *testing.T) *Provider {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Exporter = "stdout"

	p, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	return p
}

func TestInit_Disabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false

	p, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer func() { _ = p.Shutdown(context.Background()) }()

	if p.Tracer() == nil {
		t.Fatal("tracer should not be nil even when disabled")
	}

	ctx, span := p.StartRun(context.Background(), 20, 2, 10, 20)
	if ctx == nil {
		t.Fatal("context should not be nil")
	}
	span.End()
}

func TestInit_ExporterNone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Exporter = "none"

	p, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if p.tp != nil {
		t.Error("exporter none should not build an SDK provider")
	}
}

func TestInit_ExporterStdout(t *testing.T) {
	p := stdoutProvider(t)
	if p.tp == nil {
		t.Fatal("TracerProvider should not be nil for stdout exporter")
	}
}

func TestInit_InvalidExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Exporter = "jaeger"

	if _, err := Init(context.Background(), cfg); err == nil {
		t.Fatal("expected error for invalid exporter")
	}
}

func TestInit_SampleRate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Exporter = "stdout"
	cfg.SampleRate = 0.5

	p, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer func() { _ = p.Shutdown(context.Background()) }()
}

func TestNoop(t *testing.T) {
	p := Noop()
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown should not error on noop provider: %v", err)
	}
	_, span := p.StartIteration(context.Background(), 1)
	span.End()
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Enabled {
		t.Error("tracing should be disabled by default")
	}
	if cfg.Exporter != "otlp" {
		t.Errorf("expected default exporter otlp, got %s", cfg.Exporter)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected default sample rate 1.0, got %f", cfg.SampleRate)
	}
	if cfg.ServiceName != "swarmcluster" {
		t.Errorf("expected default service name swarmcluster, got %s", cfg.ServiceName)
	}
}

func TestSpanHelpers(t *testing.T) {
	p := stdoutProvider(t)
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func() (context.Context, trace.Span)
	}{
		{"StartRequest", func() (context.Context, trace.Span) { return p.StartRequest(ctx, "/v1/cluster") }},
		{"StartRun", func() (context.Context, trace.Span) { return p.StartRun(ctx, 20, 2, 10, 20) }},
		{"StartSeed", func() (context.Context, trace.Span) { return p.StartSeed(ctx, 10, 2) }},
		{"StartIteration", func() (context.Context, trace.Span) { return p.StartIteration(ctx, 3) }},
		{"StartEvaluation", func() (context.Context, trace.Span) { return p.StartEvaluation(ctx, 10) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, span := tt.fn()
			if c == nil {
				t.Error("context should not be nil")
			}
			if span == nil {
				t.Error("span should not be nil")
			}
			span.End()
		})
	}
}

func TestRecordHelpers(t *testing.T) {
	p := stdoutProvider(t)

	_, span := p.StartRun(context.Background(), 20, 2, 10, 20)
	RecordBest(span, 0.8)
	RecordResult(span, 0.8, 0.8, 14.1, 20, 12*time.Millisecond)
	RecordError(span, fmt.Errorf("test error"))
	span.End()
}
