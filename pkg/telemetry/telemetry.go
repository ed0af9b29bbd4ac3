// Package telemetry provides OpenTelemetry tracing for swarmcluster.
// It instruments clustering runs with spans for seeding, every iteration
// and every evaluation pass, and exports to OTLP or stdout.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "github.com/Siddhant-K-code/swarmcluster"

// Config holds tracing configuration.
type Config struct {
	// Enabled turns tracing on/off.
	Enabled bool

	// Exporter selects the trace exporter: "otlp", "stdout", or "none".
	Exporter string

	// Endpoint is the OTLP collector address (e.g., "localhost:4317").
	Endpoint string

	// SampleRate controls the sampling ratio (0.0 to 1.0).
	SampleRate float64

	// ServiceName overrides the default service name.
	ServiceName string

	// Insecure disables TLS for the OTLP exporter.
	Insecure bool
}

// DefaultConfig returns tracing defaults (disabled).
func DefaultConfig() Config {
	return Config{
		Enabled:     false,
		Exporter:    "otlp",
		Endpoint:    "localhost:4317",
		SampleRate:  1.0,
		ServiceName: "swarmcluster",
		Insecure:    true,
	}
}

// Provider wraps the OTEL TracerProvider and exposes clustering span helpers.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// Noop returns a Provider whose spans are discarded.
func Noop() *Provider {
	return &Provider{tracer: noop.NewTracerProvider().Tracer(tracerName)}
}

// Init sets up the global TracerProvider based on the config.
// Returns a Provider that must be shut down with Shutdown().
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return Noop(), nil
	}

	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.Exporter {
	case "otlp":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
	case "none", "":
		return Noop(), nil
	default:
		return nil, fmt.Errorf("unsupported exporter: %q (supported: otlp, stdout, none)", cfg.Exporter)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "swarmcluster"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion("0.1.0"),
		),
		resource.WithProcessRuntimeDescription(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRate < 1.0 {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{
		tp:     tp,
		tracer: tp.Tracer(tracerName),
	}, nil
}

// Shutdown flushes pending spans and shuts down the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// Tracer returns the swarmcluster tracer for creating spans.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// StartRequest creates a root span for an incoming HTTP request.
func (p *Provider) StartRequest(ctx context.Context, endpoint string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "swarmcluster.request",
		trace.WithAttributes(attribute.String("swarmcluster.endpoint", endpoint)),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// StartRun creates a span covering one full clustering run.
func (p *Provider) StartRun(ctx context.Context, observations, clusters, particles, maxIterations int) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "swarmcluster.run",
		trace.WithAttributes(
			attribute.Int("swarmcluster.run.observations", observations),
			attribute.Int("swarmcluster.run.clusters", clusters),
			attribute.Int("swarmcluster.run.particles", particles),
			attribute.Int("swarmcluster.run.max_iterations", maxIterations),
		),
	)
}

// StartSeed creates a span for swarm initialisation.
func (p *Provider) StartSeed(ctx context.Context, particles, dimension int) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "swarmcluster.seed",
		trace.WithAttributes(
			attribute.Int("swarmcluster.seed.particles", particles),
			attribute.Int("swarmcluster.seed.dimension", dimension),
		),
	)
}

// StartIteration creates a span for one move + evaluate cycle.
func (p *Provider) StartIteration(ctx context.Context, iteration int) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "swarmcluster.iteration",
		trace.WithAttributes(attribute.Int("swarmcluster.iteration", iteration)),
	)
}

// StartEvaluation creates a span for one swarm evaluation pass.
func (p *Provider) StartEvaluation(ctx context.Context, particles int) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "swarmcluster.evaluate",
		trace.WithAttributes(attribute.Int("swarmcluster.evaluate.particles", particles)),
	)
}

// RecordResult adds the final clustering metrics to a span.
func RecordResult(span trace.Span, fitness, intra, inter float64, iterations int, latency time.Duration) {
	span.SetAttributes(
		attribute.Float64("swarmcluster.result.fitness", fitness),
		attribute.Float64("swarmcluster.result.intra_distance", intra),
		attribute.Float64("swarmcluster.result.inter_distance", inter),
		attribute.Int("swarmcluster.result.iterations", iterations),
		attribute.Int64("swarmcluster.result.latency_ms", latency.Milliseconds()),
	)
}

// RecordBest adds the current global-best fitness to an iteration span.
func RecordBest(span trace.Span, fitness float64) {
	span.SetAttributes(attribute.Float64("swarmcluster.best_fitness", fitness))
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetAttributes(attribute.Bool("error", true))
}
