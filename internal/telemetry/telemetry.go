// Package telemetry installs the process-wide OpenTelemetry tracer
// provider. Without an endpoint the global no-op provider stays in place.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config selects the trace exporter.
type Config struct {
	// Endpoint is the OTLP/HTTP collector, host:port. Empty disables tracing.
	Endpoint string
	// Insecure sends spans over plain HTTP.
	Insecure bool
	// SampleRatio is the fraction of root spans kept. Nil keeps all.
	SampleRatio *float64
	// Service and Version label the resource.
	Service string
	Version string
}

// Shutdown flushes pending spans.
type Shutdown func(context.Context) error

func noop(context.Context) error { return nil }

// Setup installs a batching OTLP tracer provider as the global provider.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (Shutdown, error) {
	if cfg.Endpoint == "" {
		return noop, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: exporter: %w", err)
	}

	tp := NewProvider(cfg, sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		logger.Warn("telemetry error", "error", err)
	}))

	logger.Info("tracing enabled", "endpoint", cfg.Endpoint)
	return tp.Shutdown, nil
}

// NewProvider builds a tracer provider with the configured sampler and
// resource. Extra options pick the span processor.
func NewProvider(cfg Config, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	service := cfg.Service
	if service == "" {
		service = "sdiscuss"
	}
	res := resource.NewSchemaless(
		attribute.String("service.name", service),
		attribute.String("service.version", cfg.Version),
	)
	opts = append([]sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(cfg.SampleRatio)),
	}, opts...)
	return sdktrace.NewTracerProvider(opts...)
}

// Sampler returns a parent-based ratio sampler. Nil keeps every trace.
func Sampler(ratio *float64) sdktrace.Sampler {
	if ratio == nil {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(*ratio))
}
