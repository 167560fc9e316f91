// Package telemetry configures OpenTelemetry tracing for the custody
// binaries.
//
// Tracing is opt-in: without CUSTODY_OTEL_ENDPOINT, or with
// CUSTODY_OTEL_ENABLED=false, Setup registers nothing and the global no-op
// tracer provider stays in place.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/animus-labs/custody/internal/platform/env"
)

type Config struct {
	Enabled  bool
	Endpoint string
}

func ConfigFromEnv() (Config, error) {
	enabled, err := env.Bool("CUSTODY_OTEL_ENABLED", true)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Enabled:  enabled,
		Endpoint: env.String("CUSTODY_OTEL_ENDPOINT", ""),
	}, nil
}

func (c Config) active() bool {
	return c.Enabled && c.Endpoint != ""
}

// Setup installs a batching OTLP/HTTP tracer provider. The returned
// shutdown flushes pending spans and should be deferred by the caller.
func Setup(ctx context.Context, serviceName string, cfg Config) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !cfg.active() {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	if err != nil {
		return noop, fmt.Errorf("otlp exporter: %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return noop, fmt.Errorf("otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp.Shutdown, nil
}
