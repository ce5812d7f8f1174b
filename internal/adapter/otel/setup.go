// Package otel wires OpenTelemetry tracing and metrics for the engine.
package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ShutdownFunc flushes and shuts down the installed providers.
type ShutdownFunc func(ctx context.Context) error

// InitTracer installs a real SDK TracerProvider and MeterProvider, tagged
// with serviceName, as the process-wide globals. No network exporter is
// configured here: spans and metrics are created, sampled, and
// aggregated in-process, which is enough to give StartActionSpan,
// StartTickSpan, and every Metrics instrument real trace/metric data
// instead of the default SDK's no-op providers. Wiring an OTLP exporter
// is a deployment concern, layered on top of this by whichever
// environment needs to ship the data off-host.
func InitTracer(serviceName string) ShutdownFunc {
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		if err := mp.Shutdown(ctx); err != nil {
			return err
		}
		return tp.Shutdown(ctx)
	}
}
