// Package telemetry wires OpenTelemetry providers for the memories proxy.
// Spans and metrics are both exported to the process logger at debug level.
package telemetry

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Providers bundles the tracer and meter providers handed to the upstream
// client.
type Providers struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider

	shutdown func(context.Context) error
}

// NewTracerProvider builds an SDK tracer provider that exports every span
// synchronously through a LogExporter.
func NewTracerProvider(service string, logger *slog.Logger) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(NewLogExporter(logger))),
		sdktrace.WithResource(resource.NewSchemaless(semconv.ServiceNameKey.String(service))),
	)
}

// New returns log-exporting providers when enabled and no-op providers
// otherwise.
func New(enabled bool, service string, logger *slog.Logger) *Providers {
	if !enabled {
		return Noop()
	}

	tp := NewTracerProvider(service, logger)
	mp := NewMeterProvider(service, logger, DefaultMetricInterval)
	return &Providers{
		TracerProvider: tp,
		MeterProvider:  mp,
		shutdown: func(ctx context.Context) error {
			return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
		},
	}
}

// Noop returns providers that record nothing.
func Noop() *Providers {
	return &Providers{
		TracerProvider: tracenoop.NewTracerProvider(),
		MeterProvider:  metricnoop.NewMeterProvider(),
	}
}

// Shutdown flushes and stops the SDK providers, if they were started. The
// meter provider exports its final collection on the way out.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}
