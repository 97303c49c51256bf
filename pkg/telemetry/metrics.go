package telemetry

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// DefaultMetricInterval is how often the periodic reader exports. A final
// export always happens on shutdown.
const DefaultMetricInterval = time.Minute

// MetricLogExporter is a metric Exporter that writes one debug log record
// per data point.
type MetricLogExporter struct {
	logger *slog.Logger
}

var _ sdkmetric.Exporter = (*MetricLogExporter)(nil)

// NewMetricLogExporter creates a MetricLogExporter. A nil logger uses
// slog.Default().
func NewMetricLogExporter(logger *slog.Logger) *MetricLogExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &MetricLogExporter{logger: logger}
}

// NewMeterProvider builds an SDK meter provider that periodically exports
// through a MetricLogExporter.
func NewMeterProvider(service string, logger *slog.Logger, interval time.Duration) *sdkmetric.MeterProvider {
	if interval <= 0 {
		interval = DefaultMetricInterval
	}
	reader := sdkmetric.NewPeriodicReader(NewMetricLogExporter(logger), sdkmetric.WithInterval(interval))
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(resource.NewSchemaless(semconv.ServiceNameKey.String(service))),
	)
}

func (e *MetricLogExporter) Temporality(kind sdkmetric.InstrumentKind) metricdata.Temporality {
	return sdkmetric.DefaultTemporalitySelector(kind)
}

func (e *MetricLogExporter) Aggregation(kind sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(kind)
}

// Export logs every data point. It never fails.
func (e *MetricLogExporter) Export(ctx context.Context, rm *metricdata.ResourceMetrics) error {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					e.log(ctx, m, dp.Attributes, "value", dp.Value)
				}
			case metricdata.Sum[float64]:
				for _, dp := range data.DataPoints {
					e.log(ctx, m, dp.Attributes, "value", dp.Value)
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					e.log(ctx, m, dp.Attributes, "value", dp.Value)
				}
			case metricdata.Gauge[float64]:
				for _, dp := range data.DataPoints {
					e.log(ctx, m, dp.Attributes, "value", dp.Value)
				}
			case metricdata.Histogram[int64]:
				for _, dp := range data.DataPoints {
					e.log(ctx, m, dp.Attributes, "count", dp.Count, "sum", dp.Sum)
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					e.log(ctx, m, dp.Attributes, "count", dp.Count, "sum", dp.Sum)
				}
			}
		}
	}
	return nil
}

func (e *MetricLogExporter) log(ctx context.Context, m metricdata.Metrics, attrs attribute.Set, values ...any) {
	args := []any{"metric", m.Name}
	if m.Unit != "" {
		args = append(args, "unit", m.Unit)
	}
	args = append(args, values...)
	for _, kv := range attrs.ToSlice() {
		args = append(args, string(kv.Key), kv.Value.Emit())
	}
	e.logger.DebugContext(ctx, "metric", args...)
}

// ForceFlush is a no-op; records are written as they are exported.
func (e *MetricLogExporter) ForceFlush(context.Context) error {
	return nil
}

// Shutdown is a no-op; the logger outlives the exporter.
func (e *MetricLogExporter) Shutdown(context.Context) error {
	return nil
}
