package telemetry

import (
	"context"
	"encoding/hex"
	"log/slog"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// LogExporter is a SpanExporter that writes each finished span as a debug
// log record.
type LogExporter struct {
	logger *slog.Logger
}

var _ sdktrace.SpanExporter = (*LogExporter)(nil)

// NewLogExporter creates a LogExporter. A nil logger uses slog.Default().
func NewLogExporter(logger *slog.Logger) *LogExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogExporter{logger: logger}
}

// ExportSpans logs every span. It never fails.
func (e *LogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		sc := span.SpanContext()
		traceID := sc.TraceID()
		spanID := sc.SpanID()

		args := []any{
			"span", span.Name(),
			"trace_id", hex.EncodeToString(traceID[:]),
			"span_id", hex.EncodeToString(spanID[:]),
			"duration_ms", span.EndTime().Sub(span.StartTime()).Milliseconds(),
			"status", span.Status().Code.String(),
		}
		if desc := span.Status().Description; desc != "" {
			args = append(args, "status_message", desc)
		}
		for _, attr := range span.Attributes() {
			args = append(args, string(attr.Key), attr.Value.Emit())
		}

		e.logger.DebugContext(ctx, "span finished", args...)
	}
	return nil
}

// Shutdown is a no-op; the logger outlives the exporter.
func (e *LogExporter) Shutdown(context.Context) error {
	return nil
}
