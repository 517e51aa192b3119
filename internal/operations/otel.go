package operations

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/infrastructure"
)

// OperationTracer provides OpenTelemetry instrumentation for runs
type OperationTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.PipelineMetrics
	runtime *infrastructure.RuntimeMetrics
}

// NewOperationTracer creates a tracer on the run's telemetry. A nil
// telemetry yields a tracer that records nothing.
func NewOperationTracer(t *infrastructure.Telemetry) *OperationTracer {
	if t == nil {
		return &OperationTracer{tracer: noop.NewTracerProvider().Tracer("operations")}
	}
	return &OperationTracer{tracer: t.Tracer, metrics: t.Metrics, runtime: t.Runtime}
}

// TraceOperationExecution creates a span for the entire run
func (ot *OperationTracer) TraceOperationExecution(ctx context.Context, operationID string, stageCount int) (context.Context, trace.Span) {
	return ot.tracer.Start(ctx, "operation.execute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", operationID),
			attribute.Int("operation.stage_count", stageCount),
		),
	)
}

// TraceStageExecution creates a span for one stage
func (ot *OperationTracer) TraceStageExecution(ctx context.Context, operationID, stageID string) (context.Context, trace.Span) {
	return ot.tracer.Start(ctx, "operation.stage."+stageID,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", operationID),
			attribute.String("stage.id", stageID),
		),
	)
}

// RecordStageCompletion closes out a stage span and records its duration
func (ot *OperationTracer) RecordStageCompletion(ctx context.Context, span trace.Span, stageID string, duration time.Duration, output *StageOutput, err error) {
	span.SetAttributes(attribute.Float64("stage.duration_seconds", duration.Seconds()))
	if output != nil {
		span.SetAttributes(
			attribute.Int("stage.tables", len(output.Tables)),
			attribute.Int("stage.diagnostics", len(output.Diagnostics)),
		)
	}

	if ot.metrics != nil {
		ot.metrics.RecordStage(ctx, "operation."+stageID, duration, err)
	}
	stats := ot.runtime.Record(ctx, stageID)
	span.SetAttributes(attribute.Int64("runtime.heap_alloc_bytes", int64(stats.HeapAllocBytes)))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "stage completed")
}

// RecordOperationCompletion sets the final status of the run span
func (ot *OperationTracer) RecordOperationCompletion(span trace.Span, status StageStatus, err error) {
	span.SetAttributes(attribute.String("operation.status", string(status)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "operation completed")
}
