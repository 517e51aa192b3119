package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/config"
)

const (
	ServiceName    = "olist-etl"
	ServiceVersion = config.AppVersion
	MeterName      = "github.com/douglas-data-analyst/etl-power-bi-dashboard"
)

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	EnableTracing  bool
	// TraceWriter receives pretty-printed spans when tracing is enabled.
	TraceWriter io.Writer
}

// Telemetry holds the tracer and meter used by a run.
type Telemetry struct {
	Tracer        trace.Tracer
	Meter         metric.Meter
	Registry      *prom.Registry
	Metrics       *PipelineMetrics
	Runtime       *RuntimeMetrics
	traceProvider *sdktrace.TracerProvider
	meterProvider *sdkmetric.MeterProvider
	logger        *slog.Logger
}

// PipelineMetrics are the instruments recorded by the pipeline stages
type PipelineMetrics struct {
	stageDuration metric.Float64Histogram
	stageRuns     metric.Int64Counter
	tableRows     metric.Int64Counter
	diagnostics   metric.Int64Counter
}

// NewOTelConfig maps the telemetry configuration onto an OTelConfig
func NewOTelConfig(cfg config.TelemetryConfig, traceWriter io.Writer) *OTelConfig {
	return &OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: ServiceVersion,
		EnableTracing:  cfg.Tracing,
		TraceWriter:    traceWriter,
	}
}

// InitializeTelemetry sets up tracing and a Prometheus-backed meter provider.
// Metrics are always collected on a private registry so a batch run can
// dump them to a textfile at exit.
func InitializeTelemetry(cfg *OTelConfig, logger *slog.Logger) (*Telemetry, error) {
	if cfg == nil {
		cfg = &OTelConfig{ServiceName: ServiceName, ServiceVersion: ServiceVersion}
	}
	if logger == nil {
		logger = GetLogger()
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		attribute.String("service.instance.id", GenerateTraceID()),
	)

	t := &Telemetry{logger: logger}

	if cfg.EnableTracing && cfg.TraceWriter != nil {
		exporter, err := stdouttrace.New(
			stdouttrace.WithWriter(cfg.TraceWriter),
			stdouttrace.WithPrettyPrint(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		t.traceProvider = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		t.Tracer = t.traceProvider.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
	} else {
		t.Tracer = noop.NewTracerProvider().Tracer(MeterName)
	}

	t.Registry = prom.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(t.Registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	t.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	t.Meter = t.meterProvider.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))

	t.Metrics, err = CreatePipelineMetrics(t.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}
	t.Runtime, err = NewRuntimeMetrics(t.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime metrics: %w", err)
	}

	logger.Debug("telemetry initialized",
		slog.String("service", cfg.ServiceName),
		slog.Bool("tracing_enabled", t.traceProvider != nil))

	return t, nil
}

// CreatePipelineMetrics creates the pipeline instruments on the given meter
func CreatePipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	stageDuration, err := meter.Float64Histogram(
		"etl.stage.duration",
		metric.WithDescription("Pipeline stage duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	stageRuns, err := meter.Int64Counter(
		"etl.stage.runs",
		metric.WithDescription("Pipeline stage executions by outcome"),
	)
	if err != nil {
		return nil, err
	}

	tableRows, err := meter.Int64Counter(
		"etl.table.rows",
		metric.WithDescription("Rows produced per output table"),
	)
	if err != nil {
		return nil, err
	}

	diagnostics, err := meter.Int64Counter(
		"etl.diagnostics",
		metric.WithDescription("Recovered data issues by type"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		stageDuration: stageDuration,
		stageRuns:     stageRuns,
		tableRows:     tableRows,
		diagnostics:   diagnostics,
	}, nil
}

// RecordStage records the duration and outcome of one stage
func (m *PipelineMetrics) RecordStage(ctx context.Context, stage string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.stageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("stage", stage)))
	m.stageRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("status", status),
	))
}

// RecordTable records the row count of a table produced by a stage
func (m *PipelineMetrics) RecordTable(ctx context.Context, stage, table string, rows int) {
	if m == nil {
		return
	}
	m.tableRows.Add(ctx, int64(rows), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("table", table),
	))
}

// RecordDiagnostic counts a recovered data issue
func (m *PipelineMetrics) RecordDiagnostic(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.diagnostics.Add(ctx, 1, metric.WithAttributes(attribute.String("type", kind)))
}

// WriteMetricsFile writes the registry in the node_exporter textfile format
func (t *Telemetry) WriteMetricsFile(path string) error {
	if err := prom.WriteToTextfile(path, t.Registry); err != nil {
		return fmt.Errorf("failed to write metrics file %s: %w", path, err)
	}
	t.logger.Info("metrics written", slog.String("path", path))
	return nil
}

// Shutdown flushes and stops the providers
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.traceProvider != nil {
		if err := t.traceProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}
