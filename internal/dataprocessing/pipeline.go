package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/config"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/errors"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/infrastructure"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/pkg/contracts/domain"
)

// Stage names
const (
	StageClean     = "clean"
	StageModel     = "model"
	StageAggregate = "aggregate"
)

// Output name prefixes
const (
	DimensionPrefix = "dim_"
	AggregatePrefix = "agg_"
)

// Result holds every table produced by one run
type Result struct {
	Cleaned     domain.Tables
	Dimensions  domain.Tables
	Fact        *domain.Table
	Aggregates  domain.Tables
	Diagnostics []*errors.AppError
}

// Outputs returns the star schema and aggregates under their export names:
// dim_<name>, fact_sales and agg_<name>.
func (r *Result) Outputs() domain.Tables {
	out := make(domain.Tables, len(r.Dimensions)+len(r.Aggregates)+1)
	for name, t := range r.Dimensions {
		out[DimensionPrefix+name] = t
	}
	if r.Fact != nil {
		out[domain.FactSales] = r.Fact
	}
	for name, t := range r.Aggregates {
		out[AggregatePrefix+name] = t
	}
	return out
}

// Pipeline runs the cleaner, modeler and aggregator in sequence
type Pipeline struct {
	logger     *slog.Logger
	cleaner    *Cleaner
	modeler    *Modeler
	aggregator *Aggregator
	tracer     trace.Tracer
	metrics    *infrastructure.PipelineMetrics
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithTelemetry records spans and stage metrics on the given telemetry
func WithTelemetry(t *infrastructure.Telemetry) Option {
	return func(p *Pipeline) {
		if t == nil {
			return
		}
		p.tracer = t.Tracer
		p.metrics = t.Metrics
	}
}

// NewPipeline creates a pipeline for the given configuration
func NewPipeline(logger *slog.Logger, cfg config.PipelineConfig, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	logger = infrastructure.WithComponent(logger, "pipeline")
	p := &Pipeline{
		logger:     logger,
		cleaner:    NewCleaner(logger, cfg),
		modeler:    NewModeler(logger),
		aggregator: NewAggregator(logger),
		tracer:     noop.NewTracerProvider().Tracer(infrastructure.MeterName),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run transforms the raw tables into the star schema and its aggregates.
// Only structural problems abort the run; recovered issues are returned in
// Result.Diagnostics.
func (p *Pipeline) Run(ctx context.Context, raw domain.Tables) (*Result, error) {
	ctx = infrastructure.EnsureTraceID(ctx)
	ctx, span := p.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.Int("raw.tables", len(raw))))
	defer span.End()

	start := time.Now()
	result := &Result{}

	p.logger.InfoContext(ctx, "pipeline started", slog.Int("raw_tables", len(raw)))

	err := p.stage(ctx, StageClean, func(ctx context.Context) (domain.Tables, []*errors.AppError, error) {
		cleaned, diags, err := p.cleaner.Clean(ctx, raw)
		result.Cleaned = cleaned
		return cleaned, diags, err
	}, result)
	if err != nil {
		return nil, p.fail(span, err)
	}

	err = p.stage(ctx, StageModel, func(ctx context.Context) (domain.Tables, []*errors.AppError, error) {
		model, diags, err := p.modeler.Build(ctx, result.Cleaned)
		if err != nil {
			return nil, nil, err
		}
		result.Dimensions = model.Dimensions
		result.Fact = model.Fact
		produced := make(domain.Tables, len(model.Dimensions)+1)
		for name, t := range model.Dimensions {
			produced[DimensionPrefix+name] = t
		}
		produced[domain.FactSales] = model.Fact
		return produced, diags, nil
	}, result)
	if err != nil {
		return nil, p.fail(span, err)
	}

	err = p.stage(ctx, StageAggregate, func(ctx context.Context) (domain.Tables, []*errors.AppError, error) {
		aggs, diags, err := p.aggregator.Aggregate(ctx, result.Fact, result.Dimensions)
		result.Aggregates = aggs
		return aggs, diags, err
	}, result)
	if err != nil {
		return nil, p.fail(span, err)
	}

	span.SetAttributes(
		attribute.Int("fact.rows", result.Fact.NumRows()),
		attribute.Int("diagnostics", len(result.Diagnostics)),
	)
	p.logger.InfoContext(ctx, "pipeline completed",
		slog.Int("dimensions", len(result.Dimensions)),
		slog.Int("fact_rows", result.Fact.NumRows()),
		slog.Int("aggregates", len(result.Aggregates)),
		slog.Int("diagnostics", len(result.Diagnostics)),
		slog.Duration("duration", time.Since(start)))

	return result, nil
}

// stage runs fn inside a span, records its metrics and collects its diagnostics
func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) (domain.Tables, []*errors.AppError, error), result *Result) error {
	ctx, span := p.tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	start := time.Now()
	tables, diags, err := fn(ctx)
	elapsed := time.Since(start)
	p.metrics.RecordStage(ctx, name, elapsed, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.ErrorContext(ctx, "stage failed",
			slog.String("stage", name),
			slog.String("error", err.Error()))
		return fmt.Errorf("%s stage: %w", name, err)
	}

	for _, tableName := range sortedNames(tables) {
		rows := tables[tableName].NumRows()
		p.metrics.RecordTable(ctx, name, tableName, rows)
		span.SetAttributes(attribute.Int("rows."+tableName, rows))
	}
	for _, d := range diags {
		p.metrics.RecordDiagnostic(ctx, string(d.Type))
		p.logger.WarnContext(ctx, d.Message,
			slog.String("stage", name),
			slog.String("type", string(d.Type)))
	}
	result.Diagnostics = append(result.Diagnostics, diags...)

	p.logger.InfoContext(ctx, "stage completed",
		slog.String("stage", name),
		slog.Int("tables", len(tables)),
		slog.Int("diagnostics", len(diags)),
		slog.Duration("duration", elapsed))
	return nil
}

func (p *Pipeline) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
