package operations

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/errors"
)

// Runner executes stages in order and records them in a manifest
type Runner struct {
	manifest     *RunManifest
	logger       *slog.Logger
	tracer       *OperationTracer
	stageTimeout time.Duration
}

// NewRunner creates a runner recording into manifest. A nil tracer records
// no spans.
func NewRunner(manifest *RunManifest, logger *slog.Logger, tracer *OperationTracer) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = NewOperationTracer(nil)
	}
	return &Runner{
		manifest:     manifest,
		logger:       logger.With(slog.String("component", "runner")),
		tracer:       tracer,
		stageTimeout: DefaultStageTimeout,
	}
}

// SetStageTimeout changes the per-stage deadline. Zero disables it.
func (r *Runner) SetStageTimeout(d time.Duration) {
	r.stageTimeout = d
}

// Manifest returns the manifest the runner records into
func (r *Runner) Manifest() *RunManifest {
	return r.manifest
}

// Execute runs stages sequentially against a fresh state. The first failure
// stops the run; the remaining stages are recorded as skipped.
func (r *Runner) Execute(ctx context.Context, stages ...Stage) (*RunState, error) {
	start := time.Now()
	state := &RunState{}

	ctx, span := r.tracer.TraceOperationExecution(ctx, r.manifest.ID, len(stages))
	defer span.End()

	r.logger.InfoContext(ctx, "operation_start",
		slog.String("operation_id", r.manifest.ID),
		slog.Int("stage_count", len(stages)))

	for i, stage := range stages {
		if err := r.executeStage(ctx, stage, state); err != nil {
			for _, rest := range stages[i+1:] {
				r.manifest.RecordStageSkipped(rest.ID(), rest.Name())
			}
			r.tracer.RecordOperationCompletion(span, StageStatusFailed, err)
			r.logger.ErrorContext(ctx, "operation_error",
				slog.String("operation_id", r.manifest.ID),
				slog.String("error", err.Error()))
			return state, err
		}
	}

	r.manifest.Complete()
	r.tracer.RecordOperationCompletion(span, r.manifest.Status, nil)
	r.logger.InfoContext(ctx, "operation_complete",
		slog.String("operation_id", r.manifest.ID),
		slog.String("status", string(r.manifest.Status)),
		slog.Int("diagnostic_count", len(state.Diagnostics)),
		slog.Duration("duration", time.Since(start)))
	return state, nil
}

func (r *Runner) executeStage(ctx context.Context, stage Stage, state *RunState) error {
	r.manifest.RecordStageStart(stage.ID(), stage.Name())

	if err := ctx.Err(); err != nil {
		opErr := NewCancellationError(stage.ID(), err)
		r.manifest.RecordStageFailure(stage.ID(), opErr)
		return opErr
	}

	stageCtx, span := r.tracer.TraceStageExecution(ctx, r.manifest.ID, stage.ID())
	defer span.End()
	if r.stageTimeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(stageCtx, r.stageTimeout)
		defer cancel()
	}

	r.logger.InfoContext(ctx, "stage_start",
		slog.String("operation_id", r.manifest.ID),
		slog.String("stage", stage.ID()))
	started := time.Now()

	output, err := stage.Execute(stageCtx, state)
	r.tracer.RecordStageCompletion(stageCtx, span, stage.ID(), time.Since(started), output, err)
	if err != nil {
		opErr := r.classify(ctx, stageCtx, stage.ID(), err)
		r.manifest.RecordStageFailure(stage.ID(), opErr)
		r.logger.ErrorContext(ctx, "stage_error",
			slog.String("operation_id", r.manifest.ID),
			slog.String("stage", stage.ID()),
			slog.String("error", err.Error()))
		return opErr
	}
	if fatal := firstFatal(output); fatal != nil {
		opErr := NewExecutionError(stage.ID(), fatal)
		r.manifest.RecordStageFailure(stage.ID(), opErr)
		r.logger.ErrorContext(ctx, "stage_error",
			slog.String("operation_id", r.manifest.ID),
			slog.String("stage", stage.ID()),
			slog.String("error", fatal.Error()))
		return opErr
	}

	r.manifest.RecordStageCompletion(stage.ID(), output)
	attrs := []any{
		slog.String("operation_id", r.manifest.ID),
		slog.String("stage", stage.ID()),
		slog.Duration("duration", time.Since(started)),
	}
	if output != nil {
		state.Diagnostics = append(state.Diagnostics, output.Diagnostics...)
		attrs = append(attrs,
			slog.Int("table_count", len(output.Tables)),
			slog.Int("diagnostic_count", len(output.Diagnostics)))
	}
	r.logger.InfoContext(ctx, "stage_complete", attrs...)
	return nil
}

// firstFatal returns the first diagnostic that must abort the run. Stages
// report only recoverable problems as diagnostics.
func firstFatal(output *StageOutput) *errors.AppError {
	if output == nil {
		return nil
	}
	for _, d := range output.Diagnostics {
		if d.Fatal() {
			return d
		}
	}
	return nil
}

func (r *Runner) classify(parent, stageCtx context.Context, stageID string, err error) *OperationError {
	switch {
	case parent.Err() != nil:
		return NewCancellationError(stageID, err)
	case stderrors.Is(stageCtx.Err(), context.DeadlineExceeded):
		return NewTimeoutError(stageID, err)
	default:
		return NewExecutionError(stageID, err)
	}
}
