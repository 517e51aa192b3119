package operations

import (
	"context"
	"fmt"

	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/dataprocessing"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/exporter"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/files"
)

// ExtractStage reads the raw export into the run state
type ExtractStage struct {
	reader *files.Reader
	rawDir string
}

// NewExtractStage creates the extraction stage for rawDir
func NewExtractStage(reader *files.Reader, rawDir string) *ExtractStage {
	return &ExtractStage{reader: reader, rawDir: rawDir}
}

// ID implements Stage
func (s *ExtractStage) ID() string { return StageIDExtract }

// Name implements Stage
func (s *ExtractStage) Name() string { return StageNameExtract }

// Execute implements Stage
func (s *ExtractStage) Execute(ctx context.Context, state *RunState) (*StageOutput, error) {
	raw, diags, err := s.reader.ReadAll(ctx, s.rawDir)
	if err != nil {
		return nil, err
	}
	state.Raw = raw
	return &StageOutput{Tables: rowCounts(raw), Diagnostics: diags}, nil
}

// TransformStage runs the clean, model and aggregate pipeline
type TransformStage struct {
	pipeline *dataprocessing.Pipeline
}

// NewTransformStage creates the transformation stage
func NewTransformStage(pipeline *dataprocessing.Pipeline) *TransformStage {
	return &TransformStage{pipeline: pipeline}
}

// ID implements Stage
func (s *TransformStage) ID() string { return StageIDTransform }

// Name implements Stage
func (s *TransformStage) Name() string { return StageNameTransform }

// Execute implements Stage
func (s *TransformStage) Execute(ctx context.Context, state *RunState) (*StageOutput, error) {
	if state.Raw == nil {
		return nil, fmt.Errorf("no raw tables: %s stage has not run", StageIDExtract)
	}
	result, err := s.pipeline.Run(ctx, state.Raw)
	if err != nil {
		return nil, err
	}
	state.Result = result
	return &StageOutput{Tables: rowCounts(result.Outputs()), Diagnostics: result.Diagnostics}, nil
}

// ExportStage writes the pipeline outputs
type ExportStage struct {
	exporter *exporter.Exporter
}

// NewExportStage creates the export stage
func NewExportStage(e *exporter.Exporter) *ExportStage {
	return &ExportStage{exporter: e}
}

// ID implements Stage
func (s *ExportStage) ID() string { return StageIDExport }

// Name implements Stage
func (s *ExportStage) Name() string { return StageNameExport }

// Execute implements Stage
func (s *ExportStage) Execute(ctx context.Context, state *RunState) (*StageOutput, error) {
	if state.Result == nil {
		return nil, fmt.Errorf("no pipeline result: %s stage has not run", StageIDTransform)
	}
	report, err := s.exporter.Export(ctx, state.Result.Outputs())
	if err != nil {
		return nil, err
	}
	state.Report = report
	return &StageOutput{Tables: report.Tables, Files: report.Files}, nil
}
