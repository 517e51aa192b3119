package operations

import (
	"context"

	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/dataprocessing"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/errors"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/exporter"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/pkg/contracts/domain"
)

// Stage is a single unit of work in a run
type Stage interface {
	// ID returns the unique identifier for this stage
	ID() string

	// Name returns the human-readable name for this stage
	Name() string

	// Execute runs the stage, reading its inputs from and writing its
	// results to state
	Execute(ctx context.Context, state *RunState) (*StageOutput, error)
}

// StageOutput describes what a stage produced
type StageOutput struct {
	Tables      map[string]int
	Files       []string
	Diagnostics []*errors.AppError
}

// RunState carries data between the stages of a run
type RunState struct {
	Raw         domain.Tables
	Result      *dataprocessing.Result
	Report      *exporter.Report
	Diagnostics []*errors.AppError
}

// StageFunc adapts a function to the Stage interface
type StageFunc struct {
	StageID   string
	StageName string
	Fn        func(ctx context.Context, state *RunState) (*StageOutput, error)
}

// ID implements Stage
func (s StageFunc) ID() string { return s.StageID }

// Name implements Stage
func (s StageFunc) Name() string { return s.StageName }

// Execute implements Stage
func (s StageFunc) Execute(ctx context.Context, state *RunState) (*StageOutput, error) {
	return s.Fn(ctx, state)
}

// rowCounts returns the number of rows of each table
func rowCounts(tables domain.Tables) map[string]int {
	counts := make(map[string]int, len(tables))
	for name, t := range tables {
		counts[name] = t.NumRows()
	}
	return counts
}
