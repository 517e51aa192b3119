package operations

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/config"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/errors"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/files"
)

func TestNewRunManifest(t *testing.T) {
	m := NewRunManifest("trace-1", "/raw", "/out", []string{"csv"})

	assert.NotEmpty(t, m.ID)
	assert.Equal(t, "trace-1", m.TraceID)
	assert.Equal(t, StageStatusPending, m.Status)
	assert.Empty(t, m.Stages)
	assert.Equal(t, []string{"csv"}, m.Formats)
	assert.NotEqual(t, m.ID, NewRunManifest("", "", "", nil).ID)
}

func TestRunManifest_StageLifecycle(t *testing.T) {
	m := NewRunManifest("", "/raw", "/out", nil)

	m.RecordStageStart(StageIDExtract, StageNameExtract)
	assert.Equal(t, StageStatusRunning, m.Status)
	assert.False(t, m.IsStageCompleted(StageIDExtract))

	m.RecordStageCompletion(StageIDExtract, &StageOutput{
		Tables: map[string]int{"orders": 3},
		Diagnostics: []*errors.AppError{
			errors.NewMissingInputError("reviews", "extract"),
			errors.NewParsingError("orders.order_purchase_timestamp: 1 unparsable timestamps", nil),
		},
	})
	assert.True(t, m.IsStageCompleted(StageIDExtract))

	stage, ok := m.Stage(StageIDExtract)
	require.True(t, ok)
	assert.Equal(t, map[string]int{"orders": 3}, stage.Tables)
	assert.Equal(t, 2, stage.Diagnostics)
	assert.NotEmpty(t, stage.Duration)

	require.Len(t, m.Diagnostics, 2)
	assert.Equal(t, StageIDExtract, m.Diagnostics[0].Stage)
	assert.Equal(t, "reviews", m.Diagnostics[0].Context[errors.ContextTable])
	assert.Equal(t, map[string]int{"MISSING_INPUT": 1, "PARSING": 1}, m.DiagnosticCounts())

	m.Complete()
	assert.Equal(t, StageStatusCompleted, m.Status)
}

func TestRunManifest_Failure(t *testing.T) {
	m := NewRunManifest("", "", "", nil)
	m.RecordStageStart(StageIDTransform, StageNameTransform)
	m.RecordStageFailure(StageIDTransform, fmt.Errorf("orders.order_id: missing"))
	m.RecordStageSkipped(StageIDExport, StageNameExport)
	m.Complete()

	assert.Equal(t, StageStatusFailed, m.Status, "complete does not hide a failure")
	assert.Contains(t, m.Error, "stage transform failed")

	stage, ok := m.Stage(StageIDTransform)
	require.True(t, ok)
	assert.Equal(t, StageStatusFailed, stage.Status)

	skipped, ok := m.Stage(StageIDExport)
	require.True(t, ok)
	assert.Equal(t, StageStatusSkipped, skipped.Status)
}

func TestRunManifest_RetryReusesEntry(t *testing.T) {
	m := NewRunManifest("", "", "", nil)
	m.RecordStageStart(StageIDExport, StageNameExport)
	m.RecordStageFailure(StageIDExport, fmt.Errorf("disk full"))
	m.RecordStageStart(StageIDExport, StageNameExport)

	require.Len(t, m.Stages, 1)
	assert.Equal(t, StageStatusRunning, m.Stages[0].Status)
	assert.Empty(t, m.Stages[0].Error)
}

func TestRunManifest_SaveAndLoad(t *testing.T) {
	base := t.TempDir()
	paths := &config.Paths{
		BaseDir:   base,
		OutputDir: filepath.Join(base, "out"),
		Manifest:  filepath.Join(base, "out", "manifest.json"),
	}
	manager := files.NewManager(paths)

	m := NewRunManifest("trace-9", "/raw", paths.OutputDir, []string{"csv", "xlsx"})
	m.RecordStageStart(StageIDExtract, StageNameExtract)
	m.RecordStageCompletion(StageIDExtract, &StageOutput{
		Tables:      map[string]int{"orders": 2},
		Diagnostics: []*errors.AppError{errors.NewAggregationError("sales_by_date", "avg_order_value", 1)},
	})
	m.Complete()
	require.NoError(t, m.Save(manager))

	loaded, err := LoadManifestFromFile(paths.Manifest)
	require.NoError(t, err)
	assert.Equal(t, m.ID, loaded.ID)
	assert.Equal(t, "trace-9", loaded.TraceID)
	assert.Equal(t, StageStatusCompleted, loaded.Status)
	require.Len(t, loaded.Stages, 1)
	assert.Equal(t, map[string]int{"orders": 2}, loaded.Stages[0].Tables)
	require.Len(t, loaded.Diagnostics, 1)
	assert.Equal(t, "AGGREGATION", loaded.Diagnostics[0].Type)
	assert.EqualValues(t, 1, loaded.Diagnostics[0].Context[errors.ContextCount])
}

func TestLoadManifestFromFile_Errors(t *testing.T) {
	_, err := LoadManifestFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
