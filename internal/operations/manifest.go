package operations

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/errors"
	"github.com/douglas-data-analyst/etl-power-bi-dashboard/internal/files"
)

// RunManifest records what a run did. It is the single record of a run's
// stages, diagnostics and outputs and is saved next to the outputs.
type RunManifest struct {
	mu sync.RWMutex `json:"-"`

	// Identity
	ID        string    `json:"id"`
	TraceID   string    `json:"trace_id,omitempty"`
	StartTime time.Time `json:"start_time"`

	// Configuration
	RawDir    string   `json:"raw_dir"`
	OutputDir string   `json:"output_dir"`
	Formats   []string `json:"formats"`

	// Execution tracking
	Stages      []StageExecution `json:"stages"`
	Diagnostics []Diagnostic     `json:"diagnostics"`

	// Current status
	Status      StageStatus `json:"status"`
	LastUpdated time.Time   `json:"last_updated"`
	Error       string      `json:"error,omitempty"`
}

// StageExecution tracks the execution of a single stage
type StageExecution struct {
	StageID     string         `json:"stage_id"`
	StageName   string         `json:"stage_name"`
	StartTime   time.Time      `json:"start_time"`
	EndTime     time.Time      `json:"end_time"`
	Duration    string         `json:"duration"`
	Status      StageStatus    `json:"status"`
	Tables      map[string]int `json:"tables,omitempty"`
	Files       []string       `json:"files,omitempty"`
	Diagnostics int            `json:"diagnostics"`
	Error       string         `json:"error,omitempty"`
}

// Diagnostic is the serialized form of a non-fatal pipeline error
type Diagnostic struct {
	Stage   string         `json:"stage"`
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}

// NewRunManifest creates a pending manifest with a fresh id
func NewRunManifest(traceID, rawDir, outputDir string, formats []string) *RunManifest {
	now := time.Now()
	return &RunManifest{
		ID:          uuid.New().String(),
		TraceID:     traceID,
		StartTime:   now,
		RawDir:      rawDir,
		OutputDir:   outputDir,
		Formats:     append([]string(nil), formats...),
		Stages:      []StageExecution{},
		Diagnostics: []Diagnostic{},
		Status:      StageStatusPending,
		LastUpdated: now,
	}
}

// RecordStageStart records the start of a stage execution
func (m *RunManifest) RecordStageStart(stageID, stageName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.Status = StageStatusRunning
	m.LastUpdated = now

	// Retried stages reuse their entry
	for i, stage := range m.Stages {
		if stage.StageID == stageID {
			m.Stages[i].StartTime = now
			m.Stages[i].Status = StageStatusRunning
			m.Stages[i].Error = ""
			return
		}
	}

	m.Stages = append(m.Stages, StageExecution{
		StageID:   stageID,
		StageName: stageName,
		StartTime: now,
		Status:    StageStatusRunning,
	})
}

// RecordStageCompletion records the completion of a stage and its output
func (m *RunManifest) RecordStageCompletion(stageID string, output *StageOutput) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for i, stage := range m.Stages {
		if stage.StageID != stageID {
			continue
		}
		m.Stages[i].EndTime = now
		m.Stages[i].Duration = now.Sub(stage.StartTime).String()
		m.Stages[i].Status = StageStatusCompleted
		if output != nil {
			m.Stages[i].Tables = output.Tables
			m.Stages[i].Files = output.Files
			m.Stages[i].Diagnostics = len(output.Diagnostics)
			for _, d := range output.Diagnostics {
				m.Diagnostics = append(m.Diagnostics, newDiagnostic(stageID, d))
			}
		}
		break
	}
	m.LastUpdated = now
}

// RecordStageFailure records a stage failure and fails the run
func (m *RunManifest) RecordStageFailure(stageID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for i, stage := range m.Stages {
		if stage.StageID == stageID {
			m.Stages[i].EndTime = now
			m.Stages[i].Duration = now.Sub(stage.StartTime).String()
			m.Stages[i].Status = StageStatusFailed
			m.Stages[i].Error = err.Error()
			break
		}
	}
	m.Status = StageStatusFailed
	m.Error = fmt.Sprintf("stage %s failed: %v", stageID, err)
	m.LastUpdated = now
}

// RecordStageSkipped records a stage that did not run
func (m *RunManifest) RecordStageSkipped(stageID, stageName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Stages = append(m.Stages, StageExecution{
		StageID:   stageID,
		StageName: stageName,
		Status:    StageStatusSkipped,
	})
	m.LastUpdated = time.Now()
}

// Complete marks the run completed unless a stage failed
func (m *RunManifest) Complete() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Status != StageStatusFailed {
		m.Status = StageStatusCompleted
	}
	m.LastUpdated = time.Now()
}

// IsStageCompleted checks if a stage has been completed
func (m *RunManifest) IsStageCompleted(stageID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, stage := range m.Stages {
		if stage.StageID == stageID && stage.Status == StageStatusCompleted {
			return true
		}
	}
	return false
}

// Stage returns a copy of the execution record of a stage
func (m *RunManifest) Stage(stageID string) (StageExecution, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, stage := range m.Stages {
		if stage.StageID == stageID {
			return stage, true
		}
	}
	return StageExecution{}, false
}

// DiagnosticCounts returns the number of diagnostics per error type
func (m *RunManifest) DiagnosticCounts() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int)
	for _, d := range m.Diagnostics {
		counts[d.Type]++
	}
	return counts
}

// Save writes the manifest as indented JSON to the run's manifest path
func (m *RunManifest) Save(manager *files.Manager) error {
	return m.SaveToFile(manager, manager.Paths().Manifest)
}

// SaveToFile writes the manifest as indented JSON to path
func (m *RunManifest) SaveToFile(manager *files.Manager, path string) error {
	m.mu.RLock()
	data, err := json.MarshalIndent(m, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := manager.WriteFile(path, data); err != nil {
		return fmt.Errorf("failed to write manifest file: %w", err)
	}
	return nil
}

// LoadManifestFromFile loads a manifest from a JSON file
func LoadManifestFromFile(path string) (*RunManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	var manifest RunManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	return &manifest, nil
}

func newDiagnostic(stage string, err *errors.AppError) Diagnostic {
	d := Diagnostic{
		Stage:   stage,
		Type:    string(err.Type),
		Message: err.Error(),
	}
	if len(err.Context) > 0 {
		keys := make([]string, 0, len(err.Context))
		for k := range err.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d.Context = make(map[string]any, len(keys))
		for _, k := range keys {
			d.Context[k] = err.Context[k]
		}
	}
	return d
}
