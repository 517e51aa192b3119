package operations

import (
	"time"
)

// Stage identifiers
const (
	StageIDExtract   = "extract"
	StageIDTransform = "transform"
	StageIDExport    = "export"
)

// Stage names
const (
	StageNameExtract   = "Raw Data Extraction"
	StageNameTransform = "Clean, Model and Aggregate"
	StageNameExport    = "Output Export"
)

// StageStatus represents the status of a stage or of the whole run
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusRunning   StageStatus = "running"
	StageStatusCompleted StageStatus = "completed"
	StageStatusFailed    StageStatus = "failed"
	StageStatusSkipped   StageStatus = "skipped"
)

// DefaultStageTimeout bounds a single stage when no deadline is set
const DefaultStageTimeout = 30 * time.Minute
