package models

import "time"

// JobState is the lifecycle state of an export job.
//
//	Planning -> Extracting -> Rendering -> Succeeded
//	    |           |             |
//	    +-----------+-------------+-> Cancelled
//	                |             |
//	                +-------------+-> Failed
type JobState string

const (
	JobPlanning   JobState = "planning"
	JobExtracting JobState = "extracting"
	JobRendering  JobState = "rendering"
	JobSucceeded  JobState = "succeeded"
	JobFailed     JobState = "failed"
	JobCancelled  JobState = "cancelled"
)

// IsTerminal returns true for succeeded, failed, or cancelled.
func (s JobState) IsTerminal() bool {
	return s == JobSucceeded || s == JobFailed || s == JobCancelled
}

// CanTransition reports whether the state machine permits moving to next.
func (s JobState) CanTransition(next JobState) bool {
	if s.IsTerminal() {
		return false
	}
	switch next {
	case JobCancelled, JobFailed:
		return true
	case JobExtracting:
		return s == JobPlanning
	case JobRendering:
		return s == JobExtracting
	case JobSucceeded:
		return s == JobRendering
	default:
		return false
	}
}

// ExportJobRecord is the persisted history row for an export job.
type ExportJobRecord struct {
	BaseModel

	CollectionID string   `gorm:"size:64;index" json:"collection_id"`
	ClipType     ClipType `gorm:"size:16" json:"clip_type"`
	StartMs      int64    `json:"start_ms"`
	EndMs        int64    `json:"end_ms"`
	CameraCount  int      `json:"camera_count"`
	Quality      Quality  `gorm:"size:16" json:"quality"`
	OutputPath   string   `gorm:"size:1024" json:"output_path"`

	State       JobState  `gorm:"size:16;index" json:"state"`
	ProgressPct float64   `json:"progress_pct"`
	ErrorKind   ErrorKind `gorm:"size:32" json:"error_kind,omitempty"`
	ErrorDetail string    `gorm:"size:2048" json:"error_detail,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TableName overrides the GORM table name.
func (ExportJobRecord) TableName() string {
	return "export_jobs"
}
