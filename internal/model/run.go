package model

import "time"

// RunStatus represents the current state of an analysis run.
type RunStatus string

const (
	RunStatusQueued          RunStatus = "queued"
	RunStatusSegmenting      RunStatus = "segmenting"
	RunStatusIndexing        RunStatus = "indexing"
	RunStatusSchemaDiscovery RunStatus = "schema_discovery"
	RunStatusEntityDiscovery RunStatus = "entity_discovery"
	RunStatusAnalyzing       RunStatus = "analyzing"
	RunStatusComplete        RunStatus = "complete"
	RunStatusAborted         RunStatus = "aborted"
	RunStatusFailed          RunStatus = "failed"
)

// Run represents a single persisted analysis run.
type Run struct {
	ID        string     `json:"id"`
	Query     string     `json:"query"`
	Category  string     `json:"category"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunPhase represents a stage within a run.
type RunPhase struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	Name      string       `json:"name"`
	Status    PhaseStatus  `json:"status"`
	Result    *PhaseResult `json:"result,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}

// PhaseStatus represents the current state of a pipeline stage.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// PhaseResult holds the outcome of a pipeline stage.
type PhaseResult struct {
	Name     string         `json:"name"`
	Status   PhaseStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
