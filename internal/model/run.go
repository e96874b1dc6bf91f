package model

import "time"

// RunStatus represents the state of a pipeline run or stage.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Stage names, in pipeline order.
const (
	StageResolve    = "resolve"
	StageCrossref   = "crossref"
	StageChain      = "chain"
	StageConfidence = "confidence"
	StageVerify     = "verify"
)

// Run is one invocation of the pipeline against a workspace.
type Run struct {
	ID        string     `json:"id"`
	Workspace string     `json:"workspace"`
	Command   string     `json:"command"`
	Status    RunStatus  `json:"status"`
	Error     string     `json:"error,omitempty"`
	Stages    []RunStage `json:"stages,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunStage records one stage within a run.
type RunStage struct {
	ID          string           `json:"id"`
	RunID       string           `json:"run_id"`
	Name        string           `json:"name"`
	Status      RunStatus        `json:"status"`
	Counts      map[string]int64 `json:"counts,omitempty"`
	Error       string           `json:"error,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}
