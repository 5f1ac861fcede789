package models

import (
	"fmt"
)

// SessionStatus represents the lifecycle state of a workflow session
type SessionStatus string

// SessionStatus constants
const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusAborted   SessionStatus = "aborted"
)

// IsValidSessionStatus checks if a given SessionStatus is one of the valid constants
func IsValidSessionStatus(status SessionStatus) bool {
	switch status {
	case SessionStatusActive, SessionStatusCompleted, SessionStatusAborted:
		return true
	default:
		return false
	}
}

// StepProgress tracks one step's execution inside a session
type StepProgress struct {
	StepID          string            `json:"step_id" validate:"required"`
	StartedAt       string            `json:"started_at"`
	CompletedAt     string            `json:"completed_at,omitempty"`
	Outputs         map[string]any    `json:"outputs,omitempty"`
	Notes           string            `json:"notes,omitempty"`
	QualityAttempts int               `json:"quality_attempts" validate:"min=0"`
}

// WorkflowSession is one in-flight execution of a workflow, persisted as
// session_{id}.json under the project tmp directory.
type WorkflowSession struct {
	SessionID         string                   `json:"session_id" validate:"required"`
	JobName           string                   `json:"job_name" validate:"required"`
	WorkflowName      string                   `json:"workflow_name" validate:"required"`
	Goal              string                   `json:"goal"`
	InstanceID        string                   `json:"instance_id,omitempty"`
	CurrentStepID     string                   `json:"current_step_id"`
	CurrentEntryIndex int                      `json:"current_entry_index" validate:"min=0"`
	Status            SessionStatus            `json:"status" validate:"required,oneof=active completed aborted"`
	AbortReason       string                   `json:"abort_reason,omitempty"`
	StartedAt         string                   `json:"started_at" validate:"required"`
	CompletedAt       string                   `json:"completed_at,omitempty"`
	StepProgress      map[string]*StepProgress `json:"step_progress"`
}

// WorkflowRef formats the session's workflow as "{job_name}/{workflow_name}".
func (s *WorkflowSession) WorkflowRef() string {
	return fmt.Sprintf("%s/%s", s.JobName, s.WorkflowName)
}

// IsActive reports whether the session is still running.
func (s *WorkflowSession) IsActive() bool {
	return s.Status == SessionStatusActive
}

// Progress returns the StepProgress for a step, creating it if absent.
func (s *WorkflowSession) Progress(stepID string) *StepProgress {
	if s.StepProgress == nil {
		s.StepProgress = make(map[string]*StepProgress)
	}
	progress, ok := s.StepProgress[stepID]
	if !ok {
		progress = &StepProgress{StepID: stepID}
		s.StepProgress[stepID] = progress
	}
	return progress
}

// StackEntry is the derived view of a session returned in tool responses
type StackEntry struct {
	Workflow string `json:"workflow"` // "{job_name}/{workflow_name}"
	Step     string `json:"step"`     // current step id
}
