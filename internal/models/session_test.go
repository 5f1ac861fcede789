package models

import (
	"encoding/json"
	"testing"
)

func TestSessionProgress(t *testing.T) {
	session := WorkflowSession{SessionID: "abc12345"}

	progress := session.Progress("plan")
	if progress.StepID != "plan" {
		t.Errorf("Expected step id 'plan', got '%s'", progress.StepID)
	}

	progress.QualityAttempts = 2
	again := session.Progress("plan")
	if again.QualityAttempts != 2 {
		t.Error("Progress should return the same entry on repeat calls")
	}
}

func TestWorkflowRef(t *testing.T) {
	session := WorkflowSession{JobName: "research", WorkflowName: "full"}
	if ref := session.WorkflowRef(); ref != "research/full" {
		t.Errorf("WorkflowRef = %s", ref)
	}
}

func TestSessionJSONRoundTrip(t *testing.T) {
	session := WorkflowSession{
		SessionID:     "abc12345",
		JobName:       "research",
		WorkflowName:  "full",
		Goal:          "investigate caching",
		CurrentStepID: "plan",
		Status:        SessionStatusActive,
		StartedAt:     "2026-08-24T10:00:00.000000Z",
		StepProgress: map[string]*StepProgress{
			"plan": {
				StepID:    "plan",
				StartedAt: "2026-08-24T10:00:00.000000Z",
				Outputs:   map[string]any{"plan_document": "docs/plan.md"},
			},
		},
	}

	data, err := json.Marshal(&session)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded WorkflowSession
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if decoded.SessionID != session.SessionID || decoded.Status != SessionStatusActive {
		t.Errorf("Round trip lost fields: %+v", decoded)
	}
	if decoded.StepProgress["plan"].Outputs["plan_document"] != "docs/plan.md" {
		t.Error("Round trip lost step progress outputs")
	}
	if !decoded.IsActive() {
		t.Error("Decoded session should be active")
	}
}
