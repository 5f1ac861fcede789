package server

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ternarybob/deepwork/internal/models"
	"github.com/ternarybob/deepwork/internal/review"
	"github.com/ternarybob/deepwork/internal/validation"
)

// handleGetWorkflows implements the get_workflows tool
func (s *Server) handleGetWorkflows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result := s.loader.LoadAll()

	response := models.GetWorkflowsResponse{
		Jobs:   []models.JobSummary{},
		Errors: result.Errors,
		Stack:  s.store.GetStack(),
	}
	if response.Errors == nil {
		response.Errors = []models.JobError{}
	}

	for _, loaded := range result.Jobs {
		workflows := make([]models.WorkflowSummary, 0, len(loaded.Def.Workflows))
		for _, workflow := range loaded.Def.Workflows {
			workflows = append(workflows, models.WorkflowSummary{
				Name:    workflow.Name,
				Summary: workflow.Summary,
			})
		}
		response.Jobs = append(response.Jobs, models.JobSummary{
			Name:      loaded.Def.Name,
			Summary:   loaded.Def.Summary,
			Workflows: workflows,
			Warnings:  loaded.Warnings,
		})
	}

	return jsonResult(response), nil
}

// handleStartWorkflow implements the start_workflow tool
func (s *Server) handleStartWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	goal, err := request.RequireString("goal")
	if err != nil {
		return toolError("goal parameter is required"), nil
	}
	jobName, err := request.RequireString("job_name")
	if err != nil {
		return toolError("job_name parameter is required"), nil
	}
	workflowName, err := request.RequireString("workflow_name")
	if err != nil {
		return toolError("workflow_name parameter is required"), nil
	}
	instanceID := request.GetString("instance_id", "")

	job, err := s.loader.FindJob(jobName)
	if err != nil {
		return toolError("unknown job '%s': %v", jobName, err), nil
	}

	if len(job.Workflows) == 0 {
		return toolError("job '%s' defines no workflows", jobName), nil
	}

	workflow := job.FindWorkflow(workflowName)
	if workflow == nil {
		if len(job.Workflows) == 1 {
			// Single-workflow jobs auto-select for backwards compatibility.
			workflow = &job.Workflows[0]
			s.logger.Warn().
				Str("job", jobName).
				Str("requested", workflowName).
				Str("selected", workflow.Name).
				Msg("Workflow name did not match; auto-selected the job's only workflow")
		} else {
			return toolError("job '%s' has no workflow named '%s'; available workflows: %s",
				jobName, workflowName, strings.Join(job.WorkflowNames(), ", ")), nil
		}
	}

	if len(workflow.Steps) == 0 {
		return toolError("workflow '%s' in job '%s' has no steps", workflow.Name, jobName), nil
	}

	firstEntry := workflow.Steps[0]
	firstStep := job.FindStep(firstEntry.Primary())

	session, err := s.store.CreateSession(job.Name, workflow.Name, goal, instanceID, firstStep.ID)
	if err != nil {
		return toolError("failed to create session: %v", err), nil
	}
	if _, err := s.store.StartStep(firstStep.ID, session.SessionID); err != nil {
		return toolError("failed to start step: %v", err), nil
	}

	beginStep, err := buildBeginStep(job, firstStep, session.SessionID)
	if err != nil {
		return toolError("%v", err), nil
	}

	return jsonResult(models.StartWorkflowResponse{
		BeginStep: beginStep,
		Stack:     s.store.GetStack(),
	}), nil
}

// handleFinishedStep implements the finished_step tool
func (s *Server) handleFinishedStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	rawOutputs, ok := args["outputs"].(map[string]any)
	if !ok {
		return toolError("outputs parameter is required and must be an object"), nil
	}
	notes := request.GetString("notes", "")
	overrideReason := request.GetString("quality_review_override_reason", "")
	sessionID := request.GetString("session_id", "")

	session, err := s.store.ResolveSession(sessionID)
	if err != nil {
		return toolError("%v", err), nil
	}

	job, err := s.loader.FindJob(session.JobName)
	if err != nil {
		return toolError("failed to load job '%s' for session %s: %v", session.JobName, session.SessionID, err), nil
	}
	workflow := job.FindWorkflow(session.WorkflowName)
	if workflow == nil {
		return toolError("session %s references unknown workflow '%s'", session.SessionID, session.WorkflowName), nil
	}
	step := job.FindStep(session.CurrentStepID)
	if step == nil {
		return toolError("session %s references unknown step '%s'", session.SessionID, session.CurrentStepID), nil
	}

	if err := validation.ValidateOutputs(s.projectRoot, rawOutputs, step.Outputs); err != nil {
		return toolError("%v", err), nil
	}

	if s.gate != nil && overrideReason == "" && hasReviewWork(step) {
		if result, done := s.runQualityGate(ctx, session.SessionID, step, rawOutputs, notes); done {
			return result, nil
		}
	}
	if overrideReason != "" {
		s.logger.Info().
			Str("session_id", session.SessionID).
			Str("step_id", step.ID).
			Str("reason", overrideReason).
			Msg("Quality review overridden")
	}

	if _, err := s.store.CompleteStep(step.ID, rawOutputs, notes, session.SessionID); err != nil {
		return toolError("failed to record step completion: %v", err), nil
	}

	nextIndex := session.CurrentEntryIndex + 1
	if nextIndex < len(workflow.Steps) {
		entry := workflow.Steps[nextIndex]
		nextStep := job.FindStep(entry.Primary())

		if _, err := s.store.AdvanceToStep(nextStep.ID, nextIndex, session.SessionID); err != nil {
			return toolError("failed to advance workflow: %v", err), nil
		}

		beginStep, err := buildBeginStep(job, nextStep, session.SessionID)
		if err != nil {
			return toolError("%v", err), nil
		}

		return jsonResult(models.FinishedStepResponse{
			Status:    models.StepStatusNextStep,
			BeginStep: beginStep,
			Message:   groupMessage(entry),
			Stack:     s.store.GetStack(),
		}), nil
	}

	allOutputs, err := s.store.GetAllOutputs(session.SessionID)
	if err != nil {
		return toolError("failed to collect workflow outputs: %v", err), nil
	}
	if _, err := s.store.CompleteWorkflow(session.SessionID); err != nil {
		return toolError("failed to complete workflow: %v", err), nil
	}

	return jsonResult(models.FinishedStepResponse{
		Status:     models.StepStatusWorkflowComplete,
		AllOutputs: allOutputs,
		Stack:      s.store.GetStack(),
	}), nil
}

// runQualityGate executes the review pipeline for finished_step. The
// returned result is non-nil (and done=true) when the gate decided the
// call: needs_work, a fatal budget error, or a gate failure.
func (s *Server) runQualityGate(ctx context.Context, sessionID string, step *models.Step, outputs map[string]any, notes string) (*mcp.CallToolResult, bool) {
	if !s.gate.ExternalMode() {
		path, err := s.gate.WriteSelfReviewFile(step, outputs, notes, sessionID)
		if err != nil {
			return toolError("failed to write self-review instructions: %v", err), true
		}
		return jsonResult(models.FinishedStepResponse{
			Status:       models.StepStatusNeedsWork,
			Instructions: review.SelfReviewInstructions(path),
			Stack:        s.store.GetStack(),
		}), true
	}

	// Attempt counter increments before the reviewer runs.
	attempt, err := s.store.RecordQualityAttempt(step.ID, sessionID)
	if err != nil {
		return toolError("failed to record quality attempt: %v", err), true
	}

	failed, err := s.gate.EvaluateReviews(ctx, step, outputs, notes, sessionID, attempt)
	if err != nil {
		return toolError("quality review failed to run: %v", err), true
	}
	if len(failed) == 0 {
		return nil, false
	}

	feedback := review.CombinedFeedback(failed)
	if attempt >= s.config.Quality.MaxAttempts {
		return toolError(
			"quality review failed after %d attempts; abort the workflow or escalate. Latest feedback:\n%s",
			attempt, feedback), true
	}

	return jsonResult(models.FinishedStepResponse{
		Status:   models.StepStatusNeedsWork,
		Feedback: feedback,
		Stack:    s.store.GetStack(),
	}), true
}

// handleAbortWorkflow implements the abort_workflow tool
func (s *Server) handleAbortWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	explanation, err := request.RequireString("explanation")
	if err != nil {
		return toolError("explanation parameter is required"), nil
	}
	sessionID := request.GetString("session_id", "")

	aborted, resumed, err := s.store.AbortWorkflow(explanation, sessionID)
	if err != nil {
		return toolError("%v", err), nil
	}

	response := models.AbortWorkflowResponse{
		AbortedWorkflow: aborted.WorkflowRef(),
		AbortedStep:     aborted.CurrentStepID,
		Explanation:     explanation,
		Stack:           s.store.GetStack(),
	}
	if resumed != nil {
		workflowRef := resumed.WorkflowRef()
		stepID := resumed.CurrentStepID
		response.ResumedWorkflow = &workflowRef
		response.ResumedStep = &stepID
	}

	return jsonResult(response), nil
}
