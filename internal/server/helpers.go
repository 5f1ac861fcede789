package server

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ternarybob/deepwork/internal/models"
)

// jsonResult marshals a typed response into the tool result payload.
func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode response: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

// toolError formats a tool-call failure the MCP client surfaces to the agent.
func toolError(format string, args ...any) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf(format, args...))
}

// buildBeginStep assembles the begin_step payload for a step, reading its
// instructions file relative to the job directory.
func buildBeginStep(job *models.JobDefinition, step *models.Step, sessionID string) (*models.BeginStep, error) {
	instructionsPath := filepath.Join(job.JobDir, step.InstructionsFile)
	instructions, err := os.ReadFile(instructionsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read instructions for step '%s' (%s): %w", step.ID, instructionsPath, err)
	}

	names := make([]string, 0, len(step.Outputs))
	for name := range step.Outputs {
		names = append(names, name)
	}
	sort.Strings(names)

	expected := make([]models.ExpectedOutput, 0, len(names))
	for _, name := range names {
		spec := step.Outputs[name]
		syntax := models.SyntaxFile
		if spec.Type == models.OutputKindFiles {
			syntax = models.SyntaxFiles
		}
		expected = append(expected, models.ExpectedOutput{
			Name:                      name,
			Type:                      spec.Type,
			Description:               spec.Description,
			Required:                  spec.Required,
			SyntaxForFinishedStepTool: syntax,
		})
	}

	reviews := step.Reviews
	if reviews == nil {
		reviews = []models.Review{}
	}

	return &models.BeginStep{
		SessionID:           sessionID,
		StepID:              step.ID,
		JobDir:              job.JobDir,
		StepExpectedOutputs: expected,
		StepReviews:         reviews,
		StepInstructions:    string(instructions),
		CommonJobInfo:       job.CommonJobInfo,
	}, nil
}

// groupMessage tells the agent about the rest of a concurrent group.
func groupMessage(entry models.WorkflowEntry) string {
	if !entry.IsGroup() {
		return ""
	}
	others := entry.StepIDs[1:]
	return fmt.Sprintf(
		"Steps %s belong to the same concurrent group as '%s'; run them in parallel with sub-agents.",
		strings.Join(others, ", "), entry.Primary())
}

// hasReviewWork reports whether any review on the step carries criteria.
// Reviews with empty criteria auto-pass and never reach the reviewer.
func hasReviewWork(step *models.Step) bool {
	for _, review := range step.Reviews {
		if len(review.QualityCriteria) > 0 {
			return true
		}
	}
	return false
}
