package review

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/deepwork/internal/common"
	"github.com/ternarybob/deepwork/internal/models"
	"github.com/ternarybob/deepwork/internal/validation"
)

// SelfReviewFileName returns the instruction file name for a session/step pair.
func SelfReviewFileName(sessionID, stepID string) string {
	return fmt.Sprintf("quality_review_%s_%s.md", sessionID, stepID)
}

// WriteSelfReviewFile emits the Markdown rubric the agent works through when
// no external reviewer is configured. The file is regenerated on every
// self-review invocation and lives under the project tmp directory.
func (g *Gate) WriteSelfReviewFile(step *models.Step, outputs map[string]any, notes, sessionID string) (string, error) {
	if err := common.EnsureTmpDir(g.projectRoot); err != nil {
		return "", err
	}

	files := validation.SubmittedFiles(outputs, step.Outputs)
	path := filepath.Join(common.TmpDir(g.projectRoot), SelfReviewFileName(sessionID, step.ID))

	var b strings.Builder
	b.WriteString(fmt.Sprintf("# Quality Review: %s\n\n", step.Name))
	b.WriteString(fmt.Sprintf("Session `%s`, step `%s`.\n\n", sessionID, step.ID))

	b.WriteString("## Files under review\n\n")
	b.WriteString(buildPayload(g.projectRoot, files, "", g.config.MaxInlineFiles))
	b.WriteString("\n\n")

	for i, review := range step.Reviews {
		b.WriteString(fmt.Sprintf("## Rubric %d (%s)\n\n", i+1, review.RunEach))
		for _, name := range sortedCriteria(review.QualityCriteria) {
			b.WriteString(fmt.Sprintf("- **%s**: %s\n", name, review.QualityCriteria[name]))
		}
		if review.AdditionalReviewGuidance != "" {
			b.WriteString("\nGuidance: ")
			b.WriteString(review.AdditionalReviewGuidance)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("## Review procedure\n\n")
	b.WriteString("1. Read every file listed above in full.\n")
	b.WriteString("2. Evaluate each criterion against the files.\n")
	b.WriteString("3. Report PASS or FAIL for every criterion individually.\n")
	b.WriteString("4. State the overall result: the review passes only if every criterion passes.\n")
	b.WriteString("5. For every failure, give specific, actionable feedback on what to change.\n")

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("failed to write self-review file: %w", err)
	}

	g.logger.Debug().
		Str("session_id", sessionID).
		Str("step_id", step.ID).
		Str("path", path).
		Msg("Wrote self-review instruction file")

	return path, nil
}

// SelfReviewInstructions is the needs_work directive returned alongside a
// freshly written self-review file.
func SelfReviewInstructions(path string) string {
	return fmt.Sprintf(
		"Spawn a sub-agent to perform the quality review described in %s. "+
			"Address every failing criterion it reports, then call finished_step again with "+
			"quality_review_override_reason set to a short summary of the passing self-review.",
		path)
}
