package review

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/deepwork/internal/common"
	"github.com/ternarybob/deepwork/internal/models"
)

func TestWriteSelfReviewFile(t *testing.T) {
	root := t.TempDir()
	config := testConfig()
	config.MaxInlineFiles = 0 // self-review always lists paths
	gate := NewGate(root, nil, config, common.GetLogger())

	step := &models.Step{
		ID:   "findings",
		Name: "Collect findings",
		Outputs: map[string]models.OutputSpec{
			"report": {Type: models.OutputKindFile, Required: true},
		},
		Reviews: []models.Review{{
			RunEach: "report",
			QualityCriteria: map[string]string{
				"evidence": "Every claim cites a source.",
			},
			AdditionalReviewGuidance: "Check the appendix too.",
		}},
	}

	path, err := gate.WriteSelfReviewFile(step,
		map[string]any{"report": "docs/report.md"}, "", "abc12345")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(common.TmpDir(root), "quality_review_abc12345_findings.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "# Quality Review: Collect findings")
	assert.Contains(t, content, "docs/report.md (output: report)")
	assert.NotContains(t, content, outputsBegin, "self-review lists paths, never inlines")
	assert.Contains(t, content, "**evidence**: Every claim cites a source.")
	assert.Contains(t, content, "Check the appendix too.")
	assert.Contains(t, content, "## Review procedure")
}

func TestSelfReviewInstructions(t *testing.T) {
	instructions := SelfReviewInstructions("/tmp/quality_review_abc12345_findings.md")
	assert.Contains(t, instructions, "/tmp/quality_review_abc12345_findings.md")
	assert.True(t, strings.Contains(instructions, "quality_review_override_reason"))
	assert.Contains(t, instructions, "sub-agent")
}

func TestSelfReviewFileName(t *testing.T) {
	assert.Equal(t, "quality_review_abc12345_plan.md", SelfReviewFileName("abc12345", "plan"))
}
