package review

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/deepwork/internal/interfaces"
)

// responseSchemaJSON is the JSON Schema the reviewer is instructed to
// answer with. It travels with the system prompt so the subprocess stays a
// plain prompt-in/JSON-out black box.
const responseSchemaJSON = `{
  "type": "object",
  "required": ["passed", "feedback"],
  "properties": {
    "passed": {"type": "boolean"},
    "feedback": {"type": "string"},
    "criteria_results": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["criterion", "passed"],
        "properties": {
          "criterion": {"type": "string"},
          "passed": {"type": "boolean"},
          "feedback": {"type": ["string", "null"]}
        }
      }
    }
  }
}`

// defaultFeedback fills in for reviewer responses that omit feedback.
const defaultFeedback = "No feedback provided"

// SubprocessReviewer drives an external reviewer CLI. The contract is a
// value-returning RPC: system prompt and payload in, one JSON document out.
// Failures of any kind (spawn error, non-zero exit, malformed JSON) surface
// as adapter errors, never as review verdicts.
type SubprocessReviewer struct {
	command string
	logger  arbor.ILogger
}

// NewSubprocessReviewer creates a reviewer adapter around the given CLI
// command (normally "claude").
func NewSubprocessReviewer(command string, logger arbor.ILogger) *SubprocessReviewer {
	return &SubprocessReviewer{
		command: command,
		logger:  logger,
	}
}

// Review invokes the reviewer subprocess with the user payload on stdin and
// parses the structured JSON verdict from stdout.
func (r *SubprocessReviewer) Review(ctx context.Context, systemPrompt, userPayload string, timeout time.Duration) (*interfaces.ReviewResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	system := systemPrompt + "\n\nRespond with a single JSON object conforming to this schema, and nothing else:\n" + responseSchemaJSON

	cmd := exec.CommandContext(runCtx, r.command,
		"--print",
		"--output-format", "json",
		"--system-prompt", system,
	)
	cmd.Stdin = strings.NewReader(userPayload)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%w after %s", ErrReviewTimeout, timeout)
	}
	if err != nil {
		r.logger.Warn().
			Err(err).
			Str("stderr", truncate(stderr.String(), 500)).
			Dur("duration", duration).
			Msg("Reviewer subprocess failed")
		return nil, fmt.Errorf("reviewer subprocess failed: %w", err)
	}

	result, err := parseReviewResult(stdout.Bytes())
	if err != nil {
		return nil, err
	}

	r.logger.Debug().
		Bool("passed", result.Passed).
		Int("criteria", len(result.CriteriaResults)).
		Dur("duration", duration).
		Msg("Reviewer verdict received")

	return result, nil
}

// parseReviewResult decodes the reviewer's stdout, tolerating surrounding
// noise by falling back to the outermost JSON object. Missing fields get
// documented defaults: passed=false, feedback placeholder, empty criteria.
func parseReviewResult(raw []byte) (*interfaces.ReviewResult, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, errors.New("reviewer returned empty output")
	}

	var result interfaces.ReviewResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		// Some runners wrap the verdict in log lines; retry on the
		// outermost object.
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("reviewer returned unparseable output: %w", err)
		}
		if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
			return nil, fmt.Errorf("reviewer returned unparseable output: %w", err)
		}
	}

	if result.Feedback == "" {
		result.Feedback = defaultFeedback
	}
	if result.CriteriaResults == nil {
		result.CriteriaResults = []interfaces.CriterionResult{}
	}

	return &result, nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
