package interfaces

import (
	"context"
	"time"
)

// CriterionResult is one rubric criterion's verdict in a review result.
type CriterionResult struct {
	Criterion string  `json:"criterion"`
	Passed    bool    `json:"passed"`
	Feedback  *string `json:"feedback"`
}

// ReviewResult is the structured verdict returned by a reviewer.
type ReviewResult struct {
	Passed          bool              `json:"passed"`
	Feedback        string            `json:"feedback"`
	CriteriaResults []CriterionResult `json:"criteria_results"`
}

// Reviewer evaluates a payload against a rubric and returns a structured
// verdict. Implementations wrap an external LLM subprocess; tests
// substitute a fake that returns canned results without spawning anything.
type Reviewer interface {
	// Review sends the system prompt and user payload to the reviewer and
	// parses its structured response. The timeout bounds the whole
	// invocation; cancellation of ctx propagates to the subprocess.
	Review(ctx context.Context, systemPrompt, userPayload string, timeout time.Duration) (*ReviewResult, error)
}
