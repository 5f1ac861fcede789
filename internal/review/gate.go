package review

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/deepwork/internal/common"
	"github.com/ternarybob/deepwork/internal/interfaces"
	"github.com/ternarybob/deepwork/internal/models"
	"github.com/ternarybob/deepwork/internal/validation"
)

// ErrReviewTimeout marks a reviewer invocation that ran out of time. The
// tool layer reports timeouts as needs_work rather than a fatal error.
var ErrReviewTimeout = errors.New("review timed out")

// FailedReview is one failing evaluation returned by the gate.
type FailedReview struct {
	RunEach         string                       `json:"run_each"`
	TargetFile      string                       `json:"target_file,omitempty"`
	Feedback        string                       `json:"feedback"`
	CriteriaResults []interfaces.CriterionResult `json:"criteria_results"`
}

// Gate runs a step's reviews against its submitted outputs. With a reviewer
// wired in it fans evaluations out concurrently (external mode); without
// one it writes a self-review instruction file for the agent instead.
type Gate struct {
	projectRoot string
	reviewer    interfaces.Reviewer
	config      common.ReviewerConfig
	logger      arbor.ILogger
}

// NewGate creates a quality gate. A nil reviewer selects self-review mode.
func NewGate(projectRoot string, reviewer interfaces.Reviewer, config common.ReviewerConfig, logger arbor.ILogger) *Gate {
	return &Gate{
		projectRoot: projectRoot,
		reviewer:    reviewer,
		config:      config,
		logger:      logger,
	}
}

// ExternalMode reports whether an external reviewer is wired in.
func (g *Gate) ExternalMode() bool {
	return g.reviewer != nil
}

// evaluationTask is one reviewer invocation: a review applied to a subset
// of the submitted files.
type evaluationTask struct {
	review models.Review
	files  []validation.SubmittedFile
	target string // file path for per-file tasks, empty for step-spanning
}

// EvaluateReviews runs every review on the step concurrently and returns
// only the failing evaluations. Reviews with no criteria auto-pass without
// invoking the reviewer. Ordering of the result is not guaranteed.
func (g *Gate) EvaluateReviews(ctx context.Context, step *models.Step, outputs map[string]any, notes, sessionID string, attempt int) ([]FailedReview, error) {
	if !g.ExternalMode() {
		return nil, errors.New("quality gate has no external reviewer configured")
	}

	files := validation.SubmittedFiles(outputs, step.Outputs)
	tasks := g.buildTasks(step, files)
	if len(tasks) == 0 {
		return nil, nil
	}

	g.logger.Info().
		Str("session_id", sessionID).
		Str("step_id", step.ID).
		Int("tasks", len(tasks)).
		Int("attempt", attempt).
		Msg("Dispatching quality reviews")

	p := pool.NewWithResults[[]FailedReview]().WithContext(ctx).WithCancelOnError()
	for _, task := range tasks {
		task := task
		p.Go(func(ctx context.Context) ([]FailedReview, error) {
			return g.runTask(ctx, step, task, notes)
		})
	}

	results, err := p.Wait()
	if err != nil {
		return nil, err
	}

	var failed []FailedReview
	for _, result := range results {
		failed = append(failed, result...)
	}
	return failed, nil
}

// buildTasks expands each review into evaluation tasks:
// run_each "step" spans all files; a file-kind output is one task; a
// files-kind output is one task per submitted file of that output.
func (g *Gate) buildTasks(step *models.Step, files []validation.SubmittedFile) []evaluationTask {
	var tasks []evaluationTask
	for _, review := range step.Reviews {
		if len(review.QualityCriteria) == 0 {
			g.logger.Debug().
				Str("step_id", step.ID).
				Str("run_each", review.RunEach).
				Msg("Review has no criteria; auto-passing")
			continue
		}

		if review.RunEach == models.ReviewRunEachStep {
			tasks = append(tasks, evaluationTask{review: review, files: files})
			continue
		}

		spec, ok := step.Outputs[review.RunEach]
		if !ok {
			continue // semantic checks reject this at load; skip defensively here
		}

		for _, file := range files {
			if file.OutputKey != review.RunEach {
				continue
			}
			tasks = append(tasks, evaluationTask{
				review: review,
				files:  []validation.SubmittedFile{file},
				target: file.Path,
			})
			if spec.Type == models.OutputKindFile {
				break
			}
		}
	}
	return tasks
}

// runTask executes one evaluation: build the payload, invoke the reviewer
// with the per-task timeout, and convert the verdict. Timeouts become a
// failing review with explanatory feedback; other adapter errors propagate.
func (g *Gate) runTask(ctx context.Context, step *models.Step, task evaluationTask, notes string) ([]FailedReview, error) {
	payload := buildPayload(g.projectRoot, task.files, notes, g.config.MaxInlineFiles)
	system := buildSystemPrompt(step, task.review)
	timeout := g.taskTimeout(len(task.files))

	result, err := g.reviewer.Review(ctx, system, payload, timeout)
	if err != nil {
		if errors.Is(err, ErrReviewTimeout) {
			return []FailedReview{{
				RunEach:    task.review.RunEach,
				TargetFile: task.target,
				Feedback:   fmt.Sprintf("The quality review did not finish in time (%v). Re-submit to retry the review.", err),
			}}, nil
		}
		return nil, err
	}

	if result.Passed {
		return nil, nil
	}

	return []FailedReview{{
		RunEach:         task.review.RunEach,
		TargetFile:      task.target,
		Feedback:        result.Feedback,
		CriteriaResults: result.CriteriaResults,
	}}, nil
}

// taskTimeout is 240s base plus 30s for every file beyond the fifth,
// scaled by the configured values.
func (g *Gate) taskTimeout(fileCount int) time.Duration {
	extra := fileCount - 5
	if extra < 0 {
		extra = 0
	}
	seconds := g.config.TimeoutBase + extra*g.config.TimeoutPerFile
	return time.Duration(seconds) * time.Second
}

// buildSystemPrompt renders the rubric for the reviewer subprocess.
func buildSystemPrompt(step *models.Step, review models.Review) string {
	var b strings.Builder
	b.WriteString("You are a strict quality reviewer for the output of a work step.\n")
	b.WriteString(fmt.Sprintf("Step under review: %s (%s)\n\n", step.Name, step.ID))
	b.WriteString("Evaluate the submitted material against every criterion below. ")
	b.WriteString("The review passes only if every criterion passes.\n\nCriteria:\n")

	for _, name := range sortedCriteria(review.QualityCriteria) {
		b.WriteString(fmt.Sprintf("- %s: %s\n", name, review.QualityCriteria[name]))
	}

	if review.AdditionalReviewGuidance != "" {
		b.WriteString("\nAdditional guidance:\n")
		b.WriteString(review.AdditionalReviewGuidance)
		b.WriteString("\n")
	}

	return b.String()
}

// CombinedFeedback flattens failing reviews into one feedback string for
// the needs_work response.
func CombinedFeedback(failed []FailedReview) string {
	var parts []string
	for _, f := range failed {
		header := fmt.Sprintf("Review (%s)", f.RunEach)
		if f.TargetFile != "" {
			header = fmt.Sprintf("Review of %s", f.TargetFile)
		}
		part := fmt.Sprintf("%s: %s", header, f.Feedback)
		for _, c := range f.CriteriaResults {
			if c.Passed {
				continue
			}
			detail := ""
			if c.Feedback != nil {
				detail = ": " + *c.Feedback
			}
			part += fmt.Sprintf("\n  - FAIL %s%s", c.Criterion, detail)
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "\n\n")
}

func sortedCriteria(criteria map[string]string) []string {
	names := make([]string, 0, len(criteria))
	for name := range criteria {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
