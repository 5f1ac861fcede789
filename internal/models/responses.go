package models

// StepStatus drives the shape of a finished_step response
type StepStatus string

// StepStatus constants
const (
	StepStatusNeedsWork        StepStatus = "needs_work"
	StepStatusNextStep         StepStatus = "next_step"
	StepStatusWorkflowComplete StepStatus = "workflow_complete"
)

// Syntax hints returned with expected outputs so the agent knows the value
// shape finished_step expects for each output kind.
const (
	SyntaxFile  = "filepath"
	SyntaxFiles = "array of filepaths for all individual files"
)

// ExpectedOutput describes one declared output in a begin_step payload
type ExpectedOutput struct {
	Name                      string     `json:"name"`
	Type                      OutputKind `json:"type"`
	Description               string     `json:"description"`
	Required                  bool       `json:"required"`
	SyntaxForFinishedStepTool string     `json:"syntax_for_finished_step_tool"`
}

// BeginStep carries everything the agent needs to execute a step
type BeginStep struct {
	SessionID           string           `json:"session_id"`
	StepID              string           `json:"step_id"`
	JobDir              string           `json:"job_dir"`
	StepExpectedOutputs []ExpectedOutput `json:"step_expected_outputs"`
	StepReviews         []Review         `json:"step_reviews"`
	StepInstructions    string           `json:"step_instructions"`
	CommonJobInfo       string           `json:"common_job_info"`
}

// WorkflowSummary is one workflow in a get_workflows listing
type WorkflowSummary struct {
	Name    string `json:"name"`
	Summary string `json:"summary"`
}

// JobSummary is one job in a get_workflows listing
type JobSummary struct {
	Name      string            `json:"name"`
	Summary   string            `json:"summary"`
	Workflows []WorkflowSummary `json:"workflows"`
	Warnings  []string          `json:"warnings,omitempty"`
}

// GetWorkflowsResponse is the get_workflows tool payload
type GetWorkflowsResponse struct {
	Jobs   []JobSummary `json:"jobs"`
	Errors []JobError   `json:"errors"`
	Stack  []StackEntry `json:"stack"`
}

// StartWorkflowResponse is the start_workflow tool payload
type StartWorkflowResponse struct {
	BeginStep *BeginStep   `json:"begin_step"`
	Stack     []StackEntry `json:"stack"`
}

// FinishedStepResponse is the finished_step tool payload. Fields beyond
// Status and Stack are populated per status variant.
type FinishedStepResponse struct {
	Status       StepStatus     `json:"status"`
	Feedback     string         `json:"feedback,omitempty"`     // needs_work, external mode
	Instructions string         `json:"instructions,omitempty"` // needs_work, self-review mode
	Message      string         `json:"message,omitempty"`      // concurrent group notice
	BeginStep    *BeginStep     `json:"begin_step,omitempty"`   // next_step
	AllOutputs   map[string]any `json:"all_outputs,omitempty"`  // workflow_complete
	Stack        []StackEntry   `json:"stack"`
}

// AbortWorkflowResponse is the abort_workflow tool payload
type AbortWorkflowResponse struct {
	AbortedWorkflow string       `json:"aborted_workflow"`
	AbortedStep     string       `json:"aborted_step"`
	Explanation     string       `json:"explanation"`
	Stack           []StackEntry `json:"stack"`
	ResumedWorkflow *string      `json:"resumed_workflow"`
	ResumedStep     *string      `json:"resumed_step"`
}
