package server

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createGetWorkflowsTool returns the get_workflows tool definition
func createGetWorkflowsTool() mcp.Tool {
	return mcp.NewTool("get_workflows",
		mcp.WithDescription("List every available job with its workflows, plus any job definitions that failed to load"),
	)
}

// createStartWorkflowTool returns the start_workflow tool definition
func createStartWorkflowTool() mcp.Tool {
	return mcp.NewTool("start_workflow",
		mcp.WithDescription("Start a workflow session and receive the first step's instructions"),
		mcp.WithString("goal",
			mcp.Required(),
			mcp.Description("What this workflow run should accomplish"),
		),
		mcp.WithString("job_name",
			mcp.Required(),
			mcp.Description("Name of the job (from get_workflows)"),
		),
		mcp.WithString("workflow_name",
			mcp.Required(),
			mcp.Description("Name of the workflow within the job"),
		),
		mcp.WithString("instance_id",
			mcp.Description("Optional label distinguishing concurrent runs of the same workflow"),
		),
	)
}

// createFinishedStepTool returns the finished_step tool definition
func createFinishedStepTool() mcp.Tool {
	return mcp.NewTool("finished_step",
		mcp.WithDescription("Submit the current step's outputs; the server reviews them and either advances the workflow or requests rework"),
		mcp.WithObject("outputs",
			mcp.Required(),
			mcp.Description("Mapping from declared output name to filepath (file outputs) or array of filepaths (files outputs)"),
		),
		mcp.WithString("notes",
			mcp.Description("Optional author notes passed to the quality review"),
		),
		mcp.WithString("quality_review_override_reason",
			mcp.Description("Skip the quality gate, citing why (for example a passing self-review)"),
		),
		mcp.WithString("session_id",
			mcp.Description("Target session; defaults to the top of the stack"),
		),
	)
}

// createAbortWorkflowTool returns the abort_workflow tool definition
func createAbortWorkflowTool() mcp.Tool {
	return mcp.NewTool("abort_workflow",
		mcp.WithDescription("Abort a workflow session, removing it from the stack"),
		mcp.WithString("explanation",
			mcp.Required(),
			mcp.Description("Why the workflow is being aborted"),
		),
		mcp.WithString("session_id",
			mcp.Description("Target session; defaults to the top of the stack"),
		),
	)
}
