package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ternarybob/deepwork/internal/common"
	"github.com/ternarybob/deepwork/internal/jobs"
	"github.com/ternarybob/deepwork/internal/state"
)

var jobsPath string

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect job definitions and workflow sessions",
}

var jobsGetStackCmd = &cobra.Command{
	Use:   "get-stack",
	Short: "Print active workflow sessions as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGetStack()
	},
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available jobs and their workflows",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJobsList()
	},
}

func init() {
	jobsCmd.PersistentFlags().StringVar(&jobsPath, "path", ".", "Project root directory")
	jobsCmd.AddCommand(jobsGetStackCmd)
	jobsCmd.AddCommand(jobsListCmd)
}

// activeSessionView is the per-session shape emitted by `jobs get-stack`.
// The step fields are filled in only when the job definition still resolves.
type activeSessionView struct {
	SessionID      string   `json:"session_id"`
	JobName        string   `json:"job_name"`
	WorkflowName   string   `json:"workflow_name"`
	Goal           string   `json:"goal"`
	InstanceID     string   `json:"instance_id,omitempty"`
	CurrentStepID  string   `json:"current_step_id"`
	CompletedSteps []string `json:"completed_steps"`

	CommonJobInfo           string `json:"common_job_info,omitempty"`
	CurrentStepInstructions string `json:"current_step_instructions,omitempty"`
	StepNumber              int    `json:"step_number,omitempty"`
	TotalSteps              int    `json:"total_steps,omitempty"`
}

func runGetStack() error {
	projectRoot, err := filepath.Abs(jobsPath)
	if err != nil {
		return fmt.Errorf("invalid --path: %w", err)
	}

	logger := common.GetLogger()
	store := state.NewStore(projectRoot, logger)
	loader := jobs.NewLoader(projectRoot, logger)

	views := []activeSessionView{}
	for _, session := range store.ListSessions() {
		if !session.IsActive() {
			continue
		}

		view := activeSessionView{
			SessionID:     session.SessionID,
			JobName:       session.JobName,
			WorkflowName:  session.WorkflowName,
			Goal:          session.Goal,
			InstanceID:    session.InstanceID,
			CurrentStepID: session.CurrentStepID,
		}
		view.CompletedSteps = []string{}
		for stepID, progress := range session.StepProgress {
			if progress.CompletedAt != "" {
				view.CompletedSteps = append(view.CompletedSteps, stepID)
			}
		}

		// Enrich from the job definition when it still loads; a missing or
		// broken job never hides the session itself.
		job, err := loader.FindJob(session.JobName)
		if err == nil {
			view.CommonJobInfo = job.CommonJobInfo
			if workflow := job.FindWorkflow(session.WorkflowName); workflow != nil {
				number, total := stepPosition(workflow.StepIDs(), session.CurrentStepID)
				view.StepNumber = number
				view.TotalSteps = total
			}
			if step := job.FindStep(session.CurrentStepID); step != nil {
				if data, err := os.ReadFile(filepath.Join(job.JobDir, step.InstructionsFile)); err == nil {
					view.CurrentStepInstructions = string(data)
				}
			}
		}

		views = append(views, view)
	}

	return printJSON(map[string]any{"active_sessions": views})
}

// stepPosition returns the 1-based position of a step in the flattened
// workflow step list, plus the total count. Zero position means not found.
func stepPosition(stepIDs []string, current string) (int, int) {
	for i, id := range stepIDs {
		if id == current {
			return i + 1, len(stepIDs)
		}
	}
	return 0, len(stepIDs)
}

// jobListView is the per-job shape emitted by `jobs list`.
type jobListView struct {
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	Summary   string   `json:"summary"`
	Dir       string   `json:"dir"`
	Workflows []string `json:"workflows"`
	Warnings  []string `json:"warnings,omitempty"`
}

func runJobsList() error {
	projectRoot, err := filepath.Abs(jobsPath)
	if err != nil {
		return fmt.Errorf("invalid --path: %w", err)
	}

	loader := jobs.NewLoader(projectRoot, common.GetLogger())
	result := loader.LoadAll()

	views := []jobListView{}
	for _, loaded := range result.Jobs {
		views = append(views, jobListView{
			Name:      loaded.Def.Name,
			Version:   loaded.Def.Version,
			Summary:   loaded.Def.Summary,
			Dir:       loaded.Def.JobDir,
			Workflows: loaded.Def.WorkflowNames(),
			Warnings:  loaded.Warnings,
		})
	}

	return printJSON(map[string]any{
		"jobs":   views,
		"errors": result.Errors,
	})
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
