package jobs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/deepwork/internal/common"
	"github.com/ternarybob/deepwork/internal/models"
)

const minimalJob = `
name: research
version: 1.0.0
summary: Research a topic.
common_job_info_provided_to_all_steps_at_runtime: Write outputs under docs/.
steps:
  - id: plan
    name: Plan
    description: Plan the research.
    instructions_file: steps/plan.md
    outputs:
      plan_document:
        type: file
        description: The plan.
        required: true
  - id: execute
    name: Execute
    description: Carry out the plan.
    instructions_file: steps/execute.md
    dependencies: [plan]
    inputs:
      - file: plan_document
        from_step: plan
    outputs:
      findings:
        type: files
        description: Findings documents.
workflows:
  - name: full
    summary: Plan then execute.
    steps:
      - plan
      - execute
`

// writeJob creates <folder>/<dirName>/job.yml with the given contents.
func writeJob(t *testing.T, folder, dirName, content string) string {
	t.Helper()
	jobDir := filepath.Join(folder, dirName)
	require.NoError(t, os.MkdirAll(jobDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(jobDir, JobFileName), []byte(content), 0644))
	return jobDir
}

func newTestLoader(t *testing.T) (*Loader, string) {
	t.Helper()
	root := t.TempDir()
	return NewLoader(root, common.GetLogger()), root
}

func TestLoadJobValid(t *testing.T) {
	loader, root := newTestLoader(t)
	jobDir := writeJob(t, common.ProjectJobsDir(root), "research", minimalJob)

	job, warnings, err := loader.LoadJob(jobDir)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, "research", job.Name)
	assert.Equal(t, jobDir, job.JobDir)
	require.Len(t, job.Steps, 2)
	assert.Equal(t, models.OutputKindFile, job.Steps[0].Outputs["plan_document"].Type)
	assert.True(t, job.Steps[0].Outputs["plan_document"].Required)
	require.Len(t, job.Workflows, 1)
	assert.Equal(t, []string{"plan", "execute"}, job.Workflows[0].StepIDs())
}

func TestLoadJobSchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing summary", `
name: research
version: 1.0.0
common_job_info_provided_to_all_steps_at_runtime: info
steps:
  - id: plan
    name: Plan
    description: d
    instructions_file: steps/plan.md
    outputs:
      out: {type: file, description: d}
`},
		{"bad version", `
name: research
version: one.two
summary: s
common_job_info_provided_to_all_steps_at_runtime: info
steps:
  - id: plan
    name: Plan
    description: d
    instructions_file: steps/plan.md
    outputs:
      out: {type: file, description: d}
`},
		{"bad step id", `
name: research
version: 1.0.0
summary: s
common_job_info_provided_to_all_steps_at_runtime: info
steps:
  - id: Plan-Step
    name: Plan
    description: d
    instructions_file: steps/plan.md
    outputs:
      out: {type: file, description: d}
`},
		{"step without outputs", `
name: research
version: 1.0.0
summary: s
common_job_info_provided_to_all_steps_at_runtime: info
steps:
  - id: plan
    name: Plan
    description: d
    instructions_file: steps/plan.md
    outputs: {}
`},
		{"unknown top-level key", `
name: research
version: 1.0.0
summary: s
common_job_info_provided_to_all_steps_at_runtime: info
bogus: true
steps:
  - id: plan
    name: Plan
    description: d
    instructions_file: steps/plan.md
    outputs:
      out: {type: file, description: d}
`},
	}

	loader, root := newTestLoader(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobDir := writeJob(t, common.ProjectJobsDir(root), "bad_"+sanitize(tt.name), tt.content)
			_, _, err := loader.LoadJob(jobDir)
			assert.Error(t, err)
		})
	}
}

func sanitize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == ' ' || r == '-' {
			r = '_'
		}
		out = append(out, r)
	}
	return string(out)
}

func TestLoadJobSemanticErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{
			name: "duplicate step id",
			content: `
name: j
version: 1.0.0
summary: s
common_job_info_provided_to_all_steps_at_runtime: info
steps:
  - {id: plan, name: P, description: d, instructions_file: i.md, outputs: {o: {type: file, description: d}}}
  - {id: plan, name: P2, description: d, instructions_file: i.md, outputs: {o: {type: file, description: d}}}
`,
			wantMsg: "duplicate step id",
		},
		{
			name: "unknown dependency",
			content: `
name: j
version: 1.0.0
summary: s
common_job_info_provided_to_all_steps_at_runtime: info
steps:
  - {id: plan, name: P, description: d, instructions_file: i.md, dependencies: [ghost], outputs: {o: {type: file, description: d}}}
`,
			wantMsg: "unknown step 'ghost'",
		},
		{
			name: "dependency cycle",
			content: `
name: j
version: 1.0.0
summary: s
common_job_info_provided_to_all_steps_at_runtime: info
steps:
  - {id: a, name: A, description: d, instructions_file: i.md, dependencies: [b], outputs: {o: {type: file, description: d}}}
  - {id: b, name: B, description: d, instructions_file: i.md, dependencies: [a], outputs: {p: {type: file, description: d}}}
`,
			wantMsg: "dependency cycle",
		},
		{
			name: "file input not in dependencies",
			content: `
name: j
version: 1.0.0
summary: s
common_job_info_provided_to_all_steps_at_runtime: info
steps:
  - {id: plan, name: P, description: d, instructions_file: i.md, outputs: {plan_doc: {type: file, description: d}}}
  - {id: exec, name: E, description: d, instructions_file: i.md, inputs: [{file: plan_doc, from_step: plan}], outputs: {o: {type: file, description: d}}}
`,
			wantMsg: "not in its dependencies",
		},
		{
			name: "file input not an output of source",
			content: `
name: j
version: 1.0.0
summary: s
common_job_info_provided_to_all_steps_at_runtime: info
steps:
  - {id: plan, name: P, description: d, instructions_file: i.md, outputs: {plan_doc: {type: file, description: d}}}
  - {id: exec, name: E, description: d, instructions_file: i.md, dependencies: [plan], inputs: [{file: other_doc, from_step: plan}], outputs: {o: {type: file, description: d}}}
`,
			wantMsg: "not an output of step",
		},
		{
			name: "review targets undeclared output",
			content: `
name: j
version: 1.0.0
summary: s
common_job_info_provided_to_all_steps_at_runtime: info
steps:
  - id: plan
    name: P
    description: d
    instructions_file: i.md
    outputs:
      plan_doc: {type: file, description: d}
    reviews:
      - run_each: other_doc
        quality_criteria: {clarity: "Is it clear?"}
`,
			wantMsg: "does not name a declared output",
		},
		{
			name: "workflow references unknown step",
			content: `
name: j
version: 1.0.0
summary: s
common_job_info_provided_to_all_steps_at_runtime: info
steps:
  - {id: plan, name: P, description: d, instructions_file: i.md, outputs: {o: {type: file, description: d}}}
workflows:
  - {name: full, summary: s, steps: [plan, ghost]}
`,
			wantMsg: "unknown step 'ghost'",
		},
		{
			name: "workflow lists step twice",
			content: `
name: j
version: 1.0.0
summary: s
common_job_info_provided_to_all_steps_at_runtime: info
steps:
  - {id: plan, name: P, description: d, instructions_file: i.md, outputs: {o: {type: file, description: d}}}
workflows:
  - {name: full, summary: s, steps: [plan, plan]}
`,
			wantMsg: "more than once",
		},
	}

	loader, root := newTestLoader(t)
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobDir := writeJob(t, common.ProjectJobsDir(root), sanitize(tt.name)+string(rune('a'+i)), tt.content)
			_, _, err := loader.LoadJob(jobDir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoadJobEmptyFile(t *testing.T) {
	loader, root := newTestLoader(t)
	jobDir := writeJob(t, common.ProjectJobsDir(root), "empty", "")

	_, _, err := loader.LoadJob(jobDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestLoadJobOrphanWarnings(t *testing.T) {
	content := `
name: j
version: 1.0.0
summary: s
common_job_info_provided_to_all_steps_at_runtime: info
steps:
  - {id: plan, name: P, description: d, instructions_file: i.md, outputs: {o: {type: file, description: d}}}
  - {id: extra, name: X, description: d, instructions_file: i.md, outputs: {p: {type: file, description: d}}}
workflows:
  - {name: full, summary: s, steps: [plan]}
`
	loader, root := newTestLoader(t)
	jobDir := writeJob(t, common.ProjectJobsDir(root), "orphans", content)

	_, warnings, err := loader.LoadJob(jobDir)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "extra")
}

func TestLoadJobNoWorkflowsNoOrphanWarnings(t *testing.T) {
	content := `
name: j
version: 1.0.0
summary: s
common_job_info_provided_to_all_steps_at_runtime: info
steps:
  - {id: plan, name: P, description: d, instructions_file: i.md, outputs: {o: {type: file, description: d}}}
`
	loader, root := newTestLoader(t)
	jobDir := writeJob(t, common.ProjectJobsDir(root), "noworkflows", content)

	_, warnings, err := loader.LoadJob(jobDir)
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestLoadJobStopHooksMigration(t *testing.T) {
	content := `
name: j
version: 1.0.0
summary: s
common_job_info_provided_to_all_steps_at_runtime: info
steps:
  - id: plan
    name: P
    description: d
    instructions_file: i.md
    outputs:
      o: {type: file, description: d}
    stop_hooks:
      - prompt: Verify the plan covers every requirement.
`
	loader, root := newTestLoader(t)
	jobDir := writeJob(t, common.ProjectJobsDir(root), "legacy", content)

	job, _, err := loader.LoadJob(jobDir)
	require.NoError(t, err)

	actions := job.Steps[0].Hooks[models.HookEventAfterAgent]
	require.Len(t, actions, 1)
	assert.Equal(t, "Verify the plan covers every requirement.", actions[0].Prompt)
	assert.Nil(t, job.Steps[0].StopHooks)
}

func TestLoadAllIsolatesPerJobErrors(t *testing.T) {
	loader, root := newTestLoader(t)
	projectJobs := common.ProjectJobsDir(root)

	writeJob(t, projectJobs, "good", minimalJob)
	writeJob(t, projectJobs, "broken", "name: [not valid\n")

	result := loader.LoadAll()

	require.Len(t, result.Jobs, 1)
	assert.Equal(t, "research", result.Jobs[0].Def.Name)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "broken", result.Errors[0].JobName)
	assert.NotEmpty(t, result.Errors[0].Error)
}

func TestLoadAllFolderPriority(t *testing.T) {
	loader, root := newTestLoader(t)

	// Same directory name in the project folder and an additional folder;
	// the project folder wins.
	projectContent := minimalJob
	additionalContent := `
name: shadowed
version: 9.9.9
summary: Should never load.
common_job_info_provided_to_all_steps_at_runtime: info
steps:
  - {id: plan, name: P, description: d, instructions_file: i.md, outputs: {o: {type: file, description: d}}}
`
	additional := t.TempDir()
	writeJob(t, common.ProjectJobsDir(root), "research", projectContent)
	writeJob(t, additional, "research", additionalContent)
	writeJob(t, additional, "extra_job", minimalJob)

	t.Setenv("DEEPWORK_ADDITIONAL_JOBS_FOLDERS", additional)

	result := loader.LoadAll()
	require.Len(t, result.Jobs, 2)

	byDir := make(map[string]string)
	for _, loaded := range result.Jobs {
		byDir[filepath.Base(loaded.Def.JobDir)] = loaded.Def.Name
	}
	assert.Equal(t, "research", byDir["research"], "project folder should shadow the additional folder")
	assert.Equal(t, "research", byDir["extra_job"], "non-shadowed additional job should load")
}

func TestFindJob(t *testing.T) {
	loader, root := newTestLoader(t)
	writeJob(t, common.ProjectJobsDir(root), "research", minimalJob)

	job, err := loader.FindJob("research")
	require.NoError(t, err)
	assert.Equal(t, "research", job.Name)

	_, err = loader.FindJob("missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestCompiledJobSchema(t *testing.T) {
	schema, err := getCompiledJobSchema()
	require.NoError(t, err)
	assert.NotNil(t, schema)
	assert.Contains(t, GetJobSchema(), "DeepWork job definition")
}
