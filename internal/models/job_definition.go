package models

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// OutputKind represents the shape of a declared step output
type OutputKind string

// OutputKind constants
const (
	OutputKindFile  OutputKind = "file"  // single file path
	OutputKindFiles OutputKind = "files" // list of file paths
)

// IsValidOutputKind checks if a given OutputKind is one of the valid constants
func IsValidOutputKind(kind OutputKind) bool {
	switch kind {
	case OutputKindFile, OutputKindFiles:
		return true
	default:
		return false
	}
}

// OutputSpec declares a single named output a step must produce
type OutputSpec struct {
	Type        OutputKind `yaml:"type" json:"type"`
	Description string     `yaml:"description" json:"description"`
	Required    bool       `yaml:"required" json:"required"`
}

// StepInput is a discriminated input declaration: either a user parameter
// (Name + Description) or a file produced by a prior step (File + FromStep).
type StepInput struct {
	// User-parameter form
	Name        string `yaml:"name,omitempty" json:"name,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// File form
	File     string `yaml:"file,omitempty" json:"file,omitempty"`
	FromStep string `yaml:"from_step,omitempty" json:"from_step,omitempty"`
}

// IsFileInput reports whether the input is the file-input variant.
func (i *StepInput) IsFileInput() bool {
	return i.File != ""
}

// Validate checks that exactly one input form is populated.
func (i *StepInput) Validate() error {
	if i.File != "" {
		if i.Name != "" {
			return errors.New("input cannot declare both 'name' and 'file'")
		}
		if i.FromStep == "" {
			return fmt.Errorf("file input '%s' is missing 'from_step'", i.File)
		}
		return nil
	}
	if i.Name == "" {
		return errors.New("input must declare either 'name' or 'file'")
	}
	return nil
}

// ReviewRunEachStep is the Review.RunEach value meaning one evaluation
// spanning every submitted output file of the step.
const ReviewRunEachStep = "step"

// Review is a quality rubric evaluated against a step's outputs
type Review struct {
	RunEach                  string            `yaml:"run_each" json:"run_each"`
	QualityCriteria          map[string]string `yaml:"quality_criteria" json:"quality_criteria"`
	AdditionalReviewGuidance string            `yaml:"additional_review_guidance,omitempty" json:"additional_review_guidance,omitempty"`
}

// HookAction declares exactly one of an inline prompt, a prompt file, or a script
type HookAction struct {
	Prompt     string `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	PromptFile string `yaml:"prompt_file,omitempty" json:"prompt_file,omitempty"`
	Script     string `yaml:"script,omitempty" json:"script,omitempty"`
}

// Validate checks that exactly one action field is populated.
func (a *HookAction) Validate() error {
	count := 0
	if a.Prompt != "" {
		count++
	}
	if a.PromptFile != "" {
		count++
	}
	if a.Script != "" {
		count++
	}
	if count != 1 {
		return errors.New("hook action must declare exactly one of 'prompt', 'prompt_file', or 'script'")
	}
	return nil
}

// Hook lifecycle event names
const (
	HookEventAfterAgent   = "after_agent"
	HookEventBeforeTool   = "before_tool"
	HookEventBeforePrompt = "before_prompt"
)

// Hooks maps lifecycle events to ordered action lists
type Hooks map[string][]HookAction

// Step is the smallest unit of work in a job
type Step struct {
	ID               string                `yaml:"id" json:"id"`
	Name             string                `yaml:"name" json:"name"`
	Description      string                `yaml:"description" json:"description"`
	InstructionsFile string                `yaml:"instructions_file" json:"instructions_file"`
	Outputs          map[string]OutputSpec `yaml:"outputs" json:"outputs"`
	Reviews          []Review              `yaml:"reviews,omitempty" json:"reviews,omitempty"`
	Inputs           []StepInput           `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Dependencies     []string              `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Hooks            Hooks                 `yaml:"hooks,omitempty" json:"hooks,omitempty"`
	Agent            string                `yaml:"agent,omitempty" json:"agent,omitempty"`

	// Legacy field, migrated into Hooks[HookEventAfterAgent] at parse time
	StopHooks []HookAction `yaml:"stop_hooks,omitempty" json:"-"`
}

// HasDependency reports whether the step lists the given step id as a dependency.
func (s *Step) HasDependency(stepID string) bool {
	for _, dep := range s.Dependencies {
		if dep == stepID {
			return true
		}
	}
	return false
}

// WorkflowEntry is one position in a workflow: a single step id or a
// concurrent group of step ids. YAML form is a scalar or a sequence.
type WorkflowEntry struct {
	StepIDs []string `json:"step_ids"`
}

// IsGroup reports whether the entry is a concurrent group.
func (e *WorkflowEntry) IsGroup() bool {
	return len(e.StepIDs) > 1
}

// Primary returns the step id the session tracks for this entry. For a
// concurrent group that is the first step of the group.
func (e *WorkflowEntry) Primary() string {
	if len(e.StepIDs) == 0 {
		return ""
	}
	return e.StepIDs[0]
}

// UnmarshalYAML accepts either a scalar step id or a sequence of step ids.
func (e *WorkflowEntry) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var id string
		if err := value.Decode(&id); err != nil {
			return err
		}
		e.StepIDs = []string{id}
		return nil
	case yaml.SequenceNode:
		var ids []string
		if err := value.Decode(&ids); err != nil {
			return err
		}
		e.StepIDs = ids
		return nil
	default:
		return fmt.Errorf("workflow step entry must be a step id or a list of step ids (line %d)", value.Line)
	}
}

// MarshalYAML emits the compact scalar form for single-step entries.
func (e WorkflowEntry) MarshalYAML() (interface{}, error) {
	if len(e.StepIDs) == 1 {
		return e.StepIDs[0], nil
	}
	return e.StepIDs, nil
}

// Workflow is an ordered sequence of step entries drawn from the job's steps
type Workflow struct {
	Name    string          `yaml:"name" json:"name"`
	Summary string          `yaml:"summary" json:"summary"`
	Steps   []WorkflowEntry `yaml:"steps" json:"steps"`
}

// StepIDs returns every step id in the workflow in entry order, with
// concurrent groups flattened.
func (w *Workflow) StepIDs() []string {
	var ids []string
	for _, entry := range w.Steps {
		ids = append(ids, entry.StepIDs...)
	}
	return ids
}

// JobDefinition is a named, versioned bundle of steps and workflows
type JobDefinition struct {
	Name          string     `yaml:"name" json:"name"`
	Version       string     `yaml:"version" json:"version"`
	Summary       string     `yaml:"summary" json:"summary"`
	CommonJobInfo string     `yaml:"common_job_info_provided_to_all_steps_at_runtime" json:"common_job_info"`
	Steps         []Step     `yaml:"steps" json:"steps"`
	Workflows     []Workflow `yaml:"workflows,omitempty" json:"workflows,omitempty"`

	// JobDir is the directory the definition was loaded from. Set by the
	// loader, not part of the YAML document.
	JobDir string `yaml:"-" json:"job_dir"`
}

// FindStep returns the step with the given id, or nil.
func (j *JobDefinition) FindStep(stepID string) *Step {
	for i := range j.Steps {
		if j.Steps[i].ID == stepID {
			return &j.Steps[i]
		}
	}
	return nil
}

// FindWorkflow returns the workflow with the given name, or nil.
func (j *JobDefinition) FindWorkflow(name string) *Workflow {
	for i := range j.Workflows {
		if j.Workflows[i].Name == name {
			return &j.Workflows[i]
		}
	}
	return nil
}

// WorkflowNames returns the names of all workflows in declaration order.
func (j *JobDefinition) WorkflowNames() []string {
	names := make([]string, 0, len(j.Workflows))
	for _, w := range j.Workflows {
		names = append(names, w.Name)
	}
	return names
}

// MigrateStopHooks appends legacy stop_hooks entries to hooks.after_agent.
// Called once by the loader after decoding.
func (s *Step) MigrateStopHooks() {
	if len(s.StopHooks) == 0 {
		return
	}
	if s.Hooks == nil {
		s.Hooks = Hooks{}
	}
	s.Hooks[HookEventAfterAgent] = append(s.Hooks[HookEventAfterAgent], s.StopHooks...)
	s.StopHooks = nil
}

// JobError records a per-job load failure without aborting other jobs
type JobError struct {
	JobName string `json:"job_name"`
	JobDir  string `json:"job_dir"`
	Error   string `json:"error"`
}
