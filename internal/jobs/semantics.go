package jobs

import (
	"fmt"
	"strings"

	"github.com/ternarybob/deepwork/internal/models"
)

// checkSemantics runs the cross-reference checks a schema cannot express:
// dependency resolution, cycle detection, file-input wiring, review targets,
// workflow references, and hook action shape.
func checkSemantics(job *models.JobDefinition) error {
	stepIDs := make(map[string]bool, len(job.Steps))
	for _, step := range job.Steps {
		if stepIDs[step.ID] {
			return fmt.Errorf("duplicate step id '%s'", step.ID)
		}
		stepIDs[step.ID] = true
	}

	for _, step := range job.Steps {
		for _, dep := range step.Dependencies {
			if !stepIDs[dep] {
				return fmt.Errorf("step '%s' depends on unknown step '%s'", step.ID, dep)
			}
		}
	}

	if err := checkAcyclic(job); err != nil {
		return err
	}

	for i := range job.Steps {
		step := &job.Steps[i]

		for _, input := range step.Inputs {
			if err := input.Validate(); err != nil {
				return fmt.Errorf("step '%s': %w", step.ID, err)
			}
			if !input.IsFileInput() {
				continue
			}
			if !stepIDs[input.FromStep] {
				return fmt.Errorf("step '%s' input '%s' references unknown step '%s'", step.ID, input.File, input.FromStep)
			}
			if !step.HasDependency(input.FromStep) {
				return fmt.Errorf("step '%s' input '%s' comes from step '%s' which is not in its dependencies", step.ID, input.File, input.FromStep)
			}
			source := job.FindStep(input.FromStep)
			if _, ok := source.Outputs[input.File]; !ok {
				return fmt.Errorf("step '%s' input '%s' is not an output of step '%s'", step.ID, input.File, input.FromStep)
			}
		}

		for _, review := range step.Reviews {
			if review.RunEach == models.ReviewRunEachStep {
				continue
			}
			if _, ok := step.Outputs[review.RunEach]; !ok {
				return fmt.Errorf("step '%s' review run_each '%s' does not name a declared output", step.ID, review.RunEach)
			}
		}

		for event, actions := range step.Hooks {
			for _, action := range actions {
				if err := action.Validate(); err != nil {
					return fmt.Errorf("step '%s' hook '%s': %w", step.ID, event, err)
				}
			}
		}
	}

	workflowNames := make(map[string]bool, len(job.Workflows))
	for _, workflow := range job.Workflows {
		if workflowNames[workflow.Name] {
			return fmt.Errorf("duplicate workflow name '%s'", workflow.Name)
		}
		workflowNames[workflow.Name] = true

		seen := make(map[string]bool)
		for _, entry := range workflow.Steps {
			for _, stepID := range entry.StepIDs {
				if !stepIDs[stepID] {
					return fmt.Errorf("workflow '%s' references unknown step '%s'", workflow.Name, stepID)
				}
				if seen[stepID] {
					return fmt.Errorf("workflow '%s' lists step '%s' more than once", workflow.Name, stepID)
				}
				seen[stepID] = true
			}
		}
	}

	return nil
}

// checkAcyclic performs a topological sort over the step dependency graph
// and fails if any steps remain unsorted (a cycle).
func checkAcyclic(job *models.JobDefinition) error {
	inDegree := make(map[string]int, len(job.Steps))
	dependents := make(map[string][]string, len(job.Steps))

	for _, step := range job.Steps {
		inDegree[step.ID] += 0
		for _, dep := range step.Dependencies {
			inDegree[step.ID]++
			dependents[dep] = append(dependents[dep], step.ID)
		}
	}

	var ready []string
	for _, step := range job.Steps {
		if inDegree[step.ID] == 0 {
			ready = append(ready, step.ID)
		}
	}

	sorted := 0
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		sorted++
		for _, next := range dependents[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	if sorted != len(job.Steps) {
		var cyclic []string
		for id, degree := range inDegree {
			if degree > 0 {
				cyclic = append(cyclic, id)
			}
		}
		return fmt.Errorf("dependency cycle involving steps: %s", strings.Join(cyclic, ", "))
	}

	return nil
}

// orphanedSteps returns ids of steps not referenced by any workflow.
// Orphans are a warning, not an error; a job with no workflows has none.
func orphanedSteps(job *models.JobDefinition) []string {
	if len(job.Workflows) == 0 {
		return nil
	}

	referenced := make(map[string]bool)
	for _, workflow := range job.Workflows {
		for _, entry := range workflow.Steps {
			for _, stepID := range entry.StepIDs {
				referenced[stepID] = true
			}
		}
	}

	var orphans []string
	for _, step := range job.Steps {
		if !referenced[step.ID] {
			orphans = append(orphans, step.ID)
		}
	}
	return orphans
}
