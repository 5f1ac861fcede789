package state

import (
	"github.com/ternarybob/deepwork/internal/models"
)

// GetStack returns the derived stack view, bottom-to-top. Bottom is the
// oldest session; top is the default target of tool calls.
func (s *Store) GetStack() []models.StackEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]models.StackEntry, 0, len(s.stack))
	for _, session := range s.stack {
		entries = append(entries, models.StackEntry{
			Workflow: session.WorkflowRef(),
			Step:     session.CurrentStepID,
		})
	}
	return entries
}

// GetStackDepth returns the number of sessions on the stack.
func (s *Store) GetStackDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stack)
}
