package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/deepwork/internal/common"
	"github.com/ternarybob/deepwork/internal/models"
)

// Sentinel errors surfaced to the tool layer as state errors.
var (
	ErrNoActiveSession = errors.New("no active workflow session; call get_workflows to list available workflows, then start_workflow to begin one")
	ErrSessionNotFound = errors.New("session not found")
)

// Store owns the on-disk session files and the in-memory session stack.
// Every mutation acquires the process-local mutex before touching either,
// so session-state changes are linearized and never race on the same file.
type Store struct {
	mu          sync.Mutex
	projectRoot string
	dir         string
	stack       []*models.WorkflowSession
	validate    *validator.Validate
	logger      arbor.ILogger
}

// NewStore creates a session store for a project root. The tmp directory
// is created on demand by the first write.
func NewStore(projectRoot string, logger arbor.ILogger) *Store {
	return &Store{
		projectRoot: projectRoot,
		dir:         common.TmpDir(projectRoot),
		validate:    validator.New(),
		logger:      logger,
	}
}

// sessionFile returns the on-disk path for a session id.
func (s *Store) sessionFile(sessionID string) string {
	return filepath.Join(s.dir, fmt.Sprintf("session_%s.json", sessionID))
}

// persistLocked writes the session file. Caller holds the mutex.
func (s *Store) persistLocked(session *models.WorkflowSession) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", session.SessionID, err)
	}

	path := s.sessionFile(session.SessionID)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write session file %s: %w", path, err)
	}
	return nil
}

// readSessionFile reads and validates one session file.
func (s *Store) readSessionFile(path string) (*models.WorkflowSession, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var session models.WorkflowSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("corrupt session file %s: %w", path, err)
	}

	if err := s.validate.Struct(&session); err != nil {
		return nil, fmt.Errorf("invalid session file %s: %w", path, err)
	}

	return &session, nil
}

// resolveLocked implements the session-id router: an explicit id is looked
// up anywhere on the stack and a miss is a hard error; an empty id falls
// back to the top of the stack. Caller holds the mutex.
func (s *Store) resolveLocked(sessionID string) (*models.WorkflowSession, error) {
	if sessionID != "" {
		for _, session := range s.stack {
			if session.SessionID == sessionID {
				return session, nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	if len(s.stack) == 0 {
		return nil, ErrNoActiveSession
	}
	return s.stack[len(s.stack)-1], nil
}

// ResolveSession resolves an optional session id to a session on the stack.
func (s *Store) ResolveSession(sessionID string) (*models.WorkflowSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveLocked(sessionID)
}

// removeFromStackLocked removes a session wherever it sits on the stack.
// Mid-stack removal is legitimate; stacks are small so O(n) is fine.
func (s *Store) removeFromStackLocked(sessionID string) {
	for i, session := range s.stack {
		if session.SessionID == sessionID {
			s.stack = append(s.stack[:i], s.stack[i+1:]...)
			return
		}
	}
}

// topLocked returns the current top-of-stack session, or nil.
func (s *Store) topLocked() *models.WorkflowSession {
	if len(s.stack) == 0 {
		return nil
	}
	return s.stack[len(s.stack)-1]
}

// CreateSession generates a new session, persists it, and pushes it onto
// the top of the stack.
func (s *Store) CreateSession(jobName, workflowName, goal, instanceID, firstStepID string) (*models.WorkflowSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := &models.WorkflowSession{
		SessionID:         common.NewSessionID(),
		JobName:           jobName,
		WorkflowName:      workflowName,
		Goal:              goal,
		InstanceID:        instanceID,
		CurrentStepID:     firstStepID,
		CurrentEntryIndex: 0,
		Status:            models.SessionStatusActive,
		StartedAt:         common.NowUTC(),
		StepProgress:      make(map[string]*models.StepProgress),
	}

	if err := s.persistLocked(session); err != nil {
		return nil, err
	}

	s.stack = append(s.stack, session)

	s.logger.Info().
		Str("session_id", session.SessionID).
		Str("workflow", session.WorkflowRef()).
		Str("first_step", firstStepID).
		Int("stack_depth", len(s.stack)).
		Msg("Created workflow session")

	return session, nil
}

// LoadSession reads a session file from disk. If the stack is non-empty the
// loaded session replaces the top of the stack; otherwise it is pushed.
func (s *Store) LoadSession(sessionID string) (*models.WorkflowSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.sessionFile(sessionID)
	session, err := s.readSessionFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no session file for id %s", ErrSessionNotFound, sessionID)
		}
		return nil, err
	}

	if len(s.stack) == 0 {
		s.stack = append(s.stack, session)
	} else {
		s.stack[len(s.stack)-1] = session
	}

	return session, nil
}

// StartStep marks a step started on the resolved session.
func (s *Store) StartStep(stepID, sessionID string) (*models.WorkflowSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.resolveLocked(sessionID)
	if err != nil {
		return nil, err
	}

	progress := session.Progress(stepID)
	if progress.StartedAt == "" {
		progress.StartedAt = common.NowUTC()
	}

	if err := s.persistLocked(session); err != nil {
		return nil, err
	}
	return session, nil
}

// CompleteStep records a step's outputs and notes and marks it completed.
func (s *Store) CompleteStep(stepID string, outputs map[string]any, notes, sessionID string) (*models.WorkflowSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.resolveLocked(sessionID)
	if err != nil {
		return nil, err
	}

	progress := session.Progress(stepID)
	if progress.StartedAt == "" {
		progress.StartedAt = common.NowUTC()
	}
	progress.CompletedAt = common.NowUTC()
	progress.Outputs = outputs
	progress.Notes = notes

	if err := s.persistLocked(session); err != nil {
		return nil, err
	}
	return session, nil
}

// RecordQualityAttempt increments the quality attempt counter for a step
// and returns the new count. Incremented before the reviewer runs.
func (s *Store) RecordQualityAttempt(stepID, sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.resolveLocked(sessionID)
	if err != nil {
		return 0, err
	}

	progress := session.Progress(stepID)
	progress.QualityAttempts++

	if err := s.persistLocked(session); err != nil {
		return 0, err
	}
	return progress.QualityAttempts, nil
}

// AdvanceToStep moves the session's cursor to a new step and entry index
// and marks the step started.
func (s *Store) AdvanceToStep(stepID string, entryIndex int, sessionID string) (*models.WorkflowSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.resolveLocked(sessionID)
	if err != nil {
		return nil, err
	}

	session.CurrentStepID = stepID
	session.CurrentEntryIndex = entryIndex

	progress := session.Progress(stepID)
	if progress.StartedAt == "" {
		progress.StartedAt = common.NowUTC()
	}

	if err := s.persistLocked(session); err != nil {
		return nil, err
	}
	return session, nil
}

// CompleteWorkflow marks the resolved session completed, removes it from
// the stack wherever it sits, and returns the new top-of-stack (or nil).
// The session file stays on disk for audit.
func (s *Store) CompleteWorkflow(sessionID string) (*models.WorkflowSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.resolveLocked(sessionID)
	if err != nil {
		return nil, err
	}

	session.Status = models.SessionStatusCompleted
	session.CompletedAt = common.NowUTC()

	if err := s.persistLocked(session); err != nil {
		return nil, err
	}

	s.removeFromStackLocked(session.SessionID)

	s.logger.Info().
		Str("session_id", session.SessionID).
		Str("workflow", session.WorkflowRef()).
		Int("stack_depth", len(s.stack)).
		Msg("Workflow completed")

	return s.topLocked(), nil
}

// AbortWorkflow marks the resolved session aborted with a reason, removes
// it from the stack, and returns both the aborted session and the new
// top-of-stack so the tool layer can describe what resumed.
func (s *Store) AbortWorkflow(reason, sessionID string) (aborted, resumed *models.WorkflowSession, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.resolveLocked(sessionID)
	if err != nil {
		return nil, nil, err
	}

	session.Status = models.SessionStatusAborted
	session.AbortReason = reason
	session.CompletedAt = common.NowUTC()

	if err := s.persistLocked(session); err != nil {
		return nil, nil, err
	}

	s.removeFromStackLocked(session.SessionID)

	s.logger.Info().
		Str("session_id", session.SessionID).
		Str("workflow", session.WorkflowRef()).
		Str("reason", reason).
		Int("stack_depth", len(s.stack)).
		Msg("Workflow aborted")

	return session, s.topLocked(), nil
}

// GetAllOutputs merges outputs from every completed step on the resolved
// session in step-completion order; later steps win on key collision.
func (s *Store) GetAllOutputs(sessionID string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.resolveLocked(sessionID)
	if err != nil {
		return nil, err
	}

	var completed []*models.StepProgress
	for _, progress := range session.StepProgress {
		if progress.CompletedAt != "" {
			completed = append(completed, progress)
		}
	}
	sort.Slice(completed, func(i, j int) bool {
		return completed[i].CompletedAt < completed[j].CompletedAt
	})

	merged := make(map[string]any)
	for _, progress := range completed {
		for key, value := range progress.Outputs {
			merged[key] = value
		}
	}
	return merged, nil
}

// ListSessions scans every session file under the tmp directory, skipping
// corrupted files, and returns sessions sorted descending by started_at.
func (s *Store) ListSessions() []*models.WorkflowSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil
	}

	var sessions []*models.WorkflowSession
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "session_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		session, err := s.readSessionFile(filepath.Join(s.dir, name))
		if err != nil {
			s.logger.Warn().Str("file", name).Err(err).Msg("Skipping unreadable session file")
			continue
		}
		sessions = append(sessions, session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt > sessions[j].StartedAt
	})
	return sessions
}

// FindActiveSessionsForWorkflow filters listed sessions by job, workflow,
// and active status.
func (s *Store) FindActiveSessionsForWorkflow(jobName, workflowName string) []*models.WorkflowSession {
	var matches []*models.WorkflowSession
	for _, session := range s.ListSessions() {
		if session.JobName == jobName && session.WorkflowName == workflowName && session.IsActive() {
			matches = append(matches, session)
		}
	}
	return matches
}

// DeleteSession removes the session file if present and the stack entry if
// present. Neither absence is an error.
func (s *Store) DeleteSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.sessionFile(sessionID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session file %s: %w", path, err)
	}

	s.removeFromStackLocked(sessionID)
	return nil
}
