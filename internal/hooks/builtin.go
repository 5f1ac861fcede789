package hooks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// hookPayload is the subset of the harness event payload the built-in
// hooks care about.
type hookPayload struct {
	Cwd string `json:"cwd"`
}

// sessionGuard warns when the agent is about to stop while a deepwork
// workflow session is still active. Exit code 2 asks the harness to block.
func sessionGuard(stdin io.Reader, stdout, stderr io.Writer) int {
	var payload hookPayload
	if err := json.NewDecoder(stdin).Decode(&payload); err != nil {
		fmt.Fprintf(stderr, "Error: invalid hook payload: %v\n", err)
		return 1
	}

	root := payload.Cwd
	if root == "" {
		root, _ = os.Getwd()
	}

	active := activeSessionFiles(filepath.Join(root, ".deepwork", "tmp"))
	if len(active) == 0 {
		return 0
	}

	fmt.Fprintf(stdout,
		"A deepwork workflow session is still active (%s). Finish the current step with finished_step or call abort_workflow before stopping.\n",
		strings.Join(active, ", "))
	return 2
}

// formatNotice reminds the agent to keep finished_step output values as
// project-relative paths.
func formatNotice(stdin io.Reader, stdout, stderr io.Writer) int {
	fmt.Fprintln(stdout, "Reminder: finished_step output values are paths relative to the project root, one string per 'file' output and an array of strings per 'files' output.")
	return 0
}

// activeSessionFiles returns the session ids of active sessions found
// under the tmp directory. Corrupt files are skipped.
func activeSessionFiles(tmpDir string) []string {
	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return nil
	}

	var active []string
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "session_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(tmpDir, name))
		if err != nil {
			continue
		}
		var session struct {
			SessionID string `json:"session_id"`
			Status    string `json:"status"`
		}
		if err := json.Unmarshal(data, &session); err != nil {
			continue
		}
		if session.Status == "active" {
			active = append(active, session.SessionID)
		}
	}
	return active
}
