package common

import (
	"fmt"
	"os"
	"path/filepath"
)

// DeepworkDir returns the .deepwork directory for a project root.
func DeepworkDir(projectRoot string) string {
	return filepath.Join(projectRoot, ".deepwork")
}

// TmpDir returns the session/tmp directory for a project root.
func TmpDir(projectRoot string) string {
	return filepath.Join(projectRoot, ".deepwork", "tmp")
}

// ProjectJobsDir returns the per-project jobs directory.
func ProjectJobsDir(projectRoot string) string {
	return filepath.Join(projectRoot, ".deepwork", "jobs")
}

// StandardJobsDir resolves the bundled standard-jobs folder relative to the
// installed binary. Development paths are never consulted.
func StandardJobsDir() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Join(filepath.Dir(execPath), "jobs")
}

// EnsureTmpDir creates the tmp directory for a project root if needed.
func EnsureTmpDir(projectRoot string) error {
	dir := TmpDir(projectRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create tmp directory %s: %w", dir, err)
	}
	return nil
}
