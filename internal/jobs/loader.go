package jobs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/deepwork/internal/common"
	"github.com/ternarybob/deepwork/internal/models"
)

// JobFileName is the definition file a directory must contain to be a job.
const JobFileName = "job.yml"

// ErrJobNotFound indicates no job directory matched the requested name.
var ErrJobNotFound = errors.New("job not found")

// LoadedJob pairs a parsed definition with its non-fatal warnings.
type LoadedJob struct {
	Def      *models.JobDefinition
	Warnings []string
}

// LoadResult is the outcome of scanning every configured jobs folder.
// A per-job failure lands in Errors and never aborts the other jobs.
type LoadResult struct {
	Jobs   []LoadedJob
	Errors []models.JobError
}

// Loader discovers and parses job definitions from an ordered list of
// folders. Earlier folders win when the same directory name appears twice;
// identity is the directory name, not the name field inside the file.
type Loader struct {
	projectRoot string
	logger      arbor.ILogger
}

// NewLoader creates a job loader rooted at the given project directory
func NewLoader(projectRoot string, logger arbor.ILogger) *Loader {
	return &Loader{
		projectRoot: projectRoot,
		logger:      logger,
	}
}

// Folders returns the job folders in priority order: the project's own
// jobs directory, the bundled standard jobs, then any folders from
// DEEPWORK_ADDITIONAL_JOBS_FOLDERS.
func (l *Loader) Folders() []string {
	folders := []string{common.ProjectJobsDir(l.projectRoot)}
	if standard := common.StandardJobsDir(); standard != "" {
		folders = append(folders, standard)
	}
	folders = append(folders, common.AdditionalJobsFolders()...)
	return folders
}

// LoadAll scans every folder and loads each candidate job directory.
func (l *Loader) LoadAll() *LoadResult {
	result := &LoadResult{}
	seen := make(map[string]bool)

	for _, folder := range l.Folders() {
		entries, err := os.ReadDir(folder)
		if err != nil {
			// Non-existent or unreadable folders are silently skipped.
			continue
		}

		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			if entry.IsDir() {
				names = append(names, entry.Name())
			}
		}
		sort.Strings(names)

		for _, name := range names {
			if seen[name] {
				l.logger.Debug().
					Str("job_dir", name).
					Str("folder", folder).
					Msg("Skipping job directory shadowed by a higher-priority folder")
				continue
			}

			jobDir := filepath.Join(folder, name)
			if _, err := os.Stat(filepath.Join(jobDir, JobFileName)); err != nil {
				continue
			}
			seen[name] = true

			job, warnings, err := l.LoadJob(jobDir)
			if err != nil {
				l.logger.Warn().
					Str("job_dir", jobDir).
					Err(err).
					Msg("Failed to load job definition")
				result.Errors = append(result.Errors, models.JobError{
					JobName: name,
					JobDir:  jobDir,
					Error:   err.Error(),
				})
				continue
			}

			result.Jobs = append(result.Jobs, LoadedJob{Def: job, Warnings: warnings})
		}
	}

	return result
}

// LoadJob parses and validates a single job directory. Returns the
// definition, orphan-step warnings, and any fatal parse error.
func (l *Loader) LoadJob(jobDir string) (*models.JobDefinition, []string, error) {
	info, err := os.Stat(jobDir)
	if err != nil {
		return nil, nil, fmt.Errorf("job directory does not exist: %s", jobDir)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("not a directory: %s", jobDir)
	}

	jobFile := filepath.Join(jobDir, JobFileName)
	data, err := os.ReadFile(jobFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", JobFileName, err)
	}
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("%s is empty", JobFileName)
	}

	// First decode to a generic document for schema validation, then into
	// the typed definition.
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("invalid YAML in %s: %w", JobFileName, err)
	}

	if err := validateAgainstSchema(doc); err != nil {
		return nil, nil, err
	}

	var job models.JobDefinition
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, nil, fmt.Errorf("failed to decode %s: %w", JobFileName, err)
	}
	job.JobDir = jobDir

	for i := range job.Steps {
		job.Steps[i].MigrateStopHooks()
	}

	if err := checkSemantics(&job); err != nil {
		return nil, nil, err
	}

	var warnings []string
	for _, orphan := range orphanedSteps(&job) {
		warnings = append(warnings, fmt.Sprintf("step '%s' is not referenced by any workflow", orphan))
	}

	return &job, warnings, nil
}

// FindJobDir returns the first directory in priority order whose name
// matches and which contains a job.yml.
func (l *Loader) FindJobDir(name string) (string, bool) {
	for _, folder := range l.Folders() {
		jobDir := filepath.Join(folder, name)
		if info, err := os.Stat(jobDir); err == nil && info.IsDir() {
			if _, err := os.Stat(filepath.Join(jobDir, JobFileName)); err == nil {
				return jobDir, true
			}
		}
	}
	return "", false
}

// FindJob loads the named job, searching folders in priority order.
func (l *Loader) FindJob(name string) (*models.JobDefinition, error) {
	jobDir, ok := l.FindJobDir(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	job, _, err := l.LoadJob(jobDir)
	if err != nil {
		return nil, err
	}
	return job, nil
}
