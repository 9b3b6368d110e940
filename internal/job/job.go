// Package job implements the lifecycle core for batch jobs: the validated
// job handle, scheduler status parsing, and the controller that composes
// cancel, status, wait, output and cleanup.
package job

import (
	"fmt"
	"path/filepath"
	"regexp"

	"slurmjobs/internal/apperrors"
)

const maxNameLength = 128

// namePattern allows alphanumeric, hyphens, and underscores. The name doubles
// as the scheduler's job-name filter and the working directory name, so shell
// and path metacharacters are rejected outright.
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// Job is the handle for one submitted job. It is produced by the submission
// tooling and validated once at construction; operations on a Job never
// re-check its fields.
type Job struct {
	Name      string // unique job name, stable for the job's lifetime
	NodeCount int    // number of parallel node partitions, one output file each
}

// New validates and constructs a job handle.
func New(name string, nodeCount int) (Job, error) {
	if name == "" {
		return Job{}, apperrors.Validation("name", "job name is required")
	}
	if len(name) > maxNameLength {
		return Job{}, apperrors.Validation("name", fmt.Sprintf("job name exceeds maximum length of %d", maxNameLength))
	}
	if !namePattern.MatchString(name) {
		return Job{}, apperrors.Validation("name", "job name must be alphanumeric (hyphens and underscores allowed, cannot start with hyphen/underscore)")
	}
	if nodeCount <= 0 {
		return Job{}, apperrors.Validation("nodeCount", "node count must be positive")
	}
	return Job{Name: name, NodeCount: nodeCount}, nil
}

// WorkingDir derives the job's working directory under baseDir. The directory
// is owned by the job for its entire lifetime and removed only by Cleanup.
func (j Job) WorkingDir(baseDir string) string {
	return filepath.Join(baseDir, j.Name)
}
