package scheduler

import (
	"context"
	"os/exec"
	"strings"

	"slurmjobs/internal/apperrors"
)

// Slurm invokes the Slurm CLI (squeue/scancel) as subprocesses.
type Slurm struct {
	squeuePath  string
	scancelPath string
}

// SlurmConfig holds binary paths for the Slurm CLI. Zero values use the
// binaries from $PATH.
type SlurmConfig struct {
	SqueuePath  string
	ScancelPath string
}

// NewSlurm creates a Slurm CLI client.
func NewSlurm(cfg SlurmConfig) *Slurm {
	squeue := cfg.SqueuePath
	if squeue == "" {
		squeue = "squeue"
	}
	scancel := cfg.ScancelPath
	if scancel == "" {
		scancel = "scancel"
	}
	return &Slurm{squeuePath: squeue, scancelPath: scancel}
}

// Cancel runs scancel filtered to the job name. scancel exits zero even when
// no matching job exists, so a nonzero exit means the invocation itself
// failed, not that the job was already gone.
func (s *Slurm) Cancel(ctx context.Context, jobName string) error {
	cmd := exec.CommandContext(ctx, s.scancelPath, "--jobname", jobName)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return apperrors.Unavailable("scheduler.cancel", commandError(err, output))
	}
	return nil
}

// QueryStatus runs squeue filtered to the job name and returns stdout
// verbatim. The header line squeue always prints is kept; the caller's
// parser relies on it to tell "no rows" from "rows".
func (s *Slurm) QueryStatus(ctx context.Context, jobName string) (string, error) {
	cmd := exec.CommandContext(ctx, s.squeuePath, "--name", jobName)
	output, err := cmd.Output()
	if err != nil {
		return "", apperrors.Unavailable("scheduler.queryStatus", commandError(err, nil))
	}
	return string(output), nil
}

// Ready probes the squeue binary so health checks can report scheduler
// reachability without touching any job.
func (s *Slurm) Ready(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, s.squeuePath, "--version")
	if output, err := cmd.CombinedOutput(); err != nil {
		return apperrors.Unavailable("scheduler.ready", commandError(err, output))
	}
	return nil
}

// commandError prefers the command's own stderr text over the bare exit
// status when available.
func commandError(err error, output []byte) error {
	if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
		output = exitErr.Stderr
	}
	if msg := strings.TrimSpace(string(output)); msg != "" {
		return &cliError{msg: msg, cause: err}
	}
	return err
}

type cliError struct {
	msg   string
	cause error
}

func (e *cliError) Error() string { return e.msg }
func (e *cliError) Unwrap() error { return e.cause }

// Verify Slurm implements Client
var _ Client = (*Slurm)(nil)
