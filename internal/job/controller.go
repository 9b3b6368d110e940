package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"slurmjobs/internal/apperrors"
	"slurmjobs/internal/observability"
	"slurmjobs/internal/output"
	"slurmjobs/internal/scheduler"
	"slurmjobs/pkg/backoff"
)

// WaitOptions controls WaitUntilDone polling. Zero values use the
// controller's defaults.
type WaitOptions struct {
	PollInterval time.Duration // minimum sleep between status queries
	MaxInterval  time.Duration // cap for poll backoff; <= PollInterval keeps a constant cadence
	Timeout      time.Duration // overall deadline for the wait
}

func (o WaitOptions) withDefaults(d WaitOptions) WaitOptions {
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = d.MaxInterval
	}
	if o.MaxInterval < o.PollInterval {
		o.MaxInterval = o.PollInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	return o
}

// Controller orchestrates the lifecycle of submitted jobs against a
// scheduler client.
//
// The Controller is stateless - all job state lives in the scheduler and the
// filesystem. Every Status call queries the scheduler fresh; nothing is
// cached between calls.
type Controller struct {
	client  scheduler.Client
	baseDir string
	wait    WaitOptions
	metrics *observability.Metrics
}

// Config holds configuration for the Controller.
type Config struct {
	Client      scheduler.Client       // scheduler adapter (required)
	BaseDir     string                 // root under which working directories live (required)
	DefaultWait WaitOptions            // polling policy used when callers pass zero options
	Metrics     *observability.Metrics // metrics recorder (optional)
}

// NewController creates a job controller.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("scheduler client is required")
	}
	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	wait := cfg.DefaultWait
	if wait.PollInterval <= 0 {
		wait.PollInterval = 5 * time.Second
	}
	if wait.MaxInterval < wait.PollInterval {
		wait.MaxInterval = wait.PollInterval
	}
	if wait.Timeout <= 0 {
		wait.Timeout = 24 * time.Hour
	}

	return &Controller{
		client:  cfg.Client,
		baseDir: cfg.BaseDir,
		wait:    wait,
		metrics: cfg.Metrics,
	}, nil
}

// WorkingDir returns the job's working directory under the controller's base
// directory.
func (c *Controller) WorkingDir(j Job) string {
	return j.WorkingDir(c.baseDir)
}

// Cancel asks the scheduler to cancel the job. Fire-and-forget from the
// scheduler's perspective; the working directory is not touched.
func (c *Controller) Cancel(ctx context.Context, j Job) error {
	err := c.client.Cancel(ctx, j.Name)
	if c.metrics != nil {
		c.metrics.RecordSchedulerCancel(ctx, err)
	}
	if err != nil {
		slog.Error("Job cancellation failed", "job", j.Name, "error", err)
		return err
	}
	slog.Info("Job cancellation requested", "job", j.Name)
	return nil
}

// Status queries the scheduler and parses the result.
func (c *Controller) Status(ctx context.Context, j Job) (State, error) {
	raw, err := c.client.QueryStatus(ctx, j.Name)
	if c.metrics != nil {
		c.metrics.RecordSchedulerQuery(ctx, err)
	}
	if err != nil {
		return State{}, err
	}
	return ParseStatus(raw), nil
}

// WaitUntilDone polls Status until the job is terminal. It returns a typed
// timeout error if the deadline passes while the job is still active, and
// aborts the sleep promptly when ctx is cancelled. Each iteration sleeps at
// least PollInterval; when MaxInterval exceeds PollInterval the cadence
// grows exponentially up to that cap.
func (c *Controller) WaitUntilDone(ctx context.Context, j Job, opts WaitOptions) error {
	opts = opts.withDefaults(c.wait)

	start := time.Now()
	if c.metrics != nil {
		c.metrics.RecordWaitStarted(ctx)
	}

	err := c.pollUntilDone(ctx, j, opts)
	if c.metrics != nil {
		c.metrics.RecordWaitFinished(ctx, time.Since(start).Seconds(), errors.Is(err, apperrors.ErrTimeout))
	}
	return err
}

func (c *Controller) pollUntilDone(ctx context.Context, j Job, opts WaitOptions) error {
	deadline := time.Now().Add(opts.Timeout)
	cadence := &backoff.Config{Initial: opts.PollInterval, Max: opts.MaxInterval}

	for attempt := 1; ; attempt++ {
		state, err := c.Status(ctx, j)
		if err != nil {
			return err
		}
		if state.Terminal() {
			slog.Info("Job reached terminal state", "job", j.Name, "polls", attempt)
			return nil
		}

		if time.Now().After(deadline) {
			return apperrors.Timeout("job.waitUntilDone",
				fmt.Sprintf("job %s still active after %s", j.Name, opts.Timeout))
		}

		timer := time.NewTimer(backoff.Exponential(attempt, cadence))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Output collects the per-node console output from the job's working
// directory. Callers should ensure the job is terminal first: output
// collected from an in-flight job may be incomplete and indistinguishable
// from a finished one.
func (c *Controller) Output(j Job) output.Report {
	return output.Collect(c.WorkingDir(j), j.NodeCount)
}

// Cleanup removes the job's working directory tree, irrecoverably. With wait
// set it first waits for the job to reach terminal state using the
// controller's default policy, and propagates any wait failure without
// deleting anything. Removal is atomic from the caller's perspective: the
// directory is renamed aside before deletion, so the original path is either
// fully gone or untouched.
func (c *Controller) Cleanup(ctx context.Context, j Job, wait bool) error {
	err := c.cleanup(ctx, j, wait)
	if c.metrics != nil {
		c.metrics.RecordCleanup(ctx, err)
	}
	return err
}

func (c *Controller) cleanup(ctx context.Context, j Job, wait bool) error {
	if wait {
		if err := c.WaitUntilDone(ctx, j, WaitOptions{}); err != nil {
			return err
		}
	}

	dir := c.WorkingDir(j)
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return apperrors.NotFound("working directory", dir)
	}
	if err != nil {
		return apperrors.Internal("cleanup.stat", err)
	}
	if !info.IsDir() {
		return apperrors.Internal("cleanup.stat", fmt.Errorf("%s is not a directory", dir))
	}

	// Rename first so the visible path disappears in one step; RemoveAll can
	// fail halfway, but only on a path no caller observes.
	doomed := fmt.Sprintf("%s.removing.%s", dir, uuid.NewString()[:8])
	if err := os.Rename(dir, doomed); err != nil {
		return apperrors.Internal("cleanup.remove", err)
	}
	if err := os.RemoveAll(doomed); err != nil {
		return apperrors.Internal("cleanup.scrub", err)
	}

	slog.Info("Working directory removed", "job", j.Name, "dir", dir)
	return nil
}
