// Package scheduler defines the Client interface for the cluster scheduler
// and its implementations.
package scheduler

import "context"

// Client is the narrow surface this service needs from the batch scheduler.
//
// The scheduler is the SOURCE OF TRUTH for job state. No state is cached
// between calls; every status query hits the scheduler fresh, trading
// efficiency for correctness under scheduler-side state changes.
//
// Both operations are scoped by job name, not job ID: a job may span several
// array tasks or partitions that all share the submitted name.
type Client interface {
	// Cancel requests cancellation of every task submitted under the given
	// job name. Fire-and-forget: a nil return means the request was issued,
	// not that the job stopped. Cancelling a finished or unknown job is a
	// no-op from the scheduler's perspective.
	Cancel(ctx context.Context, jobName string) error

	// QueryStatus returns the scheduler's status output for the given job
	// name, verbatim, header line included. An empty or header-only result
	// is a valid outcome meaning the scheduler reports no tasks for that
	// name; it is never an error.
	QueryStatus(ctx context.Context, jobName string) (string, error)

	// Ready checks that the scheduler command surface is reachable.
	Ready(ctx context.Context) error
}
