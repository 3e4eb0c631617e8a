// Package scheduler runs the benchmark's batch jobs: bank update,
// curation, resolution, scoring. Jobs are normally invoked one per
// process by an external scheduler; the in-process cron registration
// exists for single-host deployments.
package scheduler

import "context"

// Job is a single runnable pipeline stage.
type Job interface {
	// Name identifies the job in logs, events, and trigger endpoints.
	Name() string

	// Run executes the job to completion. A returned error marks the run
	// failed; jobs are idempotent per benchmark day and safe to re-run.
	Run(ctx context.Context) error
}

// JobFunc adapts a function to the Job interface.
type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context) error
}

// Name returns the job name.
func (j JobFunc) Name() string { return j.JobName }

// Run invokes the wrapped function.
func (j JobFunc) Run(ctx context.Context) error { return j.Fn(ctx) }
