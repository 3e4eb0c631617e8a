package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/forecastbench/forecastbench/internal/events"
)

// RunState describes where a job run currently stands.
type RunState string

const (
	// RunStateIdle - never run in this process
	RunStateIdle RunState = "idle"
	// RunStateRunning - a run is in flight
	RunStateRunning RunState = "running"
	// RunStateCompleted - the last run finished without error
	RunStateCompleted RunState = "completed"
	// RunStateFailed - the last run returned an error
	RunStateFailed RunState = "failed"
)

// JobStatus is the last-known status of one registered job.
type JobStatus struct {
	Name       string    `json:"name"`
	State      RunState  `json:"state"`
	LastRunID  string    `json:"last_run_id,omitempty"`
	LastStart  time.Time `json:"last_start,omitempty"`
	LastFinish time.Time `json:"last_finish,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
}

// Runner executes registered jobs one run at a time per job, tagging
// each run with a uuid and emitting lifecycle events on the bus.
type Runner struct {
	bus *events.Bus
	log zerolog.Logger

	mu       sync.Mutex
	jobs     map[string]Job
	statuses map[string]*JobStatus
	inflight map[string]bool
	order    []string
}

// NewRunner creates a job runner publishing to the given event bus.
func NewRunner(bus *events.Bus, log zerolog.Logger) *Runner {
	return &Runner{
		bus:      bus,
		log:      log.With().Str("component", "scheduler").Logger(),
		jobs:     make(map[string]Job),
		statuses: make(map[string]*JobStatus),
		inflight: make(map[string]bool),
	}
}

// Register adds a job. Registering the same name twice replaces the job
// but keeps its status history.
func (r *Runner) Register(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := job.Name()
	if _, seen := r.jobs[name]; !seen {
		r.order = append(r.order, name)
		r.statuses[name] = &JobStatus{Name: name, State: RunStateIdle}
	}
	r.jobs[name] = job
}

// Execute runs a registered job synchronously. Concurrent runs of the
// same job are rejected; different jobs may overlap.
func (r *Runner) Execute(ctx context.Context, name string) error {
	r.mu.Lock()
	job, ok := r.jobs[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("unknown job %q", name)
	}
	if r.inflight[name] {
		r.mu.Unlock()
		return fmt.Errorf("job %q is already running", name)
	}
	runID := uuid.NewString()
	start := time.Now().UTC()
	r.inflight[name] = true
	status := r.statuses[name]
	status.State = RunStateRunning
	status.LastRunID = runID
	status.LastStart = start
	status.LastFinish = time.Time{}
	status.LastError = ""
	r.mu.Unlock()

	log := r.log.With().Str("job", name).Str("run_id", runID).Logger()
	log.Info().Msg("Job started")
	r.bus.Emit(events.JobStarted, name, map[string]interface{}{"run_id": runID})

	err := job.Run(ctx)

	finish := time.Now().UTC()
	r.mu.Lock()
	delete(r.inflight, name)
	status.LastFinish = finish
	if err != nil {
		status.State = RunStateFailed
		status.LastError = err.Error()
	} else {
		status.State = RunStateCompleted
	}
	r.mu.Unlock()

	duration := finish.Sub(start)
	if err != nil {
		log.Error().Err(err).Dur("duration_ms", duration).Msg("Job failed")
		r.bus.Emit(events.JobFailed, name, map[string]interface{}{
			"run_id": runID,
			"error":  err.Error(),
		})
		return err
	}
	log.Info().Dur("duration_ms", duration).Msg("Job completed")
	r.bus.Emit(events.JobCompleted, name, map[string]interface{}{
		"run_id":      runID,
		"duration_ms": duration.Milliseconds(),
	})
	return nil
}

// Trigger starts a job in the background and returns its acceptance.
// Used by the manual trigger endpoints.
func (r *Runner) Trigger(ctx context.Context, name string) error {
	r.mu.Lock()
	if _, ok := r.jobs[name]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("unknown job %q", name)
	}
	if r.inflight[name] {
		r.mu.Unlock()
		return fmt.Errorf("job %q is already running", name)
	}
	r.mu.Unlock()

	// Detach from the caller's lifetime: a trigger request finishing must
	// not cancel the run it started.
	runCtx := context.WithoutCancel(ctx)
	go func() {
		// Errors are recorded in status and emitted on the bus
		_ = r.Execute(runCtx, name)
	}()
	return nil
}

// Statuses returns every registered job's status in registration order.
func (r *Runner) Statuses() []JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]JobStatus, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.statuses[name])
	}
	return out
}
