package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecastbench/forecastbench/internal/events"
)

func TestRunnerExecuteEmitsLifecycleEvents(t *testing.T) {
	bus := events.NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	runner := NewRunner(bus, zerolog.Nop())
	runner.Register(JobFunc{JobName: "score", Fn: func(ctx context.Context) error { return nil }})

	err := runner.Execute(context.Background(), "score")
	require.NoError(t, err)

	started := <-ch
	assert.Equal(t, events.JobStarted, started.Type)
	assert.Equal(t, "score", started.Module)
	runID, ok := started.Data["run_id"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, runID)

	completed := <-ch
	assert.Equal(t, events.JobCompleted, completed.Type)
	assert.Equal(t, runID, completed.Data["run_id"])
}

func TestRunnerExecuteRecordsFailure(t *testing.T) {
	bus := events.NewBus()
	runner := NewRunner(bus, zerolog.Nop())
	runner.Register(JobFunc{JobName: "resolve", Fn: func(ctx context.Context) error {
		return errors.New("stale resolution series")
	}})

	err := runner.Execute(context.Background(), "resolve")
	require.Error(t, err)

	statuses := runner.Statuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, RunStateFailed, statuses[0].State)
	assert.Contains(t, statuses[0].LastError, "stale resolution series")
	assert.False(t, statuses[0].LastFinish.IsZero())
}

func TestRunnerExecuteUnknownJob(t *testing.T) {
	runner := NewRunner(events.NewBus(), zerolog.Nop())
	err := runner.Execute(context.Background(), "nonexistent")
	assert.Error(t, err)
}

func TestRunnerRejectsConcurrentRuns(t *testing.T) {
	bus := events.NewBus()
	runner := NewRunner(bus, zerolog.Nop())

	release := make(chan struct{})
	running := make(chan struct{})
	runner.Register(JobFunc{JobName: "bankupdate", Fn: func(ctx context.Context) error {
		close(running)
		<-release
		return nil
	}})

	done := make(chan error, 1)
	go func() { done <- runner.Execute(context.Background(), "bankupdate") }()
	<-running

	err := runner.Trigger(context.Background(), "bankupdate")
	assert.Error(t, err)

	close(release)
	require.NoError(t, <-done)

	statuses := runner.Statuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, RunStateCompleted, statuses[0].State)
}

func TestRunnerTriggerRunsInBackground(t *testing.T) {
	bus := events.NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	runner := NewRunner(bus, zerolog.Nop())
	runner.Register(JobFunc{JobName: "curate", Fn: func(ctx context.Context) error { return nil }})

	require.NoError(t, runner.Trigger(context.Background(), "curate"))

	deadline := time.After(5 * time.Second)
	var completed bool
	for !completed {
		select {
		case ev := <-ch:
			if ev.Type == events.JobCompleted {
				completed = true
			}
		case <-deadline:
			t.Fatal("job did not complete")
		}
	}
}
