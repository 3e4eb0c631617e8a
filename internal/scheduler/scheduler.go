package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Default cadences, all UTC. External per-job invocation stays the
// primary deployment mode; these drive single-host installs.
const (
	// CadenceBankUpdate - daily, after upstream platforms settle their day
	CadenceBankUpdate = "30 1 * * *"
	// CadenceCurate - per freeze date, the 1st and 15th
	CadenceCurate = "0 3 1,15 * *"
	// CadenceResolve - daily, once the bank refresh has landed
	CadenceResolve = "0 5 * * *"
	// CadenceScore - daily, after resolution
	CadenceScore = "0 7 * * *"
)

// Scheduler drives registered jobs on cron cadences.
type Scheduler struct {
	runner *Runner
	cron   *cron.Cron
	log    zerolog.Logger
}

// New creates a scheduler over the runner. Cadence times are interpreted
// in UTC regardless of host timezone.
func New(runner *Runner, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		runner: runner,
		cron:   cron.New(cron.WithLocation(time.UTC)),
		log:    log.With().Str("component", "cron").Logger(),
	}
}

// Schedule registers a job on a cron cadence. The job must already be
// registered with the runner.
func (s *Scheduler) Schedule(spec, name string) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := s.runner.Execute(context.Background(), name); err != nil {
			s.log.Error().Err(err).Str("job", name).Msg("Scheduled run failed")
		}
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("job", name).Str("cadence", spec).Msg("Job scheduled")
	return nil
}

// Start begins cadence-driven execution.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the cadence loop and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
