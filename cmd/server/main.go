// Package main is the ops server: health and system endpoints, published
// artifact serving, manual job triggers, and the live job event stream.
// With -cron it also drives the batch jobs on their cadences in-process,
// for single-host deployments without an external scheduler.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/forecastbench/forecastbench/internal/bank"
	"github.com/forecastbench/forecastbench/internal/config"
	"github.com/forecastbench/forecastbench/internal/curation"
	"github.com/forecastbench/forecastbench/internal/di"
	"github.com/forecastbench/forecastbench/internal/domain"
	"github.com/forecastbench/forecastbench/internal/resolution"
	"github.com/forecastbench/forecastbench/internal/scheduler"
	"github.com/forecastbench/forecastbench/internal/scoring"
	"github.com/forecastbench/forecastbench/internal/server"
	"github.com/forecastbench/forecastbench/pkg/logger"
)

func main() {
	cronFlag := flag.Bool("cron", false, "run batch jobs on their cadences in-process")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info"})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	log.Info().Str("run_mode", string(cfg.RunMode)).Msg("Starting ops server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer c.Close()

	runner := scheduler.NewRunner(c.Bus, log)
	registerJobs(runner, c, cfg, log)

	var sched *scheduler.Scheduler
	if *cronFlag {
		sched = scheduler.New(runner, log)
		cadences := []struct{ name, cadence string }{
			{"bankupdate", scheduler.CadenceBankUpdate},
			{"curate", scheduler.CadenceCurate},
			{"resolve", scheduler.CadenceResolve},
			{"score", scheduler.CadenceScore},
		}
		for _, c := range cadences {
			if err := sched.Schedule(c.cadence, c.name); err != nil {
				log.Fatal().Err(err).Str("job", c.name).Msg("Failed to schedule job")
			}
		}
		sched.Start()
	}

	srv := server.New(server.Config{
		Log:     log,
		Config:  cfg,
		Store:   c.Store,
		Bus:     c.Bus,
		Runner:  runner,
		Port:    cfg.Port,
		DevMode: cfg.DevMode,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server failed")
	}

	if sched != nil {
		sched.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
	log.Info().Msg("Ops server stopped")
}

// registerJobs wires the four pipeline stages as triggerable jobs. Each
// run gets its own ambient timeout, matching the standalone binaries.
func registerJobs(runner *scheduler.Runner, c *di.Container, cfg *config.Config, log zerolog.Logger) {
	withTimeout := func(fn func(ctx context.Context) error) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			runCtx, cancel := context.WithTimeout(ctx, time.Hour)
			defer cancel()
			return fn(runCtx)
		}
	}

	updater := bank.NewUpdater(c.Registry, c.Repo, c.Series, c.Store, cfg.NumCPUs, log)
	runner.Register(scheduler.JobFunc{JobName: "bankupdate", Fn: withTimeout(updater.UpdateAll)})

	llmN, humanN := cfg.Curation()
	curator := curation.NewCurator(c.Repo, c.Series, c.Store, llmN, humanN, log)
	runner.Register(scheduler.JobFunc{JobName: "curate", Fn: withTimeout(func(ctx context.Context) error {
		return curator.Run(ctx, domain.TodayUTC())
	})})

	engine := resolution.NewEngine(c.Registry, c.Repo, c.Series, c.Store, log)
	runner.Register(scheduler.JobFunc{JobName: "resolve", Fn: withTimeout(func(ctx context.Context) error {
		dueDates, err := resolution.SubmittedDueDates(ctx, c.Store)
		if err != nil {
			return err
		}
		for _, dueDate := range dueDates {
			if err := engine.Run(ctx, dueDate); err != nil {
				return err
			}
		}
		return nil
	})})

	scorer := scoring.NewScorer(c.Store, cfg.BootstrapReplicates(), cfg.NumCPUs, scoring.CIPercentile, log)
	runner.Register(scheduler.JobFunc{JobName: "score", Fn: withTimeout(scorer.Run)})
}
