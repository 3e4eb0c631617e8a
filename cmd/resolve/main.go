// Package main is the resolution job: resolve every submitted forecast
// file against ground truth and publish the processed sets and the
// per-round resolution set. Without an explicit due date it walks every
// round with submissions; the engine is idempotent per round.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/forecastbench/forecastbench/internal/config"
	"github.com/forecastbench/forecastbench/internal/di"
	"github.com/forecastbench/forecastbench/internal/domain"
	"github.com/forecastbench/forecastbench/internal/resolution"
	"github.com/forecastbench/forecastbench/pkg/logger"
)

func main() {
	dueFlag := flag.String("due-date", "", "forecast due date (YYYY-MM-DD), defaults to all rounds with submissions")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info"})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	log.Info().Str("run_mode", string(cfg.RunMode)).Msg("Starting resolution")

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()

	c, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer c.Close()

	var dueDates []domain.Day
	if *dueFlag != "" {
		dueDate, err := domain.ParseDay(*dueFlag)
		if err != nil {
			log.Fatal().Err(err).Str("due_date", *dueFlag).Msg("Invalid due date")
		}
		dueDates = []domain.Day{dueDate}
	} else {
		dueDates, err = resolution.SubmittedDueDates(ctx, c.Store)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to list submitted rounds")
		}
	}

	engine := resolution.NewEngine(c.Registry, c.Repo, c.Series, c.Store, log)
	for _, dueDate := range dueDates {
		if err := engine.Run(ctx, dueDate); err != nil {
			c.Alerter.Alert(ctx, "resolve", err.Error())
			log.Error().Err(err).Stringer("forecast_due_date", dueDate).Msg("Resolution failed")
			c.Close()
			os.Exit(1)
		}
	}

	log.Info().Int("rounds", len(dueDates)).Msg("Resolution completed")
}
