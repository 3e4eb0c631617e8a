// Package main is the curation job: sample the question bank into the
// LLM and human question sets for one freeze cycle and publish them.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/forecastbench/forecastbench/internal/config"
	"github.com/forecastbench/forecastbench/internal/curation"
	"github.com/forecastbench/forecastbench/internal/di"
	"github.com/forecastbench/forecastbench/internal/domain"
	"github.com/forecastbench/forecastbench/pkg/logger"
)

func main() {
	freezeFlag := flag.String("freeze-date", "", "freeze date (YYYY-MM-DD), defaults to today UTC")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info"})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})

	freezeDate := domain.TodayUTC()
	if *freezeFlag != "" {
		freezeDate, err = domain.ParseDay(*freezeFlag)
		if err != nil {
			log.Fatal().Err(err).Str("freeze_date", *freezeFlag).Msg("Invalid freeze date")
		}
	}

	llmN, humanN := cfg.Curation()
	log.Info().
		Str("run_mode", string(cfg.RunMode)).
		Stringer("freeze_date", freezeDate).
		Int("llm_n", llmN).
		Int("human_n", humanN).
		Msg("Starting curation")

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()

	c, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer c.Close()

	curator := curation.NewCurator(c.Repo, c.Series, c.Store, llmN, humanN, log)
	if err := curator.Run(ctx, freezeDate); err != nil {
		c.Alerter.Alert(ctx, "curate", err.Error())
		log.Error().Err(err).Msg("Curation failed")
		c.Close()
		os.Exit(1)
	}

	log.Info().Msg("Curation completed")
}
