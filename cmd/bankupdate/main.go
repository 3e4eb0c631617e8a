// Package main is the question bank update job: refresh every source's
// question table and resolution series, then publish the hash mappings.
// Runs daily, normally invoked by the external scheduler.
package main

import (
	"context"
	"os"
	"time"

	"github.com/forecastbench/forecastbench/internal/bank"
	"github.com/forecastbench/forecastbench/internal/config"
	"github.com/forecastbench/forecastbench/internal/di"
	"github.com/forecastbench/forecastbench/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info"})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	log.Info().Str("run_mode", string(cfg.RunMode)).Msg("Starting question bank update")

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()

	c, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer c.Close()

	updater := bank.NewUpdater(c.Registry, c.Repo, c.Series, c.Store, cfg.NumCPUs, log)
	if err := updater.UpdateAll(ctx); err != nil {
		c.Alerter.Alert(ctx, "bankupdate", err.Error())
		log.Error().Err(err).Msg("Question bank update failed")
		c.Close()
		os.Exit(1)
	}

	log.Info().Msg("Question bank update completed")
}
