// Package main is the scoring job: gather processed forecast sets, fit
// difficulties, bootstrap, and publish both leaderboard variants with
// their SOTA graphs.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/forecastbench/forecastbench/internal/config"
	"github.com/forecastbench/forecastbench/internal/di"
	"github.com/forecastbench/forecastbench/internal/scoring"
	"github.com/forecastbench/forecastbench/pkg/logger"
)

func main() {
	ciFlag := flag.String("ci-method", string(scoring.CIPercentile), "confidence interval method: percentile or bca")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info"})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})

	ciMethod := scoring.CIMethod(*ciFlag)
	if ciMethod != scoring.CIPercentile && ciMethod != scoring.CIBCa {
		log.Fatal().Str("ci_method", *ciFlag).Msg("Invalid confidence interval method")
	}

	replicates := cfg.BootstrapReplicates()
	log.Info().
		Str("run_mode", string(cfg.RunMode)).
		Int("replicates", replicates).
		Str("ci_method", string(ciMethod)).
		Msg("Starting scoring")

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()

	c, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer c.Close()

	scorer := scoring.NewScorer(c.Store, replicates, cfg.NumCPUs, ciMethod, log)
	if err := scorer.Run(ctx); err != nil {
		c.Alerter.Alert(ctx, "score", err.Error())
		log.Error().Err(err).Msg("Scoring failed")
		c.Close()
		os.Exit(1)
	}

	log.Info().Msg("Scoring completed")
}
