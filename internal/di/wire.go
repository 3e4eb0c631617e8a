package di

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/forecastbench/forecastbench/internal/alerting"
	"github.com/forecastbench/forecastbench/internal/bank"
	"github.com/forecastbench/forecastbench/internal/classify"
	"github.com/forecastbench/forecastbench/internal/config"
	"github.com/forecastbench/forecastbench/internal/database"
	"github.com/forecastbench/forecastbench/internal/domain"
	"github.com/forecastbench/forecastbench/internal/events"
	"github.com/forecastbench/forecastbench/internal/fetch"
	"github.com/forecastbench/forecastbench/internal/objstore"
	"github.com/forecastbench/forecastbench/internal/sources"
)

// Wire builds the full dependency graph for one binary.
func Wire(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Log: log}

	store, err := objstore.ForConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object store: %w", err)
	}
	c.Store = store

	bankDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "question_bank.db"),
		Profile: database.ProfileBank,
		Name:    "question_bank",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize question bank database: %w", err)
	}
	c.BankDB = bankDB

	repo, err := bank.NewRepository(bankDB, log)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize question repository: %w", err)
	}
	c.Repo = repo

	c.Series = bank.NewSeriesStore(store, filepath.Join(cfg.DataDir, "series_cache"), log)

	if cfg.ClassifierURL != "" {
		c.Classifier = classify.NewService(cfg.ClassifierURL, log)
	} else {
		c.Classifier = classify.NewKeyword()
	}

	fetchers := fetch.NewFactory(fetch.Credentials{
		FREDAPIKey:   cfg.FREDAPIKey,
		ACLEDAPIKey:  cfg.ACLEDAPIKey,
		ACLEDEmail:   cfg.ACLEDEmail,
		MetaculusKey: cfg.MetaculusKey,
	}, log)
	keys := func(source domain.Source) sources.KeyStore {
		return repo.NewHashMapping(source)
	}
	c.Registry = sources.NewRegistry(fetchers, c.Classifier, keys, log)

	c.Alerter = alerting.NewWebhookAlerter(cfg.AlertWebhookURL, log)
	c.Bus = events.NewBus()

	return c, nil
}
