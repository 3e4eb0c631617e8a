// Package di wires the benchmark's shared dependencies: the question
// bank database, the object store, the source adapter registry, and the
// collaborators behind them. Every binary builds one Container and pulls
// what it needs.
package di

import (
	"github.com/rs/zerolog"

	"github.com/forecastbench/forecastbench/internal/alerting"
	"github.com/forecastbench/forecastbench/internal/bank"
	"github.com/forecastbench/forecastbench/internal/config"
	"github.com/forecastbench/forecastbench/internal/database"
	"github.com/forecastbench/forecastbench/internal/events"
	"github.com/forecastbench/forecastbench/internal/objstore"
	"github.com/forecastbench/forecastbench/internal/sources"
)

// Container holds the wired dependency graph.
type Container struct {
	Config *config.Config
	Log    zerolog.Logger

	BankDB   *database.DB
	Store    objstore.Store
	Repo     *bank.Repository
	Series   *bank.SeriesStore
	Registry *sources.Registry

	Classifier sources.Classifier
	Alerter    alerting.Alerter
	Bus        *events.Bus
}

// Close releases held resources. Safe to call on a partially wired
// container.
func (c *Container) Close() {
	if c.BankDB != nil {
		if err := c.BankDB.Close(); err != nil {
			c.Log.Error().Err(err).Msg("Failed to close question bank database")
		}
	}
}
