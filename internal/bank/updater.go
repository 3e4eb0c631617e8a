package bank

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/forecastbench/forecastbench/internal/domain"
	"github.com/forecastbench/forecastbench/internal/objstore"
	"github.com/forecastbench/forecastbench/internal/sources"
)

// Updater runs the daily question-bank refresh: pull each source's
// question table, upsert it, and bring every question's resolution series
// forward through yesterday UTC.
type Updater struct {
	registry *sources.Registry
	repo     *Repository
	series   *SeriesStore
	store    objstore.Store
	workers  int
	log      zerolog.Logger
}

// NewUpdater creates the bank updater. workers bounds concurrent series
// refreshes per source.
func NewUpdater(registry *sources.Registry, repo *Repository, series *SeriesStore, store objstore.Store, workers int, log zerolog.Logger) *Updater {
	if workers < 1 {
		workers = 1
	}
	return &Updater{
		registry: registry,
		repo:     repo,
		series:   series,
		store:    store,
		workers:  workers,
		log:      log.With().Str("component", "bank_updater").Logger(),
	}
}

// UpdateAll refreshes every source in canonical order. A failing source
// aborts the run: a partial bank must not feed curation.
func (u *Updater) UpdateAll(ctx context.Context) error {
	for _, adapter := range u.registry.All() {
		if err := u.UpdateSource(ctx, adapter); err != nil {
			return fmt.Errorf("failed to update %s: %w", adapter.Source(), err)
		}
	}
	return nil
}

// UpdateSource refreshes one source's questions and series.
func (u *Updater) UpdateSource(ctx context.Context, adapter sources.Adapter) error {
	source := adapter.Source()
	log := u.log.With().Str("source", string(source)).Logger()
	today := domain.TodayUTC()

	questions, err := adapter.Questions(ctx)
	if err != nil {
		return err
	}
	for _, q := range questions {
		if err := u.repo.Upsert(q); err != nil {
			return err
		}
	}
	log.Info().Int("questions", len(questions)).Msg("Question table refreshed")

	// Series refresh covers the whole stored table, not just today's
	// listing: a question that ever shipped in a set stays resolvable.
	stored, err := u.repo.GetBySource(source)
	if err != nil {
		return err
	}

	var (
		mu      sync.Mutex
		updated int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.workers)
	for _, q := range stored {
		q := q
		g.Go(func() error {
			changed, err := u.refreshSeries(gctx, adapter, q, today)
			if err != nil {
				return fmt.Errorf("series %s/%s: %w", source, q.ID, err)
			}
			if changed {
				mu.Lock()
				updated++
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Int("series_updated", updated).Int("series_total", len(stored)).Msg("Series refreshed")

	if source.IsDataset() {
		if err := u.repo.NewHashMapping(source).Publish(ctx, u.store); err != nil {
			return err
		}
	}
	return nil
}

// refreshSeries merges the adapter's fresh observations into the stored
// series. Reports whether the stored series changed.
func (u *Updater) refreshSeries(ctx context.Context, adapter sources.Adapter, q *domain.Question, today domain.Day) (bool, error) {
	existing, err := u.series.Get(ctx, q.Source, q.ID, today)
	if err != nil {
		return false, err
	}
	if !existing.Stale(today) {
		return false, nil
	}

	fresh, err := adapter.ResolutionSeries(ctx, q.ID, today)
	if err != nil {
		return false, err
	}
	merged := MergeSeries(q.ID, existing, fresh)
	if merged.Empty() {
		// Legal only for freshly added questions with no history yet
		return false, nil
	}

	// Encyclopedic tables are back-filled with nulls to their epoch so the
	// naive forecaster's lookback window exists even for rows first seen
	// recently.
	if epoch := sources.Epoch(q.Source); q.Class() == domain.ClassEncyclopedic && merged.Start > epoch {
		padded := make([]domain.Value, int(merged.Start-epoch)+len(merged.Values))
		copy(padded[merged.Start-epoch:], merged.Values)
		merged = &domain.Series{ID: q.ID, Start: epoch, Values: padded}
	}
	if err := u.series.Put(ctx, q.Source, merged); err != nil {
		return false, err
	}
	return true, nil
}

// MergeSeries overlays fresh observations onto the stored series. Fresh
// days win on overlap; stored days outside the fresh range survive, which
// is how snapshot sources (wikipedia) accumulate history one day at a
// time.
func MergeSeries(id string, stored, fresh *domain.Series) *domain.Series {
	if stored.Empty() {
		return fresh
	}
	if fresh.Empty() {
		return stored
	}

	start := stored.Start
	if fresh.Start < start {
		start = fresh.Start
	}
	end := stored.End()
	if fresh.End() > end {
		end = fresh.End()
	}

	values := make([]domain.Value, end-start+1)
	covered := make([]bool, end-start+1)
	for d := start; d <= end; d++ {
		switch {
		case d >= fresh.Start && d <= fresh.End():
			values[d-start] = fresh.At(d)
			covered[d-start] = true
		case d >= stored.Start && d <= stored.End():
			values[d-start] = stored.At(d)
			covered[d-start] = true
		}
	}
	// Days covered by neither side are observation gaps (a snapshot source
	// skipped a day); the last observed value stands.
	for i := 1; i < len(values); i++ {
		if !covered[i] && !values[i-1].IsNull() {
			values[i] = values[i-1]
		}
	}
	return &domain.Series{ID: id, Start: start, Values: values}
}
