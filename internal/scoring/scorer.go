package scoring

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/forecastbench/forecastbench/internal/domain"
	"github.com/forecastbench/forecastbench/internal/objstore"
)

// Scorer runs the full leaderboard pipeline: gather, fit, bootstrap,
// rank, publish.
type Scorer struct {
	store      objstore.Store
	replicates int
	workers    int
	ciMethod   CIMethod
	log        zerolog.Logger
}

// NewScorer creates a scorer. replicates is the bootstrap count for the
// active run mode; workers bounds replicate parallelism.
func NewScorer(store objstore.Store, replicates, workers int, ciMethod CIMethod, log zerolog.Logger) *Scorer {
	if workers < 1 {
		workers = 1
	}
	if ciMethod == "" {
		ciMethod = CIPercentile
	}
	return &Scorer{
		store:      store,
		replicates: replicates,
		workers:    workers,
		ciMethod:   ciMethod,
		log:        log.With().Str("component", "scorer").Logger(),
	}
}

// Run computes and publishes both leaderboard variants and their SOTA
// graphs.
func (s *Scorer) Run(ctx context.Context) error {
	today := domain.TodayUTC()
	rows, err := Gather(ctx, s.store, today, s.log)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		s.log.Warn().Msg("No scoreable rows; leaderboard unchanged")
		return nil
	}

	releases, err := LoadReleaseDates(ctx, s.store)
	if err != nil {
		return err
	}
	eligible := Eligibility(releases)

	rows = InjectOracles(rows, benchmarkKey(domain.ModelAlwaysHalf))

	observed, err := ComputeScores(rows, eligible)
	if err != nil {
		return err
	}

	s.log.Info().Int("replicates", s.replicates).Int("workers", s.workers).Msg("Bootstrap started")
	reps, err := RunBootstrap(ctx, rows, eligible, s.replicates, s.workers)
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	cis, err := s.confidenceIntervals(rows, eligible, observed, reps)
	if err != nil {
		return err
	}

	sota := ComputeSOTA(observed, reps, releases)

	for _, variant := range []Variant{VariantBaseline, VariantTournament} {
		lb := BuildLeaderboard(variant, observed, reps, cis, releases)
		if err := PublishLeaderboard(ctx, s.store, lb); err != nil {
			return err
		}
		if err := PublishSOTAGraph(ctx, s.store, variant, sota); err != nil {
			return err
		}
		s.log.Info().Str("variant", string(variant)).Int("models", len(lb.Rows)).Msg("Leaderboard published")
	}
	return nil
}

// confidenceIntervals computes the per-model 95% CI with the configured
// method. BCa needs the leave-one-stratum-out jackknife, which refits
// the leaderboard once per stratum.
func (s *Scorer) confidenceIntervals(rows []Row, eligible EligibilityFn, observed map[domain.ModelKey]*Score, reps *Replicates) (map[domain.ModelKey]CI, error) {
	cis := make(map[domain.ModelKey]CI, len(reps.Overall))
	if s.ciMethod == CIPercentile {
		for key, samples := range reps.Overall {
			cis[key] = PercentileCI(samples)
		}
		return cis, nil
	}

	jackknife, err := JackknifeOverall(rows, eligible)
	if err != nil {
		return nil, err
	}
	for key, samples := range reps.Overall {
		obs, ok := observed[key]
		if !ok {
			continue
		}
		cis[key] = BCaCI(samples, obs.Overall, jackknife[key])
	}
	return cis, nil
}

// JackknifeOverall recomputes every model's overall score with one
// (forecast_due_date, source) stratum left out at a time.
func JackknifeOverall(rows []Row, eligible EligibilityFn) (map[domain.ModelKey][]float64, error) {
	strata, _ := buildStrata(rows)
	out := make(map[domain.ModelKey][]float64)
	for _, omit := range strata {
		subset := make([]Row, 0, len(rows))
		for _, r := range rows {
			if r.DueDate == omit.dueDate && r.Source == omit.source {
				continue
			}
			subset = append(subset, r)
		}
		scores, err := ComputeScores(subset, eligible)
		if err != nil {
			return nil, fmt.Errorf("jackknife omitting %s/%s: %w", omit.dueDate, omit.source, err)
		}
		for key, sc := range scores {
			out[key] = append(out[key], sc.Overall)
		}
	}
	return out, nil
}
