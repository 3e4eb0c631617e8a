// Package scoring computes the difficulty-adjusted leaderboard from
// processed forecast sets: two-way fixed-effects Brier adjustment,
// bootstrap uncertainty, human comparisons, and the SOTA parity
// projection.
package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/forecastbench/forecastbench/internal/domain"
	"github.com/forecastbench/forecastbench/internal/objstore"
)

// InclusionCutoffDays keeps a forecast due date out of scoring until it
// is old enough for most horizons and market closes to have elapsed.
const InclusionCutoffDays = 50

// ImputationDiscardThreshold is the imputed-row fraction per question
// type above which a submission is dropped from scoring.
const ImputationDiscardThreshold = 0.05

// Row is one scoreable observation: a model's forecast on one question
// primary key, joined with ground truth.
type Row struct {
	Model      domain.ModelKey
	QuestionPK string
	Source     domain.Source
	DueDate    domain.Day
	Market     bool
	Forecast   float64
	ResolvedTo float64
	Brier      float64
}

// Gather loads every processed forecast set older than the inclusion
// cutoff and flattens it into scoreable rows. Dropped along the way:
// combination rows, unresolved market rows, NaN resolutions, and whole
// files whose imputation fraction crosses the discard threshold.
func Gather(ctx context.Context, store objstore.Store, today domain.Day, log zerolog.Logger) ([]Row, error) {
	keys, err := store.List(ctx, "processed_forecast_sets/")
	if err != nil {
		return nil, err
	}

	cutoff := today - InclusionCutoffDays
	var rows []Row
	files := 0
	for _, key := range keys {
		if !strings.HasSuffix(key, ".json") {
			continue
		}
		data, err := store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		var ps domain.ProcessedForecastSet
		if err := json.Unmarshal(data, &ps); err != nil {
			return nil, fmt.Errorf("corrupt processed set %s: %w", key, err)
		}
		if ps.ForecastDueDate > cutoff {
			continue
		}
		fileRows, ok := flatten(&ps, log)
		if !ok {
			continue
		}
		rows = append(rows, fileRows...)
		files++
	}
	log.Info().Int("files", files).Int("rows", len(rows)).Msg("Processed forecast sets gathered")
	return rows, nil
}

// flatten converts one processed set into rows; ok is false when the
// file's imputation fraction disqualifies it.
func flatten(ps *domain.ProcessedForecastSet, log zerolog.Logger) ([]Row, bool) {
	model := ps.Key()
	imputed := map[bool]int{}
	total := map[bool]int{}
	for _, f := range ps.Forecasts {
		if f.ID.IsCombo() {
			continue
		}
		isMarket := f.Source.IsMarket()
		total[isMarket]++
		if f.Imputed {
			imputed[isMarket]++
		}
	}
	for _, isMarket := range []bool{true, false} {
		if total[isMarket] == 0 {
			continue
		}
		if frac := float64(imputed[isMarket]) / float64(total[isMarket]); frac >= ImputationDiscardThreshold {
			log.Warn().
				Str("organization", model.Organization).
				Str("model", model.Model).
				Stringer("forecast_due_date", ps.ForecastDueDate).
				Bool("market", isMarket).
				Float64("imputed_fraction", frac).
				Msg("Submission discarded from scoring")
			return nil, false
		}
	}

	rows := make([]Row, 0, len(ps.Forecasts))
	for _, f := range ps.Forecasts {
		if f.ID.IsCombo() {
			continue
		}
		if math.IsNaN(f.ResolvedTo) {
			continue
		}
		if f.Source.IsMarket() && !f.Resolved {
			continue
		}
		diff := f.Forecast - f.ResolvedTo
		rows = append(rows, Row{
			Model:      model,
			QuestionPK: f.QuestionPK,
			Source:     f.Source,
			DueDate:    ps.ForecastDueDate,
			Market:     f.Source.IsMarket(),
			Forecast:   f.Forecast,
			ResolvedTo: f.ResolvedTo,
			Brier:      diff * diff,
		})
	}
	return rows, true
}

// OracleStep is the x% oracle grid spacing.
const OracleStep = 0.005

// OracleModelName renders the synthetic oracle's model name.
func OracleModelName(x float64) string {
	return fmt.Sprintf("%.1f%% oracle", x*100)
}

// InjectOracles clones the donor model's question coverage into the
// family of x% oracles: each forecasts x when the outcome is 1 and 1-x
// when 0. They anchor the x%-oracle-equivalent measure.
func InjectOracles(rows []Row, donor domain.ModelKey) []Row {
	var donorRows []Row
	for _, r := range rows {
		if r.Model == donor {
			donorRows = append(donorRows, r)
		}
	}
	if len(donorRows) == 0 {
		return rows
	}

	steps := int(math.Round(1/OracleStep)) + 1
	out := rows
	for i := 0; i < steps; i++ {
		x := float64(i) * OracleStep
		key := domain.ModelKey{
			Organization:      domain.BenchmarkOrganization,
			ModelOrganization: domain.BenchmarkOrganization,
			Model:             OracleModelName(x),
		}
		for _, r := range donorRows {
			forecast := 1 - x
			// Fractional market outcomes side with the nearer pole
			if r.ResolvedTo >= 0.5 {
				forecast = x
			}
			diff := forecast - r.ResolvedTo
			out = append(out, Row{
				Model:      key,
				QuestionPK: r.QuestionPK,
				Source:     r.Source,
				DueDate:    r.DueDate,
				Market:     r.Market,
				Forecast:   forecast,
				ResolvedTo: r.ResolvedTo,
				Brier:      diff * diff,
			})
		}
	}
	return out
}

// IsOracle reports whether a model is one of the synthetic oracles.
func IsOracle(k domain.ModelKey) bool {
	return strings.HasSuffix(k.Model, "% oracle")
}

// ReleaseDatesKey locates the model release-date table in the object
// store.
const ReleaseDatesKey = "leaderboards/model_release_dates.json"

// LoadReleaseDates reads the model-name to release-date table. A missing
// object yields an empty table, which disables the release-date filter.
func LoadReleaseDates(ctx context.Context, store objstore.Store) (map[string]domain.Day, error) {
	data, err := store.Get(ctx, ReleaseDatesKey)
	if errors.Is(err, objstore.ErrNotFound) {
		return map[string]domain.Day{}, nil
	}
	if err != nil {
		return nil, err
	}
	var raw map[string]domain.Day
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("corrupt release-date table: %w", err)
	}
	return raw, nil
}

// Models lists the distinct model keys present in rows, sorted.
func Models(rows []Row) []domain.ModelKey {
	seen := make(map[domain.ModelKey]bool)
	var keys []domain.ModelKey
	for _, r := range rows {
		if !seen[r.Model] {
			seen[r.Model] = true
			keys = append(keys, r.Model)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Organization != keys[j].Organization {
			return keys[i].Organization < keys[j].Organization
		}
		return keys[i].Model < keys[j].Model
	})
	return keys
}
