// Package resolution turns submitted forecast files into processed
// forecast sets: validated, joined with ground truth, and imputed where
// the submitter skipped questions. One run covers one forecast due date
// and is idempotent.
package resolution

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/forecastbench/forecastbench/internal/bank"
	"github.com/forecastbench/forecastbench/internal/domain"
	"github.com/forecastbench/forecastbench/internal/objstore"
	"github.com/forecastbench/forecastbench/internal/sources"
)

// ImputedValue replaces a missing forecast for every model except the
// system forecasters with their own imputation rules.
const ImputedValue = 0.5

// Engine resolves all submissions for one forecast due date.
type Engine struct {
	registry *sources.Registry
	repo     *bank.Repository
	series   *bank.SeriesStore
	store    objstore.Store
	log      zerolog.Logger
}

// NewEngine creates a resolution engine.
func NewEngine(registry *sources.Registry, repo *bank.Repository, series *bank.SeriesStore, store objstore.Store, log zerolog.Logger) *Engine {
	return &Engine{
		registry: registry,
		repo:     repo,
		series:   series,
		store:    store,
		log:      log.With().Str("component", "resolution").Logger(),
	}
}

// Run resolves every forecast file submitted for the due date, emits the
// processed sets, and publishes the per-round resolution set.
func (e *Engine) Run(ctx context.Context, dueDate domain.Day) error {
	log := e.log.With().Stringer("forecast_due_date", dueDate).Logger()

	set, err := e.loadQuestionSet(ctx, dueDate)
	if err != nil {
		return err
	}
	overrides, err := bank.LoadOverrides(ctx, e.store)
	if err != nil {
		return err
	}

	today := domain.TodayUTC()
	table := newResolvedTable(e.registry, e.repo, e.series, overrides, dueDate, today)

	keys, err := e.store.List(ctx, objstore.ForecastSetPrefix(dueDate))
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := e.processFile(ctx, key, set, table, today, log); err != nil {
			return fmt.Errorf("failed to process %s: %w", key, err)
		}
	}

	if err := e.publishResolutionSet(ctx, set, table, today); err != nil {
		return err
	}
	log.Info().Int("files", len(keys)).Msg("Resolution run complete")
	return nil
}

// loadQuestionSet fetches the LLM question set for the due date; every
// submission for the date forecasts a subset of it.
func (e *Engine) loadQuestionSet(ctx context.Context, dueDate domain.Day) (*domain.QuestionSet, error) {
	data, err := e.store.Get(ctx, objstore.QuestionSetKey(dueDate, "llm"))
	if err != nil {
		return nil, fmt.Errorf("no question set for %s: %w", dueDate, err)
	}
	var set domain.QuestionSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("corrupt question set for %s: %w", dueDate, err)
	}
	return &set, nil
}

// validResolutionDates indexes, per dataset question, the resolution
// dates a submission may name.
func validResolutionDates(set *domain.QuestionSet) map[string]map[domain.Day]bool {
	dates := make(map[string]map[domain.Day]bool)
	for _, q := range set.Questions {
		if len(q.ResolutionDates) == 0 {
			continue
		}
		m := make(map[domain.Day]bool, len(q.ResolutionDates))
		for _, d := range q.ResolutionDates {
			m[d] = true
		}
		dates[q.ID.Key()] = m
	}
	return dates
}

// processFile resolves one submitted forecast file into its processed
// counterpart.
func (e *Engine) processFile(ctx context.Context, key string, set *domain.QuestionSet, table *resolvedTable, today domain.Day, log zerolog.Logger) error {
	data, err := e.store.Get(ctx, key)
	if err != nil {
		return err
	}
	var fs domain.ForecastSet
	if err := json.Unmarshal(data, &fs); err != nil {
		return fmt.Errorf("malformed forecast file: %w", err)
	}
	if fs.ForecastDueDate != set.ForecastDueDate {
		return fmt.Errorf("forecast file due date %s does not match set %s", fs.ForecastDueDate, set.ForecastDueDate)
	}

	valid, err := validateForecasts(&fs, validResolutionDates(set))
	if err != nil {
		return err
	}

	model := fs.Key()
	yesterday := today - 1
	var rows []domain.ProcessedForecast
	imputedByClass := map[bool]int{}
	totalByClass := map[bool]int{}

	for _, q := range set.Questions {
		var qRows []domain.ProcessedForecast
		switch {
		case q.ID.IsCombo():
			qRows, err = e.processCombo(ctx, q, valid, table, yesterday)
		case q.Source.IsMarket():
			qRows, err = e.processMarket(ctx, q, valid, table, model, yesterday)
		default:
			qRows, err = e.processDataset(ctx, q, valid, table, yesterday)
		}
		if err != nil {
			return err
		}
		for _, row := range qRows {
			isMarket := row.Source.IsMarket() && !row.ID.IsCombo()
			totalByClass[isMarket]++
			if row.Imputed {
				imputedByClass[isMarket]++
			}
		}
		rows = append(rows, qRows...)
	}
	sortProcessed(rows)

	for _, isMarket := range []bool{true, false} {
		if total := totalByClass[isMarket]; total > 0 {
			frac := float64(imputedByClass[isMarket]) / float64(total)
			if frac >= 0.05 {
				log.Warn().
					Str("organization", model.Organization).
					Str("model", model.Model).
					Bool("market", isMarket).
					Float64("imputed_fraction", frac).
					Msg("Imputation above threshold; file will be excluded from scoring")
			}
		}
	}

	processed := domain.ProcessedForecastSet{
		Organization:      fs.Organization,
		Model:             fs.Model,
		ModelOrganization: fs.ModelOrganization,
		QuestionSet:       fs.QuestionSet,
		ForecastDueDate:   fs.ForecastDueDate,
		Forecasts:         rows,
	}
	out, err := json.MarshalIndent(&processed, "", "  ")
	if err != nil {
		return err
	}
	return e.store.Put(ctx, objstore.ProcessedForecastSetKey(set.ForecastDueDate, objstore.FilenameFromKey(key)), out)
}

// processMarket emits the single shared-horizon row for one market
// question, imputing per the model's rule when the forecast is missing.
func (e *Engine) processMarket(ctx context.Context, q domain.SetQuestion, valid map[string]domain.Forecast, table *resolvedTable, model domain.ModelKey, yesterday domain.Day) ([]domain.ProcessedForecast, error) {
	rv, err := table.resolveSingle(ctx, q.Source, q.ID.Single, yesterday)
	if err != nil {
		return nil, err
	}
	mv, err := table.marketValuesFor(ctx, q.Source, q.ID.Single)
	if err != nil {
		return nil, err
	}

	forecast, imputed := lookupForecast(valid, q.ID, string(q.Source), yesterday, nil)
	if imputed {
		switch model.Model {
		case domain.ModelImputedForecaster:
			forecast = mv.onDueDate
		case domain.ModelNaiveForecaster:
			forecast = mv.onDueDateMinusOne
		}
	}

	return []domain.ProcessedForecast{{
		ID:                           q.ID,
		Source:                       q.Source,
		Forecast:                     forecast,
		ResolutionDate:               yesterday,
		ResolvedTo:                   rv.value,
		Resolved:                     rv.resolved,
		Imputed:                      imputed,
		MarketValueOnDueDate:         mv.onDueDate,
		MarketValueOnDueDateMinusOne: mv.onDueDateMinusOne,
		ForecastDueDate:              table.dueDate,
		QuestionPK:                   questionPK(table.dueDate, q.Source, q.ID.Key(), yesterday),
	}}, nil
}

// processDataset emits one row per elapsed resolution date.
func (e *Engine) processDataset(ctx context.Context, q domain.SetQuestion, valid map[string]domain.Forecast, table *resolvedTable, yesterday domain.Day) ([]domain.ProcessedForecast, error) {
	var rows []domain.ProcessedForecast
	for _, rd := range q.ResolutionDates {
		if rd > yesterday {
			// Unelapsed horizons produce no processed row
			continue
		}
		rv, err := table.resolveSingle(ctx, q.Source, q.ID.Single, rd)
		if err != nil {
			return nil, err
		}
		forecast, imputed := lookupForecast(valid, q.ID, string(q.Source), rd, nil)
		rows = append(rows, domain.ProcessedForecast{
			ID:                           q.ID,
			Source:                       q.Source,
			Forecast:                     forecast,
			ResolutionDate:               rd,
			ResolvedTo:                   rv.value,
			Resolved:                     rv.resolved,
			Imputed:                      imputed,
			MarketValueOnDueDate:         math.NaN(),
			MarketValueOnDueDateMinusOne: math.NaN(),
			ForecastDueDate:              table.dueDate,
			QuestionPK:                   questionPK(table.dueDate, q.Source, q.ID.Key(), rd),
		})
	}
	return rows, nil
}

// processCombo emits rows for the directions the submitter actually
// forecast. Combos a submitter skipped produce no row; scoring excludes
// combination questions regardless.
func (e *Engine) processCombo(ctx context.Context, q domain.SetQuestion, valid map[string]domain.Forecast, table *resolvedTable, yesterday domain.Day) ([]domain.ProcessedForecast, error) {
	var rows []domain.ProcessedForecast
	for _, f := range valid {
		if f.ID.Key() != q.ID.Key() {
			continue
		}
		rv, err := table.resolveCombo(ctx, q.Source, q.ID.Legs(), f.Direction, yesterday)
		if err != nil {
			return nil, err
		}
		rows = append(rows, domain.ProcessedForecast{
			ID:                           q.ID,
			Source:                       q.Source,
			Direction:                    f.Direction,
			Forecast:                     *f.Forecast,
			ResolutionDate:               yesterday,
			ResolvedTo:                   rv.value,
			Resolved:                     rv.resolved,
			MarketValueOnDueDate:         math.NaN(),
			MarketValueOnDueDateMinusOne: math.NaN(),
			ForecastDueDate:              table.dueDate,
			QuestionPK:                   questionPK(table.dueDate, q.Source, q.ID.Key(), yesterday),
		})
	}
	return rows, nil
}

// lookupForecast finds the submitted value for one (question, resolution
// date) row; reports imputed=true with the default when absent.
func lookupForecast(valid map[string]domain.Forecast, id domain.QuestionID, source string, rd domain.Day, direction []int) (float64, bool) {
	f, ok := valid[rowKey(domain.Forecast{ID: id, Source: source, ResolutionDate: rd, Direction: direction})]
	if !ok {
		// Market rows are keyed without a resolution date; validation
		// strips whatever date the submitter wrote
		f, ok = valid[rowKey(domain.Forecast{ID: id, Source: source, Direction: direction})]
	}
	if !ok || f.Forecast == nil {
		return ImputedValue, true
	}
	return *f.Forecast, false
}

// publishResolutionSet writes the per-round ground-truth table: every
// single question's resolution rows, no forecaster data.
func (e *Engine) publishResolutionSet(ctx context.Context, set *domain.QuestionSet, table *resolvedTable, today domain.Day) error {
	yesterday := today - 1
	var rows []domain.ResolutionRow

	for _, q := range set.Questions {
		if q.ID.IsCombo() {
			// Combo truth is derivable from the legs
			continue
		}
		dates := q.ResolutionDates
		if q.Source.IsMarket() {
			dates = []domain.Day{yesterday}
		}
		for _, rd := range dates {
			if rd > yesterday {
				continue
			}
			rv, err := table.resolveSingle(ctx, q.Source, q.ID.Single, rd)
			if err != nil {
				return err
			}
			rows = append(rows, domain.ResolutionRow{
				ID:             q.ID,
				Source:         q.Source,
				ResolutionDate: rd,
				ResolvedTo:     rv.value,
				Resolved:       rv.resolved,
			})
		}
	}

	out, err := json.MarshalIndent(&domain.ResolutionSet{
		ForecastDueDate: set.ForecastDueDate,
		Rows:            rows,
	}, "", "  ")
	if err != nil {
		return err
	}
	return e.store.Put(ctx, objstore.ResolutionSetKey(set.ForecastDueDate), out)
}

// questionPK is the canonical per-forecast-set question primary key.
func questionPK(dueDate domain.Day, source domain.Source, idKey string, rd domain.Day) string {
	return fmt.Sprintf("%s|%s|%s|%s", dueDate, source, idKey, rd)
}
