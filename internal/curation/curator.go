// Package curation builds the question sets submitters forecast against:
// eligibility filtering, even allocation across sources, stratified
// market sampling, dataset category fill, horizon expansion, combination
// pairs, and the human subset.
package curation

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/forecastbench/forecastbench/internal/bank"
	"github.com/forecastbench/forecastbench/internal/domain"
	"github.com/forecastbench/forecastbench/internal/objstore"
)

// FreezeWindowDays separates the freeze date from the all-forecasts-due
// moment. Markets closing inside the window are never sampled.
const FreezeWindowDays = 10

// DefaultComboCount is how many combination pairs each LLM set carries.
const DefaultComboCount = 50

// Curator assembles question sets from the question bank.
type Curator struct {
	repo    *bank.Repository
	series  *bank.SeriesStore
	store   objstore.Store
	llmN    int
	humanN  int
	combos  int
	log     zerolog.Logger
}

// NewCurator creates a curator. llmN and humanN are the per-set totals
// for the active run mode.
func NewCurator(repo *bank.Repository, series *bank.SeriesStore, store objstore.Store, llmN, humanN int, log zerolog.Logger) *Curator {
	return &Curator{
		repo:   repo,
		series: series,
		store:  store,
		llmN:   llmN,
		humanN: humanN,
		combos: DefaultComboCount,
		log:    log.With().Str("component", "curator").Logger(),
	}
}

// Run builds and publishes the LLM and human question sets for one freeze
// cycle. Deterministic: the same bank contents and freeze date always
// produce byte-identical sets.
func (c *Curator) Run(ctx context.Context, freezeDate domain.Day) error {
	if err := VerifyBinWeights(); err != nil {
		return err
	}

	dueDate := freezeDate + FreezeWindowDays
	allForecastsDue := dueDate.Time()
	log := c.log.With().Stringer("forecast_due_date", dueDate).Logger()

	eligible, err := c.eligibleBySource(allForecastsDue)
	if err != nil {
		return err
	}

	llmQuestions, err := c.sampleAll(ctx, eligible, c.llmN, freezeDate, seedFor(dueDate, "llm"), log)
	if err != nil {
		return err
	}

	set := c.buildSet(llmQuestions, dueDate, "llm")
	set.Questions = append(set.Questions, c.comboQuestions(llmQuestions, seedFor(dueDate, "combo"))...)

	humanSet := c.deriveHumanSet(set, dueDate, seedFor(dueDate, "human"))

	if err := c.publish(ctx, set, objstore.QuestionSetKey(dueDate, "llm")); err != nil {
		return err
	}
	if err := c.publish(ctx, humanSet, objstore.QuestionSetKey(dueDate, "human")); err != nil {
		return err
	}
	if err := c.publish(ctx, set, objstore.LatestLLMKey); err != nil {
		return err
	}

	log.Info().
		Int("llm_questions", len(set.Questions)).
		Int("human_questions", len(humanSet.Questions)).
		Msg("Question sets published")
	return nil
}

// eligibleBySource loads and filters every source's question table.
func (c *Curator) eligibleBySource(allForecastsDue time.Time) (map[domain.Source][]*domain.Question, error) {
	eligible := make(map[domain.Source][]*domain.Question)
	for _, source := range domain.AllSources() {
		questions, err := c.repo.GetBySource(source)
		if err != nil {
			return nil, err
		}
		eligible[source] = FilterEligible(questions, allForecastsDue)
	}
	return eligible, nil
}

// sampleAll allocates the target across sources (half market, half
// dataset) and samples each source. Horizon binning and series freshness
// are anchored on the freeze date, so a rerun for a past freeze date
// reproduces the original draw.
func (c *Curator) sampleAll(ctx context.Context, eligible map[domain.Source][]*domain.Question, total int, freezeDate domain.Day, seed int64, log zerolog.Logger) ([]*domain.Question, error) {
	marketAvail := make(map[string]int)
	datasetAvail := make(map[string]int)
	for source, qs := range eligible {
		if source.IsMarket() {
			marketAvail[string(source)] = len(qs)
		} else {
			datasetAvail[string(source)] = len(qs)
		}
	}
	marketAlloc := Allocate(total/2, marketAvail)
	datasetAlloc := Allocate(total-total/2, datasetAvail)

	rng := rand.New(rand.NewSource(seed))

	var sampled []*domain.Question
	for _, source := range domain.AllSources() {
		pool := eligible[source]
		if source.IsMarket() {
			want := marketAlloc[string(source)]
			got, telemetry := SampleMarket(pool, want, freezeDate.Time(), rng)
			logBinTable(log, source, telemetry)
			log.Info().
				Str("source", string(source)).
				Int("want", want).
				Int("available", len(pool)).
				Int("got", len(got)).
				Msg("Market source sampled")

			// A market series not current through the day before the freeze
			// means the source update failed; shipping its questions would
			// freeze unverifiable values
			for _, q := range got {
				series, err := c.series.Get(ctx, source, q.ID, freezeDate)
				if err != nil {
					return nil, err
				}
				if series.Stale(freezeDate) {
					return nil, fmt.Errorf("stale resolution series for %s/%s: last row %s", source, q.ID, series.End())
				}
			}
			sampled = append(sampled, got...)
			continue
		}

		want := datasetAlloc[string(source)]
		got := SampleDataset(pool, want, rng)
		log.Info().
			Str("source", string(source)).
			Int("want", want).
			Int("available", len(pool)).
			Int("got", len(got)).
			Msg("Dataset source sampled")
		sampled = append(sampled, got...)
	}
	return sampled, nil
}

// buildSet renders sampled questions into the shipped set form, expanding
// dataset horizons into explicit resolution dates.
func (c *Curator) buildSet(questions []*domain.Question, dueDate domain.Day, kind string) *domain.QuestionSet {
	setQuestions := make([]domain.SetQuestion, 0, len(questions))
	for _, q := range questions {
		setQuestions = append(setQuestions, toSetQuestion(q, dueDate))
	}
	sort.Slice(setQuestions, func(i, j int) bool {
		if setQuestions[i].Source != setQuestions[j].Source {
			return setQuestions[i].Source < setQuestions[j].Source
		}
		return setQuestions[i].ID.Key() < setQuestions[j].ID.Key()
	})

	return &domain.QuestionSet{
		ForecastDueDate: dueDate,
		QuestionSet:     objstore.FilenameFromKey(objstore.QuestionSetKey(dueDate, kind)),
		Questions:       setQuestions,
	}
}

// toSetQuestion copies the canonical record into the set form.
func toSetQuestion(q *domain.Question, dueDate domain.Day) domain.SetQuestion {
	sq := domain.SetQuestion{
		ID:                             domain.SingleID(q.ID),
		Source:                         q.Source,
		URL:                            q.URL,
		Question:                       q.Question,
		Background:                     q.Background,
		ResolutionCriteria:             q.ResolutionCriteria,
		Category:                       q.Category,
		FreezeDatetime:                 q.FreezeDatetime,
		FreezeDatetimeValue:            q.FreezeDatetimeValue,
		FreezeDatetimeValueExplanation: q.FreezeDatetimeValueExplanation,
		MarketInfoOpenDatetime:         q.MarketInfoOpenDatetime,
		MarketInfoCloseDatetime:        q.MarketInfoCloseDatetime,
		MarketInfoResolutionDatetime:   q.MarketInfoResolutionDatetime,
	}
	if q.Source.IsDataset() {
		sq.ResolutionDates = make([]domain.Day, 0, len(q.ForecastHorizons))
		for _, h := range q.ForecastHorizons {
			sq.ResolutionDates = append(sq.ResolutionDates, dueDate+domain.Day(h))
		}
	}
	return sq
}

// comboQuestions pairs questions from the same market source. Pairs are
// sampled without replacement from each source's share of the combo
// budget.
func (c *Curator) comboQuestions(questions []*domain.Question, seed int64) []domain.SetQuestion {
	bySource := make(map[domain.Source][]*domain.Question)
	for _, q := range questions {
		if q.Source.IsMarket() {
			bySource[q.Source] = append(bySource[q.Source], q)
		}
	}

	pairable := make(map[string]int)
	for source, qs := range bySource {
		if len(qs) >= 2 {
			pairable[string(source)] = len(qs) * (len(qs) - 1) / 2
		}
	}
	alloc := Allocate(c.combos, pairable)

	rng := rand.New(rand.NewSource(seed))
	var combos []domain.SetQuestion
	for _, source := range domain.MarketSources() {
		want := alloc[string(source)]
		qs := bySource[source]
		if want == 0 || len(qs) < 2 {
			continue
		}
		sort.Slice(qs, func(i, j int) bool { return qs[i].ID < qs[j].ID })

		seen := make(map[[2]int]bool)
		for len(combos) < c.combos && want > 0 {
			i, j := rng.Intn(len(qs)), rng.Intn(len(qs))
			if i == j {
				continue
			}
			if i > j {
				i, j = j, i
			}
			if seen[[2]int{i, j}] {
				continue
			}
			seen[[2]int{i, j}] = true
			want--

			a, b := qs[i], qs[j]
			combos = append(combos, domain.SetQuestion{
				ID:     domain.ComboOf(a.ID, b.ID),
				Source: source,
				CombinationOf: []domain.SetQuestion{
					toSetQuestion(a, 0),
					toSetQuestion(b, 0),
				},
			})
		}
	}
	sort.Slice(combos, func(i, j int) bool {
		if combos[i].Source != combos[j].Source {
			return combos[i].Source < combos[j].Source
		}
		return combos[i].ID.Key() < combos[j].ID.Key()
	})
	return combos
}

// deriveHumanSet draws the smaller human set from the LLM set: uniform
// within each source, allocation by the same even fill.
func (c *Curator) deriveHumanSet(llm *domain.QuestionSet, dueDate domain.Day, seed int64) *domain.QuestionSet {
	bySource := make(map[string][]domain.SetQuestion)
	for _, q := range llm.Questions {
		bySource[string(q.Source)] = append(bySource[string(q.Source)], q)
	}
	available := make(map[string]int, len(bySource))
	for s, qs := range bySource {
		available[s] = len(qs)
	}
	alloc := Allocate(c.humanN, available)

	rng := rand.New(rand.NewSource(seed))
	sourceNames := make([]string, 0, len(bySource))
	for s := range bySource {
		sourceNames = append(sourceNames, s)
	}
	sort.Strings(sourceNames)

	var picked []domain.SetQuestion
	for _, s := range sourceNames {
		pool := bySource[s]
		rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
		picked = append(picked, pool[:alloc[s]]...)
	}
	sort.Slice(picked, func(i, j int) bool {
		if picked[i].Source != picked[j].Source {
			return picked[i].Source < picked[j].Source
		}
		return picked[i].ID.Key() < picked[j].ID.Key()
	})

	return &domain.QuestionSet{
		ForecastDueDate: dueDate,
		QuestionSet:     objstore.FilenameFromKey(objstore.QuestionSetKey(dueDate, "human")),
		Questions:       picked,
	}
}

// publish writes a question set as indented JSON.
func (c *Curator) publish(ctx context.Context, set *domain.QuestionSet, key string) error {
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode question set %s: %w", key, err)
	}
	if err := c.store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("failed to publish question set %s: %w", key, err)
	}
	return nil
}

// logBinTable emits the got/want/available table for one market source.
func logBinTable(log zerolog.Logger, source domain.Source, rows []BinTelemetry) {
	for _, row := range rows {
		ev := log.Debug()
		if row.Got < row.Want {
			ev = log.Warn()
		}
		ev.Str("source", string(source)).
			Int("value_bin", row.ValueBin).
			Int("horizon_bin", row.HorizonBin).
			Int("want", row.Want).
			Int("available", row.Available).
			Int("got", row.Got).
			Msg("Composite bin sampled")
	}
}

// seedFor derives the deterministic RNG seed for one sampling pass.
func seedFor(dueDate domain.Day, pass string) int64 {
	h := fnv.New64a()
	h.Write([]byte(dueDate.String()))
	h.Write([]byte(":"))
	h.Write([]byte(pass))
	return int64(h.Sum64())
}
