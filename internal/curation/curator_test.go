package curation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecastbench/forecastbench/internal/bank"
	"github.com/forecastbench/forecastbench/internal/domain"
	"github.com/forecastbench/forecastbench/internal/objstore"
)

func testCurator() *Curator {
	return NewCurator(nil, nil, nil, 200, 40, zerolog.Nop())
}

func marketQ(source domain.Source, id string) *domain.Question {
	return &domain.Question{
		ID:                  id,
		Source:              source,
		Category:            "Politics & Governance",
		FreezeDatetimeValue: "0.5",
		ValidQuestion:       true,
	}
}

func datasetQ(id string) *domain.Question {
	return &domain.Question{
		ID:                  id,
		Source:              domain.SourceFRED,
		Category:            "Economics & Business",
		FreezeDatetimeValue: "3.7",
		ValidQuestion:       true,
		ForecastHorizons:    []int{7, 30, 90},
	}
}

// A rerun for a past freeze date must reproduce the original draw:
// binning and freshness anchor on the freeze date, not the wall clock.
func TestSampleAllAnchorsOnFreezeDate(t *testing.T) {
	ctx := context.Background()
	store, err := objstore.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	series := bank.NewSeriesStore(store, "", zerolog.Nop())
	c := NewCurator(nil, series, store, 2, 1, zerolog.Nop())

	freezeDate := domain.MustParseDay("2024-07-11")
	closeAt := freezeDate.Time().Add(40 * 24 * time.Hour)

	pool := []*domain.Question{
		marketQ(domain.SourceManifold, "m1"),
		marketQ(domain.SourceManifold, "m2"),
	}
	for _, q := range pool {
		q.MarketInfoCloseDatetime = &closeAt
		s, err := domain.NewSeries(q.ID, []domain.SeriesPoint{
			{ID: q.ID, Date: freezeDate - 10, Value: domain.NumValue(0.4)},
			{ID: q.ID, Date: freezeDate - 1, Value: domain.NumValue(0.5)},
		})
		require.NoError(t, err)
		require.NoError(t, series.Put(ctx, domain.SourceManifold, s))
	}

	eligible := map[domain.Source][]*domain.Question{domain.SourceManifold: pool}
	sampled, err := c.sampleAll(ctx, eligible, 2, freezeDate, 42, zerolog.Nop())
	require.NoError(t, err, "a series current through the day before the freeze is fresh")
	assert.Len(t, sampled, 1)
	assert.Equal(t, domain.SourceManifold, sampled[0].Source)
}

func TestBuildSetExpandsDatasetHorizons(t *testing.T) {
	c := testCurator()
	due := domain.MustParseDay("2024-07-21")
	freeze := time.Date(2024, 7, 11, 0, 0, 0, 0, time.UTC)

	dq := datasetQ("fred-1")
	dq.FreezeDatetime = freeze
	mq := marketQ(domain.SourceManifold, "mkt-1")

	set := c.buildSet([]*domain.Question{dq, mq}, due, "llm")
	assert.Equal(t, due, set.ForecastDueDate)
	assert.Equal(t, "2024-07-21-llm.json", set.QuestionSet)
	require.Len(t, set.Questions, 2)

	var dataset *domain.SetQuestion
	for i := range set.Questions {
		if set.Questions[i].Source == domain.SourceFRED {
			dataset = &set.Questions[i]
		}
	}
	require.NotNil(t, dataset)
	assert.Equal(t, []domain.Day{due + 7, due + 30, due + 90}, dataset.ResolutionDates)

	for _, q := range set.Questions {
		if q.Source.IsMarket() {
			assert.Empty(t, q.ResolutionDates, "markets resolve at their own close, not on the horizon grid")
		}
	}
}

func TestComboQuestionsPairWithinSource(t *testing.T) {
	c := testCurator()
	c.combos = 10

	var questions []*domain.Question
	for i := 0; i < 8; i++ {
		questions = append(questions, marketQ(domain.SourceManifold, fmt.Sprintf("man-%d", i)))
	}
	for i := 0; i < 8; i++ {
		questions = append(questions, marketQ(domain.SourcePolymarket, fmt.Sprintf("poly-%d", i)))
	}
	questions = append(questions, datasetQ("fred-1"))

	combos := c.comboQuestions(questions, 7)
	assert.Len(t, combos, 10)

	seen := make(map[string]bool)
	for _, combo := range combos {
		require.True(t, combo.ID.IsCombo())
		require.Len(t, combo.CombinationOf, 2)
		assert.Equal(t, combo.Source, combo.CombinationOf[0].Source)
		assert.Equal(t, combo.Source, combo.CombinationOf[1].Source)
		assert.False(t, seen[combo.ID.Key()], "duplicate pair %s", combo.ID.Key())
		seen[combo.ID.Key()] = true

		legs := combo.ID.Legs()
		assert.NotEqual(t, legs[0], legs[1])
	}
}

func TestComboQuestionsDeterministic(t *testing.T) {
	c := testCurator()
	c.combos = 6
	var questions []*domain.Question
	for i := 0; i < 6; i++ {
		questions = append(questions, marketQ(domain.SourceMetaculus, fmt.Sprintf("met-%d", i)))
	}

	a := c.comboQuestions(questions, 99)
	b := c.comboQuestions(questions, 99)
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].ID.Key(), b[i].ID.Key())
	}
}

func TestComboQuestionsTooFewCandidates(t *testing.T) {
	c := testCurator()
	combos := c.comboQuestions([]*domain.Question{marketQ(domain.SourceManifold, "only")}, 1)
	assert.Empty(t, combos)
}

func TestDeriveHumanSetIsSubset(t *testing.T) {
	c := testCurator()
	due := domain.MustParseDay("2024-07-21")

	var questions []*domain.Question
	for i := 0; i < 30; i++ {
		questions = append(questions, marketQ(domain.SourceManifold, fmt.Sprintf("man-%d", i)))
	}
	for i := 0; i < 30; i++ {
		questions = append(questions, datasetQ(fmt.Sprintf("fred-%d", i)))
	}
	llm := c.buildSet(questions, due, "llm")

	human := c.deriveHumanSet(llm, due, 5)
	assert.Len(t, human.Questions, c.humanN)
	assert.Equal(t, "2024-07-21-human.json", human.QuestionSet)

	inLLM := make(map[string]bool)
	for _, q := range llm.Questions {
		inLLM[q.ID.Key()] = true
	}
	perSource := make(map[domain.Source]int)
	for _, q := range human.Questions {
		assert.True(t, inLLM[q.ID.Key()], "human question %s not in LLM set", q.ID.Key())
		perSource[q.Source]++
	}
	// Even fill over two equally sized sources
	assert.Equal(t, 20, perSource[domain.SourceManifold])
	assert.Equal(t, 20, perSource[domain.SourceFRED])
}

func TestSeedForStableAndDistinct(t *testing.T) {
	due := domain.MustParseDay("2024-07-21")
	assert.Equal(t, seedFor(due, "llm"), seedFor(due, "llm"))
	assert.NotEqual(t, seedFor(due, "llm"), seedFor(due, "human"))
	assert.NotEqual(t, seedFor(due, "llm"), seedFor(due+1, "llm"))
}
