package curation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/forecastbench/forecastbench/internal/domain"
)

func TestEligible(t *testing.T) {
	due := time.Date(2024, 7, 21, 0, 0, 0, 0, time.UTC)
	afterDue := due.Add(48 * time.Hour)
	beforeDue := due.Add(-time.Hour)

	base := domain.Question{
		ID:                  "q1",
		Source:              domain.SourceManifold,
		Category:            "Politics & Governance",
		FreezeDatetimeValue: "0.4",
		ValidQuestion:       true,
	}

	ok := base
	ok.MarketInfoCloseDatetime = &afterDue
	assert.True(t, Eligible(&ok, due))

	invalid := ok
	invalid.ValidQuestion = false
	assert.False(t, Eligible(&invalid, due))

	resolved := ok
	resolved.Resolved = true
	assert.False(t, Eligible(&resolved, due))

	other := ok
	other.Category = domain.CategoryOther
	assert.False(t, Eligible(&other, due))

	unknownCat := ok
	unknownCat.Category = "Astrology"
	assert.False(t, Eligible(&unknownCat, due))

	noValue := ok
	noValue.FreezeDatetimeValue = "N/A"
	assert.False(t, Eligible(&noValue, due))

	closing := ok
	closing.MarketInfoCloseDatetime = &beforeDue
	assert.False(t, Eligible(&closing, due))

	// Open-ended markets are fine
	openEnded := base
	assert.True(t, Eligible(&openEnded, due))
}

func TestEligibleDatasetNeedsHorizons(t *testing.T) {
	due := time.Date(2024, 7, 21, 0, 0, 0, 0, time.UTC)
	q := domain.Question{
		ID:                  "fred-q",
		Source:              domain.SourceFRED,
		Category:            "Economics & Business",
		FreezeDatetimeValue: "3.7",
		ValidQuestion:       true,
	}
	assert.False(t, Eligible(&q, due), "no horizons means not yet resolvable")

	q.ForecastHorizons = []int{7, 30}
	assert.True(t, Eligible(&q, due))
}

func TestFilterEligiblePreservesOrder(t *testing.T) {
	due := time.Date(2024, 7, 21, 0, 0, 0, 0, time.UTC)
	good := func(id string) *domain.Question {
		return &domain.Question{
			ID:                  id,
			Source:              domain.SourcePolymarket,
			Category:            "Sports",
			FreezeDatetimeValue: "0.5",
			ValidQuestion:       true,
		}
	}
	bad := good("bad")
	bad.ValidQuestion = false

	out := FilterEligible([]*domain.Question{good("a"), bad, good("b")}, due)
	assert.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "b", out[1].ID)
}
