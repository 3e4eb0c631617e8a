package curation

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecastbench/forecastbench/internal/domain"
)

var valueBinMidpoints = []string{
	"0.005", "0.05", "0.15", "0.25", "0.35", "0.45",
	"0.55", "0.65", "0.75", "0.85", "0.95", "0.995",
}

var horizonBinMidpoints = []int{3, 20, 40, 70, 120, 250, 400}

// fullGrid builds perBin market candidates in every composite bin.
func fullGrid(freeze time.Time, perBin int) []*domain.Question {
	var out []*domain.Question
	for v, p := range valueBinMidpoints {
		for h, days := range horizonBinMidpoints {
			for i := 0; i < perBin; i++ {
				close := freeze.Add(time.Duration(days*24) * time.Hour).Add(time.Hour)
				out = append(out, &domain.Question{
					ID:                      fmt.Sprintf("q-%d-%d-%d", v, h, i),
					Source:                  domain.SourceManifold,
					FreezeDatetimeValue:     p,
					MarketInfoCloseDatetime: &close,
				})
			}
		}
	}
	return out
}

func TestSampleMarketHitsBinTargets(t *testing.T) {
	freeze := time.Date(2024, 7, 21, 0, 0, 0, 0, time.UTC)
	candidates := fullGrid(freeze, 50)

	sampled, telemetry := SampleMarket(candidates, 100, freeze, rand.New(rand.NewSource(7)))
	assert.Len(t, sampled, 100)

	total := 0
	for _, row := range telemetry {
		assert.LessOrEqual(t, row.Got, row.Available)
		total += row.Got
	}
	assert.Equal(t, 100, total)

	// The heaviest cells (0.10 x 0.20 = 0.02 weight) should each land
	// about 2 of 100; with full availability none goes empty.
	for _, row := range telemetry {
		if row.ValueBin >= 2 && row.ValueBin <= 9 && (row.HorizonBin == 3 || row.HorizonBin == 4) {
			assert.GreaterOrEqual(t, row.Got, 1, "value=%d horizon=%d", row.ValueBin, row.HorizonBin)
		}
	}
}

func TestSampleMarketDeterministic(t *testing.T) {
	freeze := time.Date(2024, 7, 21, 0, 0, 0, 0, time.UTC)
	candidates := fullGrid(freeze, 5)

	a, _ := SampleMarket(candidates, 60, freeze, rand.New(rand.NewSource(42)))
	b, _ := SampleMarket(candidates, 60, freeze, rand.New(rand.NewSource(42)))
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].ID, b[i].ID)
	}

	c, _ := SampleMarket(candidates, 60, freeze, rand.New(rand.NewSource(43)))
	different := false
	for i := range a {
		if a[i].ID != c[i].ID {
			different = true
			break
		}
	}
	assert.True(t, different, "different seeds should reshuffle the draw")
}

func TestSampleMarketScarcity(t *testing.T) {
	freeze := time.Date(2024, 7, 21, 0, 0, 0, 0, time.UTC)
	candidates := fullGrid(freeze, 1) // 84 candidates total

	sampled, _ := SampleMarket(candidates, 1000, freeze, rand.New(rand.NewSource(1)))
	assert.Len(t, sampled, len(candidates))
}

func TestSampleMarketDropsUnplaceable(t *testing.T) {
	freeze := time.Date(2024, 7, 21, 0, 0, 0, 0, time.UTC)
	closed := freeze.Add(-24 * time.Hour)
	candidates := []*domain.Question{
		{ID: "no-value", Source: domain.SourceManifold, FreezeDatetimeValue: "n/a", MarketInfoCloseDatetime: &closed},
		{ID: "already-closed", Source: domain.SourceManifold, FreezeDatetimeValue: "0.5", MarketInfoCloseDatetime: &closed},
	}
	sampled, _ := SampleMarket(candidates, 10, freeze, rand.New(rand.NewSource(1)))
	assert.Empty(t, sampled)
}

func TestSampleMarketNoCloseTimeGoesToLongestHorizon(t *testing.T) {
	freeze := time.Date(2024, 7, 21, 0, 0, 0, 0, time.UTC)
	candidates := []*domain.Question{
		{ID: "open-ended", Source: domain.SourcePolymarket, FreezeDatetimeValue: "0.5"},
	}
	sampled, telemetry := SampleMarket(candidates, 1, freeze, rand.New(rand.NewSource(1)))
	require.Len(t, sampled, 1)
	for _, row := range telemetry {
		if row.Got == 1 {
			assert.Equal(t, len(horizonBinMidpoints)-1, row.HorizonBin)
		}
	}
}

func TestSampleDatasetEvenAcrossCategories(t *testing.T) {
	var candidates []*domain.Question
	for _, cat := range []string{"Economics & Business", "Politics & Governance", "Science & Tech"} {
		for i := 0; i < 10; i++ {
			candidates = append(candidates, &domain.Question{
				ID:       fmt.Sprintf("%s-%d", cat, i),
				Source:   domain.SourceFRED,
				Category: cat,
			})
		}
	}

	sampled := SampleDataset(candidates, 9, rand.New(rand.NewSource(1)))
	require.Len(t, sampled, 9)
	perCat := make(map[string]int)
	for _, q := range sampled {
		perCat[q.Category]++
	}
	for cat, n := range perCat {
		assert.Equal(t, 3, n, cat)
	}
}

func TestSampleDatasetSpillover(t *testing.T) {
	var candidates []*domain.Question
	candidates = append(candidates, &domain.Question{ID: "lonely", Source: domain.SourceFRED, Category: "Science & Tech"})
	for i := 0; i < 20; i++ {
		candidates = append(candidates, &domain.Question{
			ID:       fmt.Sprintf("econ-%d", i),
			Source:   domain.SourceFRED,
			Category: "Economics & Business",
		})
	}

	sampled := SampleDataset(candidates, 10, rand.New(rand.NewSource(1)))
	require.Len(t, sampled, 10)
	perCat := make(map[string]int)
	for _, q := range sampled {
		perCat[q.Category]++
	}
	assert.Equal(t, 1, perCat["Science & Tech"])
	assert.Equal(t, 9, perCat["Economics & Business"])
}
