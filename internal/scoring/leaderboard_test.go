package scoring

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecastbench/forecastbench/internal/domain"
)

func TestBuildLeaderboardVariants(t *testing.T) {
	scores := map[domain.ModelKey]*Score{
		bench(domain.ModelAlwaysHalf): {Overall: 0.25, Dataset: 0.25, Market: 0.25},
		external("acme", "gpt-x"):     {Overall: 0.20, Dataset: 0.20, Market: 0.20},
		bench(OracleModelName(1.0)):   {Overall: 0.05},
	}
	reps := &Replicates{B: 1, Overall: map[domain.ModelKey][]float64{
		bench(domain.ModelAlwaysHalf): {0.25},
		external("acme", "gpt-x"):     {0.20},
	}}
	cis := map[domain.ModelKey]CI{
		external("acme", "gpt-x"): {Lo: 0.18, Hi: 0.22},
	}

	tournament := BuildLeaderboard(VariantTournament, scores, reps, cis, nil)
	require.Len(t, tournament.Rows, 2, "oracles never appear")
	assert.Equal(t, 1, tournament.Rows[0].Rank)
	assert.Equal(t, "gpt-x", tournament.Rows[0].Model)
	assert.Equal(t, CI{Lo: 0.18, Hi: 0.22}, tournament.Rows[0].CI)
	assert.Equal(t, domain.ModelAlwaysHalf, tournament.Rows[1].Model)

	baseline := BuildLeaderboard(VariantBaseline, scores, reps, cis, nil)
	require.Len(t, baseline.Rows, 1)
	assert.Equal(t, domain.ModelAlwaysHalf, baseline.Rows[0].Model)
}

func TestBuildLeaderboardTieBreaksByName(t *testing.T) {
	scores := map[domain.ModelKey]*Score{
		external("zeta", "same"): {Overall: 0.2},
		external("acme", "same"): {Overall: 0.2},
	}
	reps := &Replicates{B: 0, Overall: map[domain.ModelKey][]float64{}}

	lb := BuildLeaderboard(VariantTournament, scores, reps, nil, nil)
	require.Len(t, lb.Rows, 2)
	assert.Equal(t, "acme", lb.Rows[0].Organization)
	assert.Equal(t, "zeta", lb.Rows[1].Organization)
}

func TestBuildLeaderboardSinksUnscorableRows(t *testing.T) {
	scores := map[domain.ModelKey]*Score{
		external("acme", "gpt-x"):  {Overall: 0.2},
		external("aaaa", "broken"): {Overall: math.NaN()},
		external("zeta", "void"):   {Overall: math.NaN()},
	}
	reps := &Replicates{B: 0, Overall: map[domain.ModelKey][]float64{}}

	lb := BuildLeaderboard(VariantTournament, scores, reps, nil, nil)
	require.Len(t, lb.Rows, 3)
	assert.Equal(t, "gpt-x", lb.Rows[0].Model)
	// Unscorable rows trail every scored row, ordered by name among
	// themselves
	assert.Equal(t, "broken", lb.Rows[1].Model)
	assert.Equal(t, "void", lb.Rows[2].Model)
	assert.True(t, math.IsNaN(lb.Rows[1].Overall))
}

func TestLeaderboardJSONHandlesNaNColumns(t *testing.T) {
	lb := Leaderboard{
		Variant: VariantTournament,
		Rows: []LeaderboardRow{{
			Rank:         1,
			Organization: "acme",
			Model:        "gpt-x",
			Dataset:      math.NaN(),
			Market:       0.2,
			Overall:      0.2,
			CI:           CI{Lo: math.NaN(), Hi: math.NaN()},
			PValueSuper:  math.NaN(),
			PValuePublic: math.NaN(),
		}},
	}

	out, err := json.MarshalIndent(&lb, "", "  ")
	require.NoError(t, err)
	assert.Contains(t, string(out), `"dataset_score": null`)
	assert.Contains(t, string(out), `"lo": null`)
	assert.Contains(t, string(out), `"p_value_superforecaster": null`)
	assert.Contains(t, string(out), `"overall_score": 0.2`)
}

func TestBuildLeaderboardAttachesReleaseDate(t *testing.T) {
	scores := map[domain.ModelKey]*Score{
		external("acme", "gpt-x"): {Overall: 0.2},
	}
	reps := &Replicates{B: 0, Overall: map[domain.ModelKey][]float64{}}
	releases := map[string]domain.Day{"gpt-x": domain.MustParseDay("2024-03-01")}

	lb := BuildLeaderboard(VariantTournament, scores, reps, nil, releases)
	require.Len(t, lb.Rows, 1)
	assert.Equal(t, "2024-03-01", lb.Rows[0].ReleaseDate)
}
