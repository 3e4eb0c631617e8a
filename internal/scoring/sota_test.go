package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecastbench/forecastbench/internal/domain"
)

func TestEnvelopeStrictlyDecreasing(t *testing.T) {
	releases := map[string]domain.Day{
		"m1": domain.MustParseDay("2023-01-01"),
		"m2": domain.MustParseDay("2023-06-01"),
		"m3": domain.MustParseDay("2023-09-01"), // regression, must be dropped
		"m4": domain.MustParseDay("2024-01-01"),
	}
	overall := map[domain.ModelKey]float64{
		bench("m1"): 0.30,
		bench("m2"): 0.25,
		bench("m3"): 0.28,
		bench("m4"): 0.20,
	}
	env := envelope(sotaCandidates(overall, releases))
	require.Len(t, env, 3)
	assert.Equal(t, "m1", env[0].Model)
	assert.Equal(t, "m2", env[1].Model)
	assert.Equal(t, "m4", env[2].Model)
	for i := 1; i < len(env); i++ {
		assert.Less(t, env[i].Score, env[i-1].Score)
	}
}

func TestSotaCandidatesFilter(t *testing.T) {
	releases := map[string]domain.Day{"m1": domain.MustParseDay("2023-01-01")}
	overall := map[domain.ModelKey]float64{
		bench("m1"):                 0.3,
		bench("no-release"):         0.1,
		external("acme", "m1"):      0.1, // not a benchmark model
		bench(OracleModelName(1.0)): 0.0,
	}
	points := sotaCandidates(overall, releases)
	require.Len(t, points, 1)
	assert.Equal(t, "m1", points[0].Model)
}

func TestParityDateExactLinearCrossing(t *testing.T) {
	// Perfectly linear envelope: score drops 0.01 per 100 days from 0.30.
	// Crossing 0.25 lands exactly 500 days after the first point.
	start := domain.MustParseDay("2023-01-01")
	env := []EnvelopePoint{
		{ReleaseDate: start, Score: 0.30},
		{ReleaseDate: start + 100, Score: 0.29},
		{ReleaseDate: start + 200, Score: 0.28},
	}
	day, ok := parityDate(env, 0.25)
	require.True(t, ok)
	assert.Equal(t, start+500, day)
}

func TestParityDateRejectsFlatOrShort(t *testing.T) {
	start := domain.MustParseDay("2023-01-01")

	_, ok := parityDate([]EnvelopePoint{{ReleaseDate: start, Score: 0.3}}, 0.25)
	assert.False(t, ok)

	worsening := []EnvelopePoint{
		{ReleaseDate: start, Score: 0.25},
		{ReleaseDate: start + 100, Score: 0.30},
	}
	_, ok = parityDate(worsening, 0.2)
	assert.False(t, ok)
}

func TestComputeSOTAParityQuantiles(t *testing.T) {
	releases := map[string]domain.Day{
		"m1": domain.MustParseDay("2023-01-01"),
		"m2": domain.MustParseDay("2023-04-11"),
	}
	observed := map[domain.ModelKey]*Score{
		bench("m1"): {Overall: 0.30},
		bench("m2"): {Overall: 0.29},
	}
	superKey := bench(domain.ModelSuperforecasterMed)
	reps := &Replicates{
		B: 3,
		Overall: map[domain.ModelKey][]float64{
			bench("m1"): {0.30, 0.30, 0.30},
			bench("m2"): {0.29, 0.29, 0.29},
			superKey:    {0.25, 0.25, 0.25},
		},
	}

	result := ComputeSOTA(observed, reps, releases)
	require.Len(t, result.Envelope, 2)
	assert.Equal(t, 3, result.ValidReplicates)

	// Identical replicates collapse the posterior to a point: 0.01 per
	// 100 days from 0.30 crosses 0.25 at 500 days.
	want := domain.MustParseDay("2023-01-01") + 500
	assert.Equal(t, want, result.ParityQuantiles[0])
	assert.Equal(t, want, result.ParityQuantiles[1])
	assert.Equal(t, want, result.ParityQuantiles[2])
}

func TestComputeSOTANoSuperforecaster(t *testing.T) {
	releases := map[string]domain.Day{"m1": domain.MustParseDay("2023-01-01")}
	observed := map[domain.ModelKey]*Score{bench("m1"): {Overall: 0.3}}
	reps := &Replicates{B: 2, Overall: map[domain.ModelKey][]float64{
		bench("m1"): {0.3, 0.3},
	}}
	result := ComputeSOTA(observed, reps, releases)
	assert.Equal(t, 0, result.ValidReplicates)
	assert.Len(t, result.Envelope, 1)
}
