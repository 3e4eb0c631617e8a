package scoring

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/forecastbench/forecastbench/internal/domain"
)

func TestBootstrapDeterministicAcrossWorkerCounts(t *testing.T) {
	rows := fixtureRows(t, map[domain.ModelKey]func(string, float64) float64{
		external("acme", "gpt-x"): always(0.7),
	})

	one, err := RunBootstrap(context.Background(), rows, allEligible, 20, 1)
	require.NoError(t, err)
	four, err := RunBootstrap(context.Background(), rows, allEligible, 20, 4)
	require.NoError(t, err)

	key := external("acme", "gpt-x")
	require.Len(t, one.Overall[key], 20)
	assert.Equal(t, one.Overall[key], four.Overall[key])
}

func TestBootstrapMeanNearObserved(t *testing.T) {
	rows := fixtureRows(t, map[domain.ModelKey]func(string, float64) float64{
		external("acme", "gpt-x"): always(0.7),
	})
	observed, err := ComputeScores(rows, allEligible)
	require.NoError(t, err)

	reps, err := RunBootstrap(context.Background(), rows, allEligible, 200, 4)
	require.NoError(t, err)

	key := external("acme", "gpt-x")
	samples := reps.Overall[key]
	require.Len(t, samples, 200)
	mean := stat.Mean(samples, nil)
	se := math.Sqrt(stat.Variance(samples, nil) / float64(len(samples)))
	assert.InDelta(t, observed[key].Overall, mean, 3*se+1e-9)
}

func TestPValueIdenticalModelsIsHalf(t *testing.T) {
	// Two models with identical forecasts tie in every replicate, and
	// ties count half, so the p-value is exactly 0.5 either direction.
	a := external("acme", "twin-a")
	b := external("zeta", "twin-b")
	rows := fixtureRows(t, map[domain.ModelKey]func(string, float64) float64{
		a: always(0.6),
		b: always(0.6),
	})
	reps, err := RunBootstrap(context.Background(), rows, allEligible, 50, 2)
	require.NoError(t, err)

	assert.Equal(t, 0.5, reps.PValueNotBetter(a, b))
	assert.Equal(t, 0.5, reps.PValueNotBetter(b, a))
}

func TestPValueSharpModelBeatsConstant(t *testing.T) {
	sharpKey := external("acme", "clairvoyant")
	dull := external("zeta", "coin")
	rows := fixtureRows(t, map[domain.ModelKey]func(string, float64) float64{
		sharpKey: sharp(),
		dull:     always(0.5),
	})
	reps, err := RunBootstrap(context.Background(), rows, allEligible, 50, 2)
	require.NoError(t, err)

	// The sharp model wins every replicate
	assert.Equal(t, 0.0, reps.PValueNotBetter(sharpKey, dull))
	assert.Equal(t, 1.0, reps.PValueNotBetter(dull, sharpKey))
	assert.Equal(t, 0.0, reps.PValueReferenceNotBetter(dull, sharpKey))
}

func TestPValueUnknownModel(t *testing.T) {
	reps := &Replicates{B: 1, Overall: map[domain.ModelKey][]float64{}}
	assert.True(t, math.IsNaN(reps.PValueNotBetter(external("a", "x"), external("b", "y"))))
}

func TestPercentileCI(t *testing.T) {
	samples := make([]float64, 1000)
	for i := range samples {
		samples[i] = float64(i) / 999
	}
	ci := PercentileCI(samples)
	assert.InDelta(t, 0.025, ci.Lo, 0.005)
	assert.InDelta(t, 0.975, ci.Hi, 0.005)
	assert.Less(t, ci.Lo, ci.Hi)
}

func TestBCaCISymmetricSamples(t *testing.T) {
	samples := make([]float64, 1001)
	for i := range samples {
		samples[i] = float64(i-500) / 500
	}
	// Observed at the median and flat jackknife: BCa degrades to the
	// percentile interval.
	jack := []float64{0, 0, 0, 0}
	ci := BCaCI(samples, 0, jack)
	pct := PercentileCI(samples)
	assert.InDelta(t, pct.Lo, ci.Lo, 0.02)
	assert.InDelta(t, pct.Hi, ci.Hi, 0.02)
}

func TestRankStatsExcludeOracles(t *testing.T) {
	winner := external("acme", "winner")
	loser := external("zeta", "loser")
	reps := &Replicates{
		B: 4,
		Overall: map[domain.ModelKey][]float64{
			winner: {0.1, 0.1, 0.1, 0.3},
			loser:  {0.2, 0.2, 0.2, 0.2},
			bench(OracleModelName(1.0)): {0.0, 0.0, 0.0, 0.0},
		},
	}
	stats := reps.RankStatsFor()
	require.NotContains(t, stats, bench(OracleModelName(1.0)))
	assert.Equal(t, 0.75, stats[winner].PctTimesBest)
	assert.Equal(t, 0.25, stats[loser].PctTimesBest)
}
