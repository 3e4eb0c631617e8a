package scoring

import (
	"fmt"
	"math"

	"github.com/forecastbench/forecastbench/internal/domain"
)

// ReleaseWindowDays bounds how old a model may be, relative to a forecast
// due date, to participate in difficulty estimation.
const ReleaseWindowDays = 365

// Score is one model's fitted leaderboard entry before uncertainty.
type Score struct {
	Model domain.ModelKey

	DatasetN int
	MarketN  int

	// Difficulty-adjusted Brier scores, rescaled so Always 0.5 sits at
	// exactly 0.25.
	Dataset float64
	Market  float64
	Overall float64

	Peer float64
	BSS  float64
}

// EligibilityFn reports whether a model's rows at a due date enter the
// difficulty fit.
type EligibilityFn func(domain.ModelKey, domain.Day) bool

// Eligibility builds the release-date filter. Benchmark system models
// bypass it; models without a recorded release date are not filtered.
func Eligibility(releases map[string]domain.Day) EligibilityFn {
	return func(k domain.ModelKey, dueDate domain.Day) bool {
		if k.IsBenchmark() {
			return true
		}
		release, ok := releases[k.Model]
		if !ok {
			return true
		}
		return int(dueDate-release) <= ReleaseWindowDays
	}
}

// ComputeScores fits difficulties and produces every model's adjusted,
// rescaled scores plus the peer and Brier skill supplements.
func ComputeScores(rows []Row, eligible EligibilityFn) (map[domain.ModelKey]*Score, error) {
	betaMarket, err := FitMarketDifficulties(rows)
	if err != nil {
		return nil, err
	}
	betaDataset := FitDatasetDifficulties(rows, eligible)

	// Question-level aggregates for the supplements.
	questionSum := make(map[string]float64)
	questionN := make(map[string]float64)
	naiveBrier := make(map[string]float64)
	naiveSeen := false
	for _, r := range rows {
		questionSum[r.QuestionPK] += r.Brier
		questionN[r.QuestionPK]++
		if r.Model.Model == domain.ModelNaiveForecaster {
			naiveBrier[r.QuestionPK] = r.Brier
			naiveSeen = true
		}
	}
	if !naiveSeen {
		return nil, fmt.Errorf("no Naive Forecaster rows: Brier skill score reference missing")
	}

	type accum struct {
		datasetSum float64
		datasetN   int
		marketSum  float64
		marketN    int
		peerSum    float64
		peerN      int
		bssSum     float64
		bssN       int
	}
	acc := make(map[domain.ModelKey]*accum)
	for _, r := range rows {
		a := acc[r.Model]
		if a == nil {
			a = &accum{}
			acc[r.Model] = a
		}

		var beta float64
		var ok bool
		if r.Market {
			beta, ok = betaMarket[r.QuestionPK]
		} else {
			beta, ok = betaDataset[r.QuestionPK]
		}
		if !ok {
			// A question no eligible model answered has no difficulty;
			// skip the row rather than score against an undefined baseline
			continue
		}
		adjusted := r.Brier - beta
		if r.Market {
			a.marketSum += adjusted
			a.marketN++
		} else {
			a.datasetSum += adjusted
			a.datasetN++
		}

		a.peerSum += questionSum[r.QuestionPK]/questionN[r.QuestionPK] - r.Brier
		a.peerN++
		if ref, ok := naiveBrier[r.QuestionPK]; ok {
			a.bssSum += ref - r.Brier
			a.bssN++
		}
	}

	scores := make(map[domain.ModelKey]*Score, len(acc))
	for key, a := range acc {
		s := &Score{
			Model:    key,
			DatasetN: a.datasetN,
			MarketN:  a.marketN,
			Dataset:  math.NaN(),
			Market:   math.NaN(),
		}
		if a.datasetN > 0 {
			s.Dataset = a.datasetSum / float64(a.datasetN)
		}
		if a.marketN > 0 {
			s.Market = a.marketSum / float64(a.marketN)
		}
		s.Overall = overallOf(s.Dataset, s.Market)
		if a.peerN > 0 {
			s.Peer = a.peerSum / float64(a.peerN)
		}
		if a.bssN > 0 {
			s.BSS = a.bssSum / float64(a.bssN)
		}
		scores[key] = s
	}

	if err := rescale(scores); err != nil {
		return nil, err
	}
	return scores, nil
}

// overallOf is the arithmetic mean of the class scores, degrading to the
// single available class.
func overallOf(dataset, market float64) float64 {
	switch {
	case math.IsNaN(dataset):
		return market
	case math.IsNaN(market):
		return dataset
	default:
		return (dataset + market) / 2
	}
}

// rescale shifts every score so the Always 0.5 forecaster sits at exactly
// 0.25 on dataset, market, and overall. The anchor model is a benchmark
// constant; its absence means the system forecasts were never submitted.
func rescale(scores map[domain.ModelKey]*Score) error {
	var anchor *Score
	for key, s := range scores {
		if key.IsBenchmark() && key.Model == domain.ModelAlwaysHalf {
			anchor = s
			break
		}
	}
	if anchor == nil {
		return fmt.Errorf("no %q rows: rescaling anchor missing", domain.ModelAlwaysHalf)
	}

	datasetShift := 0.25 - anchor.Dataset
	marketShift := 0.25 - anchor.Market
	overallShift := 0.25 - anchor.Overall
	for _, s := range scores {
		if !math.IsNaN(s.Dataset) {
			s.Dataset += datasetShift
		}
		if !math.IsNaN(s.Market) {
			s.Market += marketShift
		}
		s.Overall += overallShift
	}
	return nil
}
