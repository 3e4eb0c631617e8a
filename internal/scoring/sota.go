package scoring

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/forecastbench/forecastbench/internal/domain"
)

// EnvelopePoint is one vertex of the SOTA envelope: the best (lowest)
// overall score among benchmark models released on or before the date,
// kept only where it improves on everything earlier.
type EnvelopePoint struct {
	ReleaseDate domain.Day `json:"release_date"`
	Score       float64    `json:"score"`
	Model       string     `json:"model"`
}

// SOTAResult is the state-of-the-art trajectory and its projected
// crossing of the superforecaster median.
type SOTAResult struct {
	Envelope        []EnvelopePoint
	ParityQuantiles [3]domain.Day // 2.5 / 50 / 97.5 over replicates
	ValidReplicates int
}

// sotaCandidates lists the benchmark models carrying a release date,
// excluding the synthetic oracles and system forecasters without one.
func sotaCandidates(overall map[domain.ModelKey]float64, releases map[string]domain.Day) []EnvelopePoint {
	var points []EnvelopePoint
	for key, score := range overall {
		if !key.IsBenchmark() || IsOracle(key) {
			continue
		}
		release, ok := releases[key.Model]
		if !ok {
			continue
		}
		points = append(points, EnvelopePoint{ReleaseDate: release, Score: score, Model: key.Model})
	}
	sort.Slice(points, func(i, j int) bool {
		if points[i].ReleaseDate != points[j].ReleaseDate {
			return points[i].ReleaseDate < points[j].ReleaseDate
		}
		if points[i].Score != points[j].Score {
			return points[i].Score < points[j].Score
		}
		return points[i].Model < points[j].Model
	})
	return points
}

// envelope reduces the model history to its strictly decreasing frontier.
func envelope(points []EnvelopePoint) []EnvelopePoint {
	var out []EnvelopePoint
	best := math.Inf(1)
	for _, p := range points {
		if p.Score < best {
			best = p.Score
			out = append(out, p)
		}
	}
	return out
}

// parityDate fits a least-squares line to the envelope and returns the
// day it crosses the reference score. ok is false when the envelope is
// too short or not improving toward the reference.
func parityDate(env []EnvelopePoint, reference float64) (domain.Day, bool) {
	if len(env) < 2 {
		return 0, false
	}
	xs := make([]float64, len(env))
	ys := make([]float64, len(env))
	for i, p := range env {
		xs[i] = float64(p.ReleaseDate)
		ys[i] = p.Score
	}
	intercept, slope := stat.LinearRegression(xs, ys, nil, false)
	if slope >= 0 {
		return 0, false
	}
	crossing := (reference - intercept) / slope
	if math.IsNaN(crossing) || math.IsInf(crossing, 0) {
		return 0, false
	}
	return domain.Day(math.Round(crossing)), true
}

// ComputeSOTA derives the observed envelope and the bootstrap posterior
// of the parity date against the superforecaster median.
func ComputeSOTA(observed map[domain.ModelKey]*Score, reps *Replicates, releases map[string]domain.Day) SOTAResult {
	observedOverall := make(map[domain.ModelKey]float64, len(observed))
	for key, s := range observed {
		observedOverall[key] = s.Overall
	}
	result := SOTAResult{
		Envelope: envelope(sotaCandidates(observedOverall, releases)),
	}

	superKey := domain.ModelKey{
		Organization:      domain.BenchmarkOrganization,
		ModelOrganization: domain.BenchmarkOrganization,
		Model:             domain.ModelSuperforecasterMed,
	}

	var parityDays []float64
	for rep := 0; rep < reps.B; rep++ {
		overall := make(map[domain.ModelKey]float64)
		for key, scores := range reps.Overall {
			if rep < len(scores) {
				overall[key] = scores[rep]
			}
		}
		reference, ok := overall[superKey]
		if !ok {
			continue
		}
		env := envelope(sotaCandidates(overall, releases))
		if day, ok := parityDate(env, reference); ok {
			parityDays = append(parityDays, float64(day))
		}
	}
	result.ValidReplicates = len(parityDays)
	if len(parityDays) > 0 {
		sort.Float64s(parityDays)
		result.ParityQuantiles = [3]domain.Day{
			domain.Day(math.Round(stat.Quantile(0.025, stat.Empirical, parityDays, nil))),
			domain.Day(math.Round(stat.Quantile(0.5, stat.Empirical, parityDays, nil))),
			domain.Day(math.Round(stat.Quantile(0.975, stat.Empirical, parityDays, nil))),
		}
	}
	return result
}
