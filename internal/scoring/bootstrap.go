package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/forecastbench/forecastbench/internal/domain"
)

// stratum groups the question primary keys of one (forecast_due_date,
// source) cell; resampling happens within it.
type stratum struct {
	dueDate domain.Day
	source  domain.Source
	pks     []string
}

// buildStrata indexes rows by question primary key and groups the keys
// into resampling strata, both in deterministic order.
func buildStrata(rows []Row) ([]stratum, map[string][]Row) {
	byPK := make(map[string][]Row)
	pkMeta := make(map[string]stratum)
	for _, r := range rows {
		byPK[r.QuestionPK] = append(byPK[r.QuestionPK], r)
		pkMeta[r.QuestionPK] = stratum{dueDate: r.DueDate, source: r.Source}
	}

	grouped := make(map[string]*stratum)
	for pk, meta := range pkMeta {
		key := fmt.Sprintf("%s|%s", meta.dueDate, meta.source)
		s, ok := grouped[key]
		if !ok {
			s = &stratum{dueDate: meta.dueDate, source: meta.source}
			grouped[key] = s
		}
		s.pks = append(s.pks, pk)
	}

	strata := make([]stratum, 0, len(grouped))
	for _, s := range grouped {
		sort.Strings(s.pks)
		strata = append(strata, *s)
	}
	sort.Slice(strata, func(i, j int) bool {
		if strata[i].dueDate != strata[j].dueDate {
			return strata[i].dueDate < strata[j].dueDate
		}
		return strata[i].source < strata[j].source
	})
	return strata, byPK
}

// resample draws one bootstrap replicate: questions with replacement
// within each stratum, each draw under a fresh synthetic question primary
// key so the fixed-effects fit treats duplicates as independent.
func resample(strata []stratum, byPK map[string][]Row, rng *rand.Rand) []Row {
	var out []Row
	for _, s := range strata {
		for draw := 0; draw < len(s.pks); draw++ {
			pk := s.pks[rng.Intn(len(s.pks))]
			synthetic := fmt.Sprintf("%s#%d", pk, draw)
			for _, r := range byPK[pk] {
				r.QuestionPK = synthetic
				out = append(out, r)
			}
		}
	}
	return out
}

// Replicates holds each model's simulated overall score per bootstrap
// replicate, plus the per-replicate rankings derived from them.
type Replicates struct {
	B       int
	Overall map[domain.ModelKey][]float64
}

// RunBootstrap refits the whole leaderboard B times on stratified
// resamples. Replicates are independent and seeded by index, so the
// result is deterministic for a given B regardless of worker count.
func RunBootstrap(ctx context.Context, rows []Row, eligible EligibilityFn, b, workers int) (*Replicates, error) {
	strata, byPK := buildStrata(rows)

	results := make([]map[domain.ModelKey]float64, b)
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < b; i++ {
		i := i
		g.Go(func() error {
			rng := rand.New(rand.NewSource(int64(i) + 1))
			scores, err := ComputeScores(resample(strata, byPK, rng), eligible)
			if err != nil {
				return fmt.Errorf("bootstrap replicate %d: %w", i, err)
			}
			overall := make(map[domain.ModelKey]float64, len(scores))
			for key, s := range scores {
				overall[key] = s.Overall
			}
			results[i] = overall
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	reps := &Replicates{B: b, Overall: make(map[domain.ModelKey][]float64)}
	for _, overall := range results {
		for key, v := range overall {
			reps.Overall[key] = append(reps.Overall[key], v)
		}
	}
	return reps, nil
}

// CIMethod selects the confidence-interval estimator.
type CIMethod string

const (
	CIPercentile CIMethod = "percentile"
	CIBCa        CIMethod = "bca"
)

// CI is a two-sided 95% confidence interval.
type CI struct {
	Lo float64 `json:"lo"`
	Hi float64 `json:"hi"`
}

// MarshalJSON writes NaN bounds as null; a degenerate bootstrap must not
// break the published feed.
func (ci CI) MarshalJSON() ([]byte, error) {
	type alias CI
	return json.Marshal(struct {
		alias
		Lo *float64 `json:"lo"`
		Hi *float64 `json:"hi"`
	}{alias: alias(ci), Lo: nullableScore(ci.Lo), Hi: nullableScore(ci.Hi)})
}

// PercentileCI is the plain 2.5/97.5 percentile interval.
func PercentileCI(samples []float64) CI {
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	return CI{
		Lo: stat.Quantile(0.025, stat.Empirical, sorted, nil),
		Hi: stat.Quantile(0.975, stat.Empirical, sorted, nil),
	}
}

// BCaCI is the bias-corrected and accelerated interval. jackknife holds
// leave-one-stratum-out estimates of the statistic used for the
// acceleration term.
func BCaCI(samples []float64, observed float64, jackknife []float64) CI {
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	n := float64(len(sorted))

	below := 0.0
	for _, v := range sorted {
		if v < observed {
			below++
		}
	}
	p := below / n
	if p <= 0 {
		p = 1 / (2 * n)
	}
	if p >= 1 {
		p = 1 - 1/(2*n)
	}

	norm := distuv.Normal{Mu: 0, Sigma: 1}
	z0 := norm.Quantile(p)

	a := acceleration(jackknife)
	lo := bcaQuantile(norm, z0, a, 0.025)
	hi := bcaQuantile(norm, z0, a, 0.975)
	return CI{
		Lo: stat.Quantile(clamp01(lo), stat.Empirical, sorted, nil),
		Hi: stat.Quantile(clamp01(hi), stat.Empirical, sorted, nil),
	}
}

// acceleration is the standard jackknife skewness estimate.
func acceleration(jackknife []float64) float64 {
	if len(jackknife) < 3 {
		return 0
	}
	mean := stat.Mean(jackknife, nil)
	var num, den float64
	for _, v := range jackknife {
		d := mean - v
		num += d * d * d
		den += d * d
	}
	if den == 0 {
		return 0
	}
	return num / (6 * math.Pow(den, 1.5))
}

func bcaQuantile(norm distuv.Normal, z0, a, alpha float64) float64 {
	z := norm.Quantile(alpha)
	adj := z0 + (z0+z)/(1-a*(z0+z))
	return norm.CDF(adj)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// PValueNotBetter is the one-sided bootstrap p-value that the candidate
// is not better (lower) than the reference.
func (r *Replicates) PValueNotBetter(candidate, reference domain.ModelKey) float64 {
	c, cok := r.Overall[candidate]
	ref, rok := r.Overall[reference]
	if !cok || !rok {
		return math.NaN()
	}
	n := len(c)
	if len(ref) < n {
		n = len(ref)
	}
	if n == 0 {
		return math.NaN()
	}
	// Ties count half, so two identical forecasters land at exactly 0.5
	count := 0.0
	for i := 0; i < n; i++ {
		switch {
		case c[i] > ref[i]:
			count++
		case c[i] == ref[i]:
			count += 0.5
		}
	}
	return count / float64(n)
}

// PValueReferenceNotBetter flips the direction: the p-value that the
// reference is not better than the candidate.
func (r *Replicates) PValueReferenceNotBetter(candidate, reference domain.ModelKey) float64 {
	return r.PValueNotBetter(reference, candidate)
}

// RankStats are the per-replicate ranking fractions. Synthetic oracles
// are excluded from the ranked population.
type RankStats struct {
	PctTimesBest float64
	PctTimesTop5 float64
}

// RankStatsFor computes each ranked model's best/top-5% fractions.
func (r *Replicates) RankStatsFor() map[domain.ModelKey]RankStats {
	var ranked []domain.ModelKey
	for key := range r.Overall {
		if !IsOracle(key) {
			ranked = append(ranked, key)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Organization != ranked[j].Organization {
			return ranked[i].Organization < ranked[j].Organization
		}
		return ranked[i].Model < ranked[j].Model
	})

	best := make(map[domain.ModelKey]int)
	top5 := make(map[domain.ModelKey]int)
	counted := 0
	top5Size := (len(ranked)*5 + 99) / 100

	for rep := 0; rep < r.B; rep++ {
		type entry struct {
			key   domain.ModelKey
			score float64
		}
		var entries []entry
		for _, key := range ranked {
			scores := r.Overall[key]
			if rep >= len(scores) {
				continue
			}
			entries = append(entries, entry{key: key, score: scores[rep]})
		}
		if len(entries) == 0 {
			continue
		}
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].score < entries[j].score })
		counted++
		best[entries[0].key]++
		for i := 0; i < len(entries) && i < top5Size; i++ {
			top5[entries[i].key]++
		}
	}

	out := make(map[domain.ModelKey]RankStats, len(ranked))
	for _, key := range ranked {
		if counted == 0 {
			out[key] = RankStats{}
			continue
		}
		out[key] = RankStats{
			PctTimesBest: float64(best[key]) / float64(counted),
			PctTimesTop5: float64(top5[key]) / float64(counted),
		}
	}
	return out
}

// OracleEquivalent is the largest oracle level x the model still matches:
// the largest x whose oracle scores no better than the model. A perfect
// forecaster reaches 1.0; Always 0.5 reaches 0.5.
func OracleEquivalent(scores map[domain.ModelKey]*Score, model domain.ModelKey) float64 {
	target, ok := scores[model]
	if !ok {
		return math.NaN()
	}
	steps := int(math.Round(1/OracleStep)) + 1
	equivalent := 0.0
	for i := 0; i < steps; i++ {
		x := float64(i) * OracleStep
		key := domain.ModelKey{
			Organization:      domain.BenchmarkOrganization,
			ModelOrganization: domain.BenchmarkOrganization,
			Model:             OracleModelName(x),
		}
		oracle, ok := scores[key]
		if !ok {
			continue
		}
		if target.Overall <= oracle.Overall && x > equivalent {
			equivalent = x
		}
	}
	return equivalent
}
