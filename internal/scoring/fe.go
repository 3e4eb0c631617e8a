package scoring

import (
	"fmt"
	"math"

	"github.com/forecastbench/forecastbench/internal/domain"
)

// Two-way fixed-effects estimation of question difficulty:
//
//	brier_{i,q} = alpha_i + beta_q + eps_{i,q}
//
// beta_q is the question difficulty. Dataset questions use the OLS
// estimator, computed by alternating within-group demeaning until the
// effects stop moving (the normal equations of the two-way model).
// Market questions short-circuit to the Imputed Forecaster's brier on
// the question, which is algebraically the OLS solution given that
// model's single imputed row per market question.

const (
	feMaxIterations = 200
	feTolerance     = 1e-12
)

// Difficulties holds the fitted per-question effects.
type Difficulties map[string]float64

// FitDatasetDifficulties estimates beta_q over the dataset rows of
// eligible models. Rows of ineligible models are excluded from the fit
// but still scored against the fitted effects.
func FitDatasetDifficulties(rows []Row, eligible func(domain.ModelKey, domain.Day) bool) Difficulties {
	type cell struct {
		model int
		pk    int
		brier float64
	}

	modelIdx := make(map[domain.ModelKey]int)
	pkIdx := make(map[string]int)
	var pks []string
	var cells []cell
	for _, r := range rows {
		if r.Market || !eligible(r.Model, r.DueDate) {
			continue
		}
		mi, ok := modelIdx[r.Model]
		if !ok {
			mi = len(modelIdx)
			modelIdx[r.Model] = mi
		}
		qi, ok := pkIdx[r.QuestionPK]
		if !ok {
			qi = len(pkIdx)
			pkIdx[r.QuestionPK] = qi
			pks = append(pks, r.QuestionPK)
		}
		cells = append(cells, cell{model: mi, pk: qi, brier: r.Brier})
	}
	if len(cells) == 0 {
		return Difficulties{}
	}

	alpha := make([]float64, len(modelIdx))
	beta := make([]float64, len(pkIdx))
	modelN := make([]float64, len(modelIdx))
	pkN := make([]float64, len(pkIdx))
	for _, c := range cells {
		modelN[c.model]++
		pkN[c.pk]++
	}

	// Alternate the two conditional means; each pass is a projection, so
	// the iteration converges to the OLS fixed effects.
	for iter := 0; iter < feMaxIterations; iter++ {
		maxDelta := 0.0

		newAlpha := make([]float64, len(alpha))
		for _, c := range cells {
			newAlpha[c.model] += c.brier - beta[c.pk]
		}
		for i := range newAlpha {
			newAlpha[i] /= modelN[i]
			if d := math.Abs(newAlpha[i] - alpha[i]); d > maxDelta {
				maxDelta = d
			}
		}
		alpha = newAlpha

		newBeta := make([]float64, len(beta))
		for _, c := range cells {
			newBeta[c.pk] += c.brier - alpha[c.model]
		}
		for i := range newBeta {
			newBeta[i] /= pkN[i]
			if d := math.Abs(newBeta[i] - beta[i]); d > maxDelta {
				maxDelta = d
			}
		}
		beta = newBeta

		if maxDelta < feTolerance {
			break
		}
	}

	// Identification: the two-way model is determined only up to a
	// constant shift between alpha and beta. Pin mean(alpha) = 0 so beta
	// absorbs the overall level, matching the market-side convention
	// (difficulty = a reference forecaster's brier).
	meanAlpha := 0.0
	for _, a := range alpha {
		meanAlpha += a
	}
	meanAlpha /= float64(len(alpha))

	out := make(Difficulties, len(beta))
	for i, pk := range pks {
		out[pk] = beta[i] + meanAlpha
	}
	return out
}

// FitMarketDifficulties reads beta_q for market questions straight off
// the Imputed Forecaster's rows. Missing coverage is a data-integrity
// error: without the reference, market difficulty is undefined.
func FitMarketDifficulties(rows []Row) (Difficulties, error) {
	out := Difficulties{}
	for _, r := range rows {
		if r.Market && r.Model.Model == domain.ModelImputedForecaster {
			out[r.QuestionPK] = r.Brier
		}
	}
	for _, r := range rows {
		if r.Market {
			if _, ok := out[r.QuestionPK]; !ok {
				return nil, fmt.Errorf("no Imputed Forecaster row for market question %s", r.QuestionPK)
			}
		}
	}
	return out, nil
}
