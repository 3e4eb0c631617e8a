package domain

import (
	"encoding/json"
	"math"
)

// Benchmark identity constants. The benchmark's own system forecasters are
// referenced by name in resolution (imputation overrides) and scoring
// (rescaling anchor, BSS reference, human comparisons).
const (
	BenchmarkOrganization = "ForecastBench"

	ModelAlwaysHalf         = "Always 0.5"
	ModelAlwaysZero         = "Always 0"
	ModelAlwaysOne          = "Always 1"
	ModelRandomUniform      = "Random Uniform"
	ModelImputedForecaster  = "Imputed Forecaster"
	ModelNaiveForecaster    = "Naive Forecaster"
	ModelSuperforecasterMed = "Superforecaster median forecast"
	ModelPublicMed          = "Public median forecast"
)

// Forecast is one submitted row of a forecast set. Direction is empty for
// single questions and a tuple over {-1,+1} for combination questions.
// Forecast is nil when the submitter skipped the question (imputed later).
type Forecast struct {
	ID             QuestionID `json:"id"`
	Source         string     `json:"source"`
	Direction      []int      `json:"direction,omitempty"`
	Forecast       *float64   `json:"forecast"`
	ResolutionDate Day        `json:"resolution_date,omitempty"`
	Reasoning      string     `json:"reasoning,omitempty"`
}

// ForecastSet is a submitter's file for one forecast due date. The tuple
// (organization, model_organization, model, forecast_due_date) is unique
// across submissions.
type ForecastSet struct {
	Organization      string     `json:"organization"`
	Model             string     `json:"model"`
	ModelOrganization string     `json:"model_organization"`
	QuestionSet       string     `json:"question_set"`
	ForecastDueDate   Day        `json:"forecast_due_date"`
	Forecasts         []Forecast `json:"forecasts"`
}

// ModelKey identifies a forecaster across files.
type ModelKey struct {
	Organization      string
	ModelOrganization string
	Model             string
}

// Key returns the ModelKey of the file's forecaster.
func (fs *ForecastSet) Key() ModelKey {
	return ModelKey{
		Organization:      fs.Organization,
		ModelOrganization: fs.ModelOrganization,
		Model:             fs.Model,
	}
}

// IsBenchmark reports whether the forecaster is one of the benchmark's own
// system models. Benchmark models bypass the release-date window and are
// always eligible for difficulty estimation.
func (k ModelKey) IsBenchmark() bool {
	return k.Organization == BenchmarkOrganization
}

// ProcessedForecast is a forecast row after resolution: the submitted
// forecast joined with its ground truth and imputation markers.
type ProcessedForecast struct {
	ID             QuestionID `json:"id"`
	Source         Source     `json:"source"`
	Direction      []int      `json:"direction,omitempty"`
	Forecast       float64    `json:"forecast"`
	ResolutionDate Day        `json:"resolution_date"`

	ResolvedTo                   float64 `json:"resolved_to"` // In [0,1]; NaN when nullified/unavailable (null on the wire)
	Resolved                     bool    `json:"resolved"`
	Imputed                      bool    `json:"imputed"`
	MarketValueOnDueDate         float64 `json:"market_value_on_due_date"`
	MarketValueOnDueDateMinusOne float64 `json:"market_value_on_due_date_minus_one"`
	ForecastDueDate              Day     `json:"forecast_due_date"`

	// QuestionPK is the canonical per-forecast-set question primary key
	// the scoring fixed-effects estimator groups on.
	QuestionPK string `json:"question_pk"`
}

// NaN has no JSON encoding; resolution fields that are legitimately NaN
// (nullified questions, missing market values) travel as null.
func nanToNull(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func nullToNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

// MarshalJSON writes NaN-valued fields as null.
func (f ProcessedForecast) MarshalJSON() ([]byte, error) {
	type alias ProcessedForecast
	return json.Marshal(struct {
		alias
		Forecast                     *float64 `json:"forecast"`
		ResolvedTo                   *float64 `json:"resolved_to"`
		MarketValueOnDueDate         *float64 `json:"market_value_on_due_date"`
		MarketValueOnDueDateMinusOne *float64 `json:"market_value_on_due_date_minus_one"`
	}{
		alias:                        alias(f),
		Forecast:                     nanToNull(f.Forecast),
		ResolvedTo:                   nanToNull(f.ResolvedTo),
		MarketValueOnDueDate:         nanToNull(f.MarketValueOnDueDate),
		MarketValueOnDueDateMinusOne: nanToNull(f.MarketValueOnDueDateMinusOne),
	})
}

// UnmarshalJSON restores null fields to NaN.
func (f *ProcessedForecast) UnmarshalJSON(data []byte) error {
	type alias ProcessedForecast
	aux := struct {
		*alias
		Forecast                     *float64 `json:"forecast"`
		ResolvedTo                   *float64 `json:"resolved_to"`
		MarketValueOnDueDate         *float64 `json:"market_value_on_due_date"`
		MarketValueOnDueDateMinusOne *float64 `json:"market_value_on_due_date_minus_one"`
	}{alias: (*alias)(f)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	f.Forecast = nullToNaN(aux.Forecast)
	f.ResolvedTo = nullToNaN(aux.ResolvedTo)
	f.MarketValueOnDueDate = nullToNaN(aux.MarketValueOnDueDate)
	f.MarketValueOnDueDateMinusOne = nullToNaN(aux.MarketValueOnDueDateMinusOne)
	return nil
}

// ProcessedForecastSet is the durable artifact the resolution engine
// emits per submitted file.
type ProcessedForecastSet struct {
	Organization      string              `json:"organization"`
	Model             string              `json:"model"`
	ModelOrganization string              `json:"model_organization"`
	QuestionSet       string              `json:"question_set"`
	ForecastDueDate   Day                 `json:"forecast_due_date"`
	Forecasts         []ProcessedForecast `json:"forecasts"`
}

// Key returns the ModelKey of the processed file's forecaster.
func (ps *ProcessedForecastSet) Key() ModelKey {
	return ModelKey{
		Organization:      ps.Organization,
		ModelOrganization: ps.ModelOrganization,
		Model:             ps.Model,
	}
}

// ResolutionRow is one row of the published resolution set: the ground
// truth alone, without any forecaster's numbers.
type ResolutionRow struct {
	ID             QuestionID `json:"id"`
	Source         Source     `json:"source"`
	Direction      []int      `json:"direction,omitempty"`
	ResolutionDate Day        `json:"resolution_date"`
	ResolvedTo     float64    `json:"resolved_to"`
	Resolved       bool       `json:"resolved"`
}

// MarshalJSON writes a NaN resolved value as null.
func (r ResolutionRow) MarshalJSON() ([]byte, error) {
	type alias ResolutionRow
	return json.Marshal(struct {
		alias
		ResolvedTo *float64 `json:"resolved_to"`
	}{alias: alias(r), ResolvedTo: nanToNull(r.ResolvedTo)})
}

// UnmarshalJSON restores a null resolved value to NaN.
func (r *ResolutionRow) UnmarshalJSON(data []byte) error {
	type alias ResolutionRow
	aux := struct {
		*alias
		ResolvedTo *float64 `json:"resolved_to"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.ResolvedTo = nullToNaN(aux.ResolvedTo)
	return nil
}

// ResolutionSet is the per-round ground-truth table.
type ResolutionSet struct {
	ForecastDueDate Day             `json:"forecast_due_date"`
	Rows            []ResolutionRow `json:"resolutions"`
}

// ValidProbability reports whether p is a usable forecast value.
func ValidProbability(p float64) bool {
	return !math.IsNaN(p) && p >= 0 && p <= 1
}
