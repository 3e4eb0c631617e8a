package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// AllowedHorizons is the closed set of day offsets at which dataset
// questions may resolve.
var AllowedHorizons = []int{7, 30, 90, 180, 365, 1095, 1825, 3650}

// HorizonAllowed reports whether h is one of the permitted day offsets.
func HorizonAllowed(h int) bool {
	for _, allowed := range AllowedHorizons {
		if h == allowed {
			return true
		}
	}
	return false
}

// ComparisonKind enumerates how an encyclopedic-table question compares
// the value at the resolution date against the value at the forecast due
// date.
type ComparisonKind string

const (
	CompareSame           ComparisonKind = "SAME"
	CompareSameOrMore     ComparisonKind = "SAME_OR_MORE"
	CompareMore           ComparisonKind = "MORE"
	CompareSameOrLess     ComparisonKind = "SAME_OR_LESS"
	CompareOnePercentMore ComparisonKind = "ONE_PERCENT_MORE"
)

// EventCountParams parameterizes an event-count question template: the
// trailing 30-day event sum at resolution is compared against the
// freeze-time reference (a 30-day average over the previous 360 days),
// optionally scaled and offset per template.
type EventCountParams struct {
	Scale  float64 `json:"scale"`  // Multiplier on the reference value (1.0 when unset)
	Offset float64 `json:"offset"` // Added to the scaled reference
}

// Question is the canonical question record. The header fields are shared
// by every class; the class-specific payloads are populated per source
// class. A question's ID is immutable for its lifetime and is never reused
// for a different semantic question.
type Question struct {
	ID                 string `json:"id"`
	Source             Source `json:"source"`
	URL                string `json:"url"`
	Question           string `json:"question"`
	Background         string `json:"background"`
	ResolutionCriteria string `json:"resolution_criteria"`
	Category           string `json:"category"`

	// ForecastHorizons is ordered; empty means a synthesized question is
	// not yet resolvable and must not be curated.
	ForecastHorizons []int `json:"forecast_horizons"`

	FreezeDatetime                 time.Time `json:"freeze_datetime"`
	FreezeDatetimeValue            string    `json:"freeze_datetime_value"`
	FreezeDatetimeValueExplanation string    `json:"freeze_datetime_value_explanation"`

	// Market metadata; nil for dataset questions.
	MarketInfoOpenDatetime       *time.Time `json:"market_info_open_datetime,omitempty"`
	MarketInfoCloseDatetime      *time.Time `json:"market_info_close_datetime,omitempty"`
	MarketInfoResolutionDatetime *time.Time `json:"market_info_resolution_datetime,omitempty"`

	Resolved      bool `json:"resolved"`
	ValidQuestion bool `json:"valid_question"`

	// Class payloads.
	EventCount *EventCountParams `json:"event_count_params,omitempty"`
	Comparison ComparisonKind    `json:"comparison,omitempty"`
}

// Class returns the question's resolution class, derived from its source.
func (q *Question) Class() QuestionClass { return q.Source.Class() }

// QuestionID identifies a question inside question sets and forecast
// files: either a single source-scoped id or a 2-tuple of ids for a
// combination question. The tuple JSON form is kept for compatibility
// with shipped question sets.
type QuestionID struct {
	Single string
	Combo  *[2]string
}

// SingleID wraps a plain question id.
func SingleID(id string) QuestionID { return QuestionID{Single: id} }

// ComboOf builds a combination id from two leg ids.
func ComboOf(a, b string) QuestionID {
	legs := [2]string{a, b}
	return QuestionID{Combo: &legs}
}

// IsCombo reports whether the id names a combination question.
func (q QuestionID) IsCombo() bool { return q.Combo != nil }

// Legs returns the leg ids of a combination question.
func (q QuestionID) Legs() [2]string {
	if q.Combo == nil {
		return [2]string{q.Single, ""}
	}
	return *q.Combo
}

// Key returns a canonical string form usable as a map key.
func (q QuestionID) Key() string {
	if q.Combo != nil {
		return q.Combo[0] + "\x1f" + q.Combo[1]
	}
	return q.Single
}

// MarshalJSON encodes a single id as a string and a combo as a 2-array.
func (q QuestionID) MarshalJSON() ([]byte, error) {
	if q.Combo != nil {
		return json.Marshal([2]string{q.Combo[0], q.Combo[1]})
	}
	return json.Marshal(q.Single)
}

// UnmarshalJSON decodes both the string and the 2-array form.
func (q *QuestionID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*q = SingleID(s)
		return nil
	}
	var legs [2]string
	if err := json.Unmarshal(data, &legs); err == nil {
		*q = ComboOf(legs[0], legs[1])
		return nil
	}
	return fmt.Errorf("question id must be a string or a 2-array: %s", data)
}

// SetQuestion is a question as it appears inside a shipped question set:
// the canonical record plus curation-time additions.
type SetQuestion struct {
	ID                             QuestionID `json:"id"`
	Source                         Source     `json:"source"`
	URL                            string     `json:"url"`
	Question                       string     `json:"question"`
	Background                     string     `json:"background"`
	ResolutionCriteria             string     `json:"resolution_criteria"`
	Category                       string     `json:"category"`
	FreezeDatetime                 time.Time  `json:"freeze_datetime"`
	FreezeDatetimeValue            string     `json:"freeze_datetime_value"`
	FreezeDatetimeValueExplanation string     `json:"freeze_datetime_value_explanation"`

	MarketInfoOpenDatetime       *time.Time `json:"market_info_open_datetime,omitempty"`
	MarketInfoCloseDatetime      *time.Time `json:"market_info_close_datetime,omitempty"`
	MarketInfoResolutionDatetime *time.Time `json:"market_info_resolution_datetime,omitempty"`

	// ResolutionDates is populated for dataset questions only:
	// forecast_due_date + h for each allowed horizon.
	ResolutionDates []Day `json:"resolution_dates,omitempty"`

	// CombinationOf carries the two full leg records for combo questions.
	CombinationOf []SetQuestion `json:"combination_of,omitempty"`
}

// QuestionSet is the curated artifact submitters forecast against.
type QuestionSet struct {
	ForecastDueDate Day           `json:"forecast_due_date"`
	QuestionSet     string        `json:"question_set"` // Filename, e.g. 2024-07-21-llm.json
	Questions       []SetQuestion `json:"questions"`
}
