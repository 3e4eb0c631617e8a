package curation

import (
	"time"

	"github.com/forecastbench/forecastbench/internal/domain"
)

// Eligible reports whether a question may enter a new question set frozen
// at freeze time with forecasts due at allForecastsDue.
//
// Dropped: invalidated questions, "Other"-category questions, resolved
// questions, questions with no observable freeze value, market questions
// closing on or before the all-forecasts-due moment, and dataset questions
// that are not yet resolvable (empty horizons).
func Eligible(q *domain.Question, allForecastsDue time.Time) bool {
	if !q.ValidQuestion || q.Resolved {
		return false
	}
	if q.Category == domain.CategoryOther || !domain.ValidCategory(q.Category) {
		return false
	}
	if q.FreezeDatetimeValue == "" || q.FreezeDatetimeValue == "N/A" {
		return false
	}
	if q.Source.IsMarket() {
		if q.MarketInfoCloseDatetime != nil && !q.MarketInfoCloseDatetime.After(allForecastsDue) {
			return false
		}
		return true
	}
	return len(q.ForecastHorizons) > 0
}

// FilterEligible returns the eligible subset, preserving input order.
func FilterEligible(questions []*domain.Question, allForecastsDue time.Time) []*domain.Question {
	out := make([]*domain.Question, 0, len(questions))
	for _, q := range questions {
		if Eligible(q, allForecastsDue) {
			out = append(out, q)
		}
	}
	return out
}
