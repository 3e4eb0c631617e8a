package sources

import (
	"math"

	"github.com/forecastbench/forecastbench/internal/domain"
)

// Per-class resolution math. Each source adapter's Resolve delegates to
// the resolver for its class; the class rules are the whole story.

// ResolveMarket returns the market value at the resolution date. If the
// market closed before that date the last pre-close value is used, with a
// final resolved outcome carried forward. NaN (ambiguous or annulled
// markets) propagates.
func ResolveMarket(series *domain.Series, resolutionDate domain.Day) float64 {
	return series.AtOrLast(resolutionDate).Float()
}

// ResolveNumeric resolves 1 when the value at the resolution date strictly
// exceeds the value at the forecast due date, else 0. NaN when either
// endpoint is missing.
func ResolveNumeric(series *domain.Series, dueDate, resolutionDate domain.Day) float64 {
	atDue := series.At(dueDate).Float()
	atResolution := series.At(resolutionDate).Float()
	if math.IsNaN(atDue) || math.IsNaN(atResolution) {
		return math.NaN()
	}
	if atResolution > atDue {
		return 1
	}
	return 0
}

// ResolveEventCount compares the trailing 30-day event sum ending at the
// resolution date against the freeze-time reference: the 30-day average
// event count over the 360 days preceding the due date, scaled and offset
// per question template.
func ResolveEventCount(q *domain.Question, series *domain.Series, dueDate, resolutionDate domain.Day) float64 {
	windowSum, windowDays := series.SumWindow(resolutionDate-29, resolutionDate)
	if windowDays == 0 {
		return math.NaN()
	}

	refSum, refDays := series.SumWindow(dueDate-360, dueDate-1)
	if refDays == 0 {
		return math.NaN()
	}
	// Average count per 30-day window over the reference period
	reference := refSum / float64(refDays) * 30

	scale, offset := 1.0, 0.0
	if q.EventCount != nil {
		if q.EventCount.Scale != 0 {
			scale = q.EventCount.Scale
		}
		offset = q.EventCount.Offset
	}
	if windowSum > reference*scale+offset {
		return 1
	}
	return 0
}

// ResolveEncyclopedic compares the table cell at the resolution date with
// the cell at the forecast due date under the question's comparison kind.
// A record that disappeared from the upstream table between the two dates
// reads as null and resolves NaN.
func ResolveEncyclopedic(q *domain.Question, series *domain.Series, dueDate, resolutionDate domain.Day) float64 {
	atDue := series.At(dueDate)
	atResolution := series.At(resolutionDate)
	if atDue.IsNull() || atResolution.IsNull() {
		return math.NaN()
	}

	switch q.Comparison {
	case domain.CompareSame:
		return boolTo01(atResolution.Equal(atDue))
	case domain.CompareSameOrMore:
		return numericCompare(atResolution, atDue, func(r, d float64) bool { return r >= d })
	case domain.CompareMore:
		return numericCompare(atResolution, atDue, func(r, d float64) bool { return r > d })
	case domain.CompareSameOrLess:
		return numericCompare(atResolution, atDue, func(r, d float64) bool { return r <= d })
	case domain.CompareOnePercentMore:
		return numericCompare(atResolution, atDue, func(r, d float64) bool { return r > d*1.01 })
	default:
		return math.NaN()
	}
}

// numericCompare applies cmp to the numeric forms of two cells; textual
// cells that do not parse as numbers resolve NaN.
func numericCompare(r, d domain.Value, cmp func(r, d float64) bool) float64 {
	rf, df := r.Float(), d.Float()
	if math.IsNaN(rf) || math.IsNaN(df) {
		return math.NaN()
	}
	return boolTo01(cmp(rf, df))
}

func boolTo01(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
