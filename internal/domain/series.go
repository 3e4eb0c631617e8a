package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Value is a single observation in a resolution series. Sources publish
// numbers for market and numeric/event-count questions and occasionally
// strings for encyclopedic table cells; either may be null.
type Value struct {
	Num  float64
	Text string
	// Kind discriminates the stored representation.
	Kind ValueKind
}

// ValueKind discriminates Value representations.
type ValueKind int

const (
	ValueNull ValueKind = iota
	ValueNumber
	ValueText
)

// NumValue wraps a float64 observation.
func NumValue(f float64) Value {
	if math.IsNaN(f) {
		return Value{Kind: ValueNull}
	}
	return Value{Num: f, Kind: ValueNumber}
}

// TextValue wraps a textual observation.
func TextValue(s string) Value { return Value{Text: s, Kind: ValueText} }

// NullValue is the missing observation.
func NullValue() Value { return Value{Kind: ValueNull} }

// IsNull reports whether the observation is missing.
func (v Value) IsNull() bool { return v.Kind == ValueNull }

// Float returns the numeric form of the value: the number itself, a parsed
// numeric string, or NaN when neither applies.
func (v Value) Float() float64 {
	switch v.Kind {
	case ValueNumber:
		return v.Num
	case ValueText:
		if f, err := strconv.ParseFloat(v.Text, 64); err == nil {
			return f
		}
	}
	return math.NaN()
}

// Equal compares two observations. Numeric values compare by ==; null never
// equals anything, including another null (a disappeared row cannot
// corroborate another disappeared row).
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind || v.Kind == ValueNull {
		return false
	}
	if v.Kind == ValueNumber {
		return v.Num == o.Num
	}
	return v.Text == o.Text
}

// MarshalJSON encodes the observation as number, string, or null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueNumber:
		return json.Marshal(v.Num)
	case ValueText:
		return json.Marshal(v.Text)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes number, string, or null observations.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = NullValue()
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*v = NumValue(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = TextValue(s)
		return nil
	}
	return fmt.Errorf("series value must be number, string, or null: %s", data)
}

// SeriesPoint is one JSONL row of a per-question resolution series file.
type SeriesPoint struct {
	ID    string `json:"id"`
	Date  Day    `json:"date"`
	Value Value  `json:"value"`
}

// Series is a per-question daily truth series stored densely: Values[i]
// holds the observation for day Start+i. There is exactly one value per
// calendar day between Start and End; forward-fill happens at
// construction, so lookups are O(1) index math.
type Series struct {
	ID     string
	Start  Day
	Values []Value
}

// NewSeries builds a dense forward-filled series from sparse points. The
// points must be sorted by date ascending with no duplicate days; a
// misordered or duplicated day is a data-integrity error.
func NewSeries(id string, points []SeriesPoint) (*Series, error) {
	if len(points) == 0 {
		return &Series{ID: id}, nil
	}
	start := points[0].Date
	end := points[len(points)-1].Date
	values := make([]Value, end-start+1)
	published := make([]bool, end-start+1)

	prev := Day(-1 << 30)
	for _, p := range points {
		if p.Date <= prev {
			return nil, fmt.Errorf("series %s: misordered or duplicate date %s", id, p.Date)
		}
		prev = p.Date
		values[p.Date-start] = p.Value
		published[p.Date-start] = true
	}

	// Forward-fill days the source skipped. An explicitly published null
	// (annulled market, back-filled encyclopedic row) stays null: that is
	// semantic uncertainty, not an intermittent publication gap.
	last := values[0]
	for i := 1; i < len(values); i++ {
		if !published[i] && !last.IsNull() {
			values[i] = last
		} else if published[i] {
			last = values[i]
		}
	}

	return &Series{ID: id, Start: start, Values: values}, nil
}

// Empty reports whether the series has no observations. Allowed only for
// freshly added unresolved questions.
func (s *Series) Empty() bool { return len(s.Values) == 0 }

// End returns the last day covered by the series.
func (s *Series) End() Day {
	return s.Start + Day(len(s.Values)) - 1
}

// At returns the observation for the given day. Days before the series
// start or after its end return null; the caller decides whether to carry
// the final value forward (market resolution does, datasets do not).
func (s *Series) At(d Day) Value {
	if s.Empty() || d < s.Start || d > s.End() {
		return NullValue()
	}
	return s.Values[d-s.Start]
}

// AtOrLast returns the observation for the given day, or the final
// observation when the day is past the series end. Market questions carry
// the resolved outcome forward this way.
func (s *Series) AtOrLast(d Day) Value {
	if s.Empty() {
		return NullValue()
	}
	if d > s.End() {
		return s.Values[len(s.Values)-1]
	}
	return s.At(d)
}

// SumWindow returns the sum of numeric observations over [from, to]
// inclusive, together with the count of non-null days. Used by the
// event-count resolution rule.
func (s *Series) SumWindow(from, to Day) (sum float64, n int) {
	for d := from; d <= to; d++ {
		v := s.At(d)
		if v.Kind == ValueNumber {
			sum += v.Num
			n++
		}
	}
	return sum, n
}

// Points flattens the dense series back to one point per day, the exact
// JSONL row set that is persisted.
func (s *Series) Points() []SeriesPoint {
	points := make([]SeriesPoint, len(s.Values))
	for i, v := range s.Values {
		points[i] = SeriesPoint{ID: s.ID, Date: s.Start + Day(i), Value: v}
	}
	return points
}

// Stale reports whether the series is out of date as of today: readers
// must refuse to curate against a market series whose final row is older
// than yesterday UTC.
func (s *Series) Stale(today Day) bool {
	return s.Empty() || s.End() < today-1
}
