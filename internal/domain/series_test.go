package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) Day { return MustParseDay(s) }

func TestNewSeriesForwardFillsGaps(t *testing.T) {
	s, err := NewSeries("q1", []SeriesPoint{
		{ID: "q1", Date: day("2024-06-01"), Value: NumValue(0.4)},
		{ID: "q1", Date: day("2024-06-04"), Value: NumValue(0.6)},
	})
	require.NoError(t, err)

	assert.Equal(t, day("2024-06-01"), s.Start)
	assert.Equal(t, day("2024-06-04"), s.End())
	assert.Equal(t, NumValue(0.4), s.At(day("2024-06-02")))
	assert.Equal(t, NumValue(0.4), s.At(day("2024-06-03")))
	assert.Equal(t, NumValue(0.6), s.At(day("2024-06-04")))
}

func TestNewSeriesKeepsPublishedNulls(t *testing.T) {
	// An annulled market publishes an explicit null; it must not be
	// overwritten by the previous day's value.
	s, err := NewSeries("q1", []SeriesPoint{
		{ID: "q1", Date: day("2024-06-01"), Value: NumValue(0.7)},
		{ID: "q1", Date: day("2024-06-02"), Value: NullValue()},
		{ID: "q1", Date: day("2024-06-04"), Value: NumValue(0.2)},
	})
	require.NoError(t, err)

	assert.True(t, s.At(day("2024-06-02")).IsNull())
	// The gap after a published null stays null too: there is nothing
	// certain to carry forward.
	assert.True(t, s.At(day("2024-06-03")).IsNull())
	assert.Equal(t, NumValue(0.2), s.At(day("2024-06-04")))
}

func TestNewSeriesRejectsMisorderedDates(t *testing.T) {
	_, err := NewSeries("q1", []SeriesPoint{
		{ID: "q1", Date: day("2024-06-02"), Value: NumValue(1)},
		{ID: "q1", Date: day("2024-06-01"), Value: NumValue(2)},
	})
	assert.Error(t, err)

	_, err = NewSeries("q1", []SeriesPoint{
		{ID: "q1", Date: day("2024-06-01"), Value: NumValue(1)},
		{ID: "q1", Date: day("2024-06-01"), Value: NumValue(2)},
	})
	assert.Error(t, err)
}

func TestSeriesAtOutsideRange(t *testing.T) {
	s, err := NewSeries("q1", []SeriesPoint{
		{ID: "q1", Date: day("2024-06-01"), Value: NumValue(0.5)},
	})
	require.NoError(t, err)

	assert.True(t, s.At(day("2024-05-31")).IsNull())
	assert.True(t, s.At(day("2024-06-02")).IsNull())
	// Markets carry the final value forward
	assert.Equal(t, NumValue(0.5), s.AtOrLast(day("2024-08-01")))
}

func TestSeriesSumWindow(t *testing.T) {
	s, err := NewSeries("q1", []SeriesPoint{
		{ID: "q1", Date: day("2024-06-01"), Value: NumValue(2)},
		{ID: "q1", Date: day("2024-06-02"), Value: NumValue(3)},
		{ID: "q1", Date: day("2024-06-03"), Value: NumValue(5)},
	})
	require.NoError(t, err)

	sum, n := s.SumWindow(day("2024-06-01"), day("2024-06-03"))
	assert.Equal(t, 10.0, sum)
	assert.Equal(t, 3, n)

	// Days outside the series do not count
	sum, n = s.SumWindow(day("2024-05-30"), day("2024-06-01"))
	assert.Equal(t, 2.0, sum)
	assert.Equal(t, 1, n)
}

func TestSeriesStale(t *testing.T) {
	today := day("2024-06-10")
	fresh, err := NewSeries("q1", []SeriesPoint{
		{ID: "q1", Date: day("2024-06-09"), Value: NumValue(1)},
	})
	require.NoError(t, err)
	assert.False(t, fresh.Stale(today))

	old, err := NewSeries("q1", []SeriesPoint{
		{ID: "q1", Date: day("2024-06-08"), Value: NumValue(1)},
	})
	require.NoError(t, err)
	assert.True(t, old.Stale(today))

	empty, err := NewSeries("q1", nil)
	require.NoError(t, err)
	assert.True(t, empty.Stale(today))
}

func TestSeriesPointsRoundTrip(t *testing.T) {
	points := []SeriesPoint{
		{ID: "q1", Date: day("2024-06-01"), Value: NumValue(0.1)},
		{ID: "q1", Date: day("2024-06-03"), Value: NumValue(0.9)},
	}
	s, err := NewSeries("q1", points)
	require.NoError(t, err)

	flat := s.Points()
	require.Len(t, flat, 3)
	assert.Equal(t, NumValue(0.1), flat[1].Value) // forward-filled gap day
	assert.Equal(t, day("2024-06-02"), flat[1].Date)
}

func TestValueSemantics(t *testing.T) {
	assert.True(t, NumValue(math.NaN()).IsNull())
	assert.True(t, math.IsNaN(NullValue().Float()))
	assert.Equal(t, 2.5, TextValue("2.5").Float())
	assert.True(t, math.IsNaN(TextValue("n/a").Float()))

	// Null never equals anything, including another null
	assert.False(t, NullValue().Equal(NullValue()))
	assert.True(t, NumValue(1).Equal(NumValue(1)))
	assert.False(t, NumValue(1).Equal(TextValue("1")))
	assert.True(t, TextValue("Ding Liren").Equal(TextValue("Ding Liren")))
}
