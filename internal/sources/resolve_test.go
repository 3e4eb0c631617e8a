package sources

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecastbench/forecastbench/internal/domain"
)

func day(s string) domain.Day { return domain.MustParseDay(s) }

func series(t *testing.T, points []domain.SeriesPoint) *domain.Series {
	t.Helper()
	s, err := domain.NewSeries("q1", points)
	require.NoError(t, err)
	return s
}

func TestResolveMarketCarriesLastValue(t *testing.T) {
	s := series(t, []domain.SeriesPoint{
		{ID: "q1", Date: day("2024-06-01"), Value: domain.NumValue(0.4)},
		{ID: "q1", Date: day("2024-06-03"), Value: domain.NumValue(1)},
	})

	assert.Equal(t, 0.4, ResolveMarket(s, day("2024-06-02")))
	assert.Equal(t, 1.0, ResolveMarket(s, day("2024-06-03")))
	// A closed market's final outcome stands for all later dates
	assert.Equal(t, 1.0, ResolveMarket(s, day("2024-09-01")))
}

func TestResolveMarketAnnulledIsNaN(t *testing.T) {
	s := series(t, []domain.SeriesPoint{
		{ID: "q1", Date: day("2024-06-01"), Value: domain.NumValue(0.4)},
		{ID: "q1", Date: day("2024-06-02"), Value: domain.NullValue()},
	})
	assert.True(t, math.IsNaN(ResolveMarket(s, day("2024-06-05"))))
}

func TestResolveNumericStrictlyGreater(t *testing.T) {
	s := series(t, []domain.SeriesPoint{
		{ID: "q1", Date: day("2024-06-01"), Value: domain.NumValue(100)},
		{ID: "q1", Date: day("2024-06-08"), Value: domain.NumValue(101)},
		{ID: "q1", Date: day("2024-06-15"), Value: domain.NumValue(100)},
		{ID: "q1", Date: day("2024-06-22"), Value: domain.NumValue(99)},
	})
	due := day("2024-06-01")

	assert.Equal(t, 1.0, ResolveNumeric(s, due, day("2024-06-08")))
	// Equality is not an increase
	assert.Equal(t, 0.0, ResolveNumeric(s, due, day("2024-06-15")))
	assert.Equal(t, 0.0, ResolveNumeric(s, due, day("2024-06-22")))
	// Missing endpoint
	assert.True(t, math.IsNaN(ResolveNumeric(s, due, day("2024-07-01"))))
	assert.True(t, math.IsNaN(ResolveNumeric(s, day("2024-05-01"), day("2024-06-08"))))
}

func TestResolveEventCount(t *testing.T) {
	due := day("2024-06-01")
	rd := due + 30

	// One event per day for the whole year before the due date: the
	// reference 30-day average is 30.
	var points []domain.SeriesPoint
	for d := due - 360; d <= rd; d++ {
		n := 1.0
		if d >= rd-29 {
			n = 2 // busier trailing window: sum 60 > 30
		}
		points = append(points, domain.SeriesPoint{ID: "q1", Date: d, Value: domain.NumValue(n)})
	}
	s := series(t, points)

	q := &domain.Question{ID: "q1", Source: domain.SourceACLED}
	assert.Equal(t, 1.0, ResolveEventCount(q, s, due, rd))

	// A scale high enough pushes the threshold above the window sum
	q.EventCount = &domain.EventCountParams{Scale: 3}
	assert.Equal(t, 0.0, ResolveEventCount(q, s, due, rd))

	// Offset alone shifts the reference
	q.EventCount = &domain.EventCountParams{Offset: 40}
	assert.Equal(t, 0.0, ResolveEventCount(q, s, due, rd))

	q.EventCount = &domain.EventCountParams{Offset: 20}
	assert.Equal(t, 1.0, ResolveEventCount(q, s, due, rd))
}

func TestResolveEventCountEmptyWindows(t *testing.T) {
	due := day("2024-06-01")
	s := series(t, []domain.SeriesPoint{
		{ID: "q1", Date: due + 1, Value: domain.NumValue(1)},
	})
	q := &domain.Question{ID: "q1", Source: domain.SourceACLED}
	// No reference history before the due date
	assert.True(t, math.IsNaN(ResolveEventCount(q, s, due, due+30)))
}

func TestResolveEncyclopedicComparisons(t *testing.T) {
	due := day("2024-06-01")
	rd := day("2024-06-08")

	numSeries := func(atDue, atRes float64) *domain.Series {
		return series(t, []domain.SeriesPoint{
			{ID: "q1", Date: due, Value: domain.NumValue(atDue)},
			{ID: "q1", Date: rd, Value: domain.NumValue(atRes)},
		})
	}

	cases := []struct {
		kind  domain.ComparisonKind
		atDue float64
		atRes float64
		want  float64
	}{
		{domain.CompareSame, 5, 5, 1},
		{domain.CompareSame, 5, 6, 0},
		{domain.CompareSameOrMore, 5, 5, 1},
		{domain.CompareSameOrMore, 5, 4, 0},
		{domain.CompareMore, 5, 5, 0},
		{domain.CompareMore, 5, 6, 1},
		{domain.CompareSameOrLess, 5, 5, 1},
		{domain.CompareSameOrLess, 5, 6, 0},
		{domain.CompareOnePercentMore, 100, 101, 0}, // needs strictly more than 1%
		{domain.CompareOnePercentMore, 100, 101.1, 1},
	}
	for _, tc := range cases {
		q := &domain.Question{ID: "q1", Source: domain.SourceWikipedia, Comparison: tc.kind}
		got := ResolveEncyclopedic(q, numSeries(tc.atDue, tc.atRes), due, rd)
		assert.Equal(t, tc.want, got, "%s due=%v res=%v", tc.kind, tc.atDue, tc.atRes)
	}
}

func TestResolveEncyclopedicTextCells(t *testing.T) {
	due := day("2024-06-01")
	rd := day("2024-06-08")

	champ := func(atDue, atRes string) *domain.Series {
		return series(t, []domain.SeriesPoint{
			{ID: "q1", Date: due, Value: domain.TextValue(atDue)},
			{ID: "q1", Date: rd, Value: domain.TextValue(atRes)},
		})
	}

	same := &domain.Question{ID: "q1", Source: domain.SourceWikipedia, Comparison: domain.CompareSame}
	assert.Equal(t, 1.0, ResolveEncyclopedic(same, champ("Ding Liren", "Ding Liren"), due, rd))
	assert.Equal(t, 0.0, ResolveEncyclopedic(same, champ("Ding Liren", "Gukesh D"), due, rd))

	// Ordering comparisons need numeric cells
	more := &domain.Question{ID: "q1", Source: domain.SourceWikipedia, Comparison: domain.CompareMore}
	assert.True(t, math.IsNaN(ResolveEncyclopedic(more, champ("Ding Liren", "Gukesh D"), due, rd)))
}

func TestResolveEncyclopedicVanishedRecord(t *testing.T) {
	due := day("2024-06-01")
	rd := day("2024-06-08")
	s := series(t, []domain.SeriesPoint{
		{ID: "q1", Date: due, Value: domain.NumValue(5)},
		{ID: "q1", Date: rd, Value: domain.NullValue()},
	})
	q := &domain.Question{ID: "q1", Source: domain.SourceWikipedia, Comparison: domain.CompareSame}
	assert.True(t, math.IsNaN(ResolveEncyclopedic(q, s, due, rd)))
}
