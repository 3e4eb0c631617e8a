package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayOfConvertsToUTC(t *testing.T) {
	// 23:30 in UTC-5 is the next UTC day
	loc := time.FixedZone("UTC-5", -5*3600)
	late := time.Date(2024, 6, 30, 23, 30, 0, 0, loc)
	assert.Equal(t, MustParseDay("2024-07-01"), DayOf(late))

	midnight := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, MustParseDay("2024-07-01"), DayOf(midnight))
}

func TestDayArithmetic(t *testing.T) {
	d := MustParseDay("2024-05-01")
	assert.Equal(t, MustParseDay("2024-05-11"), d+10)
	assert.Equal(t, MustParseDay("2023-05-07"), d-360)
	assert.Equal(t, "2024-05-01", d.String())
}

func TestParseDayRejectsGarbage(t *testing.T) {
	_, err := ParseDay("not-a-date")
	assert.Error(t, err)
	_, err = ParseDay("2024-13-01")
	assert.Error(t, err)
}

func TestDayJSONRoundTrip(t *testing.T) {
	d := MustParseDay("2024-07-21")
	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2024-07-21"`, string(data))

	var back Day
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, d, back)

	assert.Error(t, json.Unmarshal([]byte(`12345`), &back))
}
