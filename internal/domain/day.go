package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// dayEpoch anchors the dense day index. All series and date arithmetic in
// the core run on integer day offsets from this anchor so hot loops never
// touch time.Time.
var dayEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// Day is a calendar day expressed as days since 2020-01-01 UTC. It is the
// only date representation used inside resolution and scoring hot paths.
type Day int

// DayOf converts a time.Time (any zone) to its UTC calendar day.
func DayOf(t time.Time) Day {
	t = t.UTC()
	return Day(t.Sub(dayEpoch).Hours() / 24)
}

// ParseDay parses a YYYY-MM-DD date string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DayOf(t), nil
}

// MustParseDay parses a YYYY-MM-DD date string and panics on failure.
// Intended for package-level constants and tests.
func MustParseDay(s string) Day {
	d, err := ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Time returns the midnight-UTC time for the day.
func (d Day) Time() time.Time {
	return dayEpoch.AddDate(0, 0, int(d))
}

// String formats the day as YYYY-MM-DD.
func (d Day) String() string {
	return d.Time().Format("2006-01-02")
}

// MarshalJSON encodes the day as a YYYY-MM-DD string.
func (d Day) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a YYYY-MM-DD string.
func (d *Day) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	day, err := ParseDay(s)
	if err != nil {
		return err
	}
	*d = day
	return nil
}

// TodayUTC returns the current UTC calendar day.
func TodayUTC() Day {
	return DayOf(time.Now())
}

// YesterdayUTC returns the previous UTC calendar day. Resolution series
// are complete through yesterday; today's observations are still open.
func YesterdayUTC() Day {
	return TodayUTC() - 1
}
