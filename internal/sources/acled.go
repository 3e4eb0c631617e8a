package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/forecastbench/forecastbench/internal/domain"
)

// NewACLED creates the ACLED conflict-data adapter. Questions are
// synthesized per (country, event type, template): the trailing 30-day
// event count against a scaled historical baseline.
func NewACLED(fetcher Fetcher, keys KeyStore, log zerolog.Logger) *DatasetAdapter {
	return newDatasetAdapter(domain.SourceACLED, RateLimited(fetcher, 1), acledDecoder{}, keys, log)
}

// acledCountries is the curated country set.
var acledCountries = []string{
	"Afghanistan",
	"Brazil",
	"Colombia",
	"Democratic Republic of Congo",
	"Ethiopia",
	"India",
	"Mexico",
	"Myanmar",
	"Nigeria",
	"Pakistan",
	"Somalia",
	"Sudan",
	"Syria",
	"Ukraine",
	"Yemen",
}

// acledEventTypes is the curated event-type set.
var acledEventTypes = []string{
	"Battles",
	"Protests",
	"Riots",
	"Violence against civilians",
}

// acledTemplates are the comparison variants applied to each (country,
// event type) pair. Scale multiplies the historical baseline; offset is
// added after scaling.
var acledTemplates = []struct {
	Name   string
	Phrase string
	Scale  float64
	Offset float64
}{
	{"base", "more", 1.0, 0},
	{"ten_percent_more", "at least 10% more", 1.1, 0},
	{"plus_ten", "at least 10 more", 1.0, 10},
}

type acledDecoder struct{}

func (acledDecoder) templates(context.Context, Fetcher) ([]datasetTemplate, error) {
	var templates []datasetTemplate
	for _, country := range acledCountries {
		for _, eventType := range acledEventTypes {
			for _, tpl := range acledTemplates {
				templates = append(templates, datasetTemplate{
					Key: map[string]string{
						"country":    country,
						"event_type": eventType,
						"template":   tpl.Name,
					},
					URL: "https://acleddata.com/data-export-tool/",
					Question: fmt.Sprintf(
						"Will ACLED record %s %q events in %s over the 30 days ending on the resolution date than the 30-day average over the 360 days before the forecast due date?",
						tpl.Phrase, eventType, country,
					),
					Background: fmt.Sprintf(
						"ACLED records political violence and protest events worldwide. This question counts %q events in %s.",
						eventType, country,
					),
					ResolutionCriteria: fmt.Sprintf(
						"Resolves Yes if the number of events over the 30 days ending on the resolution date is %s than the comparison value published at the freeze datetime, and No otherwise.",
						tpl.Phrase,
					),
					Category:   "Security & Defense",
					EventCount: &domain.EventCountParams{Scale: tpl.Scale, Offset: tpl.Offset},
				})
			}
		}
	}
	return templates, nil
}

func (acledDecoder) seriesPath(key map[string]string) string {
	q := url.Values{}
	q.Set("country", key["country"])
	q.Set("event_type", key["event_type"])
	q.Set("fields", "event_date")
	return "/acled/read?" + q.Encode()
}

// acledPage is the event listing payload: one row per recorded event.
type acledPage struct {
	Data []struct {
		EventDate string `json:"event_date"`
	} `json:"data"`
}

func (acledDecoder) decodeSeries(_ map[string]string, raw []byte) ([]domain.SeriesPoint, error) {
	var page acledPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, err
	}

	// Aggregate events per day; the feed is date-ordered
	counts := make(map[domain.Day]float64)
	var days []domain.Day
	for _, row := range page.Data {
		day, err := domain.ParseDay(row.EventDate)
		if err != nil {
			return nil, err
		}
		if _, seen := counts[day]; !seen {
			days = append(days, day)
		}
		counts[day]++
	}
	sortDays(days)

	points := make([]domain.SeriesPoint, 0, len(days))
	for _, day := range days {
		points = append(points, domain.SeriesPoint{Date: day, Value: domain.NumValue(counts[day])})
	}
	return points, nil
}

// A day with no recorded events is an observation of zero events, not a
// publication gap.
func (acledDecoder) gapValue() (domain.Value, bool) { return domain.NumValue(0), true }
