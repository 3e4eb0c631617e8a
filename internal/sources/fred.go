package sources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/forecastbench/forecastbench/internal/domain"
)

// NewFRED creates the FRED economic-data adapter. Questions are
// synthesized from a curated table of series; the API key and host live in
// the fetcher.
func NewFRED(fetcher Fetcher, keys KeyStore, log zerolog.Logger) *DatasetAdapter {
	return newDatasetAdapter(domain.SourceFRED, RateLimited(fetcher, 2), fredDecoder{}, keys, log)
}

// fredSeries is the curated set of FRED series the benchmark asks about.
var fredSeries = []struct {
	ID   string
	Name string
}{
	{"UNRATE", "the US unemployment rate"},
	{"CPIAUCSL", "the US Consumer Price Index for All Urban Consumers"},
	{"FEDFUNDS", "the effective federal funds rate"},
	{"GDP", "US gross domestic product"},
	{"DGS10", "the 10-year US Treasury constant maturity rate"},
	{"MORTGAGE30US", "the 30-year fixed mortgage average in the United States"},
	{"DCOILWTICO", "the WTI crude oil spot price"},
	{"DEXUSEU", "the US dollar to euro exchange rate"},
	{"HOUST", "new privately-owned housing units started"},
	{"ICSA", "initial unemployment insurance claims"},
	{"PAYEMS", "total US nonfarm payroll employment"},
	{"UMCSENT", "the University of Michigan consumer sentiment index"},
	{"VIXCLS", "the CBOE volatility index"},
	{"T10Y2Y", "the 10-year minus 2-year Treasury yield spread"},
}

type fredDecoder struct{}

func (fredDecoder) templates(context.Context, Fetcher) ([]datasetTemplate, error) {
	templates := make([]datasetTemplate, 0, len(fredSeries))
	for _, s := range fredSeries {
		templates = append(templates, datasetTemplate{
			Key: map[string]string{"id": s.ID},
			URL: "https://fred.stlouisfed.org/series/" + s.ID,
			Question: fmt.Sprintf(
				"Will %s (%s), as reported by FRED, have a greater value at the resolution date than its value on the forecast due date?",
				s.Name, s.ID,
			),
			Background: fmt.Sprintf(
				"FRED publishes %s as series %s. The latest value as of the forecast due date is the comparison value.",
				s.Name, s.ID,
			),
			ResolutionCriteria: "Resolves Yes if the value reported by FRED for the resolution date is strictly greater than its value on the forecast due date, and No otherwise.",
			Category:           "Economics & Business",
		})
	}
	return templates, nil
}

func (fredDecoder) seriesPath(key map[string]string) string {
	return fmt.Sprintf("/fred/series/observations?series_id=%s&file_type=json", key["id"])
}

type fredObservations struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

func (fredDecoder) decodeSeries(_ map[string]string, raw []byte) ([]domain.SeriesPoint, error) {
	var payload fredObservations
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	points := make([]domain.SeriesPoint, 0, len(payload.Observations))
	for _, obs := range payload.Observations {
		// FRED encodes a missing observation as "."
		if obs.Value == "." {
			continue
		}
		day, err := domain.ParseDay(obs.Date)
		if err != nil {
			return nil, err
		}
		value, err := parseFloatValue(obs.Value)
		if err != nil {
			return nil, fmt.Errorf("bad FRED observation on %s: %w", obs.Date, err)
		}
		points = append(points, domain.SeriesPoint{Date: day, Value: value})
	}
	return points, nil
}

func (fredDecoder) gapValue() (domain.Value, bool) { return domain.Value{}, false }
