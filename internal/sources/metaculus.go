package sources

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/forecastbench/forecastbench/internal/domain"
)

// NewMetaculus creates the Metaculus adapter.
func NewMetaculus(fetcher Fetcher, classifier Classifier, log zerolog.Logger) *MarketAdapter {
	return newMarketAdapter(domain.SourceMetaculus, RateLimited(fetcher, 2), classifier, metaculusDecoder{}, log)
}

type metaculusDecoder struct{}

type metaculusQuestion struct {
	ID                 int      `json:"id"`
	Title              string   `json:"title"`
	PageURL            string   `json:"page_url"`
	Description        string   `json:"description"`
	ResolutionCriteria string   `json:"resolution_criteria"`
	PublishTime        string   `json:"publish_time"`
	CloseTime          string   `json:"close_time"`
	ResolveTime        string   `json:"resolve_time"`
	Type               string   `json:"type"`
	// Resolution: nil while open, 0/1 when resolved, -1 when ambiguous
	Resolution          *float64 `json:"resolution"`
	CommunityPrediction *float64 `json:"community_prediction"`
}

type metaculusPage struct {
	Results []metaculusQuestion `json:"results"`
}

// metaculusSeriesPoint is one day of the community prediction history.
type metaculusSeriesPoint struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

func (metaculusDecoder) questionsPath() string {
	return "/api2/questions/?type=forecast&forecast_type=binary&status=open&limit=100"
}

func (metaculusDecoder) seriesPath(id string) string {
	return fmt.Sprintf("/api2/questions/%s/history/", id)
}

func (metaculusDecoder) decodeQuestions(raw []byte) ([]marketRecord, error) {
	var page metaculusPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, err
	}

	records := make([]marketRecord, 0, len(page.Results))
	for _, q := range page.Results {
		if q.Type != "" && q.Type != "binary" {
			continue
		}
		prob := math.NaN()
		if q.CommunityPrediction != nil {
			prob = *q.CommunityPrediction
		}
		rec := marketRecord{
			ID:                 fmt.Sprintf("%d", q.ID),
			URL:                q.PageURL,
			Question:           q.Title,
			Background:         q.Description,
			ResolutionCriteria: q.ResolutionCriteria,
			Resolved:           q.Resolution != nil && *q.Resolution >= 0,
			Probability:        prob,
		}
		if t, ok := parseAnyTime(q.PublishTime); ok {
			rec.Open = &t
		}
		if t, ok := parseAnyTime(q.CloseTime); ok {
			rec.Close = &t
		}
		if t, ok := parseAnyTime(q.ResolveTime); ok {
			rec.Resolution = &t
		}
		records = append(records, rec)
	}
	return records, nil
}

func (metaculusDecoder) decodeSeries(raw []byte) ([]probPoint, error) {
	var history []metaculusSeriesPoint
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, err
	}
	points := make([]probPoint, 0, len(history))
	for _, h := range history {
		day, err := domain.ParseDay(h.Date)
		if err != nil {
			return nil, err
		}
		// A null value marks an ambiguous resolution; NaN propagates
		// through resolution as "semantic uncertainty"
		value := math.NaN()
		if h.Value != nil {
			value = *h.Value
		}
		points = append(points, probPoint{Date: day, Value: value})
	}
	return points, nil
}
