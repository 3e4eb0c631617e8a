package sources

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/forecastbench/forecastbench/internal/domain"
)

// NewRFI creates the RAND Forecasting Initiative adapter. The platform was
// formerly named INFER; CanonicalSource folds the old alias into this
// source so historical ids keep resolving here.
func NewRFI(fetcher Fetcher, classifier Classifier, log zerolog.Logger) *MarketAdapter {
	return newMarketAdapter(domain.SourceRFI, RateLimited(fetcher, 2), classifier, rfiDecoder{}, log)
}

type rfiDecoder struct{}

type rfiQuestion struct {
	ID                 int    `json:"id"`
	Name               string `json:"name"`
	Description        string `json:"description"`
	ResolutionCriteria string `json:"resolution_criteria"`
	CreatedAt          string `json:"created_at"`
	EndsAt             string `json:"ends_at"`
	ResolvedAt         string `json:"resolved_at"`
	// State is active, resolved, or voided
	State   string      `json:"state"`
	Answers []rfiAnswer `json:"answers"`
}

type rfiAnswer struct {
	Name        string   `json:"name"`
	Probability *float64 `json:"probability"`
}

type rfiPage struct {
	Questions []rfiQuestion `json:"questions"`
}

// rfiForecastRow is one day of the crowd forecast history.
type rfiForecastRow struct {
	Date        string   `json:"date"`
	Probability *float64 `json:"probability"`
}

func (rfiDecoder) questionsPath() string {
	return "/api/v1/questions?status=all&page_size=100"
}

func (rfiDecoder) seriesPath(id string) string {
	return fmt.Sprintf("/api/v1/questions/%s/daily-forecasts", id)
}

func (rfiDecoder) decodeQuestions(raw []byte) ([]marketRecord, error) {
	var page rfiPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, err
	}

	records := make([]marketRecord, 0, len(page.Questions))
	for _, q := range page.Questions {
		yes, ok := rfiYesAnswer(q.Answers)
		if !ok {
			// Multi-answer questions have no single YES probability
			continue
		}
		prob := math.NaN()
		if yes.Probability != nil {
			prob = *yes.Probability
		}
		rec := marketRecord{
			ID:                 fmt.Sprintf("%d", q.ID),
			URL:                fmt.Sprintf("https://www.randforecastinginitiative.org/questions/%d", q.ID),
			Question:           q.Name,
			Background:         q.Description,
			ResolutionCriteria: q.ResolutionCriteria,
			Resolved:           q.State == "resolved",
		}
		rec.Probability = prob
		if t, ok := parseAnyTime(q.CreatedAt); ok {
			rec.Open = &t
		}
		if t, ok := parseAnyTime(q.EndsAt); ok {
			rec.Close = &t
		}
		if t, ok := parseAnyTime(q.ResolvedAt); ok {
			rec.Resolution = &t
		}
		records = append(records, rec)
	}
	return records, nil
}

func (rfiDecoder) decodeSeries(raw []byte) ([]probPoint, error) {
	var rows []rfiForecastRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	points := make([]probPoint, 0, len(rows))
	for _, r := range rows {
		day, err := domain.ParseDay(r.Date)
		if err != nil {
			return nil, err
		}
		// A voided question publishes null from the void date on
		value := math.NaN()
		if r.Probability != nil {
			value = *r.Probability
		}
		points = append(points, probPoint{Date: day, Value: value})
	}
	return points, nil
}

func rfiYesAnswer(answers []rfiAnswer) (rfiAnswer, bool) {
	if len(answers) == 1 {
		return answers[0], true
	}
	for _, a := range answers {
		if a.Name == "Yes" {
			return a, true
		}
	}
	return rfiAnswer{}, false
}
