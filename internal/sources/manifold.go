package sources

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/forecastbench/forecastbench/internal/domain"
)

// NewManifold creates the Manifold Markets adapter.
func NewManifold(fetcher Fetcher, classifier Classifier, log zerolog.Logger) *MarketAdapter {
	return newMarketAdapter(domain.SourceManifold, RateLimited(fetcher, 5), classifier, manifoldDecoder{}, log)
}

type manifoldDecoder struct{}

// manifoldMarket mirrors the fields of /v0/markets this adapter consumes.
type manifoldMarket struct {
	ID              string   `json:"id"`
	Question        string   `json:"question"`
	TextDescription string   `json:"textDescription"`
	URL             string   `json:"url"`
	CreatedTime     int64    `json:"createdTime"` // epoch millis
	CloseTime       int64    `json:"closeTime"`
	IsResolved      bool     `json:"isResolved"`
	Resolution      string   `json:"resolution"` // YES | NO | MKT | CANCEL
	ResolutionTime  int64    `json:"resolutionTime"`
	Probability     *float64 `json:"probability"`
	OutcomeType     string   `json:"outcomeType"`
}

// manifoldHistoryPoint is one probability observation from the bet stream.
type manifoldHistoryPoint struct {
	Time        int64   `json:"time"` // epoch millis
	Probability float64 `json:"probability"`
}

func (manifoldDecoder) questionsPath() string { return "/v0/markets" }

func (manifoldDecoder) seriesPath(id string) string {
	return fmt.Sprintf("/v0/market/%s/history", id)
}

func (manifoldDecoder) decodeQuestions(raw []byte) ([]marketRecord, error) {
	var markets []manifoldMarket
	if err := json.Unmarshal(raw, &markets); err != nil {
		return nil, err
	}

	records := make([]marketRecord, 0, len(markets))
	for _, m := range markets {
		// Only binary markets map onto a [0,1] ground truth
		if m.OutcomeType != "" && m.OutcomeType != "BINARY" {
			continue
		}
		prob := math.NaN()
		if m.Probability != nil {
			prob = *m.Probability
		}
		records = append(records, marketRecord{
			ID:                 m.ID,
			URL:                m.URL,
			Question:           m.Question,
			Background:         m.TextDescription,
			ResolutionCriteria: "Resolves YES if the market creator resolves YES; see the market page.",
			Open:               millisPtr(m.CreatedTime),
			Close:              millisPtr(m.CloseTime),
			Resolution:         millisPtr(m.ResolutionTime),
			Resolved:           m.IsResolved,
			Probability:        prob,
		})
	}
	return records, nil
}

func (manifoldDecoder) decodeSeries(raw []byte) ([]probPoint, error) {
	var history []manifoldHistoryPoint
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, err
	}
	points := make([]timedProb, len(history))
	for i, h := range history {
		points[i] = timedProb{at: time.UnixMilli(h.Time).UTC(), prob: h.Probability}
	}
	return dailyLast(points), nil
}

func millisPtr(ms int64) *time.Time {
	if ms == 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}

// timedProb is an intraday probability observation.
type timedProb struct {
	at   time.Time
	prob float64
}

// dailyLast reduces intraday observations to the final value per UTC
// calendar day, ordered by day ascending. Input must be time-ordered.
func dailyLast(points []timedProb) []probPoint {
	var out []probPoint
	for _, p := range points {
		day := domain.DayOf(p.at)
		if n := len(out); n > 0 && out[n-1].Date == day {
			out[n-1].Value = p.prob
			continue
		}
		out = append(out, probPoint{Date: day, Value: p.prob})
	}
	return out
}
