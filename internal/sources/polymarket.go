package sources

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/forecastbench/forecastbench/internal/domain"
)

// NewPolymarket creates the Polymarket adapter. The CLOB API quotes token
// prices as decimal strings; they are parsed exactly and only converted
// to float at the series boundary.
func NewPolymarket(fetcher Fetcher, classifier Classifier, log zerolog.Logger) *MarketAdapter {
	return newMarketAdapter(domain.SourcePolymarket, RateLimited(fetcher, 10), classifier, polymarketDecoder{}, log)
}

type polymarketDecoder struct{}

type polymarketMarket struct {
	ConditionID string            `json:"condition_id"`
	Question    string            `json:"question"`
	Description string            `json:"description"`
	MarketSlug  string            `json:"market_slug"`
	EndDateISO  string            `json:"end_date_iso"`
	StartISO    string            `json:"game_start_time"`
	Closed      bool              `json:"closed"`
	Tokens      []polymarketToken `json:"tokens"`
}

type polymarketToken struct {
	Outcome string          `json:"outcome"`
	Price   decimal.Decimal `json:"price"`
	Winner  bool            `json:"winner"`
}

type polymarketMarketsPage struct {
	Data []polymarketMarket `json:"data"`
}

// polymarketHistory is the prices-history payload: unix-second timestamps
// with decimal-string prices.
type polymarketHistory struct {
	History []struct {
		T int64           `json:"t"`
		P decimal.Decimal `json:"p"`
	} `json:"history"`
}

func (polymarketDecoder) questionsPath() string { return "/markets" }

func (polymarketDecoder) seriesPath(id string) string {
	return fmt.Sprintf("/prices-history?market=%s&interval=max&fidelity=1440", id)
}

func (polymarketDecoder) decodeQuestions(raw []byte) ([]marketRecord, error) {
	var page polymarketMarketsPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, err
	}

	records := make([]marketRecord, 0, len(page.Data))
	for _, m := range page.Data {
		yes, ok := yesToken(m.Tokens)
		if !ok {
			// Multi-outcome markets have no single YES token
			continue
		}
		prob := math.NaN()
		if !m.Closed {
			prob, _ = yes.Price.Float64()
		}
		rec := marketRecord{
			ID:                 m.ConditionID,
			URL:                "https://polymarket.com/market/" + m.MarketSlug,
			Question:           m.Question,
			Background:         m.Description,
			ResolutionCriteria: "Resolves per the market rules on the market page.",
			Resolved:           m.Closed && (yes.Winner || anyWinner(m.Tokens)),
			Probability:        prob,
		}
		if t, ok := parseAnyTime(m.StartISO); ok {
			rec.Open = &t
		}
		if t, ok := parseAnyTime(m.EndDateISO); ok {
			rec.Close = &t
			if rec.Resolved {
				rec.Resolution = &t
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func (polymarketDecoder) decodeSeries(raw []byte) ([]probPoint, error) {
	var payload polymarketHistory
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	points := make([]timedProb, len(payload.History))
	for i, h := range payload.History {
		price, _ := h.P.Float64()
		points[i] = timedProb{at: time.Unix(h.T, 0).UTC(), prob: price}
	}
	return dailyLast(points), nil
}

func yesToken(tokens []polymarketToken) (polymarketToken, bool) {
	for _, t := range tokens {
		if t.Outcome == "Yes" {
			return t, true
		}
	}
	return polymarketToken{}, false
}

func anyWinner(tokens []polymarketToken) bool {
	for _, t := range tokens {
		if t.Winner {
			return true
		}
	}
	return false
}
