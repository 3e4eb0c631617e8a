package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/forecastbench/forecastbench/internal/domain"
)

// NewYFinance creates the Yahoo Finance adapter: daily closing prices for
// a curated list of large-cap tickers and indices.
func NewYFinance(fetcher Fetcher, keys KeyStore, log zerolog.Logger) *DatasetAdapter {
	return newDatasetAdapter(domain.SourceYFinance, RateLimited(fetcher, 2), yfinanceDecoder{}, keys, log)
}

// yfinanceTickers is the curated ticker set.
var yfinanceTickers = []struct {
	Symbol string
	Name   string
}{
	{"AAPL", "Apple Inc."},
	{"MSFT", "Microsoft Corporation"},
	{"GOOGL", "Alphabet Inc."},
	{"AMZN", "Amazon.com, Inc."},
	{"NVDA", "NVIDIA Corporation"},
	{"META", "Meta Platforms, Inc."},
	{"TSLA", "Tesla, Inc."},
	{"BRK-B", "Berkshire Hathaway Inc."},
	{"JPM", "JPMorgan Chase & Co."},
	{"V", "Visa Inc."},
	{"XOM", "Exxon Mobil Corporation"},
	{"JNJ", "Johnson & Johnson"},
	{"^GSPC", "the S&P 500 index"},
	{"^DJI", "the Dow Jones Industrial Average"},
	{"^IXIC", "the NASDAQ Composite index"},
	{"^FTSE", "the FTSE 100 index"},
	{"^N225", "the Nikkei 225 index"},
	{"GC=F", "gold futures"},
	{"BTC-USD", "Bitcoin in US dollars"},
	{"ETH-USD", "Ethereum in US dollars"},
}

type yfinanceDecoder struct{}

func (yfinanceDecoder) templates(context.Context, Fetcher) ([]datasetTemplate, error) {
	templates := make([]datasetTemplate, 0, len(yfinanceTickers))
	for _, t := range yfinanceTickers {
		templates = append(templates, datasetTemplate{
			Key: map[string]string{"id": t.Symbol},
			URL: "https://finance.yahoo.com/quote/" + t.Symbol,
			Question: fmt.Sprintf(
				"Will the daily closing price of %s (%s) be higher at the resolution date than its closing price on the forecast due date?",
				t.Name, t.Symbol,
			),
			Background: fmt.Sprintf(
				"Yahoo Finance reports daily closing prices for %s under the symbol %s. Prices on non-trading days carry forward from the last trading day.",
				t.Name, t.Symbol,
			),
			ResolutionCriteria: "Resolves Yes if the closing price on the resolution date is strictly greater than the closing price on the forecast due date, and No otherwise.",
			Category:           "Economics & Business",
		})
	}
	return templates, nil
}

func (yfinanceDecoder) seriesPath(key map[string]string) string {
	return fmt.Sprintf("/v8/finance/chart/%s?range=10y&interval=1d", key["id"])
}

// yfinanceChart mirrors the chart API payload shape this adapter consumes.
type yfinanceChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
	} `json:"chart"`
}

func (yfinanceDecoder) decodeSeries(key map[string]string, raw []byte) ([]domain.SeriesPoint, error) {
	var payload yfinanceChart
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	if len(payload.Chart.Result) == 0 || len(payload.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("empty chart payload for %s", key["id"])
	}
	result := payload.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close
	if len(closes) != len(result.Timestamp) {
		return nil, fmt.Errorf("misaligned chart payload for %s", key["id"])
	}

	points := make([]domain.SeriesPoint, 0, len(closes))
	for i, c := range closes {
		if c == nil {
			// Halted or unquoted bar
			continue
		}
		day := domain.DayOf(time.Unix(result.Timestamp[i], 0).UTC())
		if n := len(points); n > 0 && points[n-1].Date == day {
			points[n-1].Value = domain.NumValue(*c)
			continue
		}
		points = append(points, domain.SeriesPoint{Date: day, Value: domain.NumValue(*c)})
	}
	return points, nil
}

func (yfinanceDecoder) gapValue() (domain.Value, bool) { return domain.Value{}, false }
