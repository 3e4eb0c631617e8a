package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/forecastbench/forecastbench/internal/domain"
)

// NewWikipedia creates the Wikipedia adapter. Questions are synthesized
// per table row: will the recorded value for an entity change, in the
// direction the page's comparison kind asks about, between the forecast
// due date and the resolution date. The fetcher fronts a table-extraction
// service that turns a page revision into structured rows.
func NewWikipedia(fetcher Fetcher, keys KeyStore, log zerolog.Logger) *DatasetAdapter {
	return newDatasetAdapter(domain.SourceWikipedia, RateLimited(fetcher, 2), wikipediaDecoder{}, keys, log)
}

// wikipediaPages is the curated page set: which table, what each row's
// value means, and how resolution compares the two snapshots.
var wikipediaPages = []struct {
	Page       string
	ValueNoun  string
	Comparison domain.ComparisonKind
	Category   string
	Phrase     string
}{
	{
		Page:       "List_of_countries_by_life_expectancy",
		ValueNoun:  "life expectancy at birth",
		Comparison: domain.CompareSameOrMore,
		Category:   "Healthcare & Biology",
		Phrase:     "be the same or higher",
	},
	{
		Page:       "List_of_countries_by_GDP_(nominal)",
		ValueNoun:  "nominal GDP",
		Comparison: domain.CompareOnePercentMore,
		Category:   "Economics & Business",
		Phrase:     "be more than 1% higher",
	},
	{
		Page:       "FIDE_rankings",
		ValueNoun:  "FIDE rating",
		Comparison: domain.CompareMore,
		Category:   "Sports",
		Phrase:     "be strictly higher",
	},
	{
		Page:       "List_of_current_heads_of_state_and_government",
		ValueNoun:  "head of government",
		Comparison: domain.CompareSame,
		Category:   "Politics & Governance",
		Phrase:     "be unchanged",
	},
	{
		Page:       "List_of_most-streamed_artists_on_Spotify",
		ValueNoun:  "monthly listener count in millions",
		Comparison: domain.CompareSameOrLess,
		Category:   "Arts & Recreation",
		Phrase:     "be the same or lower",
	},
}

type wikipediaDecoder struct{}

// wikipediaTable is the extraction-service payload: the current table
// rows of one page revision.
type wikipediaTable struct {
	Rows []struct {
		Entity string       `json:"entity"`
		Value  domain.Value `json:"value"`
	} `json:"rows"`
}

// templates derives one question per current table row. A row that later
// disappears keeps its recorded question and resolves NaN.
func (d wikipediaDecoder) templates(ctx context.Context, fetch Fetcher) ([]datasetTemplate, error) {
	var templates []datasetTemplate
	for _, page := range wikipediaPages {
		raw, err := fetch.Fetch(ctx, d.pagePath(page.Page))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch wikipedia table %s: %w", page.Page, err)
		}
		var table wikipediaTable
		if err := json.Unmarshal(raw, &table); err != nil {
			return nil, fmt.Errorf("failed to decode wikipedia table %s: %w", page.Page, err)
		}

		for _, row := range table.Rows {
			templates = append(templates, datasetTemplate{
				Key: map[string]string{"page": page.Page, "entity": row.Entity},
				URL: "https://en.wikipedia.org/wiki/" + page.Page,
				Question: fmt.Sprintf(
					"According to Wikipedia, will the %s of %s %s at the resolution date compared with the forecast due date?",
					page.ValueNoun, row.Entity, page.Phrase,
				),
				Background: fmt.Sprintf(
					"The Wikipedia page %q records the %s of %s. Snapshots of the page are taken daily.",
					page.Page, page.ValueNoun, row.Entity,
				),
				ResolutionCriteria: fmt.Sprintf(
					"Resolves Yes if the value recorded at the resolution date %ss the value recorded on the forecast due date under the question's comparison, and No otherwise. Resolves N/A if the record is absent at either date.",
					page.Phrase,
				),
				Category:   page.Category,
				Comparison: page.Comparison,
			})
		}
	}
	return templates, nil
}

func (d wikipediaDecoder) seriesPath(key map[string]string) string {
	return d.pagePath(key["page"])
}

// decodeSeries extracts the single current observation for the keyed
// entity, dated yesterday UTC. The question bank accumulates these daily
// snapshots into the full series; a row absent from today's table yields
// an explicit null.
func (wikipediaDecoder) decodeSeries(key map[string]string, raw []byte) ([]domain.SeriesPoint, error) {
	var table wikipediaTable
	if err := json.Unmarshal(raw, &table); err != nil {
		return nil, err
	}
	value := domain.NullValue()
	for _, row := range table.Rows {
		if row.Entity == key["entity"] {
			value = row.Value
			break
		}
	}
	return []domain.SeriesPoint{{Date: domain.YesterdayUTC(), Value: value}}, nil
}

func (wikipediaDecoder) gapValue() (domain.Value, bool) { return domain.Value{}, false }

func (wikipediaDecoder) pagePath(page string) string {
	return "/tables/" + url.PathEscape(page)
}
