// Package classify implements the category classifier behind the source
// adapters. Production runs delegate to an external classification
// service (an LLM behind a thin HTTP API); without one configured, a
// deterministic keyword table stands in so TEST runs need no network.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/forecastbench/forecastbench/internal/domain"
	"github.com/forecastbench/forecastbench/internal/fetch"
)

// Service calls the external classification endpoint. The response is
// {"category": "<tag>"}; anything outside the closed tag set is an error
// so a drifting classifier cannot pollute the question table.
type Service struct {
	client *fetch.Client
	log    zerolog.Logger
}

// NewService creates a classifier against the service base URL.
func NewService(baseURL string, log zerolog.Logger) *Service {
	return &Service{
		client: fetch.New(baseURL, log),
		log:    log.With().Str("component", "classifier").Logger(),
	}
}

// Classify asks the service for the question's category tag.
func (s *Service) Classify(ctx context.Context, question string) (string, error) {
	path := "/classify?question=" + url.QueryEscape(question)
	raw, err := s.client.Fetch(ctx, path)
	if err != nil {
		return "", fmt.Errorf("classification request failed: %w", err)
	}
	var resp struct {
		Category string `json:"category"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("malformed classification response: %w", err)
	}
	if !domain.ValidCategory(resp.Category) {
		return "", fmt.Errorf("classifier returned unknown category %q", resp.Category)
	}
	return resp.Category, nil
}

// Keyword is the offline fallback: first keyword hit wins, anything
// unmatched lands in the catch-all category.
type Keyword struct{}

// NewKeyword creates the keyword classifier.
func NewKeyword() *Keyword { return &Keyword{} }

// keywordTable maps lowercase substrings to categories. Order matters:
// earlier rows win.
var keywordTable = []struct {
	keywords []string
	category string
}{
	{[]string{"election", "president", "senate", "parliament", "minister", "government", "congress", "vote"}, "Politics & Governance"},
	{[]string{"gdp", "inflation", "unemployment", "interest rate", "stock", "price", "market cap", "revenue", "company", "s&p", "nasdaq"}, "Economics & Business"},
	{[]string{"war", "military", "conflict", "invasion", "missile", "ceasefire", "troops", "nato"}, "Security & Defense"},
	{[]string{"climate", "temperature", "emissions", "hurricane", "wildfire", "energy", "carbon"}, "Environment & Energy & Climate"},
	{[]string{"vaccine", "disease", "virus", "fda", "drug", "cancer", "pandemic", "life expectancy"}, "Healthcare & Biology"},
	{[]string{"ai ", "artificial intelligence", "spacex", "rocket", "satellite", "quantum", "software", "chip", "model"}, "Science & Tech"},
	{[]string{"olympic", "world cup", "championship", "nba", "nfl", "chess", "tournament", "fide"}, "Sports"},
	{[]string{"film", "album", "spotify", "oscar", "grammy", "box office", "streaming", "artist"}, "Arts & Recreation"},
}

// Classify maps the question text to a category by keyword.
func (k *Keyword) Classify(_ context.Context, question string) (string, error) {
	lower := strings.ToLower(question)
	for _, row := range keywordTable {
		for _, kw := range row.keywords {
			if strings.Contains(lower, kw) {
				return row.category, nil
			}
		}
	}
	return domain.CategoryOther, nil
}
