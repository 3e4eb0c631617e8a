package fetch

import (
	"github.com/rs/zerolog"

	"github.com/forecastbench/forecastbench/internal/domain"
	"github.com/forecastbench/forecastbench/internal/sources"
)

// Credentials carries the per-source API credentials. Sources absent here
// are public APIs.
type Credentials struct {
	FREDAPIKey   string
	ACLEDAPIKey  string
	ACLEDEmail   string
	MetaculusKey string
}

// baseURLs maps each source to its upstream host.
var baseURLs = map[domain.Source]string{
	domain.SourceManifold:   "https://api.manifold.markets",
	domain.SourceMetaculus:  "https://www.metaculus.com",
	domain.SourcePolymarket: "https://clob.polymarket.com",
	domain.SourceRFI:        "https://www.randforecastinginitiative.org",
	domain.SourceFRED:       "https://api.stlouisfed.org",
	domain.SourceYFinance:   "https://query1.finance.yahoo.com",
	domain.SourceACLED:      "https://api.acleddata.com",
	domain.SourceWikipedia:  "https://en.wikipedia.org",
}

// NewFactory builds the per-source fetcher factory used to construct the
// adapter registry.
func NewFactory(creds Credentials, log zerolog.Logger) sources.FetcherFactory {
	return func(source domain.Source) sources.Fetcher {
		opts := []Option{}
		switch source {
		case domain.SourceFRED:
			opts = append(opts, WithQuery("api_key", creds.FREDAPIKey))
		case domain.SourceACLED:
			opts = append(opts,
				WithQuery("key", creds.ACLEDAPIKey),
				WithQuery("email", creds.ACLEDEmail),
			)
		case domain.SourceMetaculus:
			if creds.MetaculusKey != "" {
				opts = append(opts, WithHeader("Authorization", "Token "+creds.MetaculusKey))
			}
		}
		return New(baseURLs[source], log, opts...)
	}
}
