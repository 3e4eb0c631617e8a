// Package sources defines the source adapter contract and the per-source
// normalization and resolution rules. Fetch plumbing and category
// classification are external collaborators reached through the Fetcher
// and Classifier interfaces; everything in this package is deterministic
// given their outputs.
package sources

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/forecastbench/forecastbench/internal/domain"
)

// Fetcher is the external HTTP collaborator. Implementations own retry,
// backoff, and Retry-After handling; a returned error is persistent.
type Fetcher interface {
	// Fetch downloads the raw payload for a source-specific path.
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// Classifier assigns one of the closed category tags to a question.
// Implemented externally (an LLM classifier in production); adapters cache
// its answers in the question table.
type Classifier interface {
	Classify(ctx context.Context, question string) (string, error)
}

// Adapter is the per-source contract: three pure operations over the
// collaborators' outputs.
type Adapter interface {
	// Source returns the source this adapter serves.
	Source() domain.Source

	// Questions fetches and normalizes the source's current question
	// table into canonical records.
	Questions(ctx context.Context) ([]*domain.Question, error)

	// ResolutionSeries produces the contiguous forward-filled daily
	// series for a question, ending at yesterday UTC and starting no
	// earlier than the source epoch.
	ResolutionSeries(ctx context.Context, id string, today domain.Day) (*domain.Series, error)

	// Resolve maps (question, forecast due date, resolution date, series)
	// to a ground-truth value in [0,1] or NaN.
	Resolve(q *domain.Question, series *domain.Series, dueDate, resolutionDate domain.Day) float64
}

// Source epochs. Series start no earlier than these days; the benchmark
// never needs history from before them.
var (
	// BenchmarkStart is the first forecast due date the benchmark shipped.
	BenchmarkStart = domain.MustParseDay("2024-05-01")

	// SeriesEpoch is ~360 days before benchmark start; market and dataset
	// series are clipped here.
	SeriesEpoch = BenchmarkStart - 360

	// WikipediaEpoch reaches 4 years further back so encyclopedic-table
	// questions can be back-filled for the naive forecaster.
	WikipediaEpoch = SeriesEpoch - 4*365
)

// Epoch returns the series epoch for a source.
func Epoch(source domain.Source) domain.Day {
	if source == domain.SourceWikipedia {
		return WikipediaEpoch
	}
	return SeriesEpoch
}

// limitedFetcher caps request rate against one external host. Rate-limit
// obedience is a component-level concern: every adapter wraps its fetcher
// with the per-source limit before first use.
type limitedFetcher struct {
	fetcher Fetcher
	limiter *rate.Limiter
}

// RateLimited wraps a fetcher with a requests-per-second cap.
func RateLimited(fetcher Fetcher, rps float64) Fetcher {
	return &limitedFetcher{
		fetcher: fetcher,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Fetch waits for limiter clearance, then delegates.
func (f *limitedFetcher) Fetch(ctx context.Context, path string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return f.fetcher.Fetch(ctx, path)
}

// parseAnyTime parses the timestamp formats the upstream platforms emit.
func parseAnyTime(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
