package sources

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/forecastbench/forecastbench/internal/domain"
)

// marketRecord is the platform-independent form of a listed market that
// every market decoder normalizes into.
type marketRecord struct {
	ID                 string
	URL                string
	Question           string
	Background         string
	ResolutionCriteria string
	Open               *time.Time
	Close              *time.Time
	Resolution         *time.Time
	Resolved           bool
	// Probability is the current community probability; NaN when the
	// platform has none yet.
	Probability float64
}

// probPoint is one day of a market's probability history.
type probPoint struct {
	Date  domain.Day
	Value float64 // NaN for annulled/ambiguous markets from that day on
}

// marketDecoder is the platform-specific part of a market adapter: paths
// on the platform API and payload decoding.
type marketDecoder interface {
	questionsPath() string
	seriesPath(id string) string
	decodeQuestions(raw []byte) ([]marketRecord, error)
	decodeSeries(raw []byte) ([]probPoint, error)
}

// MarketAdapter implements the adapter contract for a prediction-market
// platform. The question and its community probability exist externally;
// normalization is mostly a field mapping plus category assignment.
type MarketAdapter struct {
	source     domain.Source
	fetcher    Fetcher
	classifier Classifier
	decoder    marketDecoder
	log        zerolog.Logger
}

func newMarketAdapter(source domain.Source, fetcher Fetcher, classifier Classifier, decoder marketDecoder, log zerolog.Logger) *MarketAdapter {
	return &MarketAdapter{
		source:     source,
		fetcher:    fetcher,
		classifier: classifier,
		decoder:    decoder,
		log:        log.With().Str("component", "source_"+string(source)).Logger(),
	}
}

// Source returns the platform this adapter serves.
func (a *MarketAdapter) Source() domain.Source { return a.source }

// Questions fetches the platform's listed markets and normalizes them
// into canonical records.
func (a *MarketAdapter) Questions(ctx context.Context) ([]*domain.Question, error) {
	raw, err := a.fetcher.Fetch(ctx, a.decoder.questionsPath())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s markets: %w", a.source, err)
	}
	records, err := a.decoder.decodeQuestions(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s markets: %w", a.source, err)
	}

	questions := make([]*domain.Question, 0, len(records))
	for _, rec := range records {
		q, err := a.normalize(ctx, rec)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// normalize maps a platform record to the canonical question form.
func (a *MarketAdapter) normalize(ctx context.Context, rec marketRecord) (*domain.Question, error) {
	category, err := a.classifier.Classify(ctx, rec.Question)
	if err != nil {
		return nil, fmt.Errorf("failed to classify %s/%s: %w", a.source, rec.ID, err)
	}
	if !domain.ValidCategory(category) {
		category = domain.CategoryOther
	}

	freezeValue := "N/A"
	explanation := "The market is not yet trading."
	if !math.IsNaN(rec.Probability) {
		freezeValue = strconv.FormatFloat(rec.Probability, 'f', -1, 64)
		explanation = "The community prediction at the freeze datetime."
	}

	return &domain.Question{
		ID:                             rec.ID,
		Source:                         a.source,
		URL:                            rec.URL,
		Question:                       rec.Question,
		Background:                     rec.Background,
		ResolutionCriteria:             rec.ResolutionCriteria,
		Category:                       category,
		FreezeDatetime:                 time.Now().UTC(),
		FreezeDatetimeValue:            freezeValue,
		FreezeDatetimeValueExplanation: explanation,
		MarketInfoOpenDatetime:         rec.Open,
		MarketInfoCloseDatetime:        rec.Close,
		MarketInfoResolutionDatetime:   rec.Resolution,
		Resolved:                       rec.Resolved,
		ValidQuestion:                  true,
	}, nil
}

// ResolutionSeries fetches the market's probability history, clips it to
// the source epoch, and densifies it through yesterday UTC. A resolved
// market's final row carries the resolved-to value on the resolution
// date.
func (a *MarketAdapter) ResolutionSeries(ctx context.Context, id string, today domain.Day) (*domain.Series, error) {
	raw, err := a.fetcher.Fetch(ctx, a.decoder.seriesPath(id))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s history for %s: %w", a.source, id, err)
	}
	points, err := a.decoder.decodeSeries(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s history for %s: %w", a.source, id, err)
	}

	epoch := Epoch(a.source)
	yesterday := today - 1
	sparse := make([]domain.SeriesPoint, 0, len(points))
	for _, p := range points {
		if p.Date < epoch || p.Date > yesterday {
			continue
		}
		sparse = append(sparse, domain.SeriesPoint{ID: id, Date: p.Date, Value: domain.NumValue(p.Value)})
	}
	series, err := domain.NewSeries(id, sparse)
	if err != nil {
		return nil, err
	}

	// An open market trades every day the platform is up; extend the last
	// observation through yesterday so the series contract (last row is
	// yesterday UTC) holds between trades.
	if !series.Empty() && series.End() < yesterday {
		points := series.Points()
		last := points[len(points)-1].Value
		for d := series.End() + 1; d <= yesterday; d++ {
			points = append(points, domain.SeriesPoint{ID: id, Date: d, Value: last})
		}
		return domain.NewSeries(id, points)
	}
	return series, nil
}

// Resolve applies the market resolution rule: the series value at the
// resolution date, with the final outcome carried forward past close.
func (a *MarketAdapter) Resolve(_ *domain.Question, series *domain.Series, _, resolutionDate domain.Day) float64 {
	return ResolveMarket(series, resolutionDate)
}
