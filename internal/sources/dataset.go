package sources

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/forecastbench/forecastbench/internal/domain"
)

// KeyStore persists the structured key dict behind each synthesized
// question id so a later run can reconstruct the question from its hash.
// The question bank's hash-mapping table implements this.
type KeyStore interface {
	Record(hash string, key map[string]string) error
	Lookup(hash string) (map[string]string, error)
}

// datasetTemplate is one synthesized question before hashing: the
// structured key dict plus the rendered question text.
type datasetTemplate struct {
	Key                map[string]string
	URL                string
	Question           string
	Background         string
	ResolutionCriteria string
	Category           string
	EventCount         *domain.EventCountParams
	Comparison         domain.ComparisonKind
}

// datasetDecoder is the source-specific part of a dataset adapter.
// Templates may be a static table (fred, yfinance, acled) or derived from
// the fetched data itself (wikipedia table rows).
type datasetDecoder interface {
	templates(ctx context.Context, fetch Fetcher) ([]datasetTemplate, error)
	seriesPath(key map[string]string) string
	decodeSeries(key map[string]string, raw []byte) ([]domain.SeriesPoint, error)

	// gapValue returns the value recorded for days the upstream published
	// nothing, when such days are meaningful observations (zero-event days
	// in an incident feed) rather than publication gaps.
	gapValue() (domain.Value, bool)
}

// DatasetAdapter implements the adapter contract for a time-series data
// source. Questions do not exist upstream; they are synthesized from
// templates over the source's series, identified by the hash of their key
// dict, and never marked resolved.
type DatasetAdapter struct {
	source  domain.Source
	fetcher Fetcher
	decoder datasetDecoder
	keys    KeyStore
	log     zerolog.Logger

	// Per-run payload cache: Questions and ResolutionSeries hit the same
	// upstream paths within one update.
	fetched map[string][]byte
}

func newDatasetAdapter(source domain.Source, fetcher Fetcher, decoder datasetDecoder, keys KeyStore, log zerolog.Logger) *DatasetAdapter {
	return &DatasetAdapter{
		source:  source,
		fetcher: fetcher,
		decoder: decoder,
		keys:    keys,
		log:     log.With().Str("component", "source_"+string(source)).Logger(),
		fetched: make(map[string][]byte),
	}
}

// Source returns the data source this adapter serves.
func (a *DatasetAdapter) Source() domain.Source { return a.source }

// Questions synthesizes the source's question records: one per template,
// with the freeze value computed from the template's own series.
func (a *DatasetAdapter) Questions(ctx context.Context) ([]*domain.Question, error) {
	templates, err := a.decoder.templates(ctx, a.fetch())
	if err != nil {
		return nil, fmt.Errorf("failed to build %s templates: %w", a.source, err)
	}

	today := domain.TodayUTC()
	questions := make([]*domain.Question, 0, len(templates))
	for _, tpl := range templates {
		id := domain.SynthesizeID(tpl.Key)
		if err := a.keys.Record(id, tpl.Key); err != nil {
			return nil, err
		}

		series, err := a.ResolutionSeries(ctx, id, today)
		if err != nil {
			return nil, err
		}

		q := &domain.Question{
			ID:                 id,
			Source:             a.source,
			URL:                tpl.URL,
			Question:           tpl.Question,
			Background:         tpl.Background,
			ResolutionCriteria: tpl.ResolutionCriteria,
			Category:           tpl.Category,
			FreezeDatetime:     time.Now().UTC(),
			ValidQuestion:      true,
			EventCount:         tpl.EventCount,
			Comparison:         tpl.Comparison,
		}
		a.setFreezeValue(q, series, today)
		if !series.Empty() {
			q.ForecastHorizons = append([]int(nil), domain.AllowedHorizons...)
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// setFreezeValue fills the freeze value and its explanation from the
// series, per question class.
func (a *DatasetAdapter) setFreezeValue(q *domain.Question, series *domain.Series, today domain.Day) {
	switch q.Class() {
	case domain.ClassEventCount:
		refSum, refDays := series.SumWindow(today-360, today-1)
		if refDays == 0 {
			q.FreezeDatetimeValue = "N/A"
			q.FreezeDatetimeValueExplanation = "No events have been recorded over the reference period yet."
			return
		}
		reference := refSum / float64(refDays) * 30
		scale, offset := 1.0, 0.0
		if q.EventCount != nil {
			if q.EventCount.Scale != 0 {
				scale = q.EventCount.Scale
			}
			offset = q.EventCount.Offset
		}
		q.FreezeDatetimeValue = strconv.FormatFloat(reference*scale+offset, 'f', -1, 64)
		q.FreezeDatetimeValueExplanation = "The comparison value: the average 30-day event count over the 360 days before the freeze datetime, scaled per the question."
	case domain.ClassEncyclopedic:
		last := series.AtOrLast(today - 1)
		if last.IsNull() {
			q.FreezeDatetimeValue = "N/A"
			q.FreezeDatetimeValueExplanation = "The record is not present in the table at the freeze datetime."
			return
		}
		q.FreezeDatetimeValue = valueString(last)
		q.FreezeDatetimeValueExplanation = "The value recorded in the table at the freeze datetime."
	default:
		last := series.AtOrLast(today - 1)
		if last.IsNull() {
			q.FreezeDatetimeValue = "N/A"
			q.FreezeDatetimeValueExplanation = "The series has not published a value yet."
			return
		}
		q.FreezeDatetimeValue = valueString(last)
		q.FreezeDatetimeValueExplanation = "The latest value of the series at the freeze datetime."
	}
}

// ResolutionSeries fetches the series behind a synthesized id, clips it to
// the source epoch, and densifies it through yesterday UTC.
func (a *DatasetAdapter) ResolutionSeries(ctx context.Context, id string, today domain.Day) (*domain.Series, error) {
	key, err := a.keys.Lookup(id)
	if err != nil {
		return nil, fmt.Errorf("unknown %s question %s: %w", a.source, id, err)
	}

	raw, err := a.fetch().Fetch(ctx, a.decoder.seriesPath(key))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s series for %s: %w", a.source, id, err)
	}
	points, err := a.decoder.decodeSeries(key, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s series for %s: %w", a.source, id, err)
	}

	epoch := Epoch(a.source)
	yesterday := today - 1
	sparse := make([]domain.SeriesPoint, 0, len(points))
	for _, p := range points {
		if p.Date < epoch || p.Date > yesterday {
			continue
		}
		p.ID = id
		sparse = append(sparse, p)
	}

	if gap, ok := a.decoder.gapValue(); ok {
		sparse = fillGaps(id, sparse, gap, yesterday)
	} else if n := len(sparse); n > 0 && sparse[n-1].Date < yesterday {
		// Carry the last published value through yesterday so the series
		// contract (last row is yesterday UTC) holds across publication lag
		sparse = append(sparse, domain.SeriesPoint{ID: id, Date: yesterday, Value: sparse[n-1].Value})
	}
	return domain.NewSeries(id, sparse)
}

// Resolve dispatches to the class resolution rule.
func (a *DatasetAdapter) Resolve(q *domain.Question, series *domain.Series, dueDate, resolutionDate domain.Day) float64 {
	switch q.Class() {
	case domain.ClassNumeric:
		return ResolveNumeric(series, dueDate, resolutionDate)
	case domain.ClassEventCount:
		return ResolveEventCount(q, series, dueDate, resolutionDate)
	case domain.ClassEncyclopedic:
		return ResolveEncyclopedic(q, series, dueDate, resolutionDate)
	default:
		return math.NaN()
	}
}

// fetch wraps the fetcher with the per-run payload cache.
func (a *DatasetAdapter) fetch() Fetcher {
	return fetcherFunc(func(ctx context.Context, path string) ([]byte, error) {
		if raw, ok := a.fetched[path]; ok {
			return raw, nil
		}
		raw, err := a.fetcher.Fetch(ctx, path)
		if err != nil {
			return nil, err
		}
		a.fetched[path] = raw
		return raw, nil
	})
}

type fetcherFunc func(ctx context.Context, path string) ([]byte, error)

func (f fetcherFunc) Fetch(ctx context.Context, path string) ([]byte, error) { return f(ctx, path) }

// fillGaps inserts the gap value for every missing day between the first
// published observation and yesterday.
func fillGaps(id string, sparse []domain.SeriesPoint, gap domain.Value, yesterday domain.Day) []domain.SeriesPoint {
	if len(sparse) == 0 {
		return sparse
	}
	out := make([]domain.SeriesPoint, 0, int(yesterday-sparse[0].Date)+1)
	next := 0
	for d := sparse[0].Date; d <= yesterday; d++ {
		if next < len(sparse) && sparse[next].Date == d {
			out = append(out, sparse[next])
			next++
			continue
		}
		out = append(out, domain.SeriesPoint{ID: id, Date: d, Value: gap})
	}
	return out
}

// sortDays orders a day slice ascending in place.
func sortDays(days []domain.Day) {
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
}

// parseFloatValue parses a decimal string into a numeric observation.
func parseFloatValue(s string) (domain.Value, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return domain.Value{}, err
	}
	return domain.NumValue(f), nil
}

// valueString renders an observation the way it is shown to forecasters.
func valueString(v domain.Value) string {
	if v.Kind == domain.ValueNumber {
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	}
	return v.Text
}
