package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/forecastbench/forecastbench/internal/domain"
	"github.com/forecastbench/forecastbench/internal/objstore"
)

// SeriesStore reads and writes per-question resolution series. The durable
// form is question_bank/<source>/<id>.jsonl in the object store; a msgpack
// sidecar cache under cacheDir skips re-downloading and re-parsing series
// that are already complete through yesterday.
type SeriesStore struct {
	store    objstore.Store
	cacheDir string
	log      zerolog.Logger
}

// NewSeriesStore creates a series store. cacheDir may be empty to disable
// the local cache (tests).
func NewSeriesStore(store objstore.Store, cacheDir string, log zerolog.Logger) *SeriesStore {
	return &SeriesStore{
		store:    store,
		cacheDir: cacheDir,
		log:      log.With().Str("component", "series_store").Logger(),
	}
}

// cachedSeries is the msgpack cache record.
type cachedSeries struct {
	ID     string        `msgpack:"id"`
	Start  int           `msgpack:"start"`
	Values []cachedValue `msgpack:"values"`
}

type cachedValue struct {
	Kind int     `msgpack:"k"`
	Num  float64 `msgpack:"n"`
	Text string  `msgpack:"t"`
}

// Get loads a question's series. A missing object returns an empty series:
// that is legal only for freshly added unresolved questions, and callers
// enforcing freshness use Series.Stale.
func (s *SeriesStore) Get(ctx context.Context, source domain.Source, id string, today domain.Day) (*domain.Series, error) {
	// Series are append-only by day, so a cache entry complete through
	// yesterday is current by construction.
	if cached := s.loadCache(source, id); cached != nil && !cached.Stale(today) {
		return cached, nil
	}

	data, err := s.store.Get(ctx, objstore.SeriesKey(source, id))
	if errors.Is(err, objstore.ErrNotFound) {
		return &domain.Series{ID: id}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch series %s/%s: %w", source, id, err)
	}

	series, err := decodeJSONL(id, data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode series %s/%s: %w", source, id, err)
	}

	s.saveCache(source, series)
	return series, nil
}

// Put replaces a question's series wholesale and refreshes the cache.
func (s *SeriesStore) Put(ctx context.Context, source domain.Source, series *domain.Series) error {
	data, err := encodeJSONL(series)
	if err != nil {
		return fmt.Errorf("failed to encode series %s/%s: %w", source, series.ID, err)
	}
	if err := s.store.Put(ctx, objstore.SeriesKey(source, series.ID), data); err != nil {
		return fmt.Errorf("failed to store series %s/%s: %w", source, series.ID, err)
	}
	s.saveCache(source, series)
	return nil
}

// decodeJSONL parses one SeriesPoint per line and builds the dense series.
func decodeJSONL(id string, data []byte) (*domain.Series, error) {
	var points []domain.SeriesPoint
	for i, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var p domain.SeriesPoint
		if err := json.Unmarshal(line, &p); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		points = append(points, p)
	}
	return domain.NewSeries(id, points)
}

// encodeJSONL renders the dense series back to one JSON line per day.
func encodeJSONL(series *domain.Series) ([]byte, error) {
	var buf bytes.Buffer
	for _, p := range series.Points() {
		line, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func (s *SeriesStore) cachePath(source domain.Source, id string) string {
	return filepath.Join(s.cacheDir, string(source), id+".msgpack")
}

func (s *SeriesStore) loadCache(source domain.Source, id string) *domain.Series {
	if s.cacheDir == "" {
		return nil
	}
	data, err := os.ReadFile(s.cachePath(source, id))
	if err != nil {
		return nil
	}
	var cached cachedSeries
	if err := msgpack.Unmarshal(data, &cached); err != nil {
		s.log.Debug().Str("id", id).Err(err).Msg("Discarding corrupt series cache entry")
		return nil
	}
	values := make([]domain.Value, len(cached.Values))
	for i, v := range cached.Values {
		values[i] = domain.Value{Kind: domain.ValueKind(v.Kind), Num: v.Num, Text: v.Text}
	}
	return &domain.Series{ID: cached.ID, Start: domain.Day(cached.Start), Values: values}
}

func (s *SeriesStore) saveCache(source domain.Source, series *domain.Series) {
	if s.cacheDir == "" || series.Empty() {
		return
	}
	values := make([]cachedValue, len(series.Values))
	for i, v := range series.Values {
		values[i] = cachedValue{Kind: int(v.Kind), Num: v.Num, Text: v.Text}
	}
	data, err := msgpack.Marshal(cachedSeries{
		ID:     series.ID,
		Start:  int(series.Start),
		Values: values,
	})
	if err != nil {
		s.log.Debug().Str("id", series.ID).Err(err).Msg("Failed to encode series cache entry")
		return
	}
	path := s.cachePath(source, series.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return
	}
	// Cache writes are best-effort; the object store remains authoritative
	_ = os.WriteFile(path, data, 0644)
}
