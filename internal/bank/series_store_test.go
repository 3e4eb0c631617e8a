package bank

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecastbench/forecastbench/internal/domain"
	"github.com/forecastbench/forecastbench/internal/objstore"
)

func TestSeriesStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := localStore(t)
	ss := NewSeriesStore(store, t.TempDir(), zerolog.Nop())

	series := mustSeries(t, "q1", []domain.SeriesPoint{
		{ID: "q1", Date: day("2024-06-01"), Value: domain.NumValue(0.4)},
		{ID: "q1", Date: day("2024-06-02"), Value: domain.NullValue()},
		{ID: "q1", Date: day("2024-06-04"), Value: domain.TextValue("open")},
	})
	require.NoError(t, ss.Put(ctx, domain.SourceManifold, series))

	got, err := ss.Get(ctx, domain.SourceManifold, "q1", day("2024-06-05"))
	require.NoError(t, err)
	assert.Equal(t, domain.NumValue(0.4), got.At(day("2024-06-01")))
	assert.True(t, got.At(day("2024-06-02")).IsNull())
	assert.True(t, got.At(day("2024-06-03")).IsNull())
	assert.Equal(t, domain.TextValue("open"), got.At(day("2024-06-04")))
}

func TestSeriesStoreMissingReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	ss := NewSeriesStore(localStore(t), "", zerolog.Nop())

	got, err := ss.Get(ctx, domain.SourceFRED, "brand-new", day("2024-06-05"))
	require.NoError(t, err)
	assert.True(t, got.Empty())
	assert.Equal(t, "brand-new", got.ID)
}

func TestSeriesStoreCacheHit(t *testing.T) {
	ctx := context.Background()
	store := localStore(t)
	ss := NewSeriesStore(store, t.TempDir(), zerolog.Nop())

	today := day("2024-06-03")
	series := mustSeries(t, "q1", []domain.SeriesPoint{
		{ID: "q1", Date: day("2024-06-01"), Value: domain.NumValue(0.4)},
		{ID: "q1", Date: today - 1, Value: domain.NumValue(0.6)},
	})
	require.NoError(t, ss.Put(ctx, domain.SourcePolymarket, series))

	// Remove the durable copy; a fresh cache entry must still satisfy the
	// read because the series is complete through yesterday.
	require.NoError(t, store.Put(ctx, objstore.SeriesKey(domain.SourcePolymarket, "q1"), nil))

	got, err := ss.Get(ctx, domain.SourcePolymarket, "q1", today)
	require.NoError(t, err)
	assert.Equal(t, domain.NumValue(0.6), got.At(today-1))
}

func TestSeriesStoreStaleCacheRefetches(t *testing.T) {
	ctx := context.Background()
	store := localStore(t)
	ss := NewSeriesStore(store, t.TempDir(), zerolog.Nop())

	series := mustSeries(t, "q1", []domain.SeriesPoint{
		{ID: "q1", Date: day("2024-06-01"), Value: domain.NumValue(0.4)},
	})
	require.NoError(t, ss.Put(ctx, domain.SourceManifold, series))

	// Days later the cache entry is stale; the store copy (updated by
	// another process) is authoritative.
	updated := mustSeries(t, "q1", []domain.SeriesPoint{
		{ID: "q1", Date: day("2024-06-01"), Value: domain.NumValue(0.4)},
		{ID: "q1", Date: day("2024-06-09"), Value: domain.NumValue(0.7)},
	})
	data, err := encodeJSONL(updated)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, objstore.SeriesKey(domain.SourceManifold, "q1"), data))

	got, err := ss.Get(ctx, domain.SourceManifold, "q1", day("2024-06-10"))
	require.NoError(t, err)
	assert.Equal(t, domain.NumValue(0.7), got.At(day("2024-06-09")))
}

func TestDecodeJSONLRejectsGarbage(t *testing.T) {
	_, err := decodeJSONL("q1", []byte("not json\n"))
	assert.Error(t, err)
}
