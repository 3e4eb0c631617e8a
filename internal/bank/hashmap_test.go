package bank

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecastbench/forecastbench/internal/domain"
	"github.com/forecastbench/forecastbench/internal/objstore"
)

func TestHashMappingRecordLookup(t *testing.T) {
	repo := testRepo(t)
	m := repo.NewHashMapping(domain.SourceFRED)

	key := map[string]string{"series": "UNRATE", "template": "base"}
	hash := domain.SynthesizeID(key)
	require.NoError(t, m.Record(hash, key))

	got, err := m.Lookup(hash)
	require.NoError(t, err)
	assert.Equal(t, key, got)

	// Re-recording is idempotent
	require.NoError(t, m.Record(hash, key))

	_, err = m.Lookup("deadbeef")
	assert.Error(t, err)
}

func TestHashMappingSourceScoped(t *testing.T) {
	repo := testRepo(t)
	fred := repo.NewHashMapping(domain.SourceFRED)
	acled := repo.NewHashMapping(domain.SourceACLED)

	require.NoError(t, fred.Record("h1", map[string]string{"series": "CPIAUCSL"}))
	_, err := acled.Lookup("h1")
	assert.Error(t, err)
}

func TestHashMappingPublish(t *testing.T) {
	ctx := context.Background()
	repo := testRepo(t)
	store := localStore(t)
	m := repo.NewHashMapping(domain.SourceACLED)

	require.NoError(t, m.Record("h1", map[string]string{"country": "Yemen", "template": "battles"}))
	require.NoError(t, m.Record("h2", map[string]string{"country": "Mali", "template": "battles"}))
	require.NoError(t, m.Publish(ctx, store))

	data, err := store.Get(ctx, objstore.HashMappingKey(domain.SourceACLED))
	require.NoError(t, err)
	var table map[string]map[string]string
	require.NoError(t, json.Unmarshal(data, &table))
	assert.Len(t, table, 2)
	assert.Equal(t, "Yemen", table["h1"]["country"])

	loaded, err := LoadPublishedHashMapping(ctx, store, domain.SourceACLED)
	require.NoError(t, err)
	assert.Equal(t, table, loaded)
}

func TestLoadPublishedHashMappingMissing(t *testing.T) {
	store := localStore(t)
	table, err := LoadPublishedHashMapping(context.Background(), store, domain.SourceWikipedia)
	require.NoError(t, err)
	assert.Empty(t, table)
}
