package bank

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecastbench/forecastbench/internal/domain"
)

func TestOverridesNullifyBoundary(t *testing.T) {
	start := domain.MustParseDay("2024-07-21")
	o, err := NewOverrides(nil, []NullifyEntry{
		{Source: domain.SourceManifold, ID: "m1", StartDate: start},
	})
	require.NoError(t, err)

	// Rounds before the start date keep the question's real outcome
	assert.False(t, o.Nullified(domain.SourceManifold, "m1", start-1))
	assert.True(t, o.Nullified(domain.SourceManifold, "m1", start))
	assert.True(t, o.Nullified(domain.SourceManifold, "m1", start+100))

	assert.False(t, o.Nullified(domain.SourceManifold, "m2", start))
	assert.False(t, o.Nullified(domain.SourcePolymarket, "m1", start))
}

func TestOverridesRemapChain(t *testing.T) {
	o, err := NewOverrides([]RemapEntry{
		{Source: domain.SourceWikipedia, OldID: "a", NewID: "b"},
		{Source: domain.SourceWikipedia, OldID: "b", NewID: "c"},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "c", o.Canonical(domain.SourceWikipedia, "a"))
	assert.Equal(t, "c", o.Canonical(domain.SourceWikipedia, "b"))
	assert.Equal(t, "c", o.Canonical(domain.SourceWikipedia, "c"))
	assert.Equal(t, "a", o.Canonical(domain.SourceFRED, "a"), "remaps are source-scoped")
}

func TestOverridesNullifyFollowsRemap(t *testing.T) {
	start := domain.MustParseDay("2024-07-21")
	o, err := NewOverrides(
		[]RemapEntry{{Source: domain.SourceWikipedia, OldID: "old", NewID: "new"}},
		[]NullifyEntry{{Source: domain.SourceWikipedia, ID: "new", StartDate: start}},
	)
	require.NoError(t, err)
	assert.True(t, o.Nullified(domain.SourceWikipedia, "old", start))
}

func TestOverridesRemapCycleRejected(t *testing.T) {
	_, err := NewOverrides([]RemapEntry{
		{Source: domain.SourceFRED, OldID: "x", NewID: "y"},
		{Source: domain.SourceFRED, OldID: "y", NewID: "x"},
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "suspected cycle")
	assert.Contains(t, err.Error(), "fred")
}

func TestOverridesRemapLongestLegalChain(t *testing.T) {
	entries := make([]RemapEntry, maxRemapHops)
	for i := range entries {
		entries[i] = RemapEntry{
			Source: domain.SourceFRED,
			OldID:  string(rune('a' + i)),
			NewID:  string(rune('a' + i + 1)),
		}
	}
	o, err := NewOverrides(entries, nil)
	require.NoError(t, err)
	assert.Equal(t, string(rune('a'+maxRemapHops)), o.Canonical(domain.SourceFRED, "a"))
}

func TestLoadOverridesMissingTables(t *testing.T) {
	ctx := context.Background()
	store := localStore(t)

	o, err := LoadOverrides(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, "id", o.Canonical(domain.SourceFRED, "id"))
	assert.False(t, o.Nullified(domain.SourceFRED, "id", domain.MustParseDay("2024-07-21")))
}

func TestLoadOverridesFromStore(t *testing.T) {
	ctx := context.Background()
	store := localStore(t)

	require.NoError(t, store.Put(ctx, "question_bank/id_remap.json",
		[]byte(`[{"source":"wikipedia","old_id":"a","new_id":"b"}]`)))
	require.NoError(t, store.Put(ctx, "question_bank/nullify.json",
		[]byte(`[{"source":"manifold","id":"m1","nullify_start_date":"2024-07-21"}]`)))

	o, err := LoadOverrides(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, "b", o.Canonical(domain.SourceWikipedia, "a"))
	assert.True(t, o.Nullified(domain.SourceManifold, "m1", domain.MustParseDay("2024-07-21")))
}
