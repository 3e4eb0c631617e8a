package sources

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecastbench/forecastbench/internal/domain"
)

type stubFetcher struct{}

func (stubFetcher) Fetch(ctx context.Context, path string) ([]byte, error) { return nil, nil }

type stubClassifier struct{}

func (stubClassifier) Classify(ctx context.Context, question string) (string, error) {
	return domain.CategoryOther, nil
}

type stubKeys struct{}

func (stubKeys) Record(hash string, key map[string]string) error { return nil }
func (stubKeys) Lookup(hash string) (map[string]string, error)   { return nil, nil }

func testRegistry() *Registry {
	return NewRegistry(
		func(domain.Source) Fetcher { return stubFetcher{} },
		stubClassifier{},
		func(domain.Source) KeyStore { return stubKeys{} },
		zerolog.Nop(),
	)
}

func TestRegistryCoversAllSources(t *testing.T) {
	r := testRegistry()
	all := r.All()
	require.Len(t, all, len(domain.AllSources()))
	for i, s := range domain.AllSources() {
		assert.Equal(t, s, all[i].Source())
	}
}

func TestRegistryAdapterFoldsAliases(t *testing.T) {
	r := testRegistry()

	a, err := r.Adapter(domain.Source("infer"))
	require.NoError(t, err)
	assert.Equal(t, domain.SourceRFI, a.Source())

	_, err = r.Adapter(domain.Source("astral"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source")
}
