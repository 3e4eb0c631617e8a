package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecastbench/forecastbench/internal/domain"
)

func TestKeywordClassify(t *testing.T) {
	k := NewKeyword()
	cases := []struct {
		question string
		want     string
	}{
		{"Will the incumbent president win the 2028 election?", "Politics & Governance"},
		{"Will US GDP growth exceed 3% this year?", "Economics & Business"},
		{"Will a ceasefire hold through December?", "Security & Defense"},
		{"Will global temperature set a new record?", "Environment & Energy & Climate"},
		{"Will the FDA approve the new drug?", "Healthcare & Biology"},
		{"Will SpaceX land on Mars before 2030?", "Science & Tech"},
		{"Will Magnus win the FIDE world championship?", "Sports"},
		{"Will the album top the Spotify charts?", "Arts & Recreation"},
		{"Will it rain tomorrow in an unnamed place?", domain.CategoryOther},
	}
	for _, tc := range cases {
		got, err := k.Classify(context.Background(), tc.question)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, tc.question)
	}
}

func TestKeywordClassifyReturnsValidCategories(t *testing.T) {
	for _, row := range keywordTable {
		assert.True(t, domain.ValidCategory(row.category), row.category)
	}
}
