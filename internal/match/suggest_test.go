package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuggester_NearestRanksCloseNamesFirst(t *testing.T) {
	norm := testNormalizer()
	sugg, err := NewSuggester([]string{"Hyundai Motor Company", "Kia Corporation", "Posco Holdings"}, norm)
	require.NoError(t, err)
	defer sugg.Close() //nolint:errcheck

	got, err := sugg.Nearest("Hyundai Motors", 3)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "Hyundai Motor Company", got[0].Name)
	assert.Greater(t, got[0].Score, 0.0)
}

func TestSuggester_ExactNormalizedHitOutranksPartial(t *testing.T) {
	norm := testNormalizer()
	sugg, err := NewSuggester([]string{"Posco", "Posco Future M"}, norm)
	require.NoError(t, err)
	defer sugg.Close() //nolint:errcheck

	got, err := sugg.Nearest("POSCO Holdings Inc.", 2)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "Posco", got[0].Name)
}

func TestSuggester_NoCandidates(t *testing.T) {
	sugg, err := NewSuggester([]string{"Kia Corporation"}, testNormalizer())
	require.NoError(t, err)
	defer sugg.Close() //nolint:errcheck

	got, err := sugg.Nearest("삼성전자", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}
