package match

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRules_PartialOverrideKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("markers:\n  - 전환사채\n"), 0o644))

	rules, err := LoadRules(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"전환사채"}, rules.Markers)
	assert.Equal(t, DefaultRules().Suffixes, rules.Suffixes)
	assert.Equal(t, DefaultRules().Leading, rules.Leading)
}

func TestLoadRules_MissingFile(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadRules_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("markers: {{"), 0o644))

	_, err := LoadRules(path)
	assert.Error(t, err)
}

func TestRules_TokensFoldedLikeInput(t *testing.T) {
	// Rule files may carry lowercase tokens; they still strip against
	// uppercased input.
	n := NewNormalizer(Rules{Suffixes: []string{"gmbh"}})
	assert.Equal(t, "SIEMENS", n.Normalize("Siemens GmbH"))
}

func TestRules_LongestTokenWins(t *testing.T) {
	n := NewNormalizer(Rules{Suffixes: []string{"CO", "CO LTD"}})
	assert.Equal(t, "ACME", n.Normalize("Acme Co Ltd"))
}
