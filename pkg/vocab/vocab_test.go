package vocab

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTerms(t *testing.T) {
	terms := DefaultTerms()

	require.NotEmpty(t, terms)

	conditions := terms.Conditions()
	assert.True(t, sort.StringsAreSorted(conditions), "conditions are sorted for stable mapping output")
	assert.Contains(t, conditions, "Cardiomegaly")
	assert.Contains(t, conditions, "No Finding")

	assert.Contains(t, terms.Keywords("Cardiomegaly"), "enlarged heart")
	assert.Nil(t, terms.Keywords("Unknown Condition"))
}

func TestDefaultTerms_CoverLabelPool(t *testing.T) {
	terms := DefaultTerms()
	for _, label := range ChexpertLabelPool {
		assert.NotNil(t, terms.Keywords(label), "label %q has no keyword entry", label)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terms.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"Zebra Condition": ["stripes"],
		"Alpha Condition": ["first sign", "early marker"]
	}`), 0o644))

	terms, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Alpha Condition", "Zebra Condition"}, terms.Conditions())
	assert.Equal(t, []string{"first sign", "early marker"}, terms.Keywords("Alpha Condition"))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/terms.json")
	require.Error(t, err)
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terms.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
