package sanity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const referenceJSON = `{
	"MobileNet-V2": {
		"Inference time": {"GeForce RTX 4090": 4.1, "GeForce RTX 3090": null},
		"Training time": {"GeForce RTX 4090": 20.5}
	}
}`

const referenceYAML = `
MobileNet-V2:
  Inference time:
    GeForce RTX 4090: 4.1
  Training time:
    GeForce RTX 4090: 20.5
`

func TestParseReferenceJSONAndYAML(t *testing.T) {
	t.Parallel()

	for name, doc := range map[string]string{"json": referenceJSON, "yaml": referenceYAML} {
		ref, err := ParseReference([]byte(doc))
		require.NoError(t, err, name)
		target, ok := ref["MobileNet-V2"]
		require.True(t, ok, name)
		require.NotNil(t, target.Inference["GeForce RTX 4090"], name)
		assert.Equal(t, 4.1, *target.Inference["GeForce RTX 4090"], name)
		assert.Equal(t, 20.5, *target.Training["GeForce RTX 4090"], name)
	}

	ref, err := ParseReference([]byte(referenceJSON))
	require.NoError(t, err)
	v, ok := ref["MobileNet-V2"].Inference["GeForce RTX 3090"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestLoadObserved(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gpu_benchmark_results.json")
	doc := `{"DL": {"MobileNet-V2": {"Inference time": 4.3, "Training time": 21}, "VGG-16": {}}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	observed, err := LoadObserved(path)
	require.NoError(t, err)
	require.Len(t, observed, 2)
	assert.Equal(t, 4.3, *observed["MobileNet-V2"].Inference)
	assert.Nil(t, observed["VGG-16"].Inference)

	_, err = ParseObserved([]byte(`{"other": {}}`))
	assert.Error(t, err)
	_, err = LoadReference(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
