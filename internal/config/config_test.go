package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wronai/taskguard/pkg/cerr"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Focus.MaxFilesPerTask)
	assert.Equal(t, 30, cfg.Focus.TaskTimeoutMinutes)
	assert.True(t, cfg.Focus.RequireDependencyCompletion)
	assert.Equal(t, "ollama", cfg.Inference.Provider)
	assert.Contains(t, cfg.BestPractices, "python")
	assert.Contains(t, cfg.BestPractices, "go")
}

func TestLoadLayersFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `focus:
  max_files_per_task: 7
inference:
  provider: lmstudio
  model: local-model
  base_url: http://localhost:1234
  timeout_seconds: 10
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Focus.MaxFilesPerTask)
	assert.Equal(t, "lmstudio", cfg.Inference.Provider)
	// Untouched keys keep their defaults.
	assert.Equal(t, 30, cfg.Focus.TaskTimeoutMinutes)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("focus: ["), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.Validation))
	assert.NotEmpty(t, cerr.HintOf(err))
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName),
		[]byte("inference:\n  provider: cloud\n"), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.Validation))
}

func TestWriteRoundTrips(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Focus.MaxFilesPerTask = 5
	require.NoError(t, cfg.Write(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 5, loaded.Focus.MaxFilesPerTask)
	assert.Equal(t, cfg.Inference, loaded.Inference)
}

func TestInferenceTimeout(t *testing.T) {
	cfg := InferenceConfig{TimeoutSeconds: 45}
	assert.Equal(t, "45s", cfg.Timeout().String())
}
