package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validYAML = `
ai:
  api_key: test-key
  model: gemini-2.0-flash
dataset:
  crop_path: /data/crop.csv
  rainfall_path: /data/rain.csv
  soil_path: /data/soil.csv
sandbox:
  timeout: 2s
  max_groups: 100
`

func TestLoadFromYAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "test-key", cfg.AI.APIKey)
	assert.Equal(t, "/data/crop.csv", cfg.Dataset.CropPath)
	assert.Equal(t, 2*time.Second, cfg.Sandbox.Timeout)
	assert.Equal(t, 100, cfg.Sandbox.MaxGroups)

	// Defaults fill the rest.
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 2, cfg.Orchestrator.MaxRetries)
	assert.Equal(t, 50, cfg.Sandbox.MaxRows)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("SAMARTH_AI_API_KEY", "env-key")
	t.Setenv("SAMARTH_SERVER_ADDR", ":9090")

	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.AI.APIKey)
	assert.Equal(t, ":9090", cfg.Server.Addr)
}

func TestLoadFailsWithoutAPIKey(t *testing.T) {
	yaml := `
dataset:
  crop_path: /data/crop.csv
  rainfall_path: /data/rain.csv
  soil_path: /data/soil.csv
`
	_, err := Load(writeConfig(t, yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
}

func TestLoadFailsWithoutDatasetPaths(t *testing.T) {
	yaml := `
ai:
  api_key: test-key
dataset:
  crop_path: /data/crop.csv
`
	_, err := Load(writeConfig(t, yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dataset")
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	require.Error(t, err)
}
