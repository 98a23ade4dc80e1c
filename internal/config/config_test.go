package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValidWithInput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Input = "data.csv"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing input", func(c *Config) { c.Input = "" }},
		{"bad format", func(c *Config) { c.Output.Format = "parquet" }},
		{"bad storage type", func(c *Config) { c.Storage.Type = "gcs" }},
		{"s3 without bucket", func(c *Config) { c.Storage.Type = "s3" }},
		{"zero n_bins", func(c *Config) { c.Aggregation.NBins = 0 }},
		{"negative nd_max_bins", func(c *Config) { c.Aggregation.NDMaxBins = -1 }},
		{"negative min_rows", func(c *Config) { c.Aggregation.MinRows = -1 }},
		{"bad precision", func(c *Config) { c.Aggregation.Precision = 16 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Input = "data.csv"
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromFile_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
input: events.csv
output:
  dir: ./results
  format: sqlite
aggregation:
  n_bins: 100
  seed: 42
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "events.csv", cfg.Input)
	assert.Equal(t, "sqlite", cfg.Output.Format)
	assert.Equal(t, 100, cfg.Aggregation.NBins)
	assert.Equal(t, uint32(42), cfg.Aggregation.Seed)

	// Untouched fields keep their defaults.
	assert.Equal(t, 50, cfg.Aggregation.NXBins)
}

func TestLoadFromFile_JSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{"input": "t.csv", "aggregation": {"precision": 32}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "t.csv", cfg.Input)
	assert.Equal(t, 32, cfg.Aggregation.Precision)
}

func TestLoadFromFile_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("EPITOME_INPUT", "env.csv")
	t.Setenv("EPITOME_ND_MAX_BINS", "123")
	t.Setenv("EPITOME_SEED", "7")
	t.Setenv("EPITOME_STORAGE_TYPE", "s3")
	t.Setenv("EPITOME_S3_BUCKET", "my-bucket")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)
	assert.Equal(t, "env.csv", cfg.Input)
	assert.Equal(t, 123, cfg.Aggregation.NDMaxBins)
	assert.Equal(t, uint32(7), cfg.Aggregation.Seed)
	assert.Equal(t, "s3", cfg.Storage.Type)
	assert.Equal(t, "my-bucket", cfg.Storage.S3.Bucket)
	assert.NoError(t, cfg.Validate())
}

func TestEnsureOutputDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.Dir = filepath.Join(t.TempDir(), "nested", "out")
	require.NoError(t, cfg.EnsureOutputDir())
	info, err := os.Stat(cfg.Output.Dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// s3:// outputs need no local directory.
	cfg.Output.Dir = "s3://bucket/prefix"
	assert.NoError(t, cfg.EnsureOutputDir())
}
