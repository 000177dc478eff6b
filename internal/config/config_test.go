package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Validates(t *testing.T) {
	config := DefaultConfig()
	require.NoError(t, config.Validate())

	assert.Equal(t, 0.8, config.Analysis.CosineThreshold)
	assert.Equal(t, 2, config.Analysis.MinSegmentLines)
	assert.Equal(t, 300.0, config.Batch.StaleAfter().Seconds())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "threshold above one", mutate: func(c *Config) { c.Analysis.CosineThreshold = 1.5 }, wantErr: "analysis.cosine_threshold"},
		{name: "negative compare threshold", mutate: func(c *Config) { c.Analysis.CompareCosineThreshold = -0.1 }, wantErr: "compare_cosine_threshold"},
		{name: "zero min lines", mutate: func(c *Config) { c.Analysis.MinSegmentLines = 0 }, wantErr: "min_segment_lines"},
		{name: "unknown cost model", mutate: func(c *Config) { c.Analysis.CostModel = "levenshtein" }, wantErr: "cost_model"},
		{name: "no passes", mutate: func(c *Config) { c.Analysis.MatchPasses = nil }, wantErr: "match_passes"},
		{name: "unknown pass", mutate: func(c *Config) { c.Analysis.MatchPasses = []string{"alignment", "lambdas"} }, wantErr: "lambdas"},
		{name: "zero workers", mutate: func(c *Config) { c.Batch.Workers = 0 }, wantErr: "batch.workers"},
		{name: "negative queue", mutate: func(c *Config) { c.Batch.QueueCapacity = -1 }, wantErr: "queue_capacity"},
		{name: "zero staleness", mutate: func(c *Config) { c.Batch.StaleAfterSeconds = 0 }, wantErr: "stale_after_seconds"},
		{name: "missing store path", mutate: func(c *Config) { c.Storage.Path = "" }, wantErr: "storage.path"},
		{name: "rate limit without burst", mutate: func(c *Config) { c.Server.RateBurst = 0 }, wantErr: "rate_burst"},
		{name: "inbox without dir", mutate: func(c *Config) { c.Inbox.Enabled = true; c.Inbox.Dir = "" }, wantErr: "inbox.dir"},
		{name: "no include patterns", mutate: func(c *Config) { c.Input.IncludePatterns = nil }, wantErr: "include_patterns"},
		{name: "bad format", mutate: func(c *Config) { c.Output.Format = "xml" }, wantErr: "output.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Validate_InMemoryNeedsNoPath(t *testing.T) {
	config := DefaultConfig()
	config.Storage.Path = ""
	config.Storage.InMemory = true
	assert.NoError(t, config.Validate())
}

func TestLoadConfig_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "astsim.yaml")
	content := `analysis:
  cosine_threshold: 0.7
batch:
  workers: 2
output:
  format: yaml
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.7, config.Analysis.CosineThreshold)
	assert.Equal(t, 2, config.Batch.Workers)
	assert.Equal(t, "yaml", config.Output.Format)
	assert.Equal(t, 2, config.Analysis.MinSegmentLines, "unset keys fall back to defaults")
	assert.Len(t, config.Analysis.MatchPasses, 5)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("ASTSIM_BATCH_WORKERS", "6")
	t.Setenv("ASTSIM_ANALYSIS_MIN_SEGMENT_LINES", "3")

	config, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 6, config.Batch.Workers)
	assert.Equal(t, 3, config.Analysis.MinSegmentLines)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "astsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batch:\n  workers: 0\n"), 0644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("[batch]\nworkers = 5\n"), 0644))
	t.Setenv("ASTSIM_OUTPUT_FORMAT", "csv")

	config, err := Resolve("", dir)
	require.NoError(t, err)
	assert.Equal(t, 5, config.Batch.Workers, "from .astsim.toml")
	assert.Equal(t, "csv", config.Output.Format, "from environment")
}
