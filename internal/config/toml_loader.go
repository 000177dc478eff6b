package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// ConfigFileName is the project configuration file discovered by walking up directories
const ConfigFileName = ".astsim.toml"

// AstsimTomlConfig represents the structure of .astsim.toml.
// Pointer fields distinguish "unset" from zero values.
type AstsimTomlConfig struct {
	Analysis TomlAnalysisConfig `toml:"analysis"`
	Batch    TomlBatchConfig    `toml:"batch"`
	Storage  TomlStorageConfig  `toml:"storage"`
	Server   TomlServerConfig   `toml:"server"`
	Inbox    TomlInboxConfig    `toml:"inbox"`
	Input    TomlInputConfig    `toml:"input"`
	Output   TomlOutputConfig   `toml:"output"`
}

// TomlAnalysisConfig represents the [analysis] section
type TomlAnalysisConfig struct {
	CosineThreshold        *float64 `toml:"cosine_threshold"`
	CompareCosineThreshold *float64 `toml:"compare_cosine_threshold"`
	MinSegmentLines        *int     `toml:"min_segment_lines"`
	CostModel              string   `toml:"cost_model"`
	MatchPasses            []string `toml:"match_passes"`
}

// TomlBatchConfig represents the [batch] section
type TomlBatchConfig struct {
	Workers           *int `toml:"workers"`
	TaskWorkers       *int `toml:"task_workers"`
	QueueCapacity     *int `toml:"queue_capacity"`
	StaleAfterSeconds *int `toml:"stale_after_seconds"`
}

// TomlStorageConfig represents the [storage] section
type TomlStorageConfig struct {
	Path              string `toml:"path"`
	InMemory          *bool  `toml:"in_memory"`
	SyncWrites        *bool  `toml:"sync_writes"`
	GCIntervalSeconds *int   `toml:"gc_interval_seconds"`
}

// TomlServerConfig represents the [server] section
type TomlServerConfig struct {
	Addr                   string   `toml:"addr"`
	RateLimit              *float64 `toml:"rate_limit"`
	RateBurst              *int     `toml:"rate_burst"`
	ShutdownTimeoutSeconds *int     `toml:"shutdown_timeout_seconds"`
}

// TomlInboxConfig represents the [inbox] section
type TomlInboxConfig struct {
	Enabled *bool  `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// TomlInputConfig represents the [input] section
type TomlInputConfig struct {
	IncludePatterns []string `toml:"include_patterns"`
	ExcludePatterns []string `toml:"exclude_patterns"`
	Recursive       *bool    `toml:"recursive"`
}

// TomlOutputConfig represents the [output] section
type TomlOutputConfig struct {
	Format       string   `toml:"format"`
	ShowSegments *bool    `toml:"show_segments"`
	MinScore     *float64 `toml:"min_score"`
}

// TomlConfigLoader handles loading configuration from .astsim.toml
type TomlConfigLoader struct{}

// NewTomlConfigLoader creates a new TOML configuration loader
func NewTomlConfigLoader() *TomlConfigLoader {
	return &TomlConfigLoader{}
}

// LoadConfig finds the nearest .astsim.toml at or above startDir and merges it
// over the defaults. Without a config file the defaults are returned.
func (l *TomlConfigLoader) LoadConfig(startDir string) (*Config, error) {
	config := DefaultConfig()

	configPath, err := l.FindConfig(startDir)
	if err != nil {
		return config, nil
	}

	if err := l.LoadFile(configPath, config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFile decodes a TOML file and merges it into config
func (l *TomlConfigLoader) LoadFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var tomlConfig AstsimTomlConfig
	if err := toml.Unmarshal(data, &tomlConfig); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	l.merge(config, &tomlConfig)
	return nil
}

// FindConfig walks up from startDir looking for .astsim.toml
func (l *TomlConfigLoader) FindConfig(startDir string) (string, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("no %s found", ConfigFileName)
}

func (l *TomlConfigLoader) merge(config *Config, t *AstsimTomlConfig) {
	setFloat(&config.Analysis.CosineThreshold, t.Analysis.CosineThreshold)
	setFloat(&config.Analysis.CompareCosineThreshold, t.Analysis.CompareCosineThreshold)
	setInt(&config.Analysis.MinSegmentLines, t.Analysis.MinSegmentLines)
	setString(&config.Analysis.CostModel, t.Analysis.CostModel)
	if len(t.Analysis.MatchPasses) > 0 {
		config.Analysis.MatchPasses = t.Analysis.MatchPasses
	}

	setInt(&config.Batch.Workers, t.Batch.Workers)
	setInt(&config.Batch.TaskWorkers, t.Batch.TaskWorkers)
	setInt(&config.Batch.QueueCapacity, t.Batch.QueueCapacity)
	setInt(&config.Batch.StaleAfterSeconds, t.Batch.StaleAfterSeconds)

	setString(&config.Storage.Path, t.Storage.Path)
	setBool(&config.Storage.InMemory, t.Storage.InMemory)
	setBool(&config.Storage.SyncWrites, t.Storage.SyncWrites)
	setInt(&config.Storage.GCIntervalSeconds, t.Storage.GCIntervalSeconds)

	setString(&config.Server.Addr, t.Server.Addr)
	setFloat(&config.Server.RateLimit, t.Server.RateLimit)
	setInt(&config.Server.RateBurst, t.Server.RateBurst)
	setInt(&config.Server.ShutdownTimeoutSeconds, t.Server.ShutdownTimeoutSeconds)

	setBool(&config.Inbox.Enabled, t.Inbox.Enabled)
	setString(&config.Inbox.Dir, t.Inbox.Dir)

	if len(t.Input.IncludePatterns) > 0 {
		config.Input.IncludePatterns = t.Input.IncludePatterns
	}
	if t.Input.ExcludePatterns != nil {
		config.Input.ExcludePatterns = t.Input.ExcludePatterns
	}
	setBool(&config.Input.Recursive, t.Input.Recursive)

	setString(&config.Output.Format, t.Output.Format)
	setBool(&config.Output.ShowSegments, t.Output.ShowSegments)
	setFloat(&config.Output.MinScore, t.Output.MinScore)
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

// DefaultTomlTemplate is the commented configuration written by "astsim init"
const DefaultTomlTemplate = `# astsim configuration
# Values shown are the defaults.

[analysis]
# Label-histogram cosine similarity a pair must reach before the exact
# tree edit distance runs. Pairs below it score 0.
cosine_threshold = 0.8
# Same gate for on-demand "compare" requests.
compare_cosine_threshold = 0.8
# Shortest segment, in lines, worth reporting. Declarations are always kept.
min_segment_lines = 2
# Edit cost model: "default" or "structural".
cost_model = "default"
# Matcher passes, in order.
match_passes = ["alignment", "declarations", "loops", "conditionals", "variables"]

[batch]
workers = 10
task_workers = 4
queue_capacity = 50
# Analyses without progress for this long are reported as failed.
stale_after_seconds = 300

[storage]
path = ".astsim/data"
in_memory = false
sync_writes = false
gc_interval_seconds = 300

[server]
addr = ":8080"
rate_limit = 50.0
rate_burst = 100
shutdown_timeout_seconds = 10

[inbox]
enabled = false
dir = ".astsim/inbox"

[input]
include_patterns = ["**/*.json"]
exclude_patterns = ["**/processed/**", "**/failed/**"]
recursive = true

[output]
format = "text"
show_segments = false
min_score = 0.0
`

// WriteTemplate writes DefaultTomlTemplate to path, refusing to overwrite unless force is set
func WriteTemplate(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(DefaultTomlTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
