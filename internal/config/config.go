package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ludo-technologies/astsim/internal/analyzer"
	"github.com/ludo-technologies/astsim/internal/constants"
)

// EnvPrefix prefixes environment overrides, e.g. ASTSIM_BATCH_WORKERS
const EnvPrefix = "ASTSIM"

// Config represents the main configuration structure
type Config struct {
	// Analysis holds similarity pipeline tunables
	Analysis AnalysisConfig `mapstructure:"analysis" yaml:"analysis" json:"analysis"`

	// Batch holds orchestration settings
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`

	// Storage holds the embedded store settings
	Storage StorageConfig `mapstructure:"storage" yaml:"storage" json:"storage"`

	// Server holds HTTP API settings
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Inbox holds the message drop directory settings
	Inbox InboxConfig `mapstructure:"inbox" yaml:"inbox" json:"inbox"`

	// Input controls which files are read as submissions
	Input InputConfig `mapstructure:"input" yaml:"input" json:"input"`

	// Output holds output formatting configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`
}

// AnalysisConfig holds similarity pipeline tunables
type AnalysisConfig struct {
	// CosineThreshold gates batch and per-submission comparisons
	CosineThreshold float64 `mapstructure:"cosine_threshold" yaml:"cosine_threshold" json:"cosine_threshold"`

	// CompareCosineThreshold gates on-demand pair comparisons
	CompareCosineThreshold float64 `mapstructure:"compare_cosine_threshold" yaml:"compare_cosine_threshold" json:"compare_cosine_threshold"`

	// MinSegmentLines is the minimum span of a reported segment
	MinSegmentLines int `mapstructure:"min_segment_lines" yaml:"min_segment_lines" json:"min_segment_lines"`

	// CostModel selects the edit cost model ("default" or "structural")
	CostModel string `mapstructure:"cost_model" yaml:"cost_model" json:"cost_model"`

	// MatchPasses lists the matcher passes to run, in order
	MatchPasses []string `mapstructure:"match_passes" yaml:"match_passes" json:"match_passes"`
}

// BatchConfig holds orchestration settings
type BatchConfig struct {
	// Workers is the number of "from" submissions compared concurrently
	Workers int `mapstructure:"workers" yaml:"workers" json:"workers"`

	// TaskWorkers is the number of asynchronous analyses running at once
	TaskWorkers int `mapstructure:"task_workers" yaml:"task_workers" json:"task_workers"`

	// QueueCapacity bounds pending asynchronous analyses
	QueueCapacity int `mapstructure:"queue_capacity" yaml:"queue_capacity" json:"queue_capacity"`

	// StaleAfterSeconds flags analyses without progress for this long as failed
	StaleAfterSeconds int `mapstructure:"stale_after_seconds" yaml:"stale_after_seconds" json:"stale_after_seconds"`
}

// StaleAfter returns the staleness window as a duration
func (b BatchConfig) StaleAfter() time.Duration {
	return time.Duration(b.StaleAfterSeconds) * time.Second
}

// StorageConfig holds the embedded store settings
type StorageConfig struct {
	// Path is the store directory; ignored when InMemory is set
	Path string `mapstructure:"path" yaml:"path" json:"path"`

	// InMemory keeps all data in memory
	InMemory bool `mapstructure:"in_memory" yaml:"in_memory" json:"in_memory"`

	// SyncWrites fsyncs every write
	SyncWrites bool `mapstructure:"sync_writes" yaml:"sync_writes" json:"sync_writes"`

	// GCIntervalSeconds is the value-log GC period, 0 disables it
	GCIntervalSeconds int `mapstructure:"gc_interval_seconds" yaml:"gc_interval_seconds" json:"gc_interval_seconds"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr" json:"addr"`

	// RateLimit is the sustained requests per second, 0 disables limiting
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst" yaml:"rate_burst" json:"rate_burst"`

	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds" json:"shutdown_timeout_seconds"`
}

// InboxConfig holds the message drop directory settings
type InboxConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Dir     string `mapstructure:"dir" yaml:"dir" json:"dir"`
}

// InputConfig controls which files are read as submissions
type InputConfig struct {
	IncludePatterns []string `mapstructure:"include_patterns" yaml:"include_patterns" json:"include_patterns"`
	ExcludePatterns []string `mapstructure:"exclude_patterns" yaml:"exclude_patterns" json:"exclude_patterns"`
	Recursive       bool     `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
}

// OutputConfig holds output formatting configuration
type OutputConfig struct {
	// Format is one of text, json, yaml, csv
	Format string `mapstructure:"format" yaml:"format" json:"format"`

	// ShowSegments includes per-pair segments in reports
	ShowSegments bool `mapstructure:"show_segments" yaml:"show_segments" json:"show_segments"`

	// MinScore hides report rows below this score
	MinScore float64 `mapstructure:"min_score" yaml:"min_score" json:"min_score"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			CosineThreshold:        constants.DefaultCosineThreshold,
			CompareCosineThreshold: constants.DefaultCompareCosineThreshold,
			MinSegmentLines:        constants.DefaultMinSegmentLines,
			CostModel:              analyzer.CostModelDefault,
			MatchPasses: []string{
				analyzer.PassAlignment,
				analyzer.PassDeclarations,
				analyzer.PassLoops,
				analyzer.PassConditionals,
				analyzer.PassVariables,
			},
		},
		Batch: BatchConfig{
			Workers:           constants.DefaultBatchWorkers,
			TaskWorkers:       constants.DefaultTaskWorkers,
			QueueCapacity:     constants.DefaultQueueCapacity,
			StaleAfterSeconds: int(constants.DefaultStaleAfter / time.Second),
		},
		Storage: StorageConfig{
			Path:              ".astsim/data",
			InMemory:          false,
			SyncWrites:        false,
			GCIntervalSeconds: 300,
		},
		Server: ServerConfig{
			Addr:                   ":8080",
			RateLimit:              50,
			RateBurst:              100,
			ShutdownTimeoutSeconds: 10,
		},
		Inbox: InboxConfig{
			Enabled: false,
			Dir:     ".astsim/inbox",
		},
		Input: InputConfig{
			IncludePatterns: []string{"**/*.json"},
			ExcludePatterns: []string{"**/processed/**", "**/failed/**"},
			Recursive:       true,
		},
		Output: OutputConfig{
			Format:       "text",
			ShowSegments: false,
			MinScore:     0.0,
		},
	}
}

// Validate validates the configuration values
func (c *Config) Validate() error {
	if !constants.ValidThreshold(c.Analysis.CosineThreshold) {
		return fmt.Errorf("analysis.cosine_threshold must be between 0.0 and 1.0, got %f", c.Analysis.CosineThreshold)
	}
	if !constants.ValidThreshold(c.Analysis.CompareCosineThreshold) {
		return fmt.Errorf("analysis.compare_cosine_threshold must be between 0.0 and 1.0, got %f", c.Analysis.CompareCosineThreshold)
	}
	if c.Analysis.MinSegmentLines < 1 {
		return fmt.Errorf("analysis.min_segment_lines must be >= 1, got %d", c.Analysis.MinSegmentLines)
	}
	if _, err := analyzer.NewCostModel(c.Analysis.CostModel); err != nil {
		return fmt.Errorf("analysis.cost_model: %w", err)
	}
	if len(c.Analysis.MatchPasses) == 0 {
		return fmt.Errorf("analysis.match_passes cannot be empty")
	}
	if _, unknown := analyzer.MatchPassesByName(c.Analysis.MatchPasses); len(unknown) > 0 {
		return fmt.Errorf("analysis.match_passes contains unknown passes: %s", strings.Join(unknown, ", "))
	}

	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers must be >= 1, got %d", c.Batch.Workers)
	}
	if c.Batch.TaskWorkers < 1 {
		return fmt.Errorf("batch.task_workers must be >= 1, got %d", c.Batch.TaskWorkers)
	}
	if c.Batch.QueueCapacity < 0 {
		return fmt.Errorf("batch.queue_capacity must be >= 0, got %d", c.Batch.QueueCapacity)
	}
	if c.Batch.StaleAfterSeconds < 1 {
		return fmt.Errorf("batch.stale_after_seconds must be >= 1, got %d", c.Batch.StaleAfterSeconds)
	}

	if !c.Storage.InMemory && c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required unless storage.in_memory is set")
	}
	if c.Storage.GCIntervalSeconds < 0 {
		return fmt.Errorf("storage.gc_interval_seconds must be >= 0, got %d", c.Storage.GCIntervalSeconds)
	}

	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must be >= 0, got %f", c.Server.RateLimit)
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		return fmt.Errorf("server.rate_burst must be >= 1 when rate limiting is enabled, got %d", c.Server.RateBurst)
	}

	if c.Inbox.Enabled && c.Inbox.Dir == "" {
		return fmt.Errorf("inbox.dir is required when the inbox is enabled")
	}

	if len(c.Input.IncludePatterns) == 0 {
		return fmt.Errorf("input.include_patterns cannot be empty")
	}

	validFormats := map[string]bool{
		"text": true,
		"json": true,
		"yaml": true,
		"csv":  true,
	}
	if !validFormats[c.Output.Format] {
		return fmt.Errorf("invalid output.format '%s', must be one of: text, json, yaml, csv", c.Output.Format)
	}
	if !constants.ValidThreshold(c.Output.MinScore) {
		return fmt.Errorf("output.min_score must be between 0.0 and 1.0, got %f", c.Output.MinScore)
	}

	return nil
}

// LoadConfig reads the configuration file at configPath (yaml, toml or json)
// on top of the defaults and applies ASTSIM_* environment overrides.
// An empty path yields the defaults plus environment overrides.
func LoadConfig(configPath string) (*Config, error) {
	v := newViper(DefaultConfig())

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// ApplyEnv overlays ASTSIM_* environment variables onto config
func ApplyEnv(config *Config) error {
	v := newViper(config)
	overlaid := &Config{}
	if err := v.Unmarshal(overlaid); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	*config = *overlaid
	return nil
}

// newViper returns a viper instance seeded with base as defaults and bound to the environment
func newViper(base *Config) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("analysis.cosine_threshold", base.Analysis.CosineThreshold)
	v.SetDefault("analysis.compare_cosine_threshold", base.Analysis.CompareCosineThreshold)
	v.SetDefault("analysis.min_segment_lines", base.Analysis.MinSegmentLines)
	v.SetDefault("analysis.cost_model", base.Analysis.CostModel)
	v.SetDefault("analysis.match_passes", base.Analysis.MatchPasses)

	v.SetDefault("batch.workers", base.Batch.Workers)
	v.SetDefault("batch.task_workers", base.Batch.TaskWorkers)
	v.SetDefault("batch.queue_capacity", base.Batch.QueueCapacity)
	v.SetDefault("batch.stale_after_seconds", base.Batch.StaleAfterSeconds)

	v.SetDefault("storage.path", base.Storage.Path)
	v.SetDefault("storage.in_memory", base.Storage.InMemory)
	v.SetDefault("storage.sync_writes", base.Storage.SyncWrites)
	v.SetDefault("storage.gc_interval_seconds", base.Storage.GCIntervalSeconds)

	v.SetDefault("server.addr", base.Server.Addr)
	v.SetDefault("server.rate_limit", base.Server.RateLimit)
	v.SetDefault("server.rate_burst", base.Server.RateBurst)
	v.SetDefault("server.shutdown_timeout_seconds", base.Server.ShutdownTimeoutSeconds)

	v.SetDefault("inbox.enabled", base.Inbox.Enabled)
	v.SetDefault("inbox.dir", base.Inbox.Dir)

	v.SetDefault("input.include_patterns", base.Input.IncludePatterns)
	v.SetDefault("input.exclude_patterns", base.Input.ExcludePatterns)
	v.SetDefault("input.recursive", base.Input.Recursive)

	v.SetDefault("output.format", base.Output.Format)
	v.SetDefault("output.show_segments", base.Output.ShowSegments)
	v.SetDefault("output.min_score", base.Output.MinScore)

	return v
}

// Resolve loads configuration the way the commands do: an explicit file
// through LoadConfig, otherwise the nearest .astsim.toml from startDir
// (or the defaults), followed by environment overrides
func Resolve(configPath, startDir string) (*Config, error) {
	if configPath != "" {
		return LoadConfig(configPath)
	}

	config, err := NewTomlConfigLoader().LoadConfig(startDir)
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}
