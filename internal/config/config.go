// Package config provides the benchmark configuration loaded from
// chatbench.yaml files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/microsoft/chatbench/internal/utils"
)

// Default values for benchmark configuration. These are the single
// source of truth — New() references them and no other code should
// duplicate them.
const (
	DefaultWorkers        = 2
	DefaultOutputDir      = "results/"
	DefaultScreenshotDir  = "results/screenshots/"
	DefaultProfileDir     = ".chatbench-profiles"
	DefaultMaxWaitSec     = 90
	DefaultMaxLatencySec  = 120
	DefaultMaxScreenshots = 15
	DefaultTrimFraction   = 0.10

	DefaultJudgeTimeoutSec   = 60
	DefaultJudgeConcurrency  = 4
	DefaultJudgeParseRetries = 3
	DefaultContextLimitBytes = 16384

	DefaultMinPearson   = 0.60
	DefaultMaxMAE       = 1.0
	DefaultMinAgreement = 0.70

	DefaultPromptDelayMinSec = 3
	DefaultPromptDelayMaxSec = 8
)

// TargetConfig describes one chatbot under evaluation.
type TargetConfig struct {
	ID         string         `yaml:"id"`
	Adapter    string         `yaml:"adapter"`
	URL        string         `yaml:"url,omitempty"`
	MaxWaitSec int            `yaml:"max_wait_sec,omitempty"`
	Params     map[string]any `yaml:"params,omitempty"`
}

// JudgeConfig describes one LLM judge endpoint.
type JudgeConfig struct {
	ID           string  `yaml:"id"`
	Model        string  `yaml:"model"`
	BaseURL      string  `yaml:"base_url,omitempty"`
	APIKeyEnv    string  `yaml:"api_key_env,omitempty"`
	Temperature  float64 `yaml:"temperature,omitempty"`
	TimeoutSec   int     `yaml:"timeout_sec,omitempty"`
	ParseRetries int     `yaml:"parse_retries,omitempty"`
}

// RunConfig holds orchestration settings.
type RunConfig struct {
	Workers           int    `yaml:"workers,omitempty"`
	OutputDir         string `yaml:"output_dir,omitempty"`
	ScreenshotDir     string `yaml:"screenshot_dir,omitempty"`
	MaxScreenshots    int    `yaml:"max_screenshots,omitempty"`
	PromptDelayMinSec int    `yaml:"prompt_delay_min_sec,omitempty"`
	PromptDelayMaxSec int    `yaml:"prompt_delay_max_sec,omitempty"`
}

// BrowserConfig holds stealth session settings.
type BrowserConfig struct {
	Headless   *bool  `yaml:"headless,omitempty"`
	ProfileDir string `yaml:"profile_dir,omitempty"`
}

// ScoringConfig holds aggregation settings.
type ScoringConfig struct {
	TrimFraction  float64 `yaml:"trim_fraction,omitempty"`
	MaxLatencySec float64 `yaml:"max_latency_sec,omitempty"`
}

// JudgingConfig holds judge-wide settings.
type JudgingConfig struct {
	Concurrency       int `yaml:"concurrency,omitempty"`
	ContextLimitBytes int `yaml:"context_limit_bytes,omitempty"`
}

// CalibrationConfig holds the gold-set gate thresholds.
type CalibrationConfig struct {
	GoldSetPath  string  `yaml:"gold_set,omitempty"`
	MinPearson   float64 `yaml:"min_pearson,omitempty"`
	MaxMAE       float64 `yaml:"max_mae,omitempty"`
	MinAgreement float64 `yaml:"min_agreement,omitempty"`
}

// Config is the top-level configuration loaded from chatbench.yaml.
type Config struct {
	Run         RunConfig         `yaml:"run,omitempty"`
	Browser     BrowserConfig     `yaml:"browser,omitempty"`
	Targets     []TargetConfig    `yaml:"targets"`
	Judges      []JudgeConfig     `yaml:"judges"`
	Judging     JudgingConfig     `yaml:"judging,omitempty"`
	Scoring     ScoringConfig     `yaml:"scoring,omitempty"`
	Calibration CalibrationConfig `yaml:"calibration,omitempty"`
}

// New returns a Config with all hard-coded defaults populated.
func New() *Config {
	headless := true
	return &Config{
		Run: RunConfig{
			Workers:           DefaultWorkers,
			OutputDir:         DefaultOutputDir,
			ScreenshotDir:     DefaultScreenshotDir,
			MaxScreenshots:    DefaultMaxScreenshots,
			PromptDelayMinSec: DefaultPromptDelayMinSec,
			PromptDelayMaxSec: DefaultPromptDelayMaxSec,
		},
		Browser: BrowserConfig{
			Headless:   &headless,
			ProfileDir: DefaultProfileDir,
		},
		Judging: JudgingConfig{
			Concurrency:       DefaultJudgeConcurrency,
			ContextLimitBytes: DefaultContextLimitBytes,
		},
		Scoring: ScoringConfig{
			TrimFraction:  DefaultTrimFraction,
			MaxLatencySec: DefaultMaxLatencySec,
		},
		Calibration: CalibrationConfig{
			MinPearson:   DefaultMinPearson,
			MaxMAE:       DefaultMaxMAE,
			MinAgreement: DefaultMinAgreement,
		},
	}
}

// Load reads and validates a chatbench.yaml file, filling missing
// fields with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := New()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	resolvePaths(cfg, filepath.Dir(path))
	return cfg, nil
}

// resolvePaths anchors relative directories to the config file's
// location, so a run started from another working directory still
// lands next to its chatbench.yaml.
func resolvePaths(cfg *Config, baseDir string) {
	dirs := utils.ResolvePaths([]string{
		cfg.Run.OutputDir,
		cfg.Run.ScreenshotDir,
		cfg.Browser.ProfileDir,
	}, baseDir)
	cfg.Run.OutputDir = dirs[0]
	cfg.Run.ScreenshotDir = dirs[1]
	cfg.Browser.ProfileDir = dirs[2]

	if cfg.Calibration.GoldSetPath != "" {
		cfg.Calibration.GoldSetPath = utils.ResolvePaths([]string{cfg.Calibration.GoldSetPath}, baseDir)[0]
	}
}

// applyDefaults fills zero values that yaml decoding may have cleared
// or that nested entries leave unset.
func applyDefaults(cfg *Config) {
	if cfg.Run.Workers <= 0 {
		cfg.Run.Workers = DefaultWorkers
	}
	if cfg.Run.MaxScreenshots <= 0 {
		cfg.Run.MaxScreenshots = DefaultMaxScreenshots
	}
	if cfg.Judging.Concurrency <= 0 {
		cfg.Judging.Concurrency = DefaultJudgeConcurrency
	}
	if cfg.Judging.ContextLimitBytes <= 0 {
		cfg.Judging.ContextLimitBytes = DefaultContextLimitBytes
	}
	if cfg.Scoring.TrimFraction <= 0 {
		cfg.Scoring.TrimFraction = DefaultTrimFraction
	}
	if cfg.Scoring.MaxLatencySec <= 0 {
		cfg.Scoring.MaxLatencySec = DefaultMaxLatencySec
	}

	for i := range cfg.Targets {
		if cfg.Targets[i].MaxWaitSec <= 0 {
			cfg.Targets[i].MaxWaitSec = DefaultMaxWaitSec
		}
	}
	for i := range cfg.Judges {
		if cfg.Judges[i].TimeoutSec <= 0 {
			cfg.Judges[i].TimeoutSec = DefaultJudgeTimeoutSec
		}
		if cfg.Judges[i].ParseRetries <= 0 {
			cfg.Judges[i].ParseRetries = DefaultJudgeParseRetries
		}
	}
}

// Validate checks structural invariants of the configuration.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("config: at least one target is required")
	}

	seen := make(map[string]bool, len(c.Targets))
	for i, t := range c.Targets {
		if t.ID == "" {
			return fmt.Errorf("config: target %d: missing id", i)
		}
		if seen[t.ID] {
			return fmt.Errorf("config: duplicate target id %q", t.ID)
		}
		seen[t.ID] = true
		if t.Adapter == "" {
			return fmt.Errorf("config: target %q: missing adapter", t.ID)
		}
	}

	judgeIDs := make(map[string]bool, len(c.Judges))
	for i, j := range c.Judges {
		if j.ID == "" {
			return fmt.Errorf("config: judge %d: missing id", i)
		}
		if judgeIDs[j.ID] {
			return fmt.Errorf("config: duplicate judge id %q", j.ID)
		}
		judgeIDs[j.ID] = true
		if j.Model == "" {
			return fmt.Errorf("config: judge %q: missing model", j.ID)
		}
	}

	if c.Run.PromptDelayMaxSec < c.Run.PromptDelayMinSec {
		return fmt.Errorf("config: prompt_delay_max_sec must be >= prompt_delay_min_sec")
	}
	if c.Scoring.TrimFraction < 0 || c.Scoring.TrimFraction >= 0.5 {
		return fmt.Errorf("config: trim_fraction must be in [0, 0.5), got %v", c.Scoring.TrimFraction)
	}
	return nil
}

// MaxWait returns the wait budget for a target as a duration.
func (t *TargetConfig) MaxWait() time.Duration {
	return time.Duration(t.MaxWaitSec) * time.Second
}

// Timeout returns the per-call judge deadline as a duration.
func (j *JudgeConfig) Timeout() time.Duration {
	return time.Duration(j.TimeoutSec) * time.Second
}

// APIKey resolves the judge's API key from its configured environment
// variable. Empty when unset, which the client treats as anonymous.
func (j *JudgeConfig) APIKey() string {
	if j.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(j.APIKeyEnv)
}
