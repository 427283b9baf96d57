// SPDX-License-Identifier: Apache-2.0

// Package config loads toe-assessor settings from YAML, the environment and
// an optional .env file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/gemaraproj/toe-assessor/internal/assessment"
	"github.com/gemaraproj/toe-assessor/internal/evidence"
	"github.com/gemaraproj/toe-assessor/internal/evidence/decoders"
	"github.com/gemaraproj/toe-assessor/internal/generation"
	"github.com/gemaraproj/toe-assessor/internal/workbook"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = "toe-assessor.yaml"

// Config holds all toe-assessor configuration.
type Config struct {
	Paths    PathsConfig    `yaml:"paths" json:"paths"`
	Evidence EvidenceConfig `yaml:"evidence" json:"evidence"`
	LLM      LLMConfig      `yaml:"llm" json:"llm"`
	GRC      GRCConfig      `yaml:"grc" json:"grc"`
	Jira     JiraConfig     `yaml:"jira" json:"jira"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
	History  HistoryConfig  `yaml:"history" json:"history"`
	Publish  PublishConfig  `yaml:"publish" json:"publish"`
}

// PathsConfig locates the input workbook, the output report and the evidence tree.
type PathsConfig struct {
	Input        string `yaml:"input" json:"input"`
	Output       string `yaml:"output" json:"output,omitempty"` // defaults to <input stem>_TOE_EvidenceAnalysis.xlsx
	EvidenceRoot string `yaml:"evidence_root" json:"evidence_root"`
}

// EvidenceConfig bounds the evidence corpus.
type EvidenceConfig struct {
	MaxFileChars          int   `yaml:"max_file_chars" json:"max_file_chars"`
	MaxTotalChars         int   `yaml:"max_total_chars" json:"max_total_chars"`
	MinUsefulChars        int   `yaml:"min_useful_chars" json:"min_useful_chars"`
	LargeSpreadsheetBytes int64 `yaml:"large_spreadsheet_bytes" json:"large_spreadsheet_bytes"`
}

// LLMConfig configures the generation backend and its retry policy.
type LLMConfig struct {
	Provider    string  `yaml:"provider" json:"provider"` // openai, gemini
	Model       string  `yaml:"model" json:"model"`
	BaseURL     string  `yaml:"base_url" json:"base_url,omitempty"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
	Timeout     string  `yaml:"timeout" json:"timeout"`
	MaxRetries  int     `yaml:"max_retries" json:"max_retries"`
	RetryBase   string  `yaml:"retry_base" json:"retry_base"`
	RetryMax    string  `yaml:"retry_max" json:"retry_max"`

	APIKey string `yaml:"-" json:"-"`
}

// GRCConfig configures the SAP GRC collaborator.
type GRCConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	BaseURL string `yaml:"base_url" json:"base_url,omitempty"`
	Timeout string `yaml:"timeout" json:"timeout"`

	Username string `yaml:"-" json:"-"`
	Password string `yaml:"-" json:"-"`
}

// JiraConfig configures the Jira collaborator.
type JiraConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	BaseURL    string `yaml:"base_url" json:"base_url,omitempty"`
	MaxResults int    `yaml:"max_results" json:"max_results"`
	Timeout    string `yaml:"timeout" json:"timeout"`

	Username string `yaml:"-" json:"-"`
	Token    string `yaml:"-" json:"-"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format      string `yaml:"format" json:"format"` // console, json
	Output      string `yaml:"output" json:"output"` // stdout, stderr
	File        string `yaml:"file" json:"file,omitempty"`
	Development bool   `yaml:"development" json:"development"`
}

// HistoryConfig configures the SQLite run ledger.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// PublishConfig configures where finished reports are copied.
type PublishConfig struct {
	Type     string `yaml:"type" json:"type"` // "", local, s3
	Dir      string `yaml:"dir" json:"dir,omitempty"`
	Bucket   string `yaml:"bucket" json:"bucket,omitempty"`
	Prefix   string `yaml:"prefix" json:"prefix,omitempty"`
	Region   string `yaml:"region" json:"region,omitempty"`
	Endpoint string `yaml:"endpoint" json:"endpoint,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Input:        "sample_controls.xlsx",
			EvidenceRoot: "Evidence",
		},
		Evidence: EvidenceConfig{
			MaxFileChars:          15000,
			MaxTotalChars:         160000,
			MinUsefulChars:        100,
			LargeSpreadsheetBytes: decoders.DefaultLargeSpreadsheetBytes,
		},
		LLM: LLMConfig{
			Provider:    generation.ProviderOpenAI,
			Model:       "gpt-4o",
			BaseURL:     "https://api.openai.com/v1",
			MaxTokens:   2048,
			Temperature: 0.7,
			Timeout:     "120s",
			MaxRetries:  5,
			RetryBase:   "1s",
			RetryMax:    "60s",
		},
		GRC: GRCConfig{
			Timeout: "30s",
		},
		Jira: JiraConfig{
			MaxResults: 10,
			Timeout:    "30s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
			File:   "toe_evidence_analysis.log",
		},
		History: HistoryConfig{
			Path: "toe_history.db",
		},
	}
}

// Load reads the YAML file at path over the defaults. A missing file yields
// the defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TOE_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("TOE_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("TOE_EVIDENCE_ROOT"); v != "" {
		c.Paths.EvidenceRoot = v
	}
}

// OutputPath returns the configured report path or the one derived from the input.
func (c *Config) OutputPath() string {
	if c.Paths.Output != "" {
		return c.Paths.Output
	}
	return workbook.DefaultOutputPath(c.Paths.Input)
}

// EvidenceLimits returns the corpus budget.
func (c *Config) EvidenceLimits() evidence.Limits {
	return evidence.Limits{
		MaxFileChars:   c.Evidence.MaxFileChars,
		MaxTotalChars:  c.Evidence.MaxTotalChars,
		MinUsefulChars: c.Evidence.MinUsefulChars,
	}
}

// GenerationPolicy returns the retry and timeout policy for the generation client.
func (c *Config) GenerationPolicy() generation.Policy {
	def := generation.DefaultPolicy()
	return generation.Policy{
		MaxAttempts: c.LLM.MaxRetries,
		BaseDelay:   parseDuration(c.LLM.RetryBase, def.BaseDelay),
		MaxDelay:    parseDuration(c.LLM.RetryMax, def.MaxDelay),
		CallTimeout: parseDuration(c.LLM.Timeout, def.CallTimeout),
	}
}

// Backend returns the generation backend settings.
func (c *Config) Backend() generation.BackendConfig {
	return generation.BackendConfig{
		Provider: c.LLM.Provider,
		APIKey:   c.LLM.APIKey,
		BaseURL:  c.LLM.BaseURL,
		Model:    c.LLM.Model,
	}
}

// AnalyzerSettings returns the per-request generation limits.
func (c *Config) AnalyzerSettings() assessment.Settings {
	return assessment.Settings{
		MaxTokens:     c.LLM.MaxTokens,
		Temperature:   c.LLM.Temperature,
		MaxTotalChars: c.Evidence.MaxTotalChars,
	}
}

// GRCTimeout returns the per-request GRC timeout.
func (c *Config) GRCTimeout() time.Duration {
	return parseDuration(c.GRC.Timeout, 30*time.Second)
}

// JiraTimeout returns the per-request Jira timeout.
func (c *Config) JiraTimeout() time.Duration {
	return parseDuration(c.Jira.Timeout, 30*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return fallback
}
