// Package config holds all FormPilot configuration.
// Configuration is loaded from a YAML file, then overridden by environment
// variables, then by CLI flags. It is constructed once at startup and passed
// immutably into the orchestrator.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigurationError reports an unusable configuration (missing credentials
// or endpoint). It is the only error class that aborts a run before any
// record is processed.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Config holds all FormPilot configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Target form
	Target TargetConfig `yaml:"target"`

	// LLM text-generation collaborator
	LLM LLMConfig `yaml:"llm"`

	// Browser automation
	Browser BrowserConfig `yaml:"browser"`

	// Batch run behavior
	Run RunConfig `yaml:"run"`

	// Content shaping limits
	Shape ShapeConfig `yaml:"shape"`
}

// TargetConfig identifies the target website and the run cache location.
type TargetConfig struct {
	// URL of the activity submission site.
	URL string `yaml:"url"`
	// CacheFile persists dropdown options and generated text between runs.
	// Empty disables persistence (caches stay in-memory for the run).
	CacheFile string `yaml:"cache_file"`
}

// LLMConfig configures the text-generation collaborator.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai, azure, anthropic, gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"` // Azure endpoint or custom gateway
	Timeout  string `yaml:"timeout"`
}

// BrowserConfig configures the browser session.
type BrowserConfig struct {
	Headless            bool   `yaml:"headless"`
	DebuggerURL         string `yaml:"debugger_url"`
	NavigationTimeoutMs int    `yaml:"navigation_timeout_ms"`
	ActionTimeoutMs     int    `yaml:"action_timeout_ms"`
}

// RunConfig configures batch processing behavior.
type RunConfig struct {
	// Mode is "sequential" (one record through submission at a time) or
	// "batched" (normalize/shape a window of records, then submit them).
	Mode      string `yaml:"mode"`
	BatchSize int    `yaml:"batch_size"`
	// Interactive pauses to show planned field entries per record.
	Interactive bool `yaml:"interactive"`
	// ConfirmBeforeSave pauses between fill-complete and submit.
	ConfirmBeforeSave bool `yaml:"confirm_before_save"`
	// FastMode shortens inter-action delays and lowers retry counts.
	FastMode bool `yaml:"fast_mode"`
	// CustomRules is free text appended to the generation prompts.
	CustomRules string `yaml:"custom_rules"`
}

// ShapeConfig holds the platform character limits enforced by the shaper.
type ShapeConfig struct {
	// FieldLimit is the form's visible character counter for long text fields.
	FieldLimit int `yaml:"field_limit"`
	// RewriteTarget is the length requested when a field exceeds FieldLimit.
	RewriteTarget int `yaml:"rewrite_target"`
	// PrivateMaxLen caps a synthesized private description.
	PrivateMaxLen int `yaml:"private_max_len"`
}

// DefaultConfig returns a Config with documented defaults.
func DefaultConfig() Config {
	return Config{
		Name:    "FormPilot",
		Version: "1.0.0",
		Target: TargetConfig{
			URL:       "https://aka.ms/community-activities",
			CacheFile: ".formpilot_cache.json",
		},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o",
			Timeout:  "60s",
		},
		Browser: BrowserConfig{
			Headless:            false,
			NavigationTimeoutMs: 30000,
			ActionTimeoutMs:     10000,
		},
		Run: RunConfig{
			Mode:              "sequential",
			BatchSize:         5,
			Interactive:       false,
			ConfirmBeforeSave: false,
			FastMode:          false,
		},
		Shape: ShapeConfig{
			FieldLimit:    1000,
			RewriteTarget: 850,
			PrivateMaxLen: 400,
		},
	}
}

// LLMTimeout parses the configured LLM timeout, defaulting to 60s.
func (c *Config) LLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// Load reads config from path (if it exists), applies env overrides, and
// returns the result. A missing file is not an error: defaults + env apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	return &cfg, nil
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// applyEnvOverrides layers environment variables over file values.
// Provider-specific API key variables are tried in provider order so a user
// with only AZURE_OPENAI_API_KEY set gets the original behavior.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FORMPILOT_WEBSITE_URL"); v != "" {
		c.Target.URL = v
	}
	if v := os.Getenv("FORMPILOT_CACHE_FILE"); v != "" {
		c.Target.CacheFile = v
	}
	if v := os.Getenv("FORMPILOT_FAST_MODE"); v != "" {
		c.Run.FastMode = isTruthy(v)
	}
	if v := os.Getenv("FORMPILOT_PROVIDER"); v != "" {
		c.LLM.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("FORMPILOT_MODEL"); v != "" {
		c.LLM.Model = v
	}

	if c.LLM.APIKey == "" {
		for _, name := range apiKeyEnvVars(c.LLM.Provider) {
			if v := os.Getenv(name); v != "" {
				c.LLM.APIKey = v
				break
			}
		}
	}
	if c.LLM.BaseURL == "" {
		if v := os.Getenv("AZURE_OPENAI_ENDPOINT"); v != "" {
			c.LLM.BaseURL = v
		}
	}
	if v := os.Getenv("AZURE_DEPLOYMENT"); v != "" && c.LLM.Provider == "azure" {
		c.LLM.Model = v
	}
}

func apiKeyEnvVars(provider string) []string {
	switch provider {
	case "azure":
		return []string{"AZURE_OPENAI_API_KEY", "FORMPILOT_API_KEY"}
	case "anthropic":
		return []string{"ANTHROPIC_API_KEY", "FORMPILOT_API_KEY"}
	case "gemini":
		return []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "FORMPILOT_API_KEY"}
	default:
		return []string{"OPENAI_API_KEY", "AZURE_OPENAI_API_KEY", "FORMPILOT_API_KEY"}
	}
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Validate checks that the configuration can drive a run. Violations are
// ConfigurationErrors: the run must abort before any record is processed.
func (c *Config) Validate() error {
	if c.Target.URL == "" {
		return &ConfigurationError{Field: "target.url", Reason: "target website URL is required"}
	}
	if c.LLM.APIKey == "" {
		return &ConfigurationError{
			Field:  "llm.api_key",
			Reason: fmt.Sprintf("no API key configured for provider %q (set %s)", c.LLM.Provider, apiKeyEnvVars(c.LLM.Provider)[0]),
		}
	}
	switch c.LLM.Provider {
	case "openai", "azure", "anthropic", "gemini":
	default:
		return &ConfigurationError{Field: "llm.provider", Reason: fmt.Sprintf("unknown provider %q", c.LLM.Provider)}
	}
	if c.LLM.Provider == "azure" && c.LLM.BaseURL == "" {
		return &ConfigurationError{Field: "llm.base_url", Reason: "Azure endpoint is required (set AZURE_OPENAI_ENDPOINT)"}
	}
	switch c.Run.Mode {
	case "sequential", "batched":
	default:
		return &ConfigurationError{Field: "run.mode", Reason: fmt.Sprintf("mode must be sequential or batched, got %q", c.Run.Mode)}
	}
	if c.Run.BatchSize < 1 {
		return &ConfigurationError{Field: "run.batch_size", Reason: "batch size must be at least 1"}
	}
	if c.Shape.RewriteTarget > c.Shape.FieldLimit {
		return &ConfigurationError{Field: "shape.rewrite_target", Reason: "rewrite target cannot exceed the field limit"}
	}
	return nil
}
