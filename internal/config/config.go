// Package config handles configuration loading for gantry. It supports
// XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/gantry/internal/ai"
)

// Config holds all configuration for gantry.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	AWS       AWSConfig       `mapstructure:"aws"`
	Roles     RolesConfig     `mapstructure:"roles"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Rates     RatesConfig     `mapstructure:"rates"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	Analyze   AnalyzeConfig   `mapstructure:"analyze"`
	Store     StoreConfig     `mapstructure:"store"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Debug     DebugConfig     `mapstructure:"debug"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	// UseBedrock routes Anthropic calls through AWS Bedrock instead of
	// the public API.
	UseBedrock bool `mapstructure:"use_bedrock"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	// BaseURL overrides the chat completions endpoint.
	BaseURL string `mapstructure:"base_url"`
}

// AWSConfig holds AWS settings for the Bedrock path.
type AWSConfig struct {
	Region  string `mapstructure:"region"`
	Profile string `mapstructure:"profile"`
}

// RoleConfig binds one AI role to a provider and model.
type RoleConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int64   `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// RolesConfig holds the three AI roles.
type RolesConfig struct {
	Main     RoleConfig `mapstructure:"main"`
	Research RoleConfig `mapstructure:"research"`
	Fallback RoleConfig `mapstructure:"fallback"`
}

// RetryConfig holds the AI retry policy.
type RetryConfig struct {
	MaxAttempts         int           `mapstructure:"max_attempts"`
	BaseBackoff         time.Duration `mapstructure:"base_backoff"`
	FallbackMaxAttempts int           `mapstructure:"fallback_max_attempts"`
}

// RateConfig is a per-provider request rate limit.
type RateConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// RatesConfig holds the per-provider rate limits.
type RatesConfig struct {
	Anthropic RateConfig `mapstructure:"anthropic"`
	OpenAI    RateConfig `mapstructure:"openai"`
}

// LimitsConfig holds concurrency and timeout bounds.
type LimitsConfig struct {
	// BatchWorkers bounds batch analysis and expansion concurrency.
	BatchWorkers int `mapstructure:"batch_workers"`
	// CallTimeout bounds a single provider attempt.
	CallTimeout time.Duration `mapstructure:"call_timeout"`
}

// AnalyzeConfig holds complexity analysis settings.
type AnalyzeConfig struct {
	// Threshold is the score at or above which expansion is
	// recommended.
	Threshold int `mapstructure:"threshold"`
}

// StoreConfig holds task persistence settings.
type StoreConfig struct {
	// File is the task file path relative to the project root. A .yaml
	// or .yml extension switches the codec to YAML.
	File string `mapstructure:"file"`
}

// TelemetryConfig holds AI usage recording settings.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig holds operation log settings.
type DebugConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, OPENAI_API_KEY, GANTRY_*)
// 2. Project config (.gantry.yaml in current directory or parent)
// 3. User config (~/.config/gantry/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("GANTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("openai.api_key", "OPENAI_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.OpenAI.APIKey = expandEnv(cfg.OpenAI.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.OpenAI.APIKey = expandEnv(cfg.OpenAI.APIKey)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("openai.api_key", cfg.OpenAI.APIKey)
	v.Set("openai.base_url", cfg.OpenAI.BaseURL)
	v.Set("aws.region", cfg.AWS.Region)
	v.Set("aws.profile", cfg.AWS.Profile)
	for name, rc := range map[string]RoleConfig{
		"main":     cfg.Roles.Main,
		"research": cfg.Roles.Research,
		"fallback": cfg.Roles.Fallback,
	} {
		v.Set("roles."+name+".provider", rc.Provider)
		v.Set("roles."+name+".model", rc.Model)
		v.Set("roles."+name+".max_tokens", rc.MaxTokens)
		v.Set("roles."+name+".temperature", rc.Temperature)
	}
	v.Set("retry.max_attempts", cfg.Retry.MaxAttempts)
	v.Set("retry.base_backoff", cfg.Retry.BaseBackoff.String())
	v.Set("retry.fallback_max_attempts", cfg.Retry.FallbackMaxAttempts)
	v.Set("rates.anthropic.rps", cfg.Rates.Anthropic.RPS)
	v.Set("rates.anthropic.burst", cfg.Rates.Anthropic.Burst)
	v.Set("rates.openai.rps", cfg.Rates.OpenAI.RPS)
	v.Set("rates.openai.burst", cfg.Rates.OpenAI.Burst)
	v.Set("limits.batch_workers", cfg.Limits.BatchWorkers)
	v.Set("limits.call_timeout", cfg.Limits.CallTimeout.String())
	v.Set("analyze.threshold", cfg.Analyze.Threshold)
	v.Set("store.file", cfg.Store.File)
	v.Set("telemetry.enabled", cfg.Telemetry.Enabled)
	v.Set("debug.enabled", cfg.Debug.Enabled)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if
// it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("aws.region", "")
	v.SetDefault("aws.profile", "")

	roles := DefaultRoleConfigs()
	for name, rc := range map[string]RoleConfig{
		"main":     roles.Main,
		"research": roles.Research,
		"fallback": roles.Fallback,
	} {
		v.SetDefault("roles."+name+".provider", rc.Provider)
		v.SetDefault("roles."+name+".model", rc.Model)
		v.SetDefault("roles."+name+".max_tokens", rc.MaxTokens)
		v.SetDefault("roles."+name+".temperature", rc.Temperature)
	}

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_backoff", "1s")
	v.SetDefault("retry.fallback_max_attempts", 2)

	v.SetDefault("rates.anthropic.rps", 2.0)
	v.SetDefault("rates.anthropic.burst", 4)
	v.SetDefault("rates.openai.rps", 2.0)
	v.SetDefault("rates.openai.burst", 4)

	v.SetDefault("limits.batch_workers", 3)
	v.SetDefault("limits.call_timeout", "60s")

	v.SetDefault("analyze.threshold", 5)

	v.SetDefault("store.file", filepath.Join(".gantry", "tasks.json"))
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("debug.enabled", false)
}

// getUserConfigDir returns the XDG config directory for gantry.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "gantry")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "gantry")
	}
	return filepath.Join(home, ".config", "gantry")
}

// findProjectConfig searches for .gantry.yaml in the current directory
// and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".gantry.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Roles: DefaultRoleConfigs(),
		Retry: RetryConfig{
			MaxAttempts:         3,
			BaseBackoff:         time.Second,
			FallbackMaxAttempts: 2,
		},
		Rates: RatesConfig{
			Anthropic: RateConfig{RPS: 2, Burst: 4},
			OpenAI:    RateConfig{RPS: 2, Burst: 4},
		},
		Limits: LimitsConfig{
			BatchWorkers: 3,
			CallTimeout:  60 * time.Second,
		},
		Analyze:   AnalyzeConfig{Threshold: 5},
		Store:     StoreConfig{File: filepath.Join(".gantry", "tasks.json")},
		Telemetry: TelemetryConfig{Enabled: true},
	}
}

// DefaultRoleConfigs returns the hardcoded role table, used as a
// fallback when no configuration names a role.
func DefaultRoleConfigs() RolesConfig {
	return RolesConfig{
		Main: RoleConfig{
			Provider:    ai.ProviderAnthropic,
			Model:       "claude-sonnet-4-20250514",
			MaxTokens:   4096,
			Temperature: 0.2,
		},
		Research: RoleConfig{
			Provider:    ai.ProviderOpenAI,
			Model:       "gpt-4o",
			MaxTokens:   4096,
			Temperature: 0.3,
		},
		Fallback: RoleConfig{
			Provider:    ai.ProviderAnthropic,
			Model:       "claude-3-5-haiku-20241022",
			MaxTokens:   2048,
			Temperature: 0.2,
		},
	}
}

// AIConfig translates the loaded configuration into the orchestrator's
// config. Roles missing a provider or model fall back to the defaults
// so a partial roles section never produces an unusable orchestrator.
func (c *Config) AIConfig() ai.Config {
	defaults := DefaultRoleConfigs()

	toRole := func(rc, def RoleConfig) ai.RoleConfig {
		if rc.Provider == "" {
			rc.Provider = def.Provider
		}
		if rc.Model == "" {
			rc.Model = def.Model
		}
		if rc.MaxTokens <= 0 {
			rc.MaxTokens = def.MaxTokens
		}
		if rc.Temperature == 0 {
			rc.Temperature = def.Temperature
		}
		return ai.RoleConfig{
			Provider:    rc.Provider,
			Model:       rc.Model,
			MaxTokens:   rc.MaxTokens,
			Temperature: rc.Temperature,
		}
	}

	cfg := ai.Config{
		Roles: map[ai.Role]ai.RoleConfig{
			ai.RoleMain:     toRole(c.Roles.Main, defaults.Main),
			ai.RoleResearch: toRole(c.Roles.Research, defaults.Research),
			ai.RoleFallback: toRole(c.Roles.Fallback, defaults.Fallback),
		},
		Retry: ai.RetryConfig{
			MaxAttempts:         c.Retry.MaxAttempts,
			BaseBackoff:         c.Retry.BaseBackoff,
			FallbackMaxAttempts: c.Retry.FallbackMaxAttempts,
		},
		Rates: map[string]ai.RateConfig{
			ai.ProviderAnthropic: {RPS: c.Rates.Anthropic.RPS, Burst: c.Rates.Anthropic.Burst},
			ai.ProviderOpenAI:    {RPS: c.Rates.OpenAI.RPS, Burst: c.Rates.OpenAI.Burst},
		},
		CallTimeout: c.Limits.CallTimeout,

		AnthropicAPIKey: c.Anthropic.APIKey,
		UseBedrock:      c.Anthropic.UseBedrock,
		AWSRegion:       c.AWS.Region,
		AWSProfile:      c.AWS.Profile,

		OpenAIAPIKey:  c.OpenAI.APIKey,
		OpenAIBaseURL: c.OpenAI.BaseURL,
	}

	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.BaseBackoff <= 0 {
		cfg.Retry.BaseBackoff = time.Second
	}
	if cfg.Retry.FallbackMaxAttempts < 1 {
		cfg.Retry.FallbackMaxAttempts = 2
	}
	return cfg
}
