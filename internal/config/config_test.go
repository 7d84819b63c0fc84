package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/gantry/internal/ai"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Roles.Main.Provider != ai.ProviderAnthropic {
		t.Errorf("expected main provider anthropic, got %q", cfg.Roles.Main.Provider)
	}

	if cfg.Roles.Research.Provider != ai.ProviderOpenAI {
		t.Errorf("expected research provider openai, got %q", cfg.Roles.Research.Provider)
	}

	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("expected retry max_attempts 3, got %d", cfg.Retry.MaxAttempts)
	}

	if cfg.Retry.BaseBackoff != time.Second {
		t.Errorf("expected base backoff 1s, got %v", cfg.Retry.BaseBackoff)
	}

	if cfg.Limits.BatchWorkers != 3 {
		t.Errorf("expected batch_workers 3, got %d", cfg.Limits.BatchWorkers)
	}

	if cfg.Analyze.Threshold != 5 {
		t.Errorf("expected analyze threshold 5, got %d", cfg.Analyze.Threshold)
	}

	if cfg.Store.File != filepath.Join(".gantry", "tasks.json") {
		t.Errorf("unexpected store file %q", cfg.Store.File)
	}

	if !cfg.Telemetry.Enabled {
		t.Error("expected telemetry enabled by default")
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
anthropic:
  api_key: test-key
openai:
  api_key: other-key
  base_url: http://localhost:9999/v1
roles:
  main:
    model: claude-opus-4-20250514
    max_tokens: 8192
retry:
  max_attempts: 5
  base_backoff: 2s
limits:
  batch_workers: 6
  call_timeout: 90s
analyze:
  threshold: 7
store:
  file: .gantry/tasks.yaml
telemetry:
  enabled: false
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Anthropic.APIKey != "test-key" {
		t.Errorf("expected api_key 'test-key', got %q", cfg.Anthropic.APIKey)
	}

	if cfg.OpenAI.BaseURL != "http://localhost:9999/v1" {
		t.Errorf("unexpected openai base_url %q", cfg.OpenAI.BaseURL)
	}

	if cfg.Roles.Main.Model != "claude-opus-4-20250514" {
		t.Errorf("expected overridden main model, got %q", cfg.Roles.Main.Model)
	}

	if cfg.Roles.Main.MaxTokens != 8192 {
		t.Errorf("expected main max_tokens 8192, got %d", cfg.Roles.Main.MaxTokens)
	}

	// Roles the file does not mention keep their defaults.
	if cfg.Roles.Research.Model != "gpt-4o" {
		t.Errorf("expected default research model, got %q", cfg.Roles.Research.Model)
	}

	if cfg.Retry.MaxAttempts != 5 {
		t.Errorf("expected max_attempts 5, got %d", cfg.Retry.MaxAttempts)
	}

	if cfg.Retry.BaseBackoff != 2*time.Second {
		t.Errorf("expected base backoff 2s, got %v", cfg.Retry.BaseBackoff)
	}

	if cfg.Limits.BatchWorkers != 6 {
		t.Errorf("expected batch_workers 6, got %d", cfg.Limits.BatchWorkers)
	}

	if cfg.Limits.CallTimeout != 90*time.Second {
		t.Errorf("expected call_timeout 90s, got %v", cfg.Limits.CallTimeout)
	}

	if cfg.Analyze.Threshold != 7 {
		t.Errorf("expected threshold 7, got %d", cfg.Analyze.Threshold)
	}

	if cfg.Store.File != ".gantry/tasks.yaml" {
		t.Errorf("unexpected store file %q", cfg.Store.File)
	}

	if cfg.Telemetry.Enabled {
		t.Error("expected telemetry disabled")
	}
}

func TestExpandEnv(t *testing.T) {
	os.Setenv("TEST_VAR", "expanded-value")
	defer os.Unsetenv("TEST_VAR")

	result := expandEnv("${TEST_VAR}")
	if result != "expanded-value" {
		t.Errorf("expected 'expanded-value', got %q", result)
	}

	result = expandEnv("prefix-${TEST_VAR}-suffix")
	if result != "prefix-expanded-value-suffix" {
		t.Errorf("expected 'prefix-expanded-value-suffix', got %q", result)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	os.Setenv("XDG_CONFIG_HOME", "/custom/config")
	defer os.Unsetenv("XDG_CONFIG_HOME")

	dir := getUserConfigDir()
	expected := "/custom/config/gantry"
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
}

func TestAIConfigTranslation(t *testing.T) {
	cfg := Default()
	cfg.Anthropic.APIKey = "sk-ant-test"
	cfg.OpenAI.APIKey = "sk-openai-test"
	cfg.Roles.Main.Model = "claude-opus-4-20250514"
	cfg.Rates.Anthropic = RateConfig{RPS: 1, Burst: 2}

	aiCfg := cfg.AIConfig()

	main := aiCfg.Roles[ai.RoleMain]
	if main.Provider != ai.ProviderAnthropic || main.Model != "claude-opus-4-20250514" {
		t.Errorf("main role not translated: %+v", main)
	}

	if aiCfg.AnthropicAPIKey != "sk-ant-test" || aiCfg.OpenAIAPIKey != "sk-openai-test" {
		t.Error("api keys not carried through")
	}

	if rl := aiCfg.Rates[ai.ProviderAnthropic]; rl.RPS != 1 || rl.Burst != 2 {
		t.Errorf("rate limit not carried through: %+v", rl)
	}

	if aiCfg.CallTimeout != 60*time.Second {
		t.Errorf("unexpected call timeout %v", aiCfg.CallTimeout)
	}
}

func TestAIConfigFillsPartialRoles(t *testing.T) {
	cfg := &Config{}
	cfg.Roles.Main.MaxTokens = 1024

	aiCfg := cfg.AIConfig()

	main := aiCfg.Roles[ai.RoleMain]
	if main.Provider != ai.ProviderAnthropic || main.Model == "" {
		t.Errorf("empty role should fall back to defaults, got %+v", main)
	}
	if main.MaxTokens != 1024 {
		t.Errorf("explicit max_tokens should survive, got %d", main.MaxTokens)
	}

	fallback := aiCfg.Roles[ai.RoleFallback]
	if fallback.Model != "claude-3-5-haiku-20241022" {
		t.Errorf("unexpected fallback model %q", fallback.Model)
	}

	if aiCfg.Retry.MaxAttempts != 3 || aiCfg.Retry.BaseBackoff != time.Second || aiCfg.Retry.FallbackMaxAttempts != 2 {
		t.Errorf("zero retry settings should clamp to defaults, got %+v", aiCfg.Retry)
	}
}
