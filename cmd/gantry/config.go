package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/gantry/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify Gantry configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/gantry/config.yaml
Project-specific overrides can be placed in .gantry.yaml`,
	Args: cobra.MaximumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values with API keys
// masked and their sources named.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("# user config: %s\n", config.GetUserConfigPath())
	if p := config.GetProjectConfigPath(); p != "" {
		fmt.Printf("# project overrides: %s\n", p)
	}
	fmt.Println()
	fmt.Printf("anthropic.api_key: %s (%s)\n", maskedAnthropicKey(cfg), config.AnthropicKeySource(cfg))
	fmt.Printf("anthropic.use_bedrock: %t\n", cfg.Anthropic.UseBedrock)
	fmt.Printf("openai.api_key: %s (%s)\n", maskedOpenAIKey(cfg), config.OpenAIKeySource(cfg))
	fmt.Printf("openai.base_url: %s\n", orUnset(cfg.OpenAI.BaseURL))
	fmt.Printf("aws.region: %s\n", orUnset(cfg.AWS.Region))
	fmt.Printf("aws.profile: %s\n", orUnset(cfg.AWS.Profile))
	for _, role := range []string{"main", "research", "fallback"} {
		rc := roleField(cfg, role)
		fmt.Printf("roles.%s.provider: %s\n", role, rc.Provider)
		fmt.Printf("roles.%s.model: %s\n", role, rc.Model)
		fmt.Printf("roles.%s.max_tokens: %d\n", role, rc.MaxTokens)
		fmt.Printf("roles.%s.temperature: %g\n", role, rc.Temperature)
	}
	fmt.Printf("retry.max_attempts: %d\n", cfg.Retry.MaxAttempts)
	fmt.Printf("retry.base_backoff: %s\n", cfg.Retry.BaseBackoff)
	fmt.Printf("retry.fallback_max_attempts: %d\n", cfg.Retry.FallbackMaxAttempts)
	for _, provider := range []string{"anthropic", "openai"} {
		rl := rateField(cfg, provider)
		fmt.Printf("rates.%s.rps: %g\n", provider, rl.RPS)
		fmt.Printf("rates.%s.burst: %d\n", provider, rl.Burst)
	}
	fmt.Printf("limits.batch_workers: %d\n", cfg.Limits.BatchWorkers)
	fmt.Printf("limits.call_timeout: %s\n", cfg.Limits.CallTimeout)
	fmt.Printf("analyze.threshold: %d\n", cfg.Analyze.Threshold)
	fmt.Printf("store.file: %s\n", cfg.Store.File)
	fmt.Printf("telemetry.enabled: %t\n", cfg.Telemetry.Enabled)
	fmt.Printf("debug.enabled: %t\n", cfg.Debug.Enabled)
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		return maskedAnthropicKey(cfg), nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "openai.api_key":
		return maskedOpenAIKey(cfg), nil
	case "openai.base_url":
		return orUnset(cfg.OpenAI.BaseURL), nil
	case "aws.region":
		return orUnset(cfg.AWS.Region), nil
	case "aws.profile":
		return orUnset(cfg.AWS.Profile), nil
	case "retry.max_attempts":
		return strconv.Itoa(cfg.Retry.MaxAttempts), nil
	case "retry.base_backoff":
		return cfg.Retry.BaseBackoff.String(), nil
	case "retry.fallback_max_attempts":
		return strconv.Itoa(cfg.Retry.FallbackMaxAttempts), nil
	case "limits.batch_workers":
		return strconv.Itoa(cfg.Limits.BatchWorkers), nil
	case "limits.call_timeout":
		return cfg.Limits.CallTimeout.String(), nil
	case "analyze.threshold":
		return strconv.Itoa(cfg.Analyze.Threshold), nil
	case "store.file":
		return cfg.Store.File, nil
	case "telemetry.enabled":
		return strconv.FormatBool(cfg.Telemetry.Enabled), nil
	case "debug.enabled":
		return strconv.FormatBool(cfg.Debug.Enabled), nil
	}

	parts := strings.Split(strings.ToLower(key), ".")
	if len(parts) == 3 && parts[0] == "roles" {
		rc := roleField(cfg, parts[1])
		if rc == nil {
			return "", fmt.Errorf("unknown role %q (want main, research, or fallback)", parts[1])
		}
		switch parts[2] {
		case "provider":
			return rc.Provider, nil
		case "model":
			return rc.Model, nil
		case "max_tokens":
			return strconv.FormatInt(rc.MaxTokens, 10), nil
		case "temperature":
			return strconv.FormatFloat(rc.Temperature, 'g', -1, 64), nil
		}
	}
	if len(parts) == 3 && parts[0] == "rates" {
		rl := rateField(cfg, parts[1])
		if rl == nil {
			return "", fmt.Errorf("unknown provider %q (want anthropic or openai)", parts[1])
		}
		switch parts[2] {
		case "rps":
			return strconv.FormatFloat(rl.RPS, 'g', -1, 64), nil
		case "burst":
			return strconv.Itoa(rl.Burst), nil
		}
	}

	return "", fmt.Errorf("unknown configuration key: %s", key)
}

// setConfigValue updates a configuration value by dot-notation key,
// parsing the string according to the field's type.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
		return nil
	case "anthropic.use_bedrock":
		return parseBoolInto(&cfg.Anthropic.UseBedrock, value)
	case "openai.api_key":
		cfg.OpenAI.APIKey = value
		return nil
	case "openai.base_url":
		cfg.OpenAI.BaseURL = value
		return nil
	case "aws.region":
		cfg.AWS.Region = value
		return nil
	case "aws.profile":
		cfg.AWS.Profile = value
		return nil
	case "retry.max_attempts":
		return parseIntInto(&cfg.Retry.MaxAttempts, value)
	case "retry.base_backoff":
		return parseDurationInto(&cfg.Retry.BaseBackoff, value)
	case "retry.fallback_max_attempts":
		return parseIntInto(&cfg.Retry.FallbackMaxAttempts, value)
	case "limits.batch_workers":
		return parseIntInto(&cfg.Limits.BatchWorkers, value)
	case "limits.call_timeout":
		return parseDurationInto(&cfg.Limits.CallTimeout, value)
	case "analyze.threshold":
		return parseIntInto(&cfg.Analyze.Threshold, value)
	case "store.file":
		cfg.Store.File = value
		return nil
	case "telemetry.enabled":
		return parseBoolInto(&cfg.Telemetry.Enabled, value)
	case "debug.enabled":
		return parseBoolInto(&cfg.Debug.Enabled, value)
	}

	parts := strings.Split(strings.ToLower(key), ".")
	if len(parts) == 3 && parts[0] == "roles" {
		rc := roleField(cfg, parts[1])
		if rc == nil {
			return fmt.Errorf("unknown role %q (want main, research, or fallback)", parts[1])
		}
		switch parts[2] {
		case "provider":
			rc.Provider = value
			return nil
		case "model":
			rc.Model = value
			return nil
		case "max_tokens":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer %q", value)
			}
			rc.MaxTokens = n
			return nil
		case "temperature":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("invalid number %q", value)
			}
			rc.Temperature = f
			return nil
		}
	}
	if len(parts) == 3 && parts[0] == "rates" {
		rl := rateField(cfg, parts[1])
		if rl == nil {
			return fmt.Errorf("unknown provider %q (want anthropic or openai)", parts[1])
		}
		switch parts[2] {
		case "rps":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("invalid number %q", value)
			}
			rl.RPS = f
			return nil
		case "burst":
			return parseIntInto(&rl.Burst, value)
		}
	}

	return fmt.Errorf("unknown configuration key: %s", key)
}

func roleField(cfg *config.Config, role string) *config.RoleConfig {
	switch role {
	case "main":
		return &cfg.Roles.Main
	case "research":
		return &cfg.Roles.Research
	case "fallback":
		return &cfg.Roles.Fallback
	}
	return nil
}

func rateField(cfg *config.Config, provider string) *config.RateConfig {
	switch provider {
	case "anthropic":
		return &cfg.Rates.Anthropic
	case "openai":
		return &cfg.Rates.OpenAI
	}
	return nil
}

func maskedAnthropicKey(cfg *config.Config) string {
	key, err := config.GetAnthropicKey(cfg)
	if err != nil {
		return "(not set)"
	}
	return config.MaskKey(key)
}

func maskedOpenAIKey(cfg *config.Config) string {
	key, err := config.GetOpenAIKey(cfg)
	if err != nil {
		return "(not set)"
	}
	return config.MaskKey(key)
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

func parseIntInto(dst *int, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer %q", value)
	}
	*dst = n
	return nil
}

func parseBoolInto(dst *bool, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid boolean %q", value)
	}
	*dst = b
	return nil
}

func parseDurationInto(dst *time.Duration, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration %q", value)
	}
	*dst = d
	return nil
}
