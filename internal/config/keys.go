// Package config provides API key lookup and masking utilities.
package config

import (
	"errors"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when no API key is configured for the
// requested provider.
var ErrNoAPIKey = errors.New("no API key configured")

// GetAnthropicKey returns the Anthropic API key. It checks in order:
// environment variable, config file.
func GetAnthropicKey(cfg *Config) (string, error) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return key, nil
	}

	if cfg != nil && cfg.Anthropic.APIKey != "" {
		key := os.ExpandEnv(cfg.Anthropic.APIKey)
		if key != "" && !strings.HasPrefix(key, "${") {
			return key, nil
		}
	}

	return "", ErrNoAPIKey
}

// GetOpenAIKey returns the OpenAI API key. It checks in order:
// environment variable, config file.
func GetOpenAIKey(cfg *Config) (string, error) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key, nil
	}

	if cfg != nil && cfg.OpenAI.APIKey != "" {
		key := os.ExpandEnv(cfg.OpenAI.APIKey)
		if key != "" && !strings.HasPrefix(key, "${") {
			return key, nil
		}
	}

	return "", ErrNoAPIKey
}

// ValidateAnthropicKey performs basic format validation. It does not
// verify the key with Anthropic's API.
func ValidateAnthropicKey(key string) error {
	if key == "" {
		return ErrNoAPIKey
	}

	if !strings.HasPrefix(key, "sk-ant-") {
		return errors.New("invalid API key format: expected 'sk-ant-' prefix")
	}

	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}

	return nil
}

// MaskKey returns a masked version of an API key for display. It shows
// the first 7 and last 4 characters.
func MaskKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// AnthropicKeySource returns where the Anthropic key was sourced from.
func AnthropicKeySource(cfg *Config) KeySource {
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		return KeySourceEnv
	}

	if cfg != nil && cfg.Anthropic.APIKey != "" {
		key := os.ExpandEnv(cfg.Anthropic.APIKey)
		if key != "" && !strings.HasPrefix(key, "${") {
			return KeySourceConfig
		}
	}

	return KeySourceNone
}

// OpenAIKeySource returns where the OpenAI key was sourced from.
func OpenAIKeySource(cfg *Config) KeySource {
	if os.Getenv("OPENAI_API_KEY") != "" {
		return KeySourceEnv
	}

	if cfg != nil && cfg.OpenAI.APIKey != "" {
		key := os.ExpandEnv(cfg.OpenAI.APIKey)
		if key != "" && !strings.HasPrefix(key, "${") {
			return KeySourceConfig
		}
	}

	return KeySourceNone
}
