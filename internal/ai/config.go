// Package ai routes prompts to AI providers with retry, fallback, and
// rate limiting. The orchestrator is domain-agnostic: callers describe
// a prompt and the result shape they expect, and pick a configured role
// rather than a concrete provider.
package ai

import (
	"fmt"
	"time"
)

// Role names a configured provider/model slot.
type Role string

const (
	// RoleMain serves everyday generation calls.
	RoleMain Role = "main"
	// RoleResearch serves calls that want broader context gathering.
	RoleResearch Role = "research"
	// RoleFallback serves retries after the primary role is exhausted.
	RoleFallback Role = "fallback"
)

// Provider names understood by the orchestrator.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// RoleConfig binds a role to a provider, model, and generation budget.
type RoleConfig struct {
	Provider    string
	Model       string
	MaxTokens   int64
	Temperature float64
}

// RetryConfig bounds the retry loop.
type RetryConfig struct {
	// MaxAttempts is the attempt budget for the primary role.
	MaxAttempts int
	// BaseBackoff is the first retry delay; it doubles per attempt.
	BaseBackoff time.Duration
	// FallbackMaxAttempts is the smaller budget for the fallback pass.
	FallbackMaxAttempts int
}

// RateConfig is a token-bucket rate limit for one provider.
type RateConfig struct {
	// RPS is the sustained requests per second.
	RPS float64
	// Burst is the bucket size.
	Burst int
}

// Config is the full orchestrator configuration. It is copied on New,
// so later mutation by the caller has no effect on a running
// orchestrator.
type Config struct {
	Roles map[Role]RoleConfig
	Retry RetryConfig
	// Rates maps provider name to its shared rate limit.
	Rates map[string]RateConfig
	// CallTimeout bounds a single provider attempt. Zero disables it.
	CallTimeout time.Duration

	// AnthropicAPIKey authenticates the anthropic provider when Bedrock
	// is off. Empty falls back to the ANTHROPIC_API_KEY environment
	// variable inside the SDK setup.
	AnthropicAPIKey string
	// UseBedrock routes anthropic calls through AWS Bedrock.
	UseBedrock bool
	AWSRegion  string
	AWSProfile string

	// OpenAIAPIKey authenticates the openai provider.
	OpenAIAPIKey string
	// OpenAIBaseURL overrides the chat completions endpoint, mainly
	// for tests and proxies.
	OpenAIBaseURL string
}

// DefaultConfig returns the stock role table and retry policy.
func DefaultConfig() Config {
	return Config{
		Roles: map[Role]RoleConfig{
			RoleMain: {
				Provider:    ProviderAnthropic,
				Model:       "claude-sonnet-4-20250514",
				MaxTokens:   4096,
				Temperature: 0.2,
			},
			RoleResearch: {
				Provider:    ProviderOpenAI,
				Model:       "gpt-4o",
				MaxTokens:   4096,
				Temperature: 0.3,
			},
			RoleFallback: {
				Provider:    ProviderAnthropic,
				Model:       "claude-3-5-haiku-20241022",
				MaxTokens:   2048,
				Temperature: 0.2,
			},
		},
		Retry: RetryConfig{
			MaxAttempts:         3,
			BaseBackoff:         time.Second,
			FallbackMaxAttempts: 2,
		},
		Rates: map[string]RateConfig{
			ProviderAnthropic: {RPS: 2, Burst: 4},
			ProviderOpenAI:    {RPS: 2, Burst: 4},
		},
		CallTimeout: 60 * time.Second,
	}
}

// validate checks that every role names a known provider and the retry
// policy is usable.
func (c *Config) validate() error {
	if len(c.Roles) == 0 {
		return fmt.Errorf("no roles configured")
	}
	for role, rc := range c.Roles {
		if rc.Provider != ProviderAnthropic && rc.Provider != ProviderOpenAI {
			return fmt.Errorf("role %s: unknown provider %q", role, rc.Provider)
		}
		if rc.Model == "" {
			return fmt.Errorf("role %s: model must not be empty", role)
		}
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.FallbackMaxAttempts < 1 {
		return fmt.Errorf("fallback max attempts must be at least 1, got %d", c.Retry.FallbackMaxAttempts)
	}
	return nil
}

// clone deep-copies the config so the orchestrator owns its state.
func (c Config) clone() Config {
	out := c
	out.Roles = make(map[Role]RoleConfig, len(c.Roles))
	for role, rc := range c.Roles {
		out.Roles[role] = rc
	}
	out.Rates = make(map[string]RateConfig, len(c.Rates))
	for name, rl := range c.Rates {
		out.Rates[name] = rl
	}
	return out
}
