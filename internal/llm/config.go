package llm

import (
	"fmt"
	"time"
)

// Config holds the settings for an OpenAI-compatible chat completion API.
//
// Any provider that speaks the OpenAI wire format works: OpenAI itself,
// OpenRouter, or a local gateway.
//
// - APIKey: bearer key sent to the provider (required)
// - APIURL: base URL, e.g. https://api.openai.com/v1
// - Model: model name, e.g. gpt-4o-mini
// - MaxTokens: completion token limit per call
// - Temperature: sampling temperature (0-2)
// - Timeout: transport timeout in seconds; per-call deadlines come from ctx
// - SiteURL, AppName: optional OpenRouter attribution headers
type Config struct {
	APIKey      string  `json:"-"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Timeout     int     `json:"timeout"`
	SiteURL     string  `json:"site_url,omitempty"`
	AppName     string  `json:"app_name,omitempty"`

	// BreakerFailures is the number of consecutive transient failures that
	// opens the circuit. Zero selects 5.
	BreakerFailures int `json:"breaker_failures,omitempty"`
	// BreakerCooldown is how long the circuit stays open. Zero selects 30s.
	BreakerCooldown time.Duration `json:"breaker_cooldown,omitempty"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API key is required")
	}
	if c.APIURL == "" {
		return fmt.Errorf("API URL is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("max tokens must be greater than 0")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.Timeout < 1 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	return nil
}

// ExtraHeaders returns provider-specific headers added to every request.
func (c *Config) ExtraHeaders() map[string]string {
	headers := map[string]string{}
	if c.SiteURL != "" {
		headers["HTTP-Referer"] = c.SiteURL
	}
	if c.AppName != "" {
		headers["X-Title"] = c.AppName
	}
	return headers
}

func (c *Config) breakerFailures() uint32 {
	if c.BreakerFailures > 0 {
		return uint32(c.BreakerFailures)
	}
	return 5
}

func (c *Config) breakerCooldown() time.Duration {
	if c.BreakerCooldown > 0 {
		return c.BreakerCooldown
	}
	return 30 * time.Second
}
