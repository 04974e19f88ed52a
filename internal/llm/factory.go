package llm

import (
	"fmt"
	"time"
)

// FactoryConfig holds the parameters needed to create an Oracle.
// This is defined in the llm package to avoid importing the config package,
// keeping the llm package free of infrastructure dependencies.
type FactoryConfig struct {
	// Provider is the LLM provider name ("openai" or "anthropic").
	Provider string
	// Temperature is the LLM temperature setting.
	Temperature float64
	// Timeout is the timeout for LLM API calls.
	Timeout time.Duration
	// MaxRetries is the maximum number of retries for failed calls.
	MaxRetries int
	// RetryDelay overrides the base delay between retries when positive.
	RetryDelay time.Duration
	// OpenAI contains OpenAI-specific settings.
	OpenAI OpenAIConfig
	// Anthropic contains Anthropic-specific settings.
	Anthropic AnthropicConfig
}

// NewOracle creates an Oracle based on the configuration.
// Supports "openai" and "anthropic" providers. Returns an error for unsupported
// or empty provider values.
func NewOracle(cfg FactoryConfig) (Oracle, error) {
	switch cfg.Provider {
	case "openai":
		p := NewOpenAIProvider(cfg.OpenAI, cfg.Temperature, cfg.Timeout, cfg.MaxRetries)
		if cfg.RetryDelay > 0 {
			p.retryDelay = cfg.RetryDelay
		}
		return p, nil
	case "anthropic":
		p := NewAnthropicProvider(cfg.Anthropic, cfg.Temperature, cfg.Timeout, cfg.MaxRetries)
		if cfg.RetryDelay > 0 {
			p.retryDelay = cfg.RetryDelay
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}
