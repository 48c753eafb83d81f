// Package llm provides a pluggable interface for text-generation providers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrCapability marks a failed or unusable text-generation call.
var ErrCapability = errors.New("text capability failed")

// GenerationParams tunes a single call. Nil fields use the provider default.
type GenerationParams struct {
	System      string   `json:"system,omitempty"`
	Temperature *float32 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// Client generates text from a prompt.
type Client interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	MaxTokens   int
	Temperature float32
	Retries     int
	Timeout     time.Duration
	Logger      *slog.Logger
}

// Provider names accepted by New.
const (
	ProviderOpenAI    = "openai"
	ProviderDeepSeek  = "deepseek"
	ProviderKimi      = "kimi"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderMock      = "mock"
)

// openAICompatible maps providers that speak the OpenAI chat API to their
// default base URL and model.
var openAICompatible = map[string]struct{ baseURL, model string }{
	ProviderOpenAI:   {"", "gpt-4o-mini"},
	ProviderDeepSeek: {"https://api.deepseek.com/v1", "deepseek-chat"},
	ProviderKimi:     {"https://api.moonshot.cn/v1", "moonshot-v1-8k"},
}

// New builds a client for cfg.Provider, wrapped in a retrying decorator
// when cfg.Retries > 0.
func New(cfg Config) (Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))

	var c Client
	switch {
	case provider == ProviderMock || provider == "":
		c = NewMockClient()
	case provider == ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic: api key is required")
		}
		c = NewAnthropicClient(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.MaxTokens)
	case provider == ProviderOllama:
		c = NewOllamaClient(cfg.BaseURL, cfg.Model, cfg.Timeout)
	default:
		defaults, ok := openAICompatible[provider]
		if !ok {
			return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
		}
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%s: api key is required", provider)
		}
		baseURL, model := cfg.BaseURL, cfg.Model
		if baseURL == "" {
			baseURL = defaults.baseURL
		}
		if model == "" {
			model = defaults.model
		}
		c = NewOpenAIClient(cfg.APIKey, baseURL, model, logger)
	}

	c = withDefaults(c, cfg)
	if cfg.Retries > 0 {
		c = NewRetrying(c, uint(cfg.Retries)+1, logger)
	}
	logger.Info("llm client ready", "provider", provider, "model", cfg.Model, "retries", cfg.Retries)
	return c, nil
}

// defaulted fills unset params from the provider config.
type defaulted struct {
	Client
	temperature float32
	maxTokens   int
}

func withDefaults(c Client, cfg Config) Client {
	if cfg.Temperature == 0 && cfg.MaxTokens == 0 {
		return c
	}
	return &defaulted{Client: c, temperature: cfg.Temperature, maxTokens: cfg.MaxTokens}
}

func (d *defaulted) Generate(ctx context.Context, prompt string, p GenerationParams) (string, error) {
	if p.Temperature == nil && d.temperature != 0 {
		t := d.temperature
		p.Temperature = &t
	}
	if p.MaxTokens == nil && d.maxTokens != 0 {
		n := d.maxTokens
		p.MaxTokens = &n
	}
	return d.Client.Generate(ctx, prompt, p)
}

func capabilityErr(provider string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrCapability, provider, err)
}
