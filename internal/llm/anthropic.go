package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicModel     = "claude-3-7-sonnet-latest"
	defaultAnthropicMaxTokens = 1024
)

// AnthropicClient calls the Messages API.
type AnthropicClient struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicClient creates a client. Extra request options (for example a
// test transport) are passed through to the SDK.
func NewAnthropicClient(apiKey, baseURL, model string, maxTokens int, opts ...option.RequestOption) *AnthropicClient {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	reqOpts = append(reqOpts, opts...)
	c := anthropic.NewClient(reqOpts...)

	if model == "" {
		model = defaultAnthropicModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return &AnthropicClient{client: &c, model: model, maxTokens: int64(maxTokens)}
}

// Generate implements Client.
func (a *AnthropicClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if params.System != "" {
		req.System = []anthropic.TextBlockParam{{Text: params.System}}
	}
	if params.MaxTokens != nil {
		req.MaxTokens = int64(*params.MaxTokens)
	}
	if params.Temperature != nil {
		req.Temperature = anthropic.Float(float64(*params.Temperature))
	}
	if len(params.Stop) > 0 {
		req.StopSequences = params.Stop
	}

	resp, err := a.client.Messages.New(ctx, req)
	if err != nil {
		return "", capabilityErr("anthropic", err)
	}
	var parts []string
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", capabilityErr("anthropic", errors.New("no text content returned"))
	}
	return strings.Join(parts, "\n"), nil
}
