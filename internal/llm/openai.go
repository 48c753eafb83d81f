package llm

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient talks to any OpenAI-compatible chat completion endpoint.
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAIClient creates a client. An empty baseURL uses api.openai.com.
func NewOpenAIClient(apiKey, baseURL, model string, logger *slog.Logger) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: logger,
	}
}

// Generate implements Client.
func (o *OpenAIClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	o.logger.Debug("generating text via openai-compatible api", "model", o.model)
	var msgs []openai.ChatCompletionMessage
	if params.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: params.System})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	req := openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: msgs,
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxTokens = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		o.logger.Error("chat completion failed", "model", o.model, "error", err)
		return "", capabilityErr("openai", err)
	}
	if len(resp.Choices) == 0 {
		return "", capabilityErr("openai", errors.New("no choices returned"))
	}
	o.logger.Debug("chat completion done", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}
