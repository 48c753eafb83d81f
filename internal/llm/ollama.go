package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// OllamaClient uses a local Ollama instance.
type OllamaClient struct {
	baseURL string
	model   string
	client  *http.Client
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

// NewOllamaClient creates a client. An empty baseURL reads $OLLAMA_HOST,
// falling back to localhost.
func NewOllamaClient(baseURL, model string, timeout time.Duration) *OllamaClient {
	if baseURL == "" {
		baseURL = os.Getenv("OLLAMA_HOST")
	}
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.1"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OllamaClient{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// Generate implements Client.
func (o *OllamaClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	r := ollamaRequest{Model: o.model, Prompt: prompt, System: params.System}
	opts := map[string]any{}
	if params.Temperature != nil {
		opts["temperature"] = *params.Temperature
	}
	if params.MaxTokens != nil {
		opts["num_predict"] = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		opts["stop"] = params.Stop
	}
	if len(opts) > 0 {
		r.Options = opts
	}

	body, _ := json.Marshal(r)
	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", capabilityErr("ollama", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", capabilityErr("ollama", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", capabilityErr("ollama", fmt.Errorf("status %d: %s", resp.StatusCode, string(b)))
	}

	var result ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", capabilityErr("ollama", err)
	}
	return result.Response, nil
}
