package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIBackend adapts go-openai's chat completion call to the Backend
// interface, used as the fallback provider behind the primary Anthropic
// backend (spec's domain stack keeps both LLM SDKs the teacher depends on).
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

// OpenAIConfig configures an OpenAIBackend. RequestTimeout bounds the
// underlying HTTP round trip (spec §6: LLM_REQUEST_TIMEOUT_MS); it is
// distinct from the per-stage ctx deadline WithStageBudget derives.
type OpenAIConfig struct {
	APIKey         string
	Model          string
	RequestTimeout time.Duration
}

// NewOpenAIBackend builds a Backend backed by the OpenAI chat completions API.
func NewOpenAIBackend(cfg OpenAIConfig) *OpenAIBackend {
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.RequestTimeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &OpenAIBackend{client: openai.NewClientWithConfig(clientCfg), model: model}
}

func (b *OpenAIBackend) Name() string { return "openai" }

func (b *OpenAIBackend) CompleteText(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		MaxTokens:      maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}
