package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicBackend adapts anthropic-sdk-go's non-streaming Messages.New call
// to the Backend interface. Unlike the teacher's streaming AnthropicProvider,
// generate_json wants one shot, one JSON object back — no SSE plumbing.
type AnthropicBackend struct {
	client anthropic.Client
	model  string
}

// AnthropicConfig configures an AnthropicBackend. RequestTimeout bounds the
// underlying HTTP round trip (spec §6: LLM_REQUEST_TIMEOUT_MS); it is
// distinct from the per-stage ctx deadline WithStageBudget derives.
type AnthropicConfig struct {
	APIKey         string
	Model          string
	RequestTimeout time.Duration
}

// NewAnthropicBackend builds a Backend backed by the Anthropic Messages API.
func NewAnthropicBackend(cfg AnthropicConfig) *AnthropicBackend {
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}))
	}
	model := cfg.Model
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	return &AnthropicBackend{client: anthropic.NewClient(opts...), model: model}
}

func (b *AnthropicBackend) Name() string { return "anthropic" }

func (b *AnthropicBackend) CompleteText(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: int64(maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}

	msg, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var out string
	for _, block := range msg.Content {
		if text := block.Text; text != "" {
			out += text
		}
	}
	return out, nil
}
