package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicModel    = "claude-sonnet-4-20250514"
	anthropicTranslateTokens = 1024
)

func init() {
	Register("anthropic", func(cfg Config) (Translator, error) {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic translator requires an API key")
		}
		return NewAnthropicTranslator(cfg.APIKey, cfg.Model), nil
	})
}

// AnthropicTranslator translates through the Anthropic messages API.
type AnthropicTranslator struct {
	client *anthropic.Client
	model  string
}

func NewAnthropicTranslator(apiKey, model string) *AnthropicTranslator {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	if model == "" {
		model = defaultAnthropicModel
	}
	return &AnthropicTranslator{
		client: &client,
		model:  model,
	}
}

func (t *AnthropicTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	resp, err := t.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(t.model),
		MaxTokens: anthropicTranslateTokens,
		System:    []anthropic.TextBlockParam{{Text: translatePrompt(source, target)}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic translate failed: %w", err)
	}

	var out string
	for _, block := range resp.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	if out == "" {
		return "", fmt.Errorf("anthropic translate returned no text")
	}
	return strings.TrimSpace(out), nil
}
