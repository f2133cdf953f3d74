package translate

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

func init() {
	Register("openai", func(cfg Config) (Translator, error) {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai translator requires an API key")
		}
		return NewOpenAITranslator(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	})
}

// OpenAITranslator translates through a chat completion against OpenAI or
// any OpenAI-compatible API.
type OpenAITranslator struct {
	client *openai.Client
	model  string
}

func NewOpenAITranslator(apiKey, baseURL, model string) *OpenAITranslator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAITranslator{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (t *OpenAITranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: translatePrompt(source, target)},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai translate failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai translate returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func translatePrompt(source, target string) string {
	from := "the detected source language"
	if source != "" && source != SourceAuto {
		from = source
	}
	return fmt.Sprintf(
		"Translate the user's message from %s to %s. Reply with the translation only, no commentary.",
		from, target)
}
