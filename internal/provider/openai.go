package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
)

var openaiEnv = backendEnv{apiKey: "OPENAI_API_KEY", baseURL: "OPENAI_BASE_URL", defaultModel: "gpt-4o"}

// NewOpenAIProvider creates an OpenAI provider. BaseURL points it at any
// OpenAI-compatible endpoint.
func NewOpenAIProvider(ctx context.Context, config *Config) (Provider, error) {
	c, err := config.resolve(openaiEnv)
	if err != nil {
		return nil, err
	}

	cfg := &openai.ChatModelConfig{
		APIKey:              c.APIKey,
		Model:               c.Model,
		MaxCompletionTokens: &c.MaxTokens,
	}
	if c.BaseURL != "" {
		cfg.BaseURL = c.BaseURL
	}

	chatModel, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI model: %w", err)
	}
	return &chatProvider{id: "openai", name: "OpenAI", model: c.Model, chatModel: chatModel}, nil
}
