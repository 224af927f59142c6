package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/claude"
)

var anthropicEnv = backendEnv{apiKey: "ANTHROPIC_API_KEY", baseURL: "ANTHROPIC_BASE_URL", defaultModel: "claude-sonnet-4-20250514"}

// NewAnthropicProvider creates an Anthropic Claude provider.
func NewAnthropicProvider(ctx context.Context, config *Config) (Provider, error) {
	c, err := config.resolve(anthropicEnv)
	if err != nil {
		return nil, err
	}

	cfg := &claude.Config{
		APIKey:    c.APIKey,
		Model:     c.Model,
		MaxTokens: c.MaxTokens,
	}
	if c.BaseURL != "" {
		cfg.BaseURL = &c.BaseURL
	}

	chatModel, err := claude.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Claude model: %w", err)
	}
	return &chatProvider{id: "anthropic", name: "Anthropic", model: c.Model, chatModel: chatModel}, nil
}
