package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/ark"
)

// ARK has no default model: Model is the endpoint ID of a deployment.
var arkEnv = backendEnv{apiKey: "ARK_API_KEY", model: "ARK_MODEL_ID", baseURL: "ARK_BASE_URL"}

// NewArkProvider creates a Volcengine ARK provider.
func NewArkProvider(ctx context.Context, config *Config) (Provider, error) {
	c, err := config.resolve(arkEnv)
	if err != nil {
		return nil, err
	}

	cfg := &ark.ChatModelConfig{
		APIKey:    c.APIKey,
		Model:     c.Model,
		MaxTokens: &c.MaxTokens,
	}
	if c.BaseURL != "" {
		cfg.BaseURL = c.BaseURL
	}

	chatModel, err := ark.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ARK model: %w", err)
	}
	return &chatProvider{id: "ark", name: "ARK", model: c.Model, chatModel: chatModel}, nil
}
