package provider

import (
	"fmt"
	"os"

	"github.com/cloudwego/eino/components/model"
)

// DefaultMaxTokens caps replies when the config leaves MaxTokens unset.
const DefaultMaxTokens = 4096

// Provider represents an LLM provider with an Eino ChatModel.
type Provider interface {
	// ID returns the provider identifier.
	ID() string

	// Name returns the human-readable provider name.
	Name() string

	// Model returns the model ID requests are sent to.
	Model() string

	// ChatModel returns the Eino ChatModel for this provider.
	ChatModel() model.ToolCallingChatModel
}

// Config holds what every backend needs to build a chat model.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// backendEnv names the environment variables a backend falls back to.
type backendEnv struct {
	apiKey  string
	model   string
	baseURL string
	// defaultModel is used when neither the config nor model is set.
	defaultModel string
}

// resolve fills unset fields from env and fails when the key or model is
// still missing.
func (c Config) resolve(env backendEnv) (Config, error) {
	if c.APIKey == "" {
		c.APIKey = os.Getenv(env.apiKey)
	}
	if c.APIKey == "" {
		return c, fmt.Errorf("%s not set", env.apiKey)
	}
	if c.Model == "" && env.model != "" {
		c.Model = os.Getenv(env.model)
	}
	if c.Model == "" {
		c.Model = env.defaultModel
	}
	if c.Model == "" {
		return c, fmt.Errorf("%s not set", env.model)
	}
	if c.BaseURL == "" && env.baseURL != "" {
		c.BaseURL = os.Getenv(env.baseURL)
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	return c, nil
}

type chatProvider struct {
	id        string
	name      string
	model     string
	chatModel model.ToolCallingChatModel
}

func (p *chatProvider) ID() string                            { return p.id }
func (p *chatProvider) Name() string                          { return p.name }
func (p *chatProvider) Model() string                         { return p.model }
func (p *chatProvider) ChatModel() model.ToolCallingChatModel { return p.chatModel }
