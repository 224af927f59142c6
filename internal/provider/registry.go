package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/opencode-ai/mcp-claude-code/pkg/types"
)

// Factory builds a provider from a Config.
type Factory func(ctx context.Context, config *Config) (Provider, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{
		"openai":    NewOpenAIProvider,
		"anthropic": NewAnthropicProvider,
		"ark":       NewArkProvider,
	}
	aliases = map[string]string{
		"claude":     "anthropic",
		"volcengine": "ark",
	}
)

// Register adds or replaces the factory for id.
func Register(id string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[id] = f
}

// IDs returns the registered provider IDs, sorted.
func IDs() []string {
	mu.RLock()
	defer mu.RUnlock()
	ids := make([]string, 0, len(factories))
	for id := range factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// New creates the provider described by cfg. A model string prefixed with
// a known provider ("anthropic/claude-sonnet-4") overrides cfg.Provider;
// other slashes are left in the model ID.
func New(ctx context.Context, cfg *types.AgentConfig) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("agent configuration is missing")
	}

	providerID, modelID := cfg.Provider, cfg.Model
	if prefix, rest := ParseModelString(cfg.Model); prefix != "" {
		if _, ok := lookup(prefix); ok {
			providerID, modelID = prefix, rest
		}
	}

	factory, ok := lookup(providerID)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (available: %s)", providerID, strings.Join(IDs(), ", "))
	}

	return factory(ctx, &Config{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		Model:     modelID,
		MaxTokens: cfg.MaxTokens,
	})
}

func lookup(id string) (Factory, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	if alias, ok := aliases[id]; ok {
		id = alias
	}
	mu.RLock()
	defer mu.RUnlock()
	f, ok := factories[id]
	return f, ok
}

// ParseModelString parses "provider/model" format.
func ParseModelString(s string) (providerID, modelID string) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", s
}
