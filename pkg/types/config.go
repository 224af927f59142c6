// Package types holds the configuration types shared across packages.
package types

// Config represents the server configuration.
// Files may be JSON, JSONC or YAML; the field names are the same in all three.
type Config struct {
	// Schema reference (for editor support)
	Schema string `json:"$schema,omitempty" yaml:"$schema,omitempty"`

	// Name is the MCP server identifier advertised to clients.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Transport is "stdio" or "sse".
	Transport string `json:"transport,omitempty" yaml:"transport,omitempty"`

	// Address is the listen address used by the SSE transport.
	Address string `json:"address,omitempty" yaml:"address,omitempty"`

	// AllowedPaths seeds the permission allow-list.
	AllowedPaths []string `json:"allowed_paths,omitempty" yaml:"allowed_paths,omitempty"`

	// StateDir enables persistence of the permission snapshot.
	StateDir string `json:"state_dir,omitempty" yaml:"state_dir,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`

	Permission *PermissionConfig `json:"permission,omitempty" yaml:"permission,omitempty"`
	Command    *CommandConfig    `json:"command,omitempty" yaml:"command,omitempty"`
	Agent      *AgentConfig      `json:"agent,omitempty" yaml:"agent,omitempty"`
}

// PermissionConfig extends the default permission gate.
type PermissionConfig struct {
	ExcludedPaths    []string `json:"excluded_paths,omitempty" yaml:"excluded_paths,omitempty"`
	ExcludedPatterns []string `json:"excluded_patterns,omitempty" yaml:"excluded_patterns,omitempty"`

	// OperationTimeout is the approval lifetime in seconds.
	OperationTimeout int `json:"operation_timeout,omitempty" yaml:"operation_timeout,omitempty"`

	// RequireApproval lists operations ("write", "edit", "execute") that
	// need an explicit approval before a tool performs them.
	RequireApproval []string `json:"require_approval,omitempty" yaml:"require_approval,omitempty"`
}

// CommandConfig adjusts the command blacklist and default timeout.
type CommandConfig struct {
	Allow []string `json:"allow,omitempty" yaml:"allow,omitempty"`
	Deny  []string `json:"deny,omitempty" yaml:"deny,omitempty"`

	// Timeout is the default execution timeout in seconds.
	Timeout int `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// AgentConfig configures the sub-agent orchestrator.
type AgentConfig struct {
	Model       string   `json:"model,omitempty" yaml:"model,omitempty"`
	Provider    string   `json:"provider,omitempty" yaml:"provider,omitempty"`
	BaseURL     string   `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIKey      string   `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`

	// APITimeout bounds each model round-trip, in seconds.
	APITimeout int `json:"api_timeout,omitempty" yaml:"api_timeout,omitempty"`

	MaxToolUses   int `json:"max_tool_uses,omitempty" yaml:"max_tool_uses,omitempty"`
	MaxIterations int `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`

	// MaxParallel limits concurrent sub-agents; 0 means unlimited.
	MaxParallel int `json:"max_parallel,omitempty" yaml:"max_parallel,omitempty"`

	// Profile names the built-in sub-agent profile ("general" or "explore").
	Profile string `json:"profile,omitempty" yaml:"profile,omitempty"`

	// Tools overrides the sub-agent tool set. Keys may be wildcards.
	Tools map[string]bool `json:"tools,omitempty" yaml:"tools,omitempty"`

	// Prompt is appended to the generated sub-agent system prompt.
	Prompt string `json:"prompt,omitempty" yaml:"prompt,omitempty"`
}

// GetTemperature returns the configured temperature or the given default.
func (a *AgentConfig) GetTemperature(def float64) float64 {
	if a == nil || a.Temperature == nil {
		return def
	}
	return *a.Temperature
}
