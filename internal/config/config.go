package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/opencode-ai/mcp-claude-code/pkg/types"
)

// Defaults applied when neither a file nor the environment sets a value.
const (
	DefaultName             = "claude-code"
	DefaultTransport        = "stdio"
	DefaultAddress          = "127.0.0.1:3001"
	DefaultModel            = "gpt-4o"
	DefaultProvider         = "openai"
	DefaultTemperature      = 0.7
	DefaultMaxTokens        = 4096
	DefaultAPITimeout       = 60
	DefaultMaxToolUses      = 15
	DefaultMaxIterations    = 10
	DefaultOperationTimeout = 300
	DefaultCommandTimeout   = 60
)

// Environment variables read by ApplyEnv.
const (
	EnvConfig        = "MCP_CLAUDE_CODE_CONFIG"
	EnvModel         = "AGENT_MODEL"
	EnvProvider      = "AGENT_PROVIDER"
	EnvTemperature   = "AGENT_TEMPERATURE"
	EnvMaxTokens     = "AGENT_MAX_TOKENS"
	EnvAPITimeout    = "AGENT_API_TIMEOUT"
	EnvMaxToolUses   = "AGENT_MAX_TOOL_USES"
	EnvMaxIterations = "AGENT_MAX_ITERATIONS"
	EnvMaxParallel   = "AGENT_MAX_PARALLEL"
	EnvBaseURL       = "AGENT_BASE_URL"
)

// Default returns a configuration with every default filled in.
func Default() *types.Config {
	temp := DefaultTemperature
	return &types.Config{
		Name:       DefaultName,
		Transport:  DefaultTransport,
		Address:    DefaultAddress,
		LogLevel:   "info",
		Permission: &types.PermissionConfig{OperationTimeout: DefaultOperationTimeout},
		Command:    &types.CommandConfig{Timeout: DefaultCommandTimeout},
		Agent: &types.AgentConfig{
			Model:         DefaultModel,
			Provider:      DefaultProvider,
			Temperature:   &temp,
			MaxTokens:     DefaultMaxTokens,
			APITimeout:    DefaultAPITimeout,
			MaxToolUses:   DefaultMaxToolUses,
			MaxIterations: DefaultMaxIterations,
		},
	}
}

// Load loads configuration from multiple sources (priority order):
// 1. Defaults
// 2. Global config ($XDG_CONFIG_HOME/mcp-claude-code/config.{json,jsonc,yaml})
// 3. Project config (.mcp-claude-code.{json,jsonc,yaml} in directory)
// 4. MCP_CLAUDE_CODE_CONFIG file, or explicitPath when non-empty
// 5. Environment variables (a .env file in directory is loaded first)
func Load(directory, explicitPath string) (*types.Config, error) {
	config := Default()

	loaded := make(map[string]bool)
	loadOnce := func(path string, required bool) error {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if loaded[absPath] {
			return nil
		}
		err = loadConfigFile(absPath, config)
		if err == nil {
			loaded[absPath] = true
			log.Debug().Str("path", absPath).Msg("loaded config file")
			return nil
		}
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("config %s: %w", path, err)
	}

	globalDir := GlobalDir()
	for _, name := range configFileNames {
		if err := loadOnce(filepath.Join(globalDir, name), false); err != nil {
			return nil, err
		}
	}

	if directory != "" {
		for _, name := range projectFileNames {
			if err := loadOnce(filepath.Join(directory, name), false); err != nil {
				return nil, err
			}
		}
		// A missing .env is normal; existing variables win over the file.
		_ = godotenv.Load(filepath.Join(directory, ".env"))
	}

	if path := os.Getenv(EnvConfig); path != "" {
		if err := loadOnce(path, true); err != nil {
			return nil, err
		}
	}
	if explicitPath != "" {
		if err := loadOnce(explicitPath, true); err != nil {
			return nil, err
		}
	}

	ApplyEnv(config)
	return config, nil
}

// loadConfigFile decodes one file into a fresh Config and merges it.
func loadConfigFile(path string, config *types.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	data = interpolate(data)

	var fileConfig types.Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return err
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(data), &fileConfig); err != nil {
			return err
		}
	}

	mergeConfig(config, &fileConfig)
	return nil
}

var envPattern = regexp.MustCompile(`\{env:([^}]+)\}`)

// interpolate replaces {env:VAR} placeholders with environment values.
func interpolate(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// mergeConfig merges source config into target.
func mergeConfig(target, source *types.Config) {
	if source.Schema != "" {
		target.Schema = source.Schema
	}
	if source.Name != "" {
		target.Name = source.Name
	}
	if source.Transport != "" {
		target.Transport = source.Transport
	}
	if source.Address != "" {
		target.Address = source.Address
	}
	if source.StateDir != "" {
		target.StateDir = source.StateDir
	}
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
	}
	target.AllowedPaths = append(target.AllowedPaths, source.AllowedPaths...)

	if p := source.Permission; p != nil {
		if target.Permission == nil {
			target.Permission = &types.PermissionConfig{}
		}
		t := target.Permission
		t.ExcludedPaths = append(t.ExcludedPaths, p.ExcludedPaths...)
		t.ExcludedPatterns = append(t.ExcludedPatterns, p.ExcludedPatterns...)
		t.RequireApproval = append(t.RequireApproval, p.RequireApproval...)
		if p.OperationTimeout > 0 {
			t.OperationTimeout = p.OperationTimeout
		}
	}

	if c := source.Command; c != nil {
		if target.Command == nil {
			target.Command = &types.CommandConfig{}
		}
		t := target.Command
		t.Allow = append(t.Allow, c.Allow...)
		t.Deny = append(t.Deny, c.Deny...)
		if c.Timeout > 0 {
			t.Timeout = c.Timeout
		}
	}

	if a := source.Agent; a != nil {
		if target.Agent == nil {
			target.Agent = &types.AgentConfig{}
		}
		mergeAgent(target.Agent, a)
	}
}

func mergeAgent(t, s *types.AgentConfig) {
	if s.Model != "" {
		t.Model = s.Model
	}
	if s.Provider != "" {
		t.Provider = s.Provider
	}
	if s.BaseURL != "" {
		t.BaseURL = s.BaseURL
	}
	if s.APIKey != "" {
		t.APIKey = s.APIKey
	}
	if s.Temperature != nil {
		t.Temperature = s.Temperature
	}
	if s.MaxTokens > 0 {
		t.MaxTokens = s.MaxTokens
	}
	if s.APITimeout > 0 {
		t.APITimeout = s.APITimeout
	}
	if s.MaxToolUses > 0 {
		t.MaxToolUses = s.MaxToolUses
	}
	if s.MaxIterations > 0 {
		t.MaxIterations = s.MaxIterations
	}
	if s.MaxParallel > 0 {
		t.MaxParallel = s.MaxParallel
	}
	if s.Prompt != "" {
		t.Prompt = s.Prompt
	}
	if s.Profile != "" {
		t.Profile = s.Profile
	}
	if s.Tools != nil {
		if t.Tools == nil {
			t.Tools = make(map[string]bool)
		}
		for k, v := range s.Tools {
			t.Tools[k] = v
		}
	}
}

// ApplyEnv applies the AGENT_* environment variables over config.
// Malformed numeric values are logged and ignored.
func ApplyEnv(config *types.Config) {
	if config.Agent == nil {
		config.Agent = &types.AgentConfig{}
	}
	a := config.Agent

	if v := os.Getenv(EnvModel); v != "" {
		a.Model = v
	}
	if v := os.Getenv(EnvProvider); v != "" {
		a.Provider = v
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		a.BaseURL = v
	}
	if v := os.Getenv(EnvTemperature); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			a.Temperature = &f
		} else {
			log.Warn().Str("var", EnvTemperature).Str("value", v).Msg("ignoring malformed environment value")
		}
	}

	intVars := []struct {
		name string
		dst  *int
	}{
		{EnvMaxTokens, &a.MaxTokens},
		{EnvAPITimeout, &a.APITimeout},
		{EnvMaxToolUses, &a.MaxToolUses},
		{EnvMaxIterations, &a.MaxIterations},
		{EnvMaxParallel, &a.MaxParallel},
	}
	for _, iv := range intVars {
		v := os.Getenv(iv.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			log.Warn().Str("var", iv.name).Str("value", v).Msg("ignoring malformed environment value")
			continue
		}
		*iv.dst = n
	}
}

// Save writes the configuration as indented JSON.
func Save(config *types.Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
