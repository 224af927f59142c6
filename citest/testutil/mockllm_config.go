package testutil

import (
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// MockLLMConfig scripts the mock LLM. Rules are matched against the latest
// user message; a tool rule only fires when the request offers its tool.
type MockLLMConfig struct {
	Defaults MockDefaults `yaml:"defaults"`
	Rules    []Rule       `yaml:"rules"`
}

// MockDefaults defines fallback behavior.
type MockDefaults struct {
	// Fallback answers prompts no rule matches.
	Fallback string `yaml:"fallback"`
	// Summary prefixes the final answer given after a tool result.
	Summary string `yaml:"summary"`
}

// Rule maps a prompt to a text answer or a tool call.
type Rule struct {
	Name      string         `yaml:"name"`
	Match     MatchConfig    `yaml:"match"`
	Tool      string         `yaml:"tool,omitempty"`
	Arguments map[string]any `yaml:"arguments,omitempty"`
	Response  string         `yaml:"response"`
	Priority  int            `yaml:"priority"`
}

// MatchConfig defines how to match a prompt. All matching is
// case-insensitive; the first non-empty field decides.
type MatchConfig struct {
	Exact       string   `yaml:"exact,omitempty"`
	Contains    string   `yaml:"contains,omitempty"`
	ContainsAll []string `yaml:"contains_all,omitempty"`
	ContainsAny []string `yaml:"contains_any,omitempty"`
	Regex       string   `yaml:"regex,omitempty"`
}

// DefaultMockLLMConfig returns the scenarios the e2e suite relies on.
func DefaultMockLLMConfig() *MockLLMConfig {
	return &MockLLMConfig{
		Defaults: MockDefaults{
			Fallback: "I looked into it and have nothing further to add.",
			Summary:  "Here is what I found:",
		},
		Rules: []Rule{
			{
				Name:     "math-2plus2",
				Match:    MatchConfig{ContainsAny: []string{"2+2", "2 + 2"}},
				Response: "4",
				Priority: 10,
			},
			{
				Name:      "read-readme",
				Match:     MatchConfig{ContainsAll: []string{"read", "readme"}},
				Tool:      "read_files",
				Arguments: map[string]any{"paths": []any{"README.md"}},
				Priority:  10,
			},
			{
				Name:      "list-go-files",
				Match:     MatchConfig{Regex: `\bgo files?\b`},
				Tool:      "glob",
				Arguments: map[string]any{"pattern": "**/*.go"},
				Priority:  5,
			},
			{
				Name:      "run-echo",
				Match:     MatchConfig{Contains: "echo"},
				Tool:      "run_command",
				Arguments: map[string]any{"command": "echo sub-agent was here"},
				Priority:  5,
			},
		},
	}
}

// LoadMockLLMConfig loads configuration from a YAML file.
func LoadMockLLMConfig(path string) (*MockLLMConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseMockLLMConfig(data)
}

// ParseMockLLMConfig decodes a YAML scenario.
func ParseMockLLMConfig(data []byte) (*MockLLMConfig, error) {
	var config MockLLMConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// Matches reports whether the prompt matches.
func (m *MatchConfig) Matches(prompt string) bool {
	lower := strings.ToLower(prompt)
	switch {
	case m.Exact != "":
		return strings.EqualFold(strings.TrimSpace(prompt), m.Exact)
	case m.Contains != "":
		return strings.Contains(lower, strings.ToLower(m.Contains))
	case len(m.ContainsAll) > 0:
		for _, s := range m.ContainsAll {
			if !strings.Contains(lower, strings.ToLower(s)) {
				return false
			}
		}
		return true
	case len(m.ContainsAny) > 0:
		for _, s := range m.ContainsAny {
			if strings.Contains(lower, strings.ToLower(s)) {
				return true
			}
		}
		return false
	case m.Regex != "":
		re, err := regexp.Compile("(?i)" + m.Regex)
		return err == nil && re.MatchString(prompt)
	}
	return false
}

// FindRule returns the highest priority rule matching prompt. Tool rules
// whose tool is not offered are skipped.
func (c *MockLLMConfig) FindRule(prompt string, offered []string) *Rule {
	available := make(map[string]bool, len(offered))
	for _, t := range offered {
		available[t] = true
	}

	var best *Rule
	for i := range c.Rules {
		rule := &c.Rules[i]
		if rule.Tool != "" && !available[rule.Tool] {
			continue
		}
		if !rule.Match.Matches(prompt) {
			continue
		}
		if best == nil || rule.Priority > best.Priority {
			best = rule
		}
	}
	return best
}
