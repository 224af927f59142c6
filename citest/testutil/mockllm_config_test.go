package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchConfig_Matches(t *testing.T) {
	tests := []struct {
		name   string
		match  MatchConfig
		prompt string
		want   bool
	}{
		{"exact", MatchConfig{Exact: "hello"}, "  HELLO ", true},
		{"exact mismatch", MatchConfig{Exact: "hello"}, "hello there", false},
		{"contains", MatchConfig{Contains: "ReadMe"}, "please read the README", true},
		{"contains all", MatchConfig{ContainsAll: []string{"read", "readme"}}, "Read README.md", true},
		{"contains all missing one", MatchConfig{ContainsAll: []string{"read", "readme"}}, "open README.md", false},
		{"contains any", MatchConfig{ContainsAny: []string{"2+2", "2 + 2"}}, "what is 2 + 2?", true},
		{"regex", MatchConfig{Regex: `\bgo files?\b`}, "List the Go files", true},
		{"bad regex", MatchConfig{Regex: `(`}, "anything", false},
		{"empty", MatchConfig{}, "anything", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.match.Matches(tt.prompt))
		})
	}
}

func TestMockLLMConfig_FindRule(t *testing.T) {
	cfg := DefaultMockLLMConfig()

	rule := cfg.FindRule("Read the README please", []string{"read_files", "glob"})
	require.NotNil(t, rule)
	assert.Equal(t, "read-readme", rule.Name)

	// The tool is not offered, so the rule is skipped.
	assert.Nil(t, cfg.FindRule("Read the README please", []string{"glob"}))

	rule = cfg.FindRule("What is 2+2?", nil)
	require.NotNil(t, rule)
	assert.Equal(t, "4", rule.Response)
}

func TestParseMockLLMConfig(t *testing.T) {
	cfg, err := ParseMockLLMConfig([]byte(`
defaults:
  fallback: no idea
  summary: "Result:"
rules:
  - name: list
    match:
      contains: list
    tool: glob
    arguments:
      pattern: "*.txt"
    priority: 3
`))
	require.NoError(t, err)
	assert.Equal(t, "no idea", cfg.Defaults.Fallback)
	require.Len(t, cfg.Rules, 1)
	assert.Equal(t, "glob", cfg.Rules[0].Tool)
	assert.Equal(t, "*.txt", cfg.Rules[0].Arguments["pattern"])
}
