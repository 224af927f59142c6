package agent

import (
	"maps"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/opencode-ai/mcp-claude-code/internal/tool"
)

// Built-in profile names.
const (
	ProfileGeneral = "general"
	ProfileExplore = "explore"
)

// Profile decides which tools a sub-agent may call and adds
// profile-specific instructions to its system prompt.
type Profile struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Prompt      string          `json:"prompt,omitempty"`
	Tools       map[string]bool `json:"tools"`
}

// ToolEnabled checks if a tool is enabled for this profile. Exact entries
// win over wildcard entries; among wildcards the longest pattern wins.
// Tools not mentioned at all are disabled. The dispatch tool is never
// enabled so sub-agents cannot spawn sub-agents.
func (p *Profile) ToolEnabled(toolID string) bool {
	if toolID == tool.DispatchToolID {
		return false
	}

	if enabled, ok := p.Tools[toolID]; ok {
		return enabled
	}

	best := ""
	enabled := false
	for pattern, on := range p.Tools {
		if !matchWildcard(pattern, toolID) {
			continue
		}
		if len(pattern) > len(best) || (len(pattern) == len(best) && pattern < best) {
			best, enabled = pattern, on
		}
	}
	return enabled
}

// Clone creates a deep copy of the profile.
func (p *Profile) Clone() *Profile {
	clone := *p
	clone.Tools = maps.Clone(p.Tools)
	if clone.Tools == nil {
		clone.Tools = make(map[string]bool)
	}
	return &clone
}

// WithOverrides returns a copy of p with the given tool entries applied
// on top of its own.
func (p *Profile) WithOverrides(tools map[string]bool) *Profile {
	clone := p.Clone()
	maps.Copy(clone.Tools, tools)
	return clone
}

// matchWildcard checks if a tool name matches a wildcard pattern.
func matchWildcard(pattern, s string) bool {
	if pattern == "*" {
		return true
	}

	if !strings.Contains(pattern, "*") && !strings.Contains(pattern, "?") {
		return pattern == s
	}

	// Simple suffix wildcard (prefix*)
	if strings.HasSuffix(pattern, "*") && strings.Count(pattern, "*") == 1 {
		return strings.HasPrefix(s, strings.TrimSuffix(pattern, "*"))
	}

	// Simple prefix wildcard (*suffix)
	if strings.HasPrefix(pattern, "*") && strings.Count(pattern, "*") == 1 {
		return strings.HasSuffix(s, strings.TrimPrefix(pattern, "*"))
	}

	matched, _ := doublestar.Match(pattern, s)
	return matched
}

// BuiltInProfiles returns the built-in sub-agent profiles.
func BuiltInProfiles() map[string]*Profile {
	return map[string]*Profile{
		ProfileGeneral: {
			Name:        ProfileGeneral,
			Description: "Researches, searches and inspects the project. Can run allowed commands but cannot modify files.",
			Tools: map[string]bool{
				"read_files":     true,
				"directory_tree": true,
				"get_file_info":  true,
				"glob":           true,
				"search_content": true,
				"think":          true,
				"run_command":    true,
			},
		},
		ProfileExplore: {
			Name:        ProfileExplore,
			Description: "Fast read-only exploration of the codebase.",
			Prompt:      "Stay read-only: locate files, read them and report what you found. Be quick and precise.",
			Tools: map[string]bool{
				"read_files":     true,
				"directory_tree": true,
				"get_file_info":  true,
				"glob":           true,
				"search_content": true,
				"think":          true,
			},
		},
	}
}

// ProfileNames returns the names of the built-in profiles, sorted.
func ProfileNames() []string {
	profiles := BuiltInProfiles()
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupProfile returns a copy of the named built-in profile.
func LookupProfile(name string) (*Profile, bool) {
	p, ok := BuiltInProfiles()[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	return p, true
}
