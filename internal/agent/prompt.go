package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/opencode-ai/mcp-claude-code/internal/tool"
)

const sectionSeparator = "\n\n---\n\n"

const basePrompt = `You are a sub-agent working on a task delegated by another assistant.
Work on your own with the tools listed below, then reply with a concise and complete answer.
The caller only sees your final message, so include every finding it needs.`

const guidelines = `Guidelines:
- Use absolute paths inside the allowed directories.
- Search and read before drawing conclusions.
- You cannot modify files unless a tool for it is listed above.
- When you are done, reply without calling any tools.`

// buildSystemPrompt lists the tools and directories an agent may use.
func buildSystemPrompt(tools *tool.Registry, allowedPaths []string, extra ...string) string {
	var b strings.Builder
	b.WriteString(basePrompt)

	b.WriteString("\n\nAvailable tools:\n")
	list := tools.List()
	if len(list) == 0 {
		b.WriteString("- none\n")
	}
	for _, t := range list {
		fmt.Fprintf(&b, "- %s: %s\n", t.ID(), firstLine(t.Description()))
	}

	b.WriteString("\nAllowed directories:\n")
	if len(allowedPaths) == 0 {
		b.WriteString("- none\n")
	}
	for _, p := range allowedPaths {
		fmt.Fprintf(&b, "- %s\n", p)
	}

	b.WriteString("\n")
	b.WriteString(guidelines)

	for _, e := range extra {
		if e = strings.TrimSpace(e); e != "" {
			b.WriteString("\n\n")
			b.WriteString(e)
		}
	}
	return b.String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func formatSingle(text string, elapsed time.Duration) string {
	return fmt.Sprintf("Agent execution completed in %.2fs\n\n%s", elapsed.Seconds(), text)
}

func formatMulti(combined string, agents int, elapsed time.Duration) string {
	return fmt.Sprintf("Multi-agent execution completed in %.2fs (%d agents)\n\n%s", elapsed.Seconds(), agents, combined)
}
