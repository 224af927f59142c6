// Package main provides the entry point for the mcp-claude-code server.
package main

import (
	"fmt"
	"os"

	"github.com/opencode-ai/mcp-claude-code/cmd/mcp-claude-code/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
