package testutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// ReadmeContent is the README.md written into every test workspace.
const ReadmeContent = "# Demo project\n\nThe answer is 42.\n"

// workspaceFiles is the layout of a test workspace.
var workspaceFiles = map[string]string{
	"README.md":         ReadmeContent,
	"src/main.go":       "package main\n\nfunc main() {}\n",
	"src/util/util.go":  "package util\n\nfunc Double(n int) int { return n * 2 }\n",
	"notes/todo.txt":    "ship it\n",
	".git/HEAD":         "ref: refs/heads/main\n",
	"secrets/token.key": "do-not-read\n",
}

// NewWorkspace creates a temporary workspace populated with
// workspaceFiles. The returned path has symlinks resolved so it compares
// equal to paths the server reports.
func NewWorkspace() (string, error) {
	dir, err := os.MkdirTemp("", "mcp-claude-code-test-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	dir, err = filepath.EvalSymlinks(dir)
	if err != nil {
		return "", err
	}
	for rel, content := range workspaceFiles {
		if err := WriteFile(dir, rel, content); err != nil {
			os.RemoveAll(dir)
			return "", err
		}
	}
	return dir, nil
}

// WriteFile writes content to dir/rel, creating parent directories.
func WriteFile(dir, rel, content string) error {
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
