package tool

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/opencode-ai/mcp-claude-code/internal/permission"
)

// fileBase is shared by the filesystem tools: it resolves relative paths
// and authorizes them against the gate.
type fileBase struct {
	gate    *permission.Gate
	workDir string
}

func newFileBase(gate *permission.Gate, workDir string) *fileBase {
	return &fileBase{gate: gate, workDir: workDir}
}

// resolve makes path absolute against the call's or the tool's work dir.
func (b *fileBase) resolve(path string, toolCtx *Context) string {
	path = strings.TrimSpace(path)
	if filepath.IsAbs(path) || strings.HasPrefix(path, "~") {
		return path
	}
	base := b.workDir
	if toolCtx != nil && toolCtx.WorkDir != "" {
		base = toolCtx.WorkDir
	}
	if base == "" {
		return path
	}
	return filepath.Join(base, path)
}

// authorize resolves path and checks op against the gate.
func (b *fileBase) authorize(path, op string, toolCtx *Context) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	resolved := b.resolve(path, toolCtx)
	if err := b.gate.Authorize(resolved, op); err != nil {
		return "", err
	}
	return resolved, nil
}

// visible reports whether path may be shown in listings and search
// results.
func (b *fileBase) visible(path string) bool {
	return b.gate.IsPathAllowed(path)
}

// Directories skipped by tree, glob and search walks.
var defaultIgnoreDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"vendor":       true,
	".idea":        true,
	".vscode":      true,
	".cache":       true,
	"coverage":     true,
}

func isBinaryFile(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	buf := make([]byte, 8000)
	n, _ := file.Read(buf)
	if n == 0 {
		return false
	}

	for i := 0; i < n; i++ {
		if buf[i] == 0 {
			return true
		}
	}

	nonPrintable := 0
	for i := 0; i < n; i++ {
		if buf[i] < 32 && buf[i] != '\n' && buf[i] != '\r' && buf[i] != '\t' {
			nonPrintable++
		}
	}
	return float64(nonPrintable)/float64(n) > 0.3
}
