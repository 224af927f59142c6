package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	einotool "github.com/cloudwego/eino/components/tool"

	"github.com/opencode-ai/mcp-claude-code/internal/permission"
)

const (
	defaultTreeDepth = 3
	maxTreeDepth     = 10
	maxTreeEntries   = 1000
)

const treeDescription = `Shows a recursive tree of a directory.

Usage:
- depth limits recursion (default 3, max 10)
- Dependency and build directories (node_modules, .git, vendor, ...) are skipped
- Hidden entries are skipped unless include_hidden is true
- Excluded paths are never shown`

// TreeTool implements directory_tree.
type TreeTool struct {
	files *fileBase
}

// TreeInput represents the input for directory_tree.
type TreeInput struct {
	Path          string `json:"path,omitempty"`
	Depth         int    `json:"depth,omitempty"`
	IncludeHidden bool   `json:"include_hidden,omitempty"`
}

// NewTreeTool creates a new tree tool.
func NewTreeTool(gate *permission.Gate, workDir string) *TreeTool {
	return &TreeTool{files: newFileBase(gate, workDir)}
}

func (t *TreeTool) ID() string          { return "directory_tree" }
func (t *TreeTool) Description() string { return treeDescription }

func (t *TreeTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {
				"type": "string",
				"description": "Directory to show (default: working directory)"
			},
			"depth": {
				"type": "integer",
				"description": "Maximum depth (default: 3)"
			},
			"include_hidden": {
				"type": "boolean",
				"description": "Include entries starting with a dot"
			}
		}
	}`)
}

type treeWalker struct {
	files         *fileBase
	maxDepth      int
	includeHidden bool
	entries       int
	truncated     bool
	dirs, regular int
}

func (t *TreeTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params TreeInput
	if err := decodeInput(input, &params); err != nil {
		return nil, err
	}
	if params.Path == "" {
		params.Path = "."
	}
	switch {
	case params.Depth <= 0:
		params.Depth = defaultTreeDepth
	case params.Depth > maxTreeDepth:
		params.Depth = maxTreeDepth
	}

	root, err := t.files.authorize(params.Path, permission.OpRead, toolCtx)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("directory not found: %s", root)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", root)
	}

	w := &treeWalker{files: t.files, maxDepth: params.Depth, includeHidden: params.IncludeHidden}
	var sb strings.Builder
	sb.WriteString(filepath.Clean(root) + "/\n")
	if err := w.walk(ctx, &sb, root, "", 1); err != nil {
		return nil, err
	}
	fmt.Fprintf(&sb, "\n%d directories, %d files", w.dirs, w.regular)
	if w.truncated {
		fmt.Fprintf(&sb, "\n(Output truncated at %d entries)", maxTreeEntries)
	}

	return &Result{
		Title:  fmt.Sprintf("Tree of %s", filepath.Base(root)),
		Output: sb.String(),
		Metadata: map[string]any{
			"path":        root,
			"directories": w.dirs,
			"files":       w.regular,
			"truncated":   w.truncated,
		},
	}, nil
}

func (w *treeWalker) walk(ctx context.Context, sb *strings.Builder, dir, prefix string, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		fmt.Fprintf(sb, "%s└── [error: %v]\n", prefix, err)
		return nil
	}

	visible := entries[:0]
	for _, e := range entries {
		name := e.Name()
		if !w.includeHidden && strings.HasPrefix(name, ".") {
			continue
		}
		if e.IsDir() && defaultIgnoreDirs[name] {
			continue
		}
		if !w.files.visible(filepath.Join(dir, name)) {
			continue
		}
		visible = append(visible, e)
	}
	sort.Slice(visible, func(i, j int) bool {
		if visible[i].IsDir() != visible[j].IsDir() {
			return visible[i].IsDir()
		}
		return visible[i].Name() < visible[j].Name()
	})

	for i, e := range visible {
		if w.entries >= maxTreeEntries {
			w.truncated = true
			return nil
		}
		w.entries++

		last := i == len(visible)-1
		branch, childPrefix := "├── ", prefix+"│   "
		if last {
			branch, childPrefix = "└── ", prefix+"    "
		}

		if e.IsDir() {
			w.dirs++
			sb.WriteString(prefix + branch + e.Name() + "/\n")
			if depth < w.maxDepth {
				if err := w.walk(ctx, sb, filepath.Join(dir, e.Name()), childPrefix, depth+1); err != nil {
					return err
				}
			}
			continue
		}
		w.regular++
		sb.WriteString(prefix + branch + e.Name() + "\n")
	}
	return nil
}

func (t *TreeTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}
