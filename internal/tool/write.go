package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	einotool "github.com/cloudwego/eino/components/tool"

	"github.com/opencode-ai/mcp-claude-code/internal/event"
	"github.com/opencode-ai/mcp-claude-code/internal/permission"
)

const writeDescription = `Writes a file to the local filesystem.

Usage:
- Overwrites the file if it already exists
- Creates missing parent directories
- Only paths inside the allowed directories can be written`

// WriteTool implements write_file.
type WriteTool struct {
	files *fileBase
}

// WriteInput represents the input for write_file.
type WriteInput struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// NewWriteTool creates a new write tool.
func NewWriteTool(gate *permission.Gate, workDir string) *WriteTool {
	return &WriteTool{files: newFileBase(gate, workDir)}
}

func (t *WriteTool) ID() string          { return "write_file" }
func (t *WriteTool) Description() string { return writeDescription }

func (t *WriteTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {
				"type": "string",
				"description": "Path of the file to write"
			},
			"content": {
				"type": "string",
				"description": "The content to write to the file"
			}
		},
		"required": ["path", "content"]
	}`)
}

func (t *WriteTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params WriteInput
	if err := decodeInput(input, &params); err != nil {
		return nil, err
	}

	path, err := t.files.authorize(params.Path, permission.OpWrite, toolCtx)
	if err != nil {
		return nil, err
	}

	mode := os.FileMode(0o644)
	existed := false
	var previous string
	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			return nil, fmt.Errorf("path is a directory: %s", path)
		}
		mode = info.Mode().Perm()
		existed = true
		if !isBinaryFile(path) {
			if old, err := os.ReadFile(path); err == nil {
				previous = string(old)
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(params.Content), mode); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	event.Publish(event.Event{
		Type: event.FileEdited,
		Data: event.FileEditedData{File: path},
	})

	output := fmt.Sprintf("Created %s (%d bytes)", path, len(params.Content))
	change := diffText(path, previous, params.Content, t.files.workDir)
	if existed {
		output = fmt.Sprintf("Overwrote %s (%d bytes, %s)", path, len(params.Content), change.Stat())
	}
	return &Result{
		Title:  fmt.Sprintf("Wrote %s", filepath.Base(path)),
		Output: output,
		Metadata: map[string]any{
			"file":      path,
			"bytes":     len(params.Content),
			"existed":   existed,
			"additions": change.Added,
			"deletions": change.Removed,
		},
	}, nil
}

func (t *WriteTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}
